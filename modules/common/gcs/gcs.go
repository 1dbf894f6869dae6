package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"cloud.google.com/go/storage"

	"motionframe-server/modules/common/gcpauth"
)

// ErrStorage - GCS 업로드/다운로드 실패 및 잘못된 URI
var ErrStorage = errors.New("object storage")

type Client struct {
	client *storage.Client
}

// NewClient - GCS 클라이언트 생성 (credential은 gcpauth에서 해석)
func NewClient(ctx context.Context) (*Client, error) {
	opts, err := gcpauth.CredentialOptions()
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create GCS client: %v", ErrStorage, err)
	}

	log.Println("✅ [GCS] Storage client initialized")
	return &Client{client: client}, nil
}

// ParseURI - gs://bucket/object 형식 파싱
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("%w: invalid GCS URI %q, must start with gs://", ErrStorage, uri)
	}

	rest := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: invalid GCS URI %q, expected gs://bucket/object", ErrStorage, uri)
	}

	return parts[0], parts[1], nil
}

// ValidatePrefix - 출력 경로 prefix 검증 (gs://bucket 또는 gs://bucket/dir)
// 네트워크 호출 전에 잘못된 설정을 잡기 위해 사용
func ValidatePrefix(prefix string) error {
	if !strings.HasPrefix(prefix, "gs://") {
		return fmt.Errorf("%w: invalid storage prefix %q, must start with gs://", ErrStorage, prefix)
	}

	rest := strings.TrimPrefix(prefix, "gs://")
	bucket := strings.SplitN(rest, "/", 2)[0]
	if bucket == "" {
		return fmt.Errorf("%w: invalid storage prefix %q, missing bucket name", ErrStorage, prefix)
	}

	return nil
}

// DownloadToFile - GCS 객체를 로컬 파일로 다운로드
func (c *Client) DownloadToFile(ctx context.Context, uri, destPath string) error {
	// 1. URI 파싱
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return err
	}

	log.Printf("📥 [GCS] Downloading %s", uri)

	// 2. 객체 리더 열기
	reader, err := c.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %v", ErrStorage, uri, err)
	}
	defer reader.Close()

	// 3. 로컬 파일 생성 후 복사
	file, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("%w: failed to create %s: %v", ErrStorage, destPath, err)
	}

	written, err := io.Copy(file, reader)
	if err != nil {
		file.Close()
		return fmt.Errorf("%w: failed to download %s: %v", ErrStorage, uri, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("%w: failed to write %s: %v", ErrStorage, destPath, err)
	}

	log.Printf("✅ [GCS] Downloaded %d bytes to %s", written, destPath)
	return nil
}

// UploadPublic - 로컬 파일을 GCS에 업로드하고 public URL 반환
func (c *Client) UploadPublic(ctx context.Context, localPath, bucket, objectName string) (string, error) {
	// 1. 로컬 파일 열기
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: failed to open %s: %v", ErrStorage, localPath, err)
	}
	defer file.Close()

	log.Printf("📤 [GCS] Uploading %s to gs://%s/%s", localPath, bucket, objectName)

	// 2. 객체 쓰기
	writer := c.client.Bucket(bucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(writer, file); err != nil {
		writer.Close()
		return "", fmt.Errorf("%w: failed to upload %s: %v", ErrStorage, objectName, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("%w: failed to finalize %s: %v", ErrStorage, objectName, err)
	}

	// 3. public 읽기 권한 부여
	if err := c.client.Bucket(bucket).Object(objectName).ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		return "", fmt.Errorf("%w: failed to make %s public: %v", ErrStorage, objectName, err)
	}

	publicURL := fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, objectName)
	log.Printf("✅ [GCS] Uploaded, public URL: %s", publicURL)
	return publicURL, nil
}

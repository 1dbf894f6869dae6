package gcs

import (
	"errors"
	"testing"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri    string
		bucket string
		object string
	}{
		{"gs://my-bucket/videos/out.mp4", "my-bucket", "videos/out.mp4"},
		{"gs://bucket/a/b/c/file.mp4", "bucket", "a/b/c/file.mp4"},
		{"gs://b/x", "b", "x"},
	}

	for _, tt := range tests {
		bucket, object, err := ParseURI(tt.uri)
		if err != nil {
			t.Fatalf("ParseURI(%q) returned error: %v", tt.uri, err)
		}
		if bucket != tt.bucket || object != tt.object {
			t.Errorf("ParseURI(%q) = (%q, %q), want (%q, %q)",
				tt.uri, bucket, object, tt.bucket, tt.object)
		}
	}
}

func TestParseURIRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"http://bucket/object",
		"s3://bucket/object",
		"gs://",
		"gs://bucket-only",
		"gs://bucket/",
		"gs:///object",
		"bucket/object",
	}

	for _, uri := range bad {
		_, _, err := ParseURI(uri)
		if err == nil {
			t.Errorf("ParseURI(%q) succeeded, want error", uri)
			continue
		}
		if !errors.Is(err, ErrStorage) {
			t.Errorf("ParseURI(%q) error = %v, want ErrStorage", uri, err)
		}
	}
}

func TestValidatePrefix(t *testing.T) {
	good := []string{
		"gs://my-bucket",
		"gs://my-bucket/",
		"gs://my-bucket/outputs",
		"gs://my-bucket/outputs/",
	}
	for _, prefix := range good {
		if err := ValidatePrefix(prefix); err != nil {
			t.Errorf("ValidatePrefix(%q) = %v, want nil", prefix, err)
		}
	}

	bad := []string{
		"",
		"my-bucket",
		"gs://",
		"https://storage.googleapis.com/my-bucket",
	}
	for _, prefix := range bad {
		err := ValidatePrefix(prefix)
		if err == nil {
			t.Errorf("ValidatePrefix(%q) succeeded, want error", prefix)
			continue
		}
		if !errors.Is(err, ErrStorage) {
			t.Errorf("ValidatePrefix(%q) error = %v, want ErrStorage", prefix, err)
		}
	}
}

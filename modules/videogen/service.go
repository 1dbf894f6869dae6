package videogen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"motionframe-server/modules/common/gcs"
	"motionframe-server/modules/common/utils"
)

// CredentialProvider hands out a bearer token for each request. The
// poller calls it once per iteration so long jobs survive token expiry.
type CredentialProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// Service - Veo REST API 클라이언트 (submit + poll)
type Service struct {
	config       *Config
	httpClient   *http.Client
	endpointBase string
	sleep        func(ctx context.Context, d time.Duration) error
}

// NewService - Service 생성
func NewService() *Service {
	cfg := GetConfig()
	if cfg == nil {
		log.Println("❌ [VideoGen] Failed to load config")
		return nil
	}

	return &Service{
		config:       cfg,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		endpointBase: fmt.Sprintf("https://%s-aiplatform.googleapis.com", cfg.Region),
		sleep:        sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (s *Service) submitURL(modelID string) string {
	return fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:predictLongRunning",
		s.endpointBase, s.config.ProjectID, s.config.Region, modelID)
}

func (s *Service) pollURL(modelID string) string {
	return fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:fetchPredictOperation",
		s.endpointBase, s.config.ProjectID, s.config.Region, modelID)
}

// SubmitJob - Veo 비디오 생성 작업 시작 (predictLongRunning)
// Each job writes under its own random subdirectory of the storage
// prefix so concurrent jobs never collide.
func (s *Service) SubmitJob(ctx context.Context, creds CredentialProvider, imageBytes []byte, mimeType, prompt, aspectLabel string) (JobHandle, error) {
	// 출력 경로 검증은 네트워크 호출 전에 수행
	if err := gcs.ValidatePrefix(s.config.StoragePrefix); err != nil {
		return JobHandle{}, err
	}

	variant := s.config.Variant
	storageURI := strings.TrimRight(s.config.StoragePrefix, "/") + "/" + uuid.New().String() + "/"

	reqData := SubmitRequest{
		Instances: []SubmitInstance{
			{
				Prompt: prompt,
				Image: ImagePayload{
					BytesBase64Encoded: utils.ConvertImageToBase64(imageBytes),
					MimeType:           mimeType,
				},
			},
		},
		Parameters: variant.BuildParameters(storageURI, aspectLabel),
	}

	reqBody, err := json.Marshal(reqData)
	if err != nil {
		return JobHandle{}, fmt.Errorf("%w: failed to marshal request: %v", ErrSubmission, err)
	}

	token, err := creds.AccessToken(ctx)
	if err != nil {
		return JobHandle{}, fmt.Errorf("%w: failed to obtain token: %v", ErrSubmission, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.submitURL(variant.ModelID), bytes.NewBuffer(reqBody))
	if err != nil {
		return JobHandle{}, fmt.Errorf("%w: failed to create request: %v", ErrSubmission, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	log.Printf("🚀 [VideoGen] Submitting job to %s (output: %s)", variant.ModelID, storageURI)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return JobHandle{}, fmt.Errorf("%w: failed to send request: %v", ErrSubmission, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return JobHandle{}, fmt.Errorf("%w: failed to read response: %v", ErrSubmission, err)
	}

	log.Printf("📥 [VideoGen] Submit response status: %d", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return JobHandle{}, fmt.Errorf("%w: API returned status %d: %s", ErrSubmission, resp.StatusCode, string(body))
	}

	var op Operation
	if err := json.Unmarshal(body, &op); err != nil {
		return JobHandle{}, fmt.Errorf("%w: failed to unmarshal response: %v", ErrSubmission, err)
	}
	if op.Name == "" {
		return JobHandle{}, fmt.Errorf("%w: response has no operation name: %s", ErrSubmission, string(body))
	}

	log.Printf("✅ [VideoGen] Started operation: %s", op.Name)
	return JobHandle{OperationName: op.Name, ModelID: variant.ModelID}, nil
}

// Poll - 작업 완료까지 폴링 (fetchPredictOperation)
// The credential is refreshed through creds every iteration; the
// returned operation is handed back exactly as the API sent it, success
// or error payload alike.
func (s *Service) Poll(ctx context.Context, handle JobHandle, creds CredentialProvider) (*Operation, error) {
	variant, ok := VariantFor(handle.ModelID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown model in job handle: %s", ErrPolling, handle.ModelID)
	}

	pollURL := s.pollURL(handle.ModelID)
	reqData := map[string]string{variant.PollRequestKey: handle.OperationName}
	reqBody, err := json.Marshal(reqData)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal request: %v", ErrPolling, err)
	}

	log.Printf("⏳ [VideoGen] Polling operation %s (model: %s)", handle.OperationName, handle.ModelID)

	for iteration := 1; ; iteration++ {
		if s.config.MaxPollIterations > 0 && iteration > s.config.MaxPollIterations {
			return nil, fmt.Errorf("%w: gave up after %d iterations", ErrPolling, s.config.MaxPollIterations)
		}

		// 토큰은 매 iteration마다 갱신 (긴 작업 중 만료 대비)
		token, err := creds.AccessToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to refresh token: %v", ErrPolling, err)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", pollURL, bytes.NewReader(reqBody))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to create request: %v", ErrPolling, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to send request: %v", ErrPolling, err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read response: %v", ErrPolling, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("%w: API returned status %d: %s", ErrPolling, resp.StatusCode, string(body))
		}

		var op Operation
		if err := json.Unmarshal(body, &op); err != nil {
			return nil, fmt.Errorf("%w: failed to unmarshal response: %v", ErrPolling, err)
		}

		if op.Done {
			log.Printf("✅ [VideoGen] Operation finished after %d checks", iteration)
			return &op, nil
		}

		log.Printf("📊 [VideoGen] Check %d: generation in progress, waiting %s...", iteration, s.config.PollInterval)
		if err := s.sleep(ctx, s.config.PollInterval); err != nil {
			return nil, fmt.Errorf("%w: polling interrupted: %v", ErrPolling, err)
		}
	}
}

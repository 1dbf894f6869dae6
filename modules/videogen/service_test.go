package videogen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"motionframe-server/modules/common/gcs"
)

type fakeCreds struct {
	calls int
}

func (f *fakeCreds) AccessToken(ctx context.Context) (string, error) {
	f.calls++
	return fmt.Sprintf("token-%d", f.calls), nil
}

func newTestService(variant ModelVariant, baseURL, storagePrefix string) *Service {
	return &Service{
		config: &Config{
			ProjectID:     "test-project",
			Region:        "us-central1",
			StoragePrefix: storagePrefix,
			Variant:       variant,
			PollInterval:  20 * time.Second,
		},
		httpClient:   &http.Client{Timeout: 5 * time.Second},
		endpointBase: baseURL,
		sleep:        func(ctx context.Context, d time.Duration) error { return nil },
	}
}

func TestSubmitJobBuildsVeo3Request(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody SubmitRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode submit body: %v", err)
		}
		json.NewEncoder(w).Encode(Operation{Name: "projects/p/operations/op-123"})
	}))
	defer srv.Close()

	svc := newTestService(Veo3Fast, srv.URL, "gs://test-bucket")
	imageBytes := []byte{0x89, 0x50, 0x4E, 0x47}

	handle, err := svc.SubmitJob(context.Background(), &fakeCreds{}, imageBytes, "image/png", "rotate around the subject", "16:9")
	if err != nil {
		t.Fatalf("SubmitJob returned error: %v", err)
	}

	if handle.OperationName != "projects/p/operations/op-123" {
		t.Errorf("operation name = %q", handle.OperationName)
	}
	if handle.ModelID != "veo-3.0-fast-generate-001" {
		t.Errorf("model ID = %q", handle.ModelID)
	}

	wantPath := "/v1/projects/test-project/locations/us-central1/publishers/google/models/veo-3.0-fast-generate-001:predictLongRunning"
	if gotPath != wantPath {
		t.Errorf("request path = %q, want %q", gotPath, wantPath)
	}
	if gotAuth != "Bearer token-1" {
		t.Errorf("Authorization = %q, want Bearer token-1", gotAuth)
	}

	if len(gotBody.Instances) != 1 {
		t.Fatalf("instances count = %d, want 1", len(gotBody.Instances))
	}
	inst := gotBody.Instances[0]
	if inst.Prompt != "rotate around the subject" {
		t.Errorf("prompt = %q", inst.Prompt)
	}
	decoded, err := base64.StdEncoding.DecodeString(inst.Image.BytesBase64Encoded)
	if err != nil || string(decoded) != string(imageBytes) {
		t.Errorf("image payload does not roundtrip to input bytes")
	}
	if inst.Image.MimeType != "image/png" {
		t.Errorf("mime type = %q", inst.Image.MimeType)
	}

	if gotBody.Parameters["resolution"] != "720p" {
		t.Errorf("resolution = %v", gotBody.Parameters["resolution"])
	}
	if gotBody.Parameters["generateAudio"] != false {
		t.Errorf("generateAudio = %v, want false", gotBody.Parameters["generateAudio"])
	}
	if gotBody.Parameters["sampleCount"] != float64(1) {
		t.Errorf("sampleCount = %v, want 1", gotBody.Parameters["sampleCount"])
	}

	storageURI, _ := gotBody.Parameters["storageUri"].(string)
	if !strings.HasPrefix(storageURI, "gs://test-bucket/") || !strings.HasSuffix(storageURI, "/") {
		t.Errorf("storageUri = %q, want gs://test-bucket/<job>/", storageURI)
	}
	if storageURI == "gs://test-bucket/" {
		t.Errorf("storageUri has no per-job subdirectory: %q", storageURI)
	}
}

func TestSubmitJobBuildsVeo2Parameters(t *testing.T) {
	var gotBody SubmitRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(Operation{Name: "op-v2"})
	}))
	defer srv.Close()

	svc := newTestService(Veo2, srv.URL, "gs://test-bucket/outputs/")
	_, err := svc.SubmitJob(context.Background(), &fakeCreds{}, []byte("img"), "image/png", "p", "9:16")
	if err != nil {
		t.Fatalf("SubmitJob returned error: %v", err)
	}

	if gotBody.Parameters["durationSeconds"] != float64(8) {
		t.Errorf("durationSeconds = %v, want 8", gotBody.Parameters["durationSeconds"])
	}
	if gotBody.Parameters["aspectRatio"] != "9:16" {
		t.Errorf("aspectRatio = %v, want 9:16", gotBody.Parameters["aspectRatio"])
	}
	if _, present := gotBody.Parameters["resolution"]; present {
		t.Errorf("veo-2.0 parameters must not carry resolution")
	}

	storageURI, _ := gotBody.Parameters["storageUri"].(string)
	if !strings.HasPrefix(storageURI, "gs://test-bucket/outputs/") {
		t.Errorf("storageUri = %q, want under gs://test-bucket/outputs/", storageURI)
	}
	if strings.Contains(storageURI, "//outputs") || strings.Contains(strings.TrimPrefix(storageURI, "gs://"), "//") {
		t.Errorf("storageUri has doubled slashes: %q", storageURI)
	}
}

func TestSubmitJobRejectsBadStoragePrefixBeforeNetwork(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	svc := newTestService(Veo3Fast, srv.URL, "results/local")
	_, err := svc.SubmitJob(context.Background(), &fakeCreds{}, []byte("img"), "image/png", "p", "16:9")
	if !errors.Is(err, gcs.ErrStorage) {
		t.Fatalf("error = %v, want ErrStorage", err)
	}
	if hits != 0 {
		t.Errorf("server was hit %d times, want 0", hits)
	}
}

func TestSubmitJobRemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "invalid image"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	svc := newTestService(Veo3Fast, srv.URL, "gs://test-bucket")
	_, err := svc.SubmitJob(context.Background(), &fakeCreds{}, []byte("img"), "image/png", "p", "16:9")
	if !errors.Is(err, ErrSubmission) {
		t.Fatalf("error = %v, want ErrSubmission", err)
	}
}

func TestPollSleepsBetweenChecksAndReturnsFinalResponse(t *testing.T) {
	requests := 0
	var authHeaders []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		authHeaders = append(authHeaders, r.Header.Get("Authorization"))
		if requests < 3 {
			json.NewEncoder(w).Encode(Operation{Name: "op-1", Done: false})
			return
		}
		json.NewEncoder(w).Encode(Operation{
			Name: "op-1",
			Done: true,
			Response: &OperationResponse{
				Videos: []GeneratedVideo{{GcsURI: "gs://test-bucket/job/video.mp4"}},
			},
		})
	}))
	defer srv.Close()

	svc := newTestService(Veo3Fast, srv.URL, "gs://test-bucket")
	sleeps := 0
	svc.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps++
		if d != 20*time.Second {
			t.Errorf("sleep duration = %s, want 20s", d)
		}
		return nil
	}

	creds := &fakeCreds{}
	handle := JobHandle{OperationName: "op-1", ModelID: Veo3Fast.ModelID}
	op, err := svc.Poll(context.Background(), handle, creds)
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}

	if requests != 3 {
		t.Errorf("requests = %d, want 3", requests)
	}
	if sleeps != 2 {
		t.Errorf("sleeps = %d, want 2", sleeps)
	}
	if creds.calls != 3 {
		t.Errorf("token refreshes = %d, want one per iteration (3)", creds.calls)
	}
	for i, h := range authHeaders {
		want := fmt.Sprintf("Bearer token-%d", i+1)
		if h != want {
			t.Errorf("request %d Authorization = %q, want %q", i+1, h, want)
		}
	}

	if !op.Done {
		t.Errorf("returned operation not done")
	}
	if op.Response == nil || len(op.Response.Videos) != 1 ||
		op.Response.Videos[0].GcsURI != "gs://test-bucket/job/video.mp4" {
		t.Errorf("final response not passed through: %+v", op.Response)
	}
}

func TestPollRequestKeyPerVariant(t *testing.T) {
	tests := []struct {
		variant ModelVariant
		wantKey string
		skipKey string
	}{
		{Veo3Fast, "name", "operationName"},
		{Veo2, "operationName", "name"},
	}

	for _, tt := range tests {
		var gotBody map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&gotBody)
			json.NewEncoder(w).Encode(Operation{Name: "op-1", Done: true})
		}))

		svc := newTestService(tt.variant, srv.URL, "gs://test-bucket")
		handle := JobHandle{OperationName: "projects/p/operations/op-1", ModelID: tt.variant.ModelID}
		if _, err := svc.Poll(context.Background(), handle, &fakeCreds{}); err != nil {
			t.Fatalf("%s: Poll returned error: %v", tt.variant.ModelID, err)
		}

		if gotBody[tt.wantKey] != "projects/p/operations/op-1" {
			t.Errorf("%s: poll body[%q] = %q, want operation name",
				tt.variant.ModelID, tt.wantKey, gotBody[tt.wantKey])
		}
		if _, present := gotBody[tt.skipKey]; present {
			t.Errorf("%s: poll body must not carry %q", tt.variant.ModelID, tt.skipKey)
		}

		srv.Close()
	}
}

func TestPollErrorPayloadPassedThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Operation{
			Name:  "op-1",
			Done:  true,
			Error: &OperationError{Code: 3, Message: "quota exceeded"},
		})
	}))
	defer srv.Close()

	svc := newTestService(Veo3Fast, srv.URL, "gs://test-bucket")
	handle := JobHandle{OperationName: "op-1", ModelID: Veo3Fast.ModelID}

	// The poller hands back terminal error payloads without interpreting
	// them; classification happens in the pipeline.
	op, err := svc.Poll(context.Background(), handle, &fakeCreds{})
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if op.Error == nil || op.Error.Message != "quota exceeded" {
		t.Errorf("error payload not passed through: %+v", op.Error)
	}
}

func TestPollTransportFailureAborts(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.Error(w, "backend unavailable", http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := newTestService(Veo3Fast, srv.URL, "gs://test-bucket")
	handle := JobHandle{OperationName: "op-1", ModelID: Veo3Fast.ModelID}
	_, err := svc.Poll(context.Background(), handle, &fakeCreds{})
	if !errors.Is(err, ErrPolling) {
		t.Fatalf("error = %v, want ErrPolling", err)
	}
	if requests != 1 {
		t.Errorf("requests = %d, want 1 (no silent retry)", requests)
	}
}

func TestPollHonorsMaxIterations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Operation{Name: "op-1", Done: false})
	}))
	defer srv.Close()

	svc := newTestService(Veo3Fast, srv.URL, "gs://test-bucket")
	svc.config.MaxPollIterations = 2

	handle := JobHandle{OperationName: "op-1", ModelID: Veo3Fast.ModelID}
	_, err := svc.Poll(context.Background(), handle, &fakeCreds{})
	if !errors.Is(err, ErrPolling) {
		t.Fatalf("error = %v, want ErrPolling after max iterations", err)
	}
}

func TestPollUnknownModel(t *testing.T) {
	svc := newTestService(Veo3Fast, "http://unused", "gs://test-bucket")
	handle := JobHandle{OperationName: "op-1", ModelID: "veo-99-imaginary"}
	_, err := svc.Poll(context.Background(), handle, &fakeCreds{})
	if !errors.Is(err, ErrPolling) {
		t.Fatalf("error = %v, want ErrPolling", err)
	}
}

func TestPollCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Operation{Name: "op-1", Done: false})
	}))
	defer srv.Close()

	svc := newTestService(Veo3Fast, srv.URL, "gs://test-bucket")
	ctx, cancel := context.WithCancel(context.Background())
	svc.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	handle := JobHandle{OperationName: "op-1", ModelID: Veo3Fast.ModelID}
	_, err := svc.Poll(ctx, handle, &fakeCreds{})
	if !errors.Is(err, ErrPolling) {
		t.Fatalf("error = %v, want ErrPolling on cancellation", err)
	}
}

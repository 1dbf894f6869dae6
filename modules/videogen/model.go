package videogen

import "time"

// Stage represents where a task currently is in the pipeline.
// Transitions are one-directional; failed is reachable from any stage.
type Stage string

const (
	StagePreparing   Stage = "preparing"
	StageSubmitted   Stage = "submitted"
	StagePolling     Stage = "polling"
	StageDownloading Stage = "downloading"
	StageCropping    Stage = "cropping"
	StageUploading   Stage = "uploading"
	StageComplete    Stage = "complete"
	StageFailed      Stage = "failed"
)

// StageMessages - user-facing progress message per stage
var StageMessages = map[Stage]string{
	StagePreparing:   "Step 1/4: Preparing image for Veo...",
	StageSubmitted:   "Step 2/4: Calling Veo API to generate video...",
	StagePolling:     "Step 2/4: Waiting for Veo to finish rendering...",
	StageDownloading: "Step 3/4: Downloading generated video...",
	StageCropping:    "Step 3/4: Cropping video to original aspect ratio...",
	StageUploading:   "Step 4/4: Finalizing video...",
	StageComplete:    "Video generation complete!",
}

// Task is the per-request progress record served by /status/{taskId}
type Task struct {
	ID                  string    `json:"taskId"`
	Stage               Stage     `json:"status"`
	StatusMessage       string    `json:"statusMessage"`
	OriginalFilename    string    `json:"originalFilename,omitempty"`
	ModelID             string    `json:"modelId,omitempty"`
	OperationName       string    `json:"operationName,omitempty"`
	OriginalAspectRatio float64   `json:"originalAspectRatio,omitempty"`
	TargetRatio         string    `json:"targetRatio,omitempty"`
	Prompt              string    `json:"prompt,omitempty"`
	Video16x9URL        string    `json:"video16x9Url,omitempty"`
	FinalVideoURL       string    `json:"finalVideoUrl,omitempty"`
	PublicURL           string    `json:"publicUrl,omitempty"`
	Error               string    `json:"error,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// Terminal reports whether the task has finished (successfully or not).
func (t *Task) Terminal() bool {
	return t.Stage == StageComplete || t.Stage == StageFailed
}

// JobHandle identifies a submitted long-running operation. The polling
// endpoint is model-specific, so the model ID must travel with the
// operation name.
type JobHandle struct {
	OperationName string `json:"operationName"`
	ModelID       string `json:"modelId"`
}

// --- Veo REST wire shapes ---

// SubmitRequest - predictLongRunning request body
type SubmitRequest struct {
	Instances  []SubmitInstance       `json:"instances"`
	Parameters map[string]interface{} `json:"parameters"`
}

// SubmitInstance - single generation input (prompt + image)
type SubmitInstance struct {
	Prompt string       `json:"prompt"`
	Image  ImagePayload `json:"image"`
}

// ImagePayload - inline image for the generation request
type ImagePayload struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

// Operation - long-running operation state from submit/poll responses
type Operation struct {
	Name     string             `json:"name"`
	Done     bool               `json:"done"`
	Error    *OperationError    `json:"error,omitempty"`
	Response *OperationResponse `json:"response,omitempty"`
}

// OperationError - terminal error payload from the remote job
type OperationError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

// OperationResponse - terminal success payload
type OperationResponse struct {
	Videos []GeneratedVideo `json:"videos"`
}

// GeneratedVideo - single output location in GCS
type GeneratedVideo struct {
	GcsURI   string `json:"gcsUri"`
	MimeType string `json:"mimeType,omitempty"`
}

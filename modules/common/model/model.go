package model

import "time"

// VideoJob - motionframe_jobs 테이블 구조
type VideoJob struct {
	JobID            string     `json:"job_id"`
	JobType          string     `json:"job_type"`
	JobStatus        string     `json:"job_status"`
	ModelID          string     `json:"model_id"`
	OriginalFilename string     `json:"original_filename"`
	Prompt           string     `json:"prompt"`
	TargetRatio      string     `json:"target_ratio"`
	OperationName    *string    `json:"operation_name"`
	VideoURL         *string    `json:"video_url"`
	ErrorMessage     *string    `json:"error_message"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

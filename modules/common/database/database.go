package database

import (
	"context"
	"fmt"
	"log"

	"github.com/supabase-community/supabase-go"
	"motionframe-server/modules/common/config"
	"motionframe-server/modules/common/model"
)

// Client - 작업 이력 레저 (write-only). 상태 조회는 인메모리 스토어가
// 담당하고, 여기는 운영 감사용 기록만 남긴다.
type Client struct {
	supabase *supabase.Client
}

// NewClient - Database 클라이언트 생성
func NewClient() *Client {
	cfg := config.GetConfig()
	if !cfg.HasSupabase() {
		log.Println("⚠️  Supabase not configured, job ledger disabled")
		return nil
	}

	supabaseClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		log.Printf("❌ Failed to create Supabase client: %v", err)
		return nil
	}

	return &Client{
		supabase: supabaseClient,
	}
}

// InsertJob - 새 Job 레코드 생성
func (c *Client) InsertJob(ctx context.Context, job *model.VideoJob) error {
	log.Printf("💾 Recording job in ledger: %s", job.JobID)

	insertData := map[string]interface{}{
		"job_id":            job.JobID,
		"job_type":          job.JobType,
		"job_status":        job.JobStatus,
		"model_id":          job.ModelID,
		"original_filename": job.OriginalFilename,
		"prompt":            job.Prompt,
		"target_ratio":      job.TargetRatio,
	}

	_, _, err := c.supabase.From("motionframe_jobs").
		Insert(insertData, false, "", "", "").
		Execute()

	if err != nil {
		return fmt.Errorf("failed to insert job record: %w", err)
	}

	log.Printf("✅ Job %s recorded in ledger", job.JobID)
	return nil
}

// UpdateJobStatus - Job 상태 업데이트
func (c *Client) UpdateJobStatus(ctx context.Context, jobID string, status string) error {
	log.Printf("📝 Updating job %s status to: %s", jobID, status)

	updateData := map[string]interface{}{
		"job_status": status,
		"updated_at": "now()",
	}

	if status == model.StatusProcessing {
		updateData["started_at"] = "now()"
	} else if status == model.StatusCompleted || status == model.StatusFailed {
		updateData["completed_at"] = "now()"
	}

	_, _, err := c.supabase.From("motionframe_jobs").
		Update(updateData, "", "").
		Eq("job_id", jobID).
		Execute()

	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	log.Printf("✅ Job %s status updated to: %s", jobID, status)
	return nil
}

// UpdateJobOperation - 제출된 operation 이름 기록
func (c *Client) UpdateJobOperation(ctx context.Context, jobID, operationName string) error {
	updateData := map[string]interface{}{
		"operation_name": operationName,
		"updated_at":     "now()",
	}

	_, _, err := c.supabase.From("motionframe_jobs").
		Update(updateData, "", "").
		Eq("job_id", jobID).
		Execute()

	if err != nil {
		return fmt.Errorf("failed to update job operation: %w", err)
	}

	return nil
}

// UpdateJobFailed - Job 실패 처리
func (c *Client) UpdateJobFailed(ctx context.Context, jobID, errorMessage string) error {
	log.Printf("📝 Marking job %s as failed: %s", jobID, errorMessage)

	updateData := map[string]interface{}{
		"job_status":    model.StatusFailed,
		"error_message": errorMessage,
		"completed_at":  "now()",
		"updated_at":    "now()",
	}

	_, _, err := c.supabase.From("motionframe_jobs").
		Update(updateData, "", "").
		Eq("job_id", jobID).
		Execute()

	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	return nil
}

// UpdateJobCompleted - Job 완료 처리 (결과 비디오 URL 포함)
func (c *Client) UpdateJobCompleted(ctx context.Context, jobID, videoURL string) error {
	log.Printf("📝 Marking job %s as completed", jobID)

	updateData := map[string]interface{}{
		"job_status":   model.StatusCompleted,
		"video_url":    videoURL,
		"completed_at": "now()",
		"updated_at":   "now()",
	}

	_, _, err := c.supabase.From("motionframe_jobs").
		Update(updateData, "", "").
		Eq("job_id", jobID).
		Execute()

	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	log.Printf("✅ Job %s completed in ledger", jobID)
	return nil
}

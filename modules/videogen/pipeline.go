package videogen

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"motionframe-server/modules/common/imageprep"
	"motionframe-server/modules/common/model"
)

// Generator submits jobs and polls them to completion.
type Generator interface {
	SubmitJob(ctx context.Context, creds CredentialProvider, imageBytes []byte, mimeType, prompt, aspectLabel string) (JobHandle, error)
	Poll(ctx context.Context, handle JobHandle, creds CredentialProvider) (*Operation, error)
}

// ObjectStore moves videos between GCS and the local results directory.
type ObjectStore interface {
	DownloadToFile(ctx context.Context, uri, destPath string) error
	UploadPublic(ctx context.Context, localPath, bucket, objectName string) (string, error)
}

// VideoCropper restores the original aspect ratio of a generated video.
type VideoCropper interface {
	CropToAspect(ctx context.Context, inputPath, outputPath string, targetRatio float64) error
}

// Prompter generates a prompt from the prepared image. Optional.
type Prompter interface {
	BuildPrompt(ctx context.Context, imageBytes []byte) string
}

// Ledger records job history durably. Optional, best-effort only: the
// in-memory TaskStore owns user-visible status.
type Ledger interface {
	InsertJob(ctx context.Context, job *model.VideoJob) error
	UpdateJobStatus(ctx context.Context, jobID string, status string) error
	UpdateJobOperation(ctx context.Context, jobID, operationName string) error
	UpdateJobFailed(ctx context.Context, jobID, errorMessage string) error
	UpdateJobCompleted(ctx context.Context, jobID, videoURL string) error
}

// Notifier pushes task snapshots to connected watchers. Optional.
type Notifier interface {
	NotifyTaskUpdate(task Task)
}

// PipelineDeps - Pipeline 의존성 묶음
type PipelineDeps struct {
	Store    *TaskStore
	Service  Generator
	Creds    CredentialProvider
	Storage  ObjectStore
	Cropper  VideoCropper
	Prompter Prompter
	Ledger   Ledger
	Notifier Notifier
}

// Pipeline runs one task end to end: prepare, submit, poll, download,
// crop, upload. Stage transitions are one-directional; any component
// failure moves the task straight to failed with the causing message.
type Pipeline struct {
	deps       PipelineDeps
	bucket     string
	resultsDir string
	now        func() time.Time
}

// NewPipeline - Pipeline 생성
func NewPipeline(deps PipelineDeps, bucket, resultsDir string) *Pipeline {
	return &Pipeline{
		deps:       deps,
		bucket:     bucket,
		resultsDir: resultsDir,
		now:        time.Now,
	}
}

// SavePayload stages the raw upload for a task so the worker can pick
// it up later. The file is consumed (deleted) by Run.
func (p *Pipeline) SavePayload(taskID string, data []byte) error {
	dir := filepath.Join(p.resultsDir, "uploads")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create upload dir: %w", err)
	}
	return os.WriteFile(p.payloadPath(taskID), data, 0644)
}

func (p *Pipeline) payloadPath(taskID string) string {
	return filepath.Join(p.resultsDir, "uploads", taskID+".src")
}

// Run processes the task to a terminal stage. Blocks for the job's full
// duration, so callers run it from a worker goroutine.
func (p *Pipeline) Run(ctx context.Context, taskID string) {
	task, err := p.deps.Store.Get(taskID)
	if err != nil {
		log.Printf("❌ [Pipeline] Unknown task: %s", taskID)
		return
	}

	log.Printf("🚀 [Pipeline] Processing task %s (file: %s)", taskID, task.OriginalFilename)
	p.recordJobStart(ctx, task)

	if err := p.run(ctx, task); err != nil {
		p.fail(ctx, taskID, err)
		return
	}

	log.Printf("✅ [Pipeline] Task %s completed successfully", taskID)
}

func (p *Pipeline) run(ctx context.Context, task Task) error {
	// 1. Staged upload 읽기 (소비 후 삭제)
	payload, err := os.ReadFile(p.payloadPath(task.ID))
	if err != nil {
		return fmt.Errorf("failed to read staged upload: %w", err)
	}
	defer os.Remove(p.payloadPath(task.ID))

	// 2. 이미지 준비 (패딩 + 리샘플)
	prepared, err := imageprep.Prepare(payload)
	if err != nil {
		return err
	}

	// 3. 프롬프트 결정: 사용자 입력 > Gemini 생성 > 기본값
	prompt := task.Prompt
	if prompt == "" {
		if p.deps.Prompter != nil {
			prompt = p.deps.Prompter.BuildPrompt(ctx, prepared.Bytes)
		} else {
			prompt = DefaultPrompt
		}
		p.deps.Store.SetPrompt(task.ID, prompt)
	}

	// 4. 작업 제출
	p.advance(task.ID, StageSubmitted)
	p.recordLedgerStatus(ctx, task.ID, model.StatusProcessing)

	handle, err := p.deps.Service.SubmitJob(ctx, p.deps.Creds, prepared.Bytes, prepared.MimeType, prompt, prepared.TargetLabel)
	if err != nil {
		return err
	}

	// The ratio captured before submission drives the crop; it is never
	// recomputed from the generated video.
	originalRatio := prepared.OriginalRatio
	updated := p.deps.Store.SetJobInfo(task.ID, handle, originalRatio, prepared.TargetLabel)
	p.notify(updated)
	p.recordLedgerOperation(ctx, task.ID, handle.OperationName)

	// 5. 완료까지 폴링
	p.advance(task.ID, StagePolling)
	op, err := p.deps.Service.Poll(ctx, handle, p.deps.Creds)
	if err != nil {
		return err
	}
	if op.Error != nil {
		return fmt.Errorf("%w: %s", ErrRemoteGeneration, op.Error.Message)
	}
	if op.Response == nil || len(op.Response.Videos) == 0 {
		return fmt.Errorf("%w: operation finished with no videos", ErrRemoteGeneration)
	}
	generatedURI := op.Response.Videos[0].GcsURI

	// 6. 생성된 16:9/9:16 영상 다운로드
	p.advance(task.ID, StageDownloading)
	timestamp := p.now().Format("20060102_150405")
	name16x9 := fmt.Sprintf("%s_16x9_%s.mp4", task.OriginalFilename, timestamp)
	path16x9 := filepath.Join(p.resultsDir, name16x9)
	if err := p.deps.Storage.DownloadToFile(ctx, generatedURI, path16x9); err != nil {
		return err
	}
	p.notify(p.deps.Store.SetVideo16x9URL(task.ID, "/videos/"+name16x9))

	// 7. 원본 비율로 crop
	p.advance(task.ID, StageCropping)
	finalName := fmt.Sprintf("%s_cropped_%s.mp4", task.OriginalFilename, timestamp)
	finalPath := filepath.Join(p.resultsDir, finalName)
	if err := p.deps.Cropper.CropToAspect(ctx, path16x9, finalPath, originalRatio); err != nil {
		return err
	}

	// 8. 최종본 GCS 업로드 (로컬 사본은 서빙용으로 유지)
	p.advance(task.ID, StageUploading)
	publicURL, err := p.deps.Storage.UploadPublic(ctx, finalPath, p.bucket, "final_videos/"+finalName)
	if err != nil {
		return err
	}

	done := p.deps.Store.MarkComplete(task.ID, "/videos/"+finalName, publicURL)
	p.notify(done)
	p.recordLedgerCompleted(ctx, task.ID, publicURL)
	return nil
}

func (p *Pipeline) fail(ctx context.Context, taskID string, cause error) {
	log.Printf("❌ [Pipeline] Task %s failed: %v", taskID, cause)
	failed := p.deps.Store.MarkFailed(taskID, cause)
	p.notify(failed)

	if p.deps.Ledger != nil {
		if err := p.deps.Ledger.UpdateJobFailed(ctx, taskID, cause.Error()); err != nil {
			log.Printf("⚠️ [Pipeline] Ledger update failed: %v", err)
		}
	}
}

func (p *Pipeline) advance(taskID string, stage Stage) {
	p.notify(p.deps.Store.SetStage(taskID, stage))
}

func (p *Pipeline) notify(task Task) {
	if p.deps.Notifier != nil && task.ID != "" {
		p.deps.Notifier.NotifyTaskUpdate(task)
	}
}

func (p *Pipeline) recordJobStart(ctx context.Context, task Task) {
	if p.deps.Ledger == nil {
		return
	}
	job := &model.VideoJob{
		JobID:            task.ID,
		JobType:          "image-to-video",
		JobStatus:        model.StatusPending,
		ModelID:          task.ModelID,
		OriginalFilename: task.OriginalFilename,
		Prompt:           task.Prompt,
		CreatedAt:        task.CreatedAt,
	}
	if err := p.deps.Ledger.InsertJob(ctx, job); err != nil {
		log.Printf("⚠️ [Pipeline] Ledger insert failed: %v", err)
	}
}

func (p *Pipeline) recordLedgerStatus(ctx context.Context, taskID, status string) {
	if p.deps.Ledger == nil {
		return
	}
	if err := p.deps.Ledger.UpdateJobStatus(ctx, taskID, status); err != nil {
		log.Printf("⚠️ [Pipeline] Ledger update failed: %v", err)
	}
}

func (p *Pipeline) recordLedgerOperation(ctx context.Context, taskID, operationName string) {
	if p.deps.Ledger == nil {
		return
	}
	if err := p.deps.Ledger.UpdateJobOperation(ctx, taskID, operationName); err != nil {
		log.Printf("⚠️ [Pipeline] Ledger update failed: %v", err)
	}
}

func (p *Pipeline) recordLedgerCompleted(ctx context.Context, taskID, videoURL string) {
	if p.deps.Ledger == nil {
		return
	}
	if err := p.deps.Ledger.UpdateJobCompleted(ctx, taskID, videoURL); err != nil {
		log.Printf("⚠️ [Pipeline] Ledger update failed: %v", err)
	}
}

package videogen

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStore holds the per-request progress records served by /status.
// A record is written only by the pipeline run that created it until it
// reaches a terminal stage; readers always receive copies.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewTaskStore - TaskStore 생성
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[string]*Task),
	}
}

// Create registers a new task in the preparing stage and returns a copy.
func (s *TaskStore) Create(originalFilename, modelID, prompt string) Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	task := &Task{
		ID:               uuid.New().String(),
		Stage:            StagePreparing,
		StatusMessage:    StageMessages[StagePreparing],
		OriginalFilename: originalFilename,
		ModelID:          modelID,
		Prompt:           prompt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.tasks[task.ID] = task

	log.Printf("📋 [VideoGen] Task created: %s (file: %s)", task.ID, originalFilename)
	return *task
}

// Get returns a copy of the task, or ErrTaskNotFound.
func (s *TaskStore) Get(id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return *task, nil
}

// SetStage advances the task and applies the stage's default message.
func (s *TaskStore) SetStage(id string, stage Stage) Task {
	return s.mutate(id, func(t *Task) {
		t.Stage = stage
		t.StatusMessage = StageMessages[stage]
	})
}

// SetJobInfo records the submitted operation and the aspect data the
// crop stage will need later.
func (s *TaskStore) SetJobInfo(id string, handle JobHandle, aspectRatio float64, targetLabel string) Task {
	return s.mutate(id, func(t *Task) {
		t.OperationName = handle.OperationName
		t.ModelID = handle.ModelID
		t.OriginalAspectRatio = aspectRatio
		t.TargetRatio = targetLabel
	})
}

// SetPrompt records the prompt chosen for the task (user-supplied or
// generated).
func (s *TaskStore) SetPrompt(id, prompt string) Task {
	return s.mutate(id, func(t *Task) {
		t.Prompt = prompt
	})
}

// SetVideo16x9URL records the local URL of the uncropped download.
func (s *TaskStore) SetVideo16x9URL(id, url string) Task {
	return s.mutate(id, func(t *Task) {
		t.Video16x9URL = url
	})
}

// MarkComplete finishes the task with its delivery URLs.
func (s *TaskStore) MarkComplete(id, finalURL, publicURL string) Task {
	return s.mutate(id, func(t *Task) {
		t.Stage = StageComplete
		t.StatusMessage = StageMessages[StageComplete]
		t.FinalVideoURL = finalURL
		t.PublicURL = publicURL
	})
}

// MarkFailed finishes the task with the causing error message.
func (s *TaskStore) MarkFailed(id string, cause error) Task {
	return s.mutate(id, func(t *Task) {
		t.Stage = StageFailed
		t.StatusMessage = "Video generation failed"
		t.Error = cause.Error()
	})
}

func (s *TaskStore) mutate(id string, fn func(*Task)) Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		log.Printf("⚠️ [VideoGen] Mutation on unknown task: %s", id)
		return Task{}
	}
	fn(task)
	task.UpdatedAt = time.Now()
	return *task
}

// Counts - 상태별 task 수 (metrics용)
func (s *TaskStore) Counts() map[Stage]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[Stage]int)
	for _, task := range s.tasks {
		counts[task.Stage]++
	}
	return counts
}

// StartCleanup evicts finished tasks older than maxAge on a fixed
// interval so the store does not grow without bound.
func (s *TaskStore) StartCleanup(interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			s.evict(maxAge)
		}
	}()
}

func (s *TaskStore) evict(maxAge time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, task := range s.tasks {
		if task.Terminal() && task.UpdatedAt.Before(cutoff) {
			delete(s.tasks, id)
			removed++
		}
	}

	if removed > 0 {
		log.Printf("🧹 [VideoGen] Evicted %d finished tasks older than %s", removed, maxAge)
	}
}

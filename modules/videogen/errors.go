package videogen

import "errors"

// Stage-specific error categories. The pipeline records which one caused
// a task to fail; handlers map them to user-facing messages.
var (
	// ErrSubmission - transport or remote-validation failure while creating the job
	ErrSubmission = errors.New("job submission")

	// ErrPolling - transport failure (network or non-2xx) during a status check
	ErrPolling = errors.New("operation polling")

	// ErrRemoteGeneration - the remote job itself reached a terminal error state
	ErrRemoteGeneration = errors.New("remote generation")

	// ErrCrop - decode/encode failure while cropping the generated video
	ErrCrop = errors.New("video crop")

	// ErrTaskNotFound - unknown task ID
	ErrTaskNotFound = errors.New("task not found")
)

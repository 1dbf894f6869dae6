package videogen

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"motionframe-server/modules/common/utils"
)

// Handler - 비디오 생성 HTTP 핸들러
type Handler struct {
	store        *TaskStore
	pipeline     *Pipeline
	dispatcher   Dispatcher
	resultsDir   string
	defaultModel string
}

// NewHandler - Handler 생성
func NewHandler(store *TaskStore, pipeline *Pipeline, dispatcher Dispatcher, resultsDir, defaultModel string) *Handler {
	if store == nil || pipeline == nil || dispatcher == nil {
		log.Println("❌ [VideoGen] Handler missing dependencies")
		return nil
	}
	if defaultModel == "" {
		defaultModel = Veo3Fast.ModelID
	}
	return &Handler{
		store:        store,
		pipeline:     pipeline,
		dispatcher:   dispatcher,
		resultsDir:   resultsDir,
		defaultModel: defaultModel,
	}
}

// RegisterRoutes - 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/generate-video", h.HandleGenerateVideo).Methods("POST", "OPTIONS")
	r.HandleFunc("/status/{taskId}", h.HandleStatus).Methods("GET")
	r.HandleFunc("/video-result/{taskId}", h.HandleVideoResult).Methods("GET")
	r.HandleFunc("/videos/{filename}", h.HandleServeVideo).Methods("GET")
	log.Println("✅ [VideoGen] Routes registered: /generate-video, /status, /video-result, /videos")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// HandleGenerateVideo - POST /generate-video
// Accepts a multipart image upload, registers a task and dispatches the
// pipeline. Responds 202 with the task snapshot; callers poll /status.
func (h *Handler) HandleGenerateVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		log.Printf("⚠️ [VideoGen] Upload without file part: %v", err)
		writeError(w, http.StatusBadRequest, "No file part in the request")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "No file selected for uploading")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read upload")
		return
	}

	if _, ok := utils.DetectImageMime(data); !ok {
		writeError(w, http.StatusBadRequest, "Unsupported image format (use PNG, JPEG or WebP)")
		return
	}

	modelID := r.FormValue("model")
	if modelID == "" {
		modelID = h.defaultModel
	}
	if _, ok := VariantFor(modelID); !ok {
		writeError(w, http.StatusBadRequest, "Unsupported model: "+modelID)
		return
	}

	prompt := r.FormValue("prompt")
	baseName := sanitizeBaseName(header.Filename)

	task := h.store.Create(baseName, modelID, prompt)

	if err := h.pipeline.SavePayload(task.ID, data); err != nil {
		log.Printf("❌ [VideoGen] Failed to stage upload for %s: %v", task.ID, err)
		h.store.MarkFailed(task.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to store upload")
		return
	}

	if err := h.dispatcher.Dispatch(r.Context(), task.ID); err != nil {
		log.Printf("❌ [VideoGen] Failed to dispatch task %s: %v", task.ID, err)
		h.store.MarkFailed(task.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to queue task")
		return
	}

	log.Printf("📥 [VideoGen] Task %s accepted (file: %s, model: %s)", task.ID, header.Filename, modelID)
	writeJSON(w, http.StatusAccepted, task)
}

// HandleStatus - GET /status/{taskId}
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskId"]

	task, err := h.store.Get(taskID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"status": "failed",
			"error":  "Task not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// HandleVideoResult - GET /video-result/{taskId}
// Terminal tasks return 200 with their delivery URLs; in-flight tasks
// return 409 so callers keep polling /status.
func (h *Handler) HandleVideoResult(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskId"]

	task, err := h.store.Get(taskID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"status": "failed",
			"error":  "Task not found",
		})
		return
	}

	if !task.Terminal() {
		writeJSON(w, http.StatusConflict, task)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// HandleServeVideo - GET /videos/{filename}
func (h *Handler) HandleServeVideo(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]

	// 경로 탈출 차단
	if filename == "" || filename != filepath.Base(filename) ||
		strings.HasPrefix(filename, ".") || strings.Contains(filename, "..") {
		writeError(w, http.StatusBadRequest, "Invalid filename")
		return
	}

	path := filepath.Join(h.resultsDir, filename)
	if strings.HasSuffix(filename, ".mp4") {
		w.Header().Set("Content-Type", "video/mp4")
	}

	log.Printf("🎬 [VideoGen] Serving video: %s", filename)
	http.ServeFile(w, r, path)
}

// sanitizeBaseName strips the extension and anything unsafe from an
// uploaded filename before it becomes part of result filenames.
func sanitizeBaseName(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	cleaned := strings.Trim(b.String(), "_")
	if cleaned == "" {
		return "upload"
	}
	return cleaned
}

package resize

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"motionframe-server/modules/common/imageprep"
	"motionframe-server/modules/common/utils"
)

// Handler - 동기 이미지 리사이즈 핸들러
// Runs the same preparation the video pipeline uses and returns the
// padded/resampled image directly.
type Handler struct {
	resultsDir string
}

// NewHandler - Handler 생성
func NewHandler(resultsDir string) *Handler {
	return &Handler{resultsDir: resultsDir}
}

// RegisterRoutes - 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/resize", h.HandleResize).Methods("POST", "OPTIONS")
	log.Println("✅ [Resize] Routes registered: /resize")
}

// ResizeResponse - 리사이즈 결과
type ResizeResponse struct {
	ResizedImage        string  `json:"resizedImage"`
	Format              string  `json:"format"`
	Width               int     `json:"width"`
	Height              int     `json:"height"`
	OriginalWidth       int     `json:"originalWidth"`
	OriginalHeight      int     `json:"originalHeight"`
	OriginalAspectRatio float64 `json:"originalAspectRatio"`
	Target              string  `json:"target"`
	Padded              bool    `json:"padded"`
	Resampled           bool    `json:"resampled"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// HandleResize - POST /resize
func (h *Handler) HandleResize(w http.ResponseWriter, r *http.Request) {
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

	log.Printf("📥 [Resize] Received %s (%d bytes)", header.Filename, len(data))

	prepared, err := imageprep.Prepare(data)
	if err != nil {
		if errors.Is(err, imageprep.ErrDecode) {
			writeError(w, http.StatusBadRequest, "Could not decode image")
			return
		}
		log.Printf("❌ [Resize] Preparation failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Image preparation failed")
		return
	}

	outputBytes := prepared.Bytes
	format := "png"

	// ?format=webp 또는 form field로 WebP 변환 요청 가능
	if requestedFormat(r) == "webp" {
		webpBytes, err := utils.ConvertPNGToWebP(outputBytes, 90)
		if err != nil {
			log.Printf("❌ [Resize] WebP conversion failed: %v", err)
			writeError(w, http.StatusInternalServerError, "WebP conversion failed")
			return
		}
		outputBytes = webpBytes
		format = "webp"
	}

	h.saveLocalCopy(header.Filename, format, outputBytes)

	resp := ResizeResponse{
		ResizedImage:        base64.StdEncoding.EncodeToString(outputBytes),
		Format:              format,
		Width:               prepared.Width,
		Height:              prepared.Height,
		OriginalWidth:       prepared.OriginalWidth,
		OriginalHeight:      prepared.OriginalHeight,
		OriginalAspectRatio: prepared.OriginalRatio,
		Target:              prepared.TargetLabel,
		Padded:              prepared.Padded,
		Resampled:           prepared.Resampled,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func requestedFormat(r *http.Request) string {
	if f := r.URL.Query().Get("format"); f != "" {
		return strings.ToLower(f)
	}
	return strings.ToLower(r.FormValue("format"))
}

// saveLocalCopy - 결과 이미지를 results 디렉토리에 보관 (실패해도 응답은 정상)
func (h *Handler) saveLocalCopy(originalName, format string, data []byte) {
	if h.resultsDir == "" {
		return
	}

	base := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	timestamp := time.Now().Format("20060102_150405")
	path := filepath.Join(h.resultsDir, fmt.Sprintf("%s_16x9_%s.%s", base, timestamp, format))

	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Printf("⚠️ [Resize] Failed to save local copy: %v", err)
		return
	}
	log.Printf("💾 [Resize] Saved local copy: %s", path)
}

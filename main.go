package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"motionframe-server/modules/common/config"
	"motionframe-server/modules/common/database"
	"motionframe-server/modules/common/gcpauth"
	"motionframe-server/modules/common/gcs"
	"motionframe-server/modules/common/redis"
	"motionframe-server/modules/resize"
	"motionframe-server/modules/videogen"
)

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 개발용 - 모든 origin 허용
		// 프로덕션에서는 특정 도메인만 허용하도록 수정
		return true
	},
}

// 연결된 클라이언트 정보
type Client struct {
	conn   *websocket.Conn
	taskID string
	send   chan []byte
}

// 서버 메트릭
type ServerMetrics struct {
	totalConnections  int
	activeConnections int
	startTime         time.Time
	mutex             sync.RWMutex
}

// TaskHub pushes task status updates to the browsers watching each task.
// Updates flow one way: the pipeline reports a stage change, the hub fans
// it out to every watcher of that task ID.
type TaskHub struct {
	store    *videogen.TaskStore
	watchers map[string]map[*Client]bool
	mutex    sync.RWMutex
	metrics  *ServerMetrics
}

// 태스크 업데이트 메시지
type TaskUpdateMessage struct {
	Type string        `json:"type"`
	Task videogen.Task `json:"task"`
}

func newTaskHub(store *videogen.TaskStore) *TaskHub {
	return &TaskHub{
		store:    store,
		watchers: make(map[string]map[*Client]bool),
		metrics: &ServerMetrics{
			startTime: time.Now(),
		},
	}
}

// 클라이언트를 태스크 watcher로 등록
func (h *TaskHub) addWatcher(client *Client) {
	h.mutex.Lock()
	set, exists := h.watchers[client.taskID]
	if !exists {
		set = make(map[*Client]bool)
		h.watchers[client.taskID] = set
	}
	set[client] = true
	watcherCount := len(set)
	h.mutex.Unlock()

	h.metrics.mutex.Lock()
	h.metrics.totalConnections++
	h.metrics.activeConnections++
	total := h.metrics.totalConnections
	h.metrics.mutex.Unlock()

	log.Printf("👤 Watcher joined task %s (Watchers: %d, Total Connections: %d)",
		client.taskID, watcherCount, total)
}

// 클라이언트 제거 - 중복 호출에도 안전해야 함 (slow-drop과 readPump 종료가 경합)
func (h *TaskHub) removeWatcher(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	set, exists := h.watchers[client.taskID]
	if !exists {
		return
	}
	if _, watching := set[client]; !watching {
		return
	}

	delete(set, client)
	close(client.send)
	if len(set) == 0 {
		delete(h.watchers, client.taskID)
		log.Printf("🗑️  Task %s has no more watchers", client.taskID)
	}

	h.metrics.mutex.Lock()
	h.metrics.activeConnections--
	h.metrics.mutex.Unlock()

	log.Printf("👋 Watcher left task %s (Remaining: %d)", client.taskID, len(set))
}

// NotifyTaskUpdate - 파이프라인 단계 전환을 watcher들에게 푸시
func (h *TaskHub) NotifyTaskUpdate(task videogen.Task) {
	messageBytes, err := json.Marshal(TaskUpdateMessage{
		Type: "task_update",
		Task: task,
	})
	if err != nil {
		log.Printf("Error marshaling task update: %v", err)
		return
	}

	h.mutex.RLock()
	targets := make([]*Client, 0, len(h.watchers[task.ID]))
	for client := range h.watchers[task.ID] {
		targets = append(targets, client)
	}
	h.mutex.RUnlock()

	for _, client := range targets {
		select {
		case client.send <- messageBytes:
		default:
			// 버퍼가 가득 찬 watcher는 끊는다
			log.Printf("⚠️  Dropping slow watcher for task %s", task.ID)
			h.removeWatcher(client)
		}
	}

	if len(targets) > 0 {
		log.Printf("📢 Pushed %s update to %d watcher(s) of task %s", task.Status, len(targets), task.ID)
	}
}

// WebSocket 핸들러 - GET /ws?task=<taskId>
func (h *TaskHub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	taskID := r.URL.Query().Get("task")
	if taskID == "" {
		log.Printf("Missing task parameter")
		conn.Close()
		return
	}

	if _, err := h.store.Get(taskID); err != nil {
		log.Printf("⚠️  WebSocket request for unknown task: %s", taskID)
		conn.Close()
		return
	}

	client := &Client{
		conn:   conn,
		taskID: taskID,
		send:   make(chan []byte, 16),
	}

	log.Printf("🔍 New WebSocket connection - Task: %s", taskID)

	h.addWatcher(client)

	// 고루틴으로 읽기/쓰기 처리
	go client.writePump()
	go client.readPump(h)

	// 접속 직후 현재 상태 스냅샷 전송 - 늦게 붙은 watcher도 진행 상황을 본다
	if task, err := h.store.Get(taskID); err == nil {
		if snapshot, err := json.Marshal(TaskUpdateMessage{Type: "task_update", Task: task}); err == nil {
			select {
			case client.send <- snapshot:
			default:
			}
		}
	}
}

// 클라이언트로부터 메시지 읽기 - 수신 내용은 버리고 연결 종료만 감지
func (c *Client) readPump(h *TaskHub) {
	defer func() {
		h.removeWatcher(c)
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

// 클라이언트로 메시지 쓰기
func (c *Client) writePump() {
	defer c.conn.Close()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket write error: %v", err)
				return
			}
		}
	}
}

// CORS 헤더 추가
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// 헬스 체크 엔드포인트
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "motionframe-server",
	})
}

// 서버 메트릭 조회 엔드포인트
func (h *TaskHub) handleMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.mutex.RLock()
	totalConnections := h.metrics.totalConnections
	activeConnections := h.metrics.activeConnections
	startTime := h.metrics.startTime
	h.metrics.mutex.RUnlock()

	h.mutex.RLock()
	watchedTasks := len(h.watchers)
	h.mutex.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"server": map[string]interface{}{
			"uptime":            time.Since(startTime).String(),
			"startTime":         startTime,
			"totalConnections":  totalConnections,
			"activeConnections": activeConnections,
			"watchedTasks":      watchedTasks,
		},
		"tasks": h.store.Counts(),
	})
}

func main() {
	// 환경변수 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// 결과 디렉토리 준비 (업로드 스테이징 + 완성 비디오 서빙)
	if err := os.MkdirAll(cfg.ResultsDir, 0o755); err != nil {
		log.Fatalf("❌ Failed to create results dir %s: %v", cfg.ResultsDir, err)
	}

	ctx := context.Background()

	// 태스크 스토어 + 주기적 정리 (완료 후 24시간 보관)
	store := videogen.NewTaskStore()
	store.StartCleanup(30*time.Minute, 24*time.Hour)

	// 태스크 업데이트 허브
	hub := newTaskHub(store)

	// GCP 인증 + 스토리지
	tokenProvider, err := gcpauth.NewTokenProvider(ctx)
	if err != nil {
		log.Fatalf("❌ Failed to initialize GCP credentials: %v", err)
	}
	gcsClient, err := gcs.NewClient(ctx)
	if err != nil {
		log.Fatalf("❌ Failed to initialize GCS client: %v", err)
	}

	// Veo 비디오 생성 서비스
	videoConfig := videogen.LoadConfig()
	if videoConfig == nil {
		log.Fatal("❌ Failed to load video generation config")
	}
	service := videogen.NewService()
	if service == nil {
		log.Fatal("❌ Failed to create video generation service")
	}

	deps := videogen.PipelineDeps{
		Store:    store,
		Service:  service,
		Creds:    tokenProvider,
		Storage:  gcsClient,
		Cropper:  videogen.NewCropper(),
		Notifier: hub,
	}

	// Gemini 프롬프트 빌더 (실패해도 서버는 뜬다 - 기본 프롬프트로 동작)
	if prompter := videogen.NewPromptBuilder(ctx); prompter != nil {
		deps.Prompter = prompter
	}

	// Supabase 작업 레저 (선택)
	if dbClient := database.NewClient(); dbClient != nil {
		deps.Ledger = dbClient
	}

	pipeline := videogen.NewPipeline(deps, cfg.GCSBucket, cfg.ResultsDir)

	// Redis 큐 연결 - 실패 시 in-process 실행으로 폴백
	var dispatcher videogen.Dispatcher
	if rdb := redis.Connect(cfg); rdb != nil {
		dispatcher = videogen.NewRedisDispatcher(rdb)
		if worker := videogen.NewWorker(rdb, pipeline); worker != nil {
			go worker.StartWorker()
		}
		log.Println("✅ Redis queue enabled")
	} else {
		dispatcher = videogen.NewDirectDispatcher(pipeline)
		log.Println("⚠️  Redis unavailable, running tasks in-process")
	}

	// 라우터 설정
	r := mux.NewRouter()

	// CORS 미들웨어 적용
	r.Use(enableCORS)

	// 라우트 설정
	r.HandleFunc("/", healthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/ws", hub.handleWebSocket)
	r.HandleFunc("/metrics", hub.handleMetrics).Methods("GET")

	resize.NewHandler(cfg.ResultsDir).RegisterRoutes(r)
	videogen.NewHandler(store, pipeline, dispatcher, cfg.ResultsDir, videoConfig.Variant.ModelID).RegisterRoutes(r)

	// 포트 설정 (Render.com은 PORT 환경변수 사용)
	port := cfg.Port

	log.Printf("🚀 MotionFrame Server starting on port %s", port)
	log.Printf("📡 Task updates: ws://localhost:%s/ws?task=<taskId>", port)
	log.Printf("❤️  Health check: http://localhost:%s/health", port)
	log.Printf("📊 Metrics: http://localhost:%s/metrics", port)

	// 서버 시작
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

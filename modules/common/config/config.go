package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// GCP / Veo
	GCPProjectID      string
	GCPRegion         string
	GCSBucket         string
	VeoModel          string
	PollSeconds       int
	MaxPollIterations int

	// Redis
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Supabase (optional job ledger)
	SupabaseURL        string
	SupabaseServiceKey string

	// Gemini prompt model
	GeminiModel string

	// Server
	Port       string
	ResultsDir string
}

var globalConfig *Config

// LoadConfig - 환경변수 로드
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (있으면)
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env file not found, using environment variables")
	}

	// Redis UseTLS 파싱
	useTLS := true // 기본값
	if tlsStr := os.Getenv("REDIS_USE_TLS"); tlsStr != "" {
		if parsed, err := strconv.ParseBool(tlsStr); err == nil {
			useTLS = parsed
		}
	}

	// Veo 폴링 주기 파싱 (초)
	pollSeconds := 20 // 기본값
	if pollStr := os.Getenv("VEO_POLL_SECONDS"); pollStr != "" {
		if parsed, err := strconv.Atoi(pollStr); err == nil && parsed > 0 {
			pollSeconds = parsed
		}
	}

	// 폴링 안전 한도 (0 = 무제한)
	maxPollIterations := 0
	if maxStr := os.Getenv("VEO_MAX_POLL_ITERATIONS"); maxStr != "" {
		if parsed, err := strconv.Atoi(maxStr); err == nil && parsed >= 0 {
			maxPollIterations = parsed
		}
	}

	globalConfig = &Config{
		// GCP / Veo
		GCPProjectID:      getEnv("GCP_PROJECT_ID", ""),
		GCPRegion:         getEnv("GCP_REGION", "us-central1"),
		GCSBucket:         getEnv("GCS_BUCKET", ""),
		VeoModel:          getEnv("VEO_MODEL", "veo-3.0-fast-generate-001"),
		PollSeconds:       pollSeconds,
		MaxPollIterations: maxPollIterations,

		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   useTLS,

		// Supabase
		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),

		// Gemini
		GeminiModel: getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		// Server
		Port:       getEnv("PORT", "8080"),
		ResultsDir: getEnv("RESULTS_DIR", "results"),
	}

	// 필수 환경변수 검증
	if err := globalConfig.validate(); err != nil {
		return nil, err
	}

	log.Println("✅ Configuration loaded successfully")
	log.Printf("   GCP: project=%s region=%s bucket=%s", globalConfig.GCPProjectID, globalConfig.GCPRegion, globalConfig.GCSBucket)
	log.Printf("   Veo: %s (poll every %ds)", globalConfig.VeoModel, globalConfig.PollSeconds)
	log.Printf("   Redis: %s:%s (TLS: %v)", globalConfig.RedisHost, globalConfig.RedisPort, globalConfig.RedisUseTLS)
	log.Printf("   Results dir: %s", globalConfig.ResultsDir)

	return globalConfig, nil
}

// GetConfig - 로드된 설정 가져오기
func GetConfig() *Config {
	if globalConfig == nil {
		log.Fatal("❌ Config not loaded. Call LoadConfig() first.")
	}
	return globalConfig
}

// validate - 필수 환경변수 검증
func (c *Config) validate() error {
	if c.GCPProjectID == "" {
		return fmt.Errorf("GCP_PROJECT_ID is required")
	}
	if c.GCPRegion == "" {
		return fmt.Errorf("GCP_REGION is required")
	}
	if c.GCSBucket == "" {
		return fmt.Errorf("GCS_BUCKET is required")
	}
	return nil
}

// getEnv - 환경변수 가져오기 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetRedisAddr - Redis 연결 문자열 생성
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// GetOutputStoragePrefix - Veo 출력 버킷 URI prefix
func (c *Config) GetOutputStoragePrefix() string {
	return "gs://" + c.GCSBucket
}

// HasSupabase - Supabase 레저 사용 여부
func (c *Config) HasSupabase() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

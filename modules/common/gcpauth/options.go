// Package gcpauth resolves Google Cloud credentials for every client in
// the server. Resolution order: GCP_CREDENTIALS_JSON env (deploy),
// GCP_CREDENTIALS_PATH file (local), then Application Default Credentials.
package gcpauth

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"google.golang.org/api/option"
)

// CloudPlatformScope - Vertex AI와 GCS 모두 이 scope 사용
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// credentialsJSON - 명시적 credential JSON 로드 (없으면 nil, ADC 사용)
func credentialsJSON() ([]byte, error) {
	if credsJSON := os.Getenv("GCP_CREDENTIALS_JSON"); credsJSON != "" {
		log.Println("✅ [GCPAuth] Using GCP_CREDENTIALS_JSON from environment")
		return []byte(credsJSON), nil
	}

	if credsPath := os.Getenv("GCP_CREDENTIALS_PATH"); credsPath != "" {
		log.Printf("✅ [GCPAuth] Using credentials from file: %s", credsPath)
		credsData, err := os.ReadFile(credsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		// JSON 유효성 검사
		var creds map[string]interface{}
		if err := json.Unmarshal(credsData, &creds); err != nil {
			return nil, fmt.Errorf("invalid JSON credentials: %w", err)
		}
		return credsData, nil
	}

	log.Println("⚠️  [GCPAuth] No explicit credentials found, using Application Default Credentials")
	return nil, nil
}

// CredentialOptions - API 클라이언트용 credential 옵션 생성
func CredentialOptions() ([]option.ClientOption, error) {
	credsData, err := credentialsJSON()
	if err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if credsData != nil {
		opts = append(opts, option.WithCredentialsJSON(credsData))
	}
	return opts, nil
}

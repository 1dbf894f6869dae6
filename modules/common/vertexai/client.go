package vertexai

import (
	"context"
	"fmt"
	"log"

	"cloud.google.com/go/vertexai/genai"

	"motionframe-server/modules/common/gcpauth"
)

// NewVertexAIClient - Vertex AI 클라이언트 생성 (credential은 gcpauth에서 해석)
func NewVertexAIClient(ctx context.Context, project, location string) (*genai.Client, error) {
	opts, err := gcpauth.CredentialOptions()
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, project, location, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	log.Printf("✅ [VertexAI] Client initialized for project=%s, location=%s\n", project, location)
	return client, nil
}

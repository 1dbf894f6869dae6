package videogen

import (
	"context"
	"fmt"
	"log"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	appconfig "motionframe-server/modules/common/config"
	"motionframe-server/modules/common/vertexai"
)

// DefaultPrompt is used when the caller supplies no prompt and no
// prompt builder is available.
const DefaultPrompt = "A high-quality, cinematic rotation around the subject. The video format must be kept the same."

// FallbackPrompt is used when the Gemini call itself fails. Prompt
// generation is an enrichment, never a reason to fail the task.
const FallbackPrompt = "A beautiful cinematic shot, camera is slowly rotating around the subject."

// promptInstruction asks Gemini to describe the prepared image as a
// video prompt. The fuchsia bands are the aspect sentinel; the
// instruction makes the video model keep them intact so the crop stage
// can remove them cleanly.
const promptInstruction = "Analyze this image and generate a creative, cinematic prompt for an AI video generation model " +
	"that will use this image as the starting point. " +
	"Focus on the animation you expect from the video, as well as the camera movement it should have. " +
	"Be creative and imaginative. " +
	"The format of the image must be respected, make that clear in the prompt. " +
	"If there are fuchsia bars on the image they must be kept in the video all along and not altered. " +
	"The prompt must contain these sentences at the beginning -> " +
	"Format of the video must be the same as the image. " +
	"Fuchsia bands must stay in the video all along the animation. <- " +
	"Only output the prompt for the generator and nothing else."

// PromptBuilder - Gemini로 이미지 설명 프롬프트 생성
type PromptBuilder struct {
	client *genai.Client
	model  string
}

// NewPromptBuilder - PromptBuilder 생성 (Vertex AI 미설정 시 nil)
func NewPromptBuilder(ctx context.Context) *PromptBuilder {
	cfg := appconfig.GetConfig()

	client, err := vertexai.NewVertexAIClient(ctx, cfg.GCPProjectID, cfg.GCPRegion)
	if err != nil {
		log.Printf("⚠️ [VideoGen] Prompt builder unavailable: %v", err)
		return nil
	}

	log.Printf("✅ [VideoGen] Prompt builder initialized (model: %s)", cfg.GeminiModel)
	return &PromptBuilder{
		client: client,
		model:  cfg.GeminiModel,
	}
}

// BuildPrompt generates a cinematic prompt describing the prepared
// image. Errors degrade to FallbackPrompt.
func (b *PromptBuilder) BuildPrompt(ctx context.Context, imageBytes []byte) string {
	log.Printf("🤖 [VideoGen] Generating prompt with %s...", b.model)

	model := b.client.GenerativeModel(b.model)
	result, err := model.GenerateContent(ctx,
		genai.ImageData("png", imageBytes),
		genai.Text(promptInstruction),
	)
	if err != nil {
		log.Printf("⚠️ [VideoGen] Gemini prompt generation failed, using fallback: %v", err)
		return FallbackPrompt
	}

	text, err := extractText(result)
	if err != nil {
		log.Printf("⚠️ [VideoGen] %v, using fallback", err)
		return FallbackPrompt
	}

	log.Printf("✅ [VideoGen] Generated prompt: %s", truncateForLog(text, 80))
	return text
}

func extractText(result *genai.GenerateContentResponse) (string, error) {
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok && strings.TrimSpace(string(text)) != "" {
				return strings.TrimSpace(string(text)), nil
			}
		}
	}
	return "", fmt.Errorf("no text in Gemini response")
}

func truncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atheastudio/creative-director/config"
	"github.com/atheastudio/creative-director/models"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ReferenceImage is one decoded input image handed to Gemini.
type ReferenceImage struct {
	Format string // mime subtype, e.g. "png"
	Data   []byte
}

// GeneratePhotoshootPlan asks Gemini for a five-pose shoot concept built
// around the uploaded product/face/fabric references.
func GeneratePhotoshootPlan(ctx context.Context, productImages []ReferenceImage, faceRef, fabricRef *ReferenceImage, salesTarget, shootLocation, notes string) (*models.ConceptDocument, error) {
	if config.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %v", err)
	}
	defer client.Close()

	model := client.GenerativeModel("gemini-1.5-pro")

	prompt := fmt.Sprintf(`
You are a creative director planning a fashion product photoshoot.
Using the attached product images (and face/fabric references when present),
propose one shoot concept with exactly 5 poses.

Sales target: %s
Shoot location: %s
Notes: %s

Respond with JSON only, no prose, in this shape:
{
  "conceptNameVn": "...",
  "conceptNameEn": "...",
  "salesTarget": "...",
  "shootLocation": "...",
  "poses": [
    {"poseTitle": "...", "poseDescription": "...", "posePrompt": "..."}
  ]
}
`, salesTarget, shootLocation, notes)

	parts := []genai.Part{genai.Text(prompt)}
	for _, img := range productImages {
		parts = append(parts, genai.ImageData(img.Format, img.Data))
	}
	if faceRef != nil {
		parts = append(parts, genai.ImageData(faceRef.Format, faceRef.Data))
	}
	if fabricRef != nil {
		parts = append(parts, genai.ImageData(fabricRef.Format, fabricRef.Data))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %v", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no content generated")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	raw := stripCodeFence(text.String())
	var plan models.ConceptDocument
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("failed to parse generated plan: %v", err)
	}
	return &plan, nil
}

// stripCodeFence unwraps ```json ... ``` blocks Gemini tends to emit even
// when asked for bare JSON.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atheastudio/creative-director/models"
	"github.com/atheastudio/creative-director/utils"
	"github.com/google/uuid"
)

// PlanRequest carries the reference material a photoshoot plan is generated
// from. Images arrive as inline data URIs, same as the concept save payload.
type PlanRequest struct {
	UserID          string   `json:"userId"`
	ProductImages   []string `json:"productImages"`
	FaceReference   string   `json:"faceReference,omitempty"`
	FabricReference string   `json:"fabricReference,omitempty"`
	SalesTarget     string   `json:"salesTarget,omitempty"`
	ShootLocation   string   `json:"shootLocation,omitempty"`
	Notes           string   `json:"notes,omitempty"`
}

// GeneratePlanHandler proxies plan generation to Gemini and returns a fresh
// concept document the client can edit and later save.
func GeneratePlanHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer func() {
		fmt.Println(logMessageBuilder.String())
	}()
	utils.AddToLogMessage(&logMessageBuilder, "[Generate Plan API]")

	if r.Method != http.MethodPost {
		utils.RespondError(w, &logMessageBuilder, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, &logMessageBuilder, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if req.UserID == "" {
		utils.RespondError(w, &logMessageBuilder, "userId is required", http.StatusBadRequest)
		return
	}
	if authedID, err := GetUserIDFromContext(r.Context()); err != nil {
		utils.AddToLogMessage(&logMessageBuilder, "Warning: UserID not found in context")
	} else {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Authenticated user: %s", authedID))
	}
	if len(req.ProductImages) == 0 {
		utils.RespondError(w, &logMessageBuilder, "at least one product image is required", http.StatusBadRequest)
		return
	}

	var productRefs []utils.ReferenceImage
	for i, uri := range req.ProductImages {
		ref, err := decodeReference(uri)
		if err != nil {
			utils.RespondError(w, &logMessageBuilder, fmt.Sprintf("productImages[%d]: %v", i, err), http.StatusBadRequest)
			return
		}
		productRefs = append(productRefs, *ref)
	}
	faceRef, _ := decodeReference(req.FaceReference)
	fabricRef, _ := decodeReference(req.FabricReference)

	// Plan generation is the slow call; give it its own generous timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	plan, err := utils.GeneratePhotoshootPlan(ctx, productRefs, faceRef, fabricRef, req.SalesTarget, req.ShootLocation, req.Notes)
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Plan generation failed: %v", err))
		respondGenerationError(w, err)
		return
	}

	plan.ID = uuid.NewString()
	input := &models.InputBundle{ProductImages: []models.ImageSlot{}}
	for _, uri := range req.ProductImages {
		input.ProductImages = append(input.ProductImages, models.ImageSlot{Data: models.ImageField(uri)})
	}
	if req.FaceReference != "" {
		input.FaceReference = &models.ImageSlot{Data: models.ImageField(req.FaceReference)}
	}
	if req.FabricReference != "" {
		input.FabricReference = &models.ImageSlot{Data: models.ImageField(req.FabricReference)}
	}
	plan.Input = input

	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Plan generated: %s", plan.ConceptNameEn))
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"concept": plan,
	})
}

// decodeReference turns a data URI into raw bytes for the Gemini call.
func decodeReference(uri string) (*utils.ReferenceImage, error) {
	if uri == "" {
		return nil, fmt.Errorf("empty image")
	}
	mime, payload, ok := models.ImageField(uri).ParseDataURI()
	if !ok {
		return nil, fmt.Errorf("not a data URI")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %v", err)
	}
	format := mime
	if i := strings.LastIndex(mime, "/"); i >= 0 {
		format = mime[i+1:]
	}
	return &utils.ReferenceImage{Format: format, Data: raw}, nil
}

// respondGenerationError maps Gemini failure modes to user-facing statuses.
func respondGenerationError(w http.ResponseWriter, err error) {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "quota"):
		utils.RespondError(w, nil, "Quota exceeded. Please try again later.", http.StatusTooManyRequests)
	case strings.Contains(msg, "safety"):
		utils.RespondError(w, nil, "The request was blocked by content safety filters.", http.StatusBadRequest)
	case strings.Contains(msg, "permission") || strings.Contains(msg, "403"):
		utils.RespondError(w, nil, "The AI service rejected the request. Check the API key.", http.StatusForbidden)
	default:
		utils.RespondError(w, nil, "Failed to generate plan: "+err.Error(), http.StatusInternalServerError)
	}
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/atheastudio/creative-director/concepts"
	"github.com/atheastudio/creative-director/models"
	"github.com/atheastudio/creative-director/utils"
)

// ConceptRequest is the wire format shared by the save/load/delete actions.
type ConceptRequest struct {
	Action      string                  `json:"action,omitempty"`
	UserID      string                  `json:"userId"`
	ConceptID   string                  `json:"conceptId,omitempty"`
	ConceptData *models.ConceptDocument `json:"conceptData,omitempty"`
}

// ConceptHandler adapts the HTTP surface to the collection service. It holds
// no state of its own; both serverless-era entry points collapsed into this
// one adapter.
type ConceptHandler struct {
	Service *concepts.Service
}

func NewConceptHandler(service *concepts.Service) *ConceptHandler {
	return &ConceptHandler{Service: service}
}

// Handle serves POST {action:save|load} and DELETE on /api/concepts.
func (h *ConceptHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer func() {
		fmt.Println(logMessageBuilder.String())
	}()
	utils.AddToLogMessage(&logMessageBuilder, "[Concepts API]")

	var req ConceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, &logMessageBuilder, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if req.UserID == "" {
		utils.RespondError(w, &logMessageBuilder, "userId is required", http.StatusBadRequest)
		return
	}

	// The body carries userId for the wire contract, but the token decides
	// whose folder we touch.
	if authedID, err := GetUserIDFromContext(r.Context()); err == nil && authedID != req.UserID {
		utils.RespondError(w, &logMessageBuilder, "userId does not match the authenticated user", http.StatusForbidden)
		return
	}

	switch {
	case r.Method == http.MethodDelete:
		h.handleDelete(w, &logMessageBuilder, r, req)
	case r.Method == http.MethodPost && req.Action == "save":
		h.handleSave(w, &logMessageBuilder, r, req)
	case r.Method == http.MethodPost && req.Action == "load":
		h.handleLoad(w, &logMessageBuilder, r, req)
	case r.Method == http.MethodPost:
		utils.RespondError(w, &logMessageBuilder, fmt.Sprintf("Unknown action: %q", req.Action), http.StatusBadRequest)
	default:
		utils.RespondError(w, &logMessageBuilder, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ConceptHandler) handleSave(w http.ResponseWriter, logger *strings.Builder, r *http.Request, req ConceptRequest) {
	utils.AddToLogMessage(logger, fmt.Sprintf("Save: user=%s concept=%s", req.UserID, req.ConceptID))

	if req.ConceptID == "" {
		utils.RespondError(w, logger, "conceptId is required", http.StatusBadRequest)
		return
	}
	if req.ConceptData == nil {
		utils.RespondError(w, logger, "conceptData is required", http.StatusBadRequest)
		return
	}

	isUpdate, err := h.Service.Save(r.Context(), req.UserID, req.ConceptID, req.ConceptData)
	if err != nil {
		respondServiceError(w, logger, err)
		return
	}

	message := "Concept created"
	if isUpdate {
		message = "Concept updated"
	}
	utils.AddToLogMessage(logger, message)
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"message":  message,
		"isUpdate": isUpdate,
	})
}

func (h *ConceptHandler) handleLoad(w http.ResponseWriter, logger *strings.Builder, r *http.Request, req ConceptRequest) {
	utils.AddToLogMessage(logger, fmt.Sprintf("Load: user=%s", req.UserID))

	docs, err := h.Service.Load(r.Context(), req.UserID)
	if err != nil {
		respondServiceError(w, logger, err)
		return
	}

	// Ensure empty slice is returned as [] instead of null
	if docs == nil {
		docs = []*models.ConceptDocument{}
	}
	utils.AddToLogMessage(logger, fmt.Sprintf("Loaded %d concepts", len(docs)))
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"concepts": docs,
	})
}

func (h *ConceptHandler) handleDelete(w http.ResponseWriter, logger *strings.Builder, r *http.Request, req ConceptRequest) {
	utils.AddToLogMessage(logger, fmt.Sprintf("Delete: user=%s concept=%s", req.UserID, req.ConceptID))

	if req.ConceptID == "" {
		utils.RespondError(w, logger, "conceptId is required", http.StatusBadRequest)
		return
	}

	if err := h.Service.Delete(r.Context(), req.UserID, req.ConceptID); err != nil {
		respondServiceError(w, logger, err)
		return
	}

	utils.AddToLogMessage(logger, "Concept deleted")
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Concept deleted",
	})
}

func respondServiceError(w http.ResponseWriter, logger *strings.Builder, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, concepts.ErrMissingUserID) || errors.Is(err, concepts.ErrMissingConceptID) {
		status = http.StatusBadRequest
	}
	utils.RespondError(w, logger, err.Error(), status)
}

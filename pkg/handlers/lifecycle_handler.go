package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mnemo-labs/mnemo-engine/pkg/apperrors"
	"github.com/mnemo-labs/mnemo-engine/pkg/models"
	"github.com/mnemo-labs/mnemo-engine/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// MemoryOpResponse for pin/unpin/delete operations.
type MemoryOpResponse struct {
	EpisodeID uuid.UUID `json:"episode_id"`
	Found     bool      `json:"found"`
}

// ============================================================================
// Handler
// ============================================================================

// LifecycleHandler exposes the lifecycle engine over HTTP. The
// platform's auth/tenancy middleware fronts these routes in deployment;
// the handler itself is framework-free.
type LifecycleHandler struct {
	policies  services.PolicyService
	lifecycle services.LifecycleService
	reports   services.ReportService
	memories  services.MemoryService
	logger    *zap.Logger
}

// NewLifecycleHandler creates a new lifecycle handler.
func NewLifecycleHandler(
	policies services.PolicyService,
	lifecycle services.LifecycleService,
	reports services.ReportService,
	memories services.MemoryService,
	logger *zap.Logger,
) *LifecycleHandler {
	return &LifecycleHandler{
		policies:  policies,
		lifecycle: lifecycle,
		reports:   reports,
		memories:  memories,
		logger:    logger,
	}
}

// RegisterRoutes registers the lifecycle handler's routes on the given mux.
func (h *LifecycleHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/workspaces/{wid}/lifecycle"

	mux.HandleFunc("GET "+base+"/policy", h.GetPolicy)
	mux.HandleFunc("PUT "+base+"/policy", h.UpdatePolicy)
	mux.HandleFunc("POST "+base+"/run", h.Run)
	mux.HandleFunc("GET "+base+"/report", h.Report)

	mux.HandleFunc("GET /api/memories/{id}", h.GetMemory)
	mux.HandleFunc("POST /api/memories/{id}/pin", h.Pin)
	mux.HandleFunc("POST /api/memories/{id}/unpin", h.Unpin)
	mux.HandleFunc("DELETE /api/memories/{id}", h.Delete)
}

func parsePathID(w http.ResponseWriter, r *http.Request, key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(key))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_id", "invalid "+key+" path parameter")
		return uuid.Nil, false
	}
	return id, true
}

// GetPolicy handles GET /api/workspaces/{wid}/lifecycle/policy
func (h *LifecycleHandler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := parsePathID(w, r, "wid")
	if !ok {
		return
	}

	policy := h.policies.GetPolicy(r.Context(), workspaceID)
	if err := WriteJSON(w, http.StatusOK, policy); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// UpdatePolicy handles PUT /api/workspaces/{wid}/lifecycle/policy
func (h *LifecycleHandler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := parsePathID(w, r, "wid")
	if !ok {
		return
	}

	var update models.PolicyUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_body", "invalid policy update payload")
		return
	}

	policy, err := h.policies.UpdatePolicy(r.Context(), workspaceID, update)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidPolicy) {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_policy", err.Error())
			return
		}
		h.logger.Error("Failed to update lifecycle policy",
			zap.String("workspace_id", workspaceID.String()),
			zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "update_policy_failed", err.Error())
		return
	}

	if err := WriteJSON(w, http.StatusOK, policy); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Run handles POST /api/workspaces/{wid}/lifecycle/run
func (h *LifecycleHandler) Run(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := parsePathID(w, r, "wid")
	if !ok {
		return
	}

	result := h.lifecycle.RunLifecycle(r.Context(), workspaceID)
	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Report handles GET /api/workspaces/{wid}/lifecycle/report
func (h *LifecycleHandler) Report(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := parsePathID(w, r, "wid")
	if !ok {
		return
	}

	report, err := h.reports.Report(r.Context(), workspaceID)
	if err != nil {
		h.logger.Error("Failed to build lifecycle report",
			zap.String("workspace_id", workspaceID.String()),
			zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "report_failed", err.Error())
		return
	}

	if err := WriteJSON(w, http.StatusOK, report); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetMemory handles GET /api/memories/{id}
func (h *LifecycleHandler) GetMemory(w http.ResponseWriter, r *http.Request) {
	episodeID, ok := parsePathID(w, r, "id")
	if !ok {
		return
	}

	episode, err := h.memories.Get(r.Context(), episodeID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "episode not found")
			return
		}
		h.logger.Error("Failed to load episode",
			zap.String("episode_id", episodeID.String()),
			zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "get_memory_failed", err.Error())
		return
	}

	if err := WriteJSON(w, http.StatusOK, episode); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Pin handles POST /api/memories/{id}/pin
func (h *LifecycleHandler) Pin(w http.ResponseWriter, r *http.Request) {
	h.memoryOp(w, r, h.memories.Pin, "pin_failed")
}

// Unpin handles POST /api/memories/{id}/unpin
func (h *LifecycleHandler) Unpin(w http.ResponseWriter, r *http.Request) {
	h.memoryOp(w, r, h.memories.Unpin, "unpin_failed")
}

// Delete handles DELETE /api/memories/{id}
func (h *LifecycleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.memoryOp(w, r, h.memories.Delete, "delete_failed")
}

func (h *LifecycleHandler) memoryOp(w http.ResponseWriter, r *http.Request, op func(context.Context, uuid.UUID) (bool, error), errCode string) {
	episodeID, ok := parsePathID(w, r, "id")
	if !ok {
		return
	}

	found, err := op(r.Context(), episodeID)
	if err != nil {
		h.logger.Error("Memory operation failed",
			zap.String("episode_id", episodeID.String()),
			zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, errCode, err.Error())
		return
	}

	status := http.StatusOK
	if !found {
		status = http.StatusNotFound
	}
	if err := WriteJSON(w, status, MemoryOpResponse{EpisodeID: episodeID, Found: found}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

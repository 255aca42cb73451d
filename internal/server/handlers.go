package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/driftscope/driftscope/internal/errors"
	"github.com/driftscope/driftscope/pkg/types"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type initializeRequest struct {
	SubscriptionID string `json:"subscription_id"`
	ResourceGroup  string `json:"resource_group"`
}

type initializeResponse struct {
	Message        string `json:"message"`
	SubscriptionID string `json:"subscription_id"`
	ResourceGroup  string `json:"resource_group"`
}

type collectResponse struct {
	Message    string    `json:"message"`
	SnapshotID string    `json:"snapshot_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type statusResponse struct {
	Scope      types.Scope `json:"scope"`
	State      string      `json:"state"`
	SnapshotID string      `json:"snapshot_id,omitempty"`
	ReportID   string      `json:"report_id,omitempty"`
	HasDrift   bool        `json:"has_drift"`
	Error      string      `json:"error,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Timestamp: time.Now().UTC()})
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body", err)
		return
	}
	scope := types.Scope{SubscriptionID: req.SubscriptionID, ResourceGroup: req.ResourceGroup}
	if err := s.orch.Register(scope); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid scope", err)
		return
	}
	s.setActiveScope(scope)

	writeJSON(w, http.StatusOK, initializeResponse{
		Message:        "drift monitoring initialized",
		SubscriptionID: scope.SubscriptionID,
		ResourceGroup:  scope.ResourceGroup,
	})
}

// handleCollect acknowledges with 202; the cycle runs asynchronously and its
// outcome is visible through /status and /latest-snapshot.
func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid scope", err)
		return
	}
	if _, err := s.orch.Trigger(scope); err != nil {
		s.writeStatusFromError(w, err)
		return
	}

	resp := collectResponse{Message: "collection cycle started", Timestamp: time.Now().UTC()}
	if _, last := s.orch.Status(scope); last != nil {
		resp.SnapshotID = last.SnapshotID
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid scope", err)
		return
	}
	snapshot, err := s.snapshots.Latest(r.Context(), scope)
	if err != nil {
		s.writeStatusFromError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleLatestDrift(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid scope", err)
		return
	}
	report, err := s.reports.Latest(r.Context(), scope)
	if err != nil {
		s.writeStatusFromError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid scope", err)
		return
	}
	infos, err := s.snapshots.List(r.Context(), scope, parseLimit(r, 10), nil)
	if err != nil {
		s.writeStatusFromError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid scope", err)
		return
	}
	infos, err := s.reports.List(r.Context(), scope, parseLimit(r, 10), nil)
	if err != nil {
		s.writeStatusFromError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	scope, err := s.resolveScope(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid scope", err)
		return
	}
	state, last := s.orch.Status(scope)
	resp := statusResponse{Scope: scope, State: string(state)}
	if last != nil {
		resp.SnapshotID = last.SnapshotID
		resp.ReportID = last.ReportID
		resp.HasDrift = last.HasDrift
		finished := last.FinishedAt
		resp.FinishedAt = &finished
		if last.Err != nil {
			resp.Error = last.Err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return def
	}
	return limit
}

// writeStatusFromError maps the error taxonomy onto HTTP status codes.
func (s *Server) writeStatusFromError(w http.ResponseWriter, err error) {
	switch apperrors.KindOf(err) {
	case apperrors.KindNotFound:
		s.writeError(w, http.StatusNotFound, "not found", err)
	case apperrors.KindValidation:
		s.writeError(w, http.StatusBadRequest, "invalid request", err)
	default:
		s.writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

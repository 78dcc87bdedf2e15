package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/parley/api"
	"github.com/BaSui01/parley/session"
	"github.com/BaSui01/parley/types"
)

// EngineDefaults fills the per-request engine knobs a start request leaves
// at zero. Values come from the server config.
type EngineDefaults struct {
	MaxParallel     int
	DispatchTimeout time.Duration
	// EventBuffer sizes each WebSocket subscriber's queue; 0 uses the hub
	// default.
	EventBuffer int
	// WSOrigins are the origin patterns allowed to open event streams.
	// Empty means same-origin only.
	WSOrigins []string
}

// SessionHandler serves the session lifecycle endpoints.
type SessionHandler struct {
	mgr      *session.Manager
	defaults EngineDefaults
	logger   *zap.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(mgr *session.Manager, defaults EngineDefaults, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{
		mgr:      mgr,
		defaults: defaults,
		logger:   logger,
	}
}

// HandleStart launches a session from an inline config or a stored preset.
// @Summary Start session
// @Description Validate a session config and launch it in the background
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body api.StartSessionRequest true "Session config or preset reference"
// @Success 202 {object} Response{data=api.StartSessionResponse} "Session accepted"
// @Failure 400 {object} Response "Config validation failed"
// @Security ApiKeyAuth
// @Router /api/v1/sessions [post]
func (h *SessionHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.StartSessionRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	var rec *types.SessionRecord
	var err error
	if req.Preset != "" {
		rec, err = h.mgr.StartFromPreset(r.Context(), req.Preset)
	} else {
		cfg := req.SessionConfig
		h.applyDefaults(&cfg)
		rec, err = h.mgr.Start(r.Context(), cfg)
	}
	if err != nil {
		WriteServiceError(w, r, err, h.logger)
		return
	}

	h.logger.Info("session accepted",
		zap.String("session_id", rec.SessionID),
		zap.String("topology", string(rec.Config.Topology.Type)),
		zap.String("paradigm", string(rec.Config.Paradigm)))

	WriteData(w, r, http.StatusAccepted, api.StartSessionResponse{
		SessionID: rec.SessionID,
		Status:    rec.Status,
		Config:    rec.Config,
	})
}

// HandleList lists every known session, live ones first by recency.
// @Summary List sessions
// @Description Summaries of all sessions, newest first
// @Tags sessions
// @Produce json
// @Success 200 {object} Response{data=[]types.SessionSummary} "Session summaries"
// @Security ApiKeyAuth
// @Router /api/v1/sessions [get]
func (h *SessionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	sums, err := h.mgr.List(r.Context())
	if err != nil {
		WriteServiceError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, sums)
}

// HandleGet returns the full record of one session: transcript, checkpoints,
// and the vote result when present.
// @Summary Get session
// @Description Full session record including transcript and checkpoints
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} Response{data=types.SessionRecord} "Session record"
// @Failure 404 {object} Response "Unknown session"
// @Security ApiKeyAuth
// @Router /api/v1/sessions/{id} [get]
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "session id is required", h.logger)
		return
	}

	rec, err := h.mgr.Get(r.Context(), id)
	if err != nil {
		WriteServiceError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, rec)
}

// HandleCancel stops a running session. The optional body selects the mode;
// an empty body cancels gracefully.
// @Summary Cancel session
// @Description Stop a running session gracefully or hard
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body api.CancelSessionRequest false "Cancel mode"
// @Success 200 {object} Response{data=api.CancelSessionResponse} "Cancel requested"
// @Failure 404 {object} Response "Unknown session"
// @Failure 409 {object} Response "Session already finished"
// @Security ApiKeyAuth
// @Router /api/v1/sessions/{id}/cancel [post]
func (h *SessionHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "session id is required", h.logger)
		return
	}

	var req api.CancelSessionRequest
	if r.ContentLength != 0 {
		if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
			return
		}
	}
	mode, err := session.ParseCancelMode(req.Mode)
	if err != nil {
		WriteServiceError(w, r, err, h.logger)
		return
	}

	if err := h.mgr.Cancel(r.Context(), id, mode); err != nil {
		WriteServiceError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, api.CancelSessionResponse{SessionID: id, Mode: string(mode)})
}

// HandleResume relaunches a cancelled or errored session after its last
// fully recorded round.
// @Summary Resume session
// @Description Rebuild a stored session and continue it in the background
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 202 {object} Response{data=api.StartSessionResponse} "Session resumed"
// @Failure 404 {object} Response "Unknown session"
// @Failure 409 {object} Response "Session finished or still running"
// @Security ApiKeyAuth
// @Router /api/v1/sessions/{id}/resume [post]
func (h *SessionHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "session id is required", h.logger)
		return
	}

	rec, err := h.mgr.Resume(r.Context(), id)
	if err != nil {
		WriteServiceError(w, r, err, h.logger)
		return
	}

	h.logger.Info("session resumed",
		zap.String("session_id", rec.SessionID),
		zap.Int("transcript_turns", len(rec.Transcript)))

	WriteData(w, r, http.StatusAccepted, api.StartSessionResponse{
		SessionID: rec.SessionID,
		Status:    rec.Status,
		Config:    rec.Config,
	})
}

// applyDefaults fills engine knobs the request left unset.
func (h *SessionHandler) applyDefaults(cfg *types.SessionConfig) {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = h.defaults.MaxParallel
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = h.defaults.DispatchTimeout
	}
}

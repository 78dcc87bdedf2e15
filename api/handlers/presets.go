package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/parley/api"
	"github.com/BaSui01/parley/session"
	"github.com/BaSui01/parley/types"
)

// PresetHandler serves stored session configurations.
type PresetHandler struct {
	mgr    *session.Manager
	logger *zap.Logger
}

// NewPresetHandler creates a preset handler.
func NewPresetHandler(mgr *session.Manager, logger *zap.Logger) *PresetHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PresetHandler{mgr: mgr, logger: logger}
}

// HandleSave validates and stores a named config.
// @Summary Save preset
// @Description Store a validated session config under a name
// @Tags presets
// @Accept json
// @Produce json
// @Param request body api.SavePresetRequest true "Preset name and config"
// @Success 201 {object} Response{data=api.SavePresetResponse} "Preset stored"
// @Failure 400 {object} Response "Config validation failed"
// @Security ApiKeyAuth
// @Router /api/v1/presets [post]
func (h *PresetHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.SavePresetRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "preset name is required", h.logger)
		return
	}

	filename, err := h.mgr.SavePreset(r.Context(), req.Name, req.Config)
	if err != nil {
		WriteServiceError(w, r, err, h.logger)
		return
	}

	h.logger.Info("preset stored",
		zap.String("name", req.Name),
		zap.String("filename", filename))
	WriteData(w, r, http.StatusCreated, api.SavePresetResponse{Filename: filename})
}

// HandleList lists stored preset filenames.
// @Summary List presets
// @Description Stored preset filenames, sorted
// @Tags presets
// @Produce json
// @Success 200 {object} Response{data=api.PresetListResponse} "Preset filenames"
// @Security ApiKeyAuth
// @Router /api/v1/presets [get]
func (h *PresetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	names, err := h.mgr.ListPresets(r.Context())
	if err != nil {
		WriteServiceError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, api.PresetListResponse{Presets: names})
}

// HandleGet resolves one preset by name or filename.
// @Summary Get preset
// @Description Stored preset with its full config
// @Tags presets
// @Produce json
// @Param filename path string true "Preset name or filename"
// @Success 200 {object} Response{data=types.Preset} "Preset"
// @Failure 404 {object} Response "Unknown preset"
// @Security ApiKeyAuth
// @Router /api/v1/presets/{filename} [get]
func (h *PresetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	if name == "" {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "preset filename is required", h.logger)
		return
	}

	p, err := h.mgr.GetPreset(r.Context(), name)
	if err != nil {
		WriteServiceError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, p)
}

// HandleDelete removes a preset.
// @Summary Delete preset
// @Description Remove a stored preset by name or filename
// @Tags presets
// @Produce json
// @Param filename path string true "Preset name or filename"
// @Success 200 {object} Response{data=api.DeletePresetResponse} "Preset removed"
// @Failure 404 {object} Response "Unknown preset"
// @Security ApiKeyAuth
// @Router /api/v1/presets/{filename} [delete]
func (h *PresetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	if name == "" {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "preset filename is required", h.logger)
		return
	}

	if err := h.mgr.DeletePreset(r.Context(), name); err != nil {
		WriteServiceError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, api.DeletePresetResponse{Filename: name})
}

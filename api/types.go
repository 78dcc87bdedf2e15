package api

import (
	"github.com/BaSui01/parley/types"
)

// StartSessionRequest creates and launches a session. The body is a full
// session config, or a preset reference that loads a stored one.
// @Description Session start request
type StartSessionRequest struct {
	// Preset names a stored configuration by name or filename. When set,
	// the inline config fields are ignored.
	Preset string `json:"preset,omitempty" example:"morning-review.yaml"`

	types.SessionConfig
}

// StartSessionResponse echoes the accepted session. Returned with 202: the
// session runs in the background from the moment of acceptance.
// @Description Session start response
type StartSessionResponse struct {
	// Session identifier for subsequent calls
	SessionID string `json:"session_id" example:"0b2f8c4e-7a31-4c55-9d7e-2f1a6b8c9d00"`
	// Lifecycle status at acceptance time, always "running"
	Status types.SessionStatus `json:"status" example:"running"`
	// Echo of the validated configuration the session runs with
	Config types.SessionConfig `json:"config"`
}

// CancelSessionRequest selects how a running session stops.
// @Description Session cancel request
type CancelSessionRequest struct {
	// Cancel mode: "graceful" finishes the in-flight round, "hard" aborts
	// it. Empty defaults to graceful.
	Mode string `json:"mode,omitempty" example:"graceful"`
}

// CancelSessionResponse acknowledges a cancel request. The session reaches
// the cancelled status asynchronously.
// @Description Session cancel response
type CancelSessionResponse struct {
	SessionID string `json:"session_id" example:"0b2f8c4e-7a31-4c55-9d7e-2f1a6b8c9d00"`
	Mode      string `json:"mode" example:"graceful"`
}

// SavePresetRequest stores a named session configuration.
// @Description Preset save request
type SavePresetRequest struct {
	// Display name; the stored filename is derived from it
	Name string `json:"name" example:"Morning Review" binding:"required"`
	// Configuration to store; validated before saving
	Config types.SessionConfig `json:"config" binding:"required"`
}

// SavePresetResponse returns the canonical filename of a stored preset.
// @Description Preset save response
type SavePresetResponse struct {
	Filename string `json:"filename" example:"morning-review.yaml"`
}

// PresetListResponse lists stored preset filenames.
// @Description Preset list response
type PresetListResponse struct {
	Presets []string `json:"presets"`
}

// DeletePresetResponse acknowledges a preset deletion.
// @Description Preset delete response
type DeletePresetResponse struct {
	Filename string `json:"filename" example:"morning-review.yaml"`
}

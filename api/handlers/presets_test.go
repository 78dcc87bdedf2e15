package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/parley/api"
	"github.com/BaSui01/parley/testutil"
	"github.com/BaSui01/parley/types"
)

func TestHandleSavePreset(t *testing.T) {
	f := newSessionFixture(t, testutil.NewScriptedInvoker())

	w := f.do(t, http.MethodPost, "/api/v1/presets", api.SavePresetRequest{
		Name:   "Morning Review",
		Config: testutil.RingRelayConfig(2, 3),
	})

	require.Equal(t, http.StatusCreated, w.Code)

	var out api.SavePresetResponse
	decodeData(t, w, &out)
	assert.Equal(t, "morning-review.yaml", out.Filename)
}

func TestHandleSavePreset_NameRequired(t *testing.T) {
	f := newSessionFixture(t, testutil.NewScriptedInvoker())

	w := f.do(t, http.MethodPost, "/api/v1/presets", api.SavePresetRequest{
		Name:   "   ",
		Config: testutil.RingRelayConfig(2, 3),
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(types.ErrInvalidRequest), decodeErrorCode(t, w))
}

func TestHandleSavePreset_InvalidConfig(t *testing.T) {
	f := newSessionFixture(t, testutil.NewScriptedInvoker())

	cfg := testutil.RingRelayConfig(2, 3)
	cfg.Slots[1].ModelRef = ""

	w := f.do(t, http.MethodPost, "/api/v1/presets", api.SavePresetRequest{
		Name:   "broken",
		Config: cfg,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(types.ErrConfigValidation), decodeErrorCode(t, w))

	// Nothing was stored.
	listW := f.do(t, http.MethodGet, "/api/v1/presets", nil)
	var list api.PresetListResponse
	decodeData(t, listW, &list)
	assert.Empty(t, list.Presets)
}

func TestHandleListPresets_Sorted(t *testing.T) {
	f := newSessionFixture(t, testutil.NewScriptedInvoker())

	for _, name := range []string{"zebra", "alpha", "mid"} {
		w := f.do(t, http.MethodPost, "/api/v1/presets", api.SavePresetRequest{
			Name:   name,
			Config: testutil.RingRelayConfig(2, 1),
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := f.do(t, http.MethodGet, "/api/v1/presets", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list api.PresetListResponse
	decodeData(t, w, &list)
	assert.Equal(t, []string{"alpha.yaml", "mid.yaml", "zebra.yaml"}, list.Presets)
}

func TestHandleGetPreset(t *testing.T) {
	f := newSessionFixture(t, testutil.NewScriptedInvoker())

	cfg := testutil.RingRelayConfig(2, 3)
	saveW := f.do(t, http.MethodPost, "/api/v1/presets", api.SavePresetRequest{
		Name:   "Morning Review",
		Config: cfg,
	})
	require.Equal(t, http.StatusCreated, saveW.Code)

	w := f.do(t, http.MethodGet, "/api/v1/presets/morning-review.yaml", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var p types.Preset
	decodeData(t, w, &p)
	assert.Equal(t, "Morning Review", p.Name)
	assert.Equal(t, cfg.InitialPrompt, p.Config.InitialPrompt)
	assert.Len(t, p.Config.Slots, 2)
}

func TestHandleGetPreset_Unknown(t *testing.T) {
	f := newSessionFixture(t, testutil.NewScriptedInvoker())

	w := f.do(t, http.MethodGet, "/api/v1/presets/no-such.yaml", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(types.ErrNotFound), decodeErrorCode(t, w))
}

func TestHandleDeletePreset(t *testing.T) {
	f := newSessionFixture(t, testutil.NewScriptedInvoker())

	saveW := f.do(t, http.MethodPost, "/api/v1/presets", api.SavePresetRequest{
		Name:   "short-lived",
		Config: testutil.RingRelayConfig(2, 1),
	})
	require.Equal(t, http.StatusCreated, saveW.Code)

	w := f.do(t, http.MethodDelete, "/api/v1/presets/short-lived.yaml", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out api.DeletePresetResponse
	decodeData(t, w, &out)
	assert.Equal(t, "short-lived.yaml", out.Filename)

	getW := f.do(t, http.MethodGet, "/api/v1/presets/short-lived.yaml", nil)
	assert.Equal(t, http.StatusNotFound, getW.Code)
}

func TestHandleDeletePreset_Unknown(t *testing.T) {
	f := newSessionFixture(t, testutil.NewScriptedInvoker())

	w := f.do(t, http.MethodDelete, "/api/v1/presets/no-such.yaml", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(types.ErrNotFound), decodeErrorCode(t, w))
}

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/parley/testutil"
	"github.com/BaSui01/parley/types"
)

func TestValidateConfig(t *testing.T) {
	valid := testutil.RingRelayConfig(3, 2)

	cases := []struct {
		name    string
		mutate  func(*types.SessionConfig)
		wantErr string
	}{
		{name: "valid ring", mutate: func(c *types.SessionConfig) {}},
		{
			name:    "no slots",
			mutate:  func(c *types.SessionConfig) { c.Slots = nil },
			wantErr: "at least one slot is required",
		},
		{
			name:    "zero slot id",
			mutate:  func(c *types.SessionConfig) { c.Slots[0].SlotID = 0 },
			wantErr: "must be positive",
		},
		{
			name:    "duplicate slot id",
			mutate:  func(c *types.SessionConfig) { c.Slots[1].SlotID = 1 },
			wantErr: "duplicate slot id 1",
		},
		{
			name:    "sparse slot ids",
			mutate:  func(c *types.SessionConfig) { c.Slots[2].SlotID = 5 },
			wantErr: "dense",
		},
		{
			name:    "missing model ref",
			mutate:  func(c *types.SessionConfig) { c.Slots[1].ModelRef = "  " },
			wantErr: "model_ref is required",
		},
		{
			name:    "negative temperature",
			mutate:  func(c *types.SessionConfig) { c.Slots[0].Temperature = -0.1 },
			wantErr: "temperature",
		},
		{
			name:    "negative max tokens",
			mutate:  func(c *types.SessionConfig) { c.Slots[0].MaxTokens = -1 },
			wantErr: "max_tokens",
		},
		{
			name:    "blank initial prompt",
			mutate:  func(c *types.SessionConfig) { c.InitialPrompt = "   " },
			wantErr: "initial_prompt is required",
		},
		{
			name: "infinite without stop conditions",
			mutate: func(c *types.SessionConfig) {
				c.Infinite = true
				c.RoundsLimit = 0
			},
			wantErr: "stop condition",
		},
		{
			name: "infinite with a stop condition",
			mutate: func(c *types.SessionConfig) {
				c.Infinite = true
				c.RoundsLimit = 0
				c.StopConditions.MaxTurns = 12
			},
		},
		{
			name:    "zero rounds without infinite",
			mutate:  func(c *types.SessionConfig) { c.RoundsLimit = 0 },
			wantErr: "rounds_limit must be positive",
		},
		{
			name:    "negative summarize cadence",
			mutate:  func(c *types.SessionConfig) { c.SummarizeEvery = -1 },
			wantErr: "summarize_every",
		},
		{
			name:    "negative checkpoint cadence",
			mutate:  func(c *types.SessionConfig) { c.CheckpointEvery = -2 },
			wantErr: "checkpoint_every",
		},
		{
			name:    "negative max parallel",
			mutate:  func(c *types.SessionConfig) { c.MaxParallel = -1 },
			wantErr: "max_parallel",
		},
		{
			name:    "negative dispatch timeout",
			mutate:  func(c *types.SessionConfig) { c.DispatchTimeout = -time.Second },
			wantErr: "dispatch_timeout",
		},
		{
			name: "tournament without winner rule",
			mutate: func(c *types.SessionConfig) {
				c.Topology.Type = types.TopologyTournament
			},
			wantErr: "final_round_vote",
		},
		{
			name: "tournament with winner rule",
			mutate: func(c *types.SessionConfig) {
				c.Topology.Type = types.TopologyTournament
				c.FinalRoundVote = types.FinalRoundVote{
					Enabled: true,
					Options: []string{"keep", "discard"},
				}
			},
		},
		{
			name: "unknown tally method",
			mutate: func(c *types.SessionConfig) {
				c.FinalRoundVote = types.FinalRoundVote{Enabled: true, Method: "plurality"}
			},
			wantErr: "tally method",
		},
		{
			name:    "unknown template",
			mutate:  func(c *types.SessionConfig) { c.Slots[0].Template = "oracle" },
			wantErr: "unknown template",
		},
		{
			name:    "unknown paradigm",
			mutate:  func(c *types.SessionConfig) { c.Paradigm = "telepathy" },
			wantErr: "unknown paradigm",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid.Clone()
			tc.mutate(&cfg)
			err := ValidateConfig(cfg)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
			assert.Equal(t, types.ErrConfigValidation, types.GetErrorCode(err))
		})
	}
}

func TestValidateConfig_TopologyErrorsKeepTheirCode(t *testing.T) {
	cfg := testutil.RingRelayConfig(2, 1)
	cfg.Topology.Type = "pentagram"

	err := ValidateConfig(cfg)
	require.Error(t, err)
	assert.Equal(t, types.ErrTopology, types.GetErrorCode(err))
}

func TestValidateConfig_StarSpokesDefault(t *testing.T) {
	cfg := testutil.RingRelayConfig(3, 2)
	cfg.Topology = types.TopologyConfig{Type: types.TopologyStar, Center: 2}
	require.NoError(t, ValidateConfig(cfg))

	cfg.Topology.Center = 9
	err := ValidateConfig(cfg)
	require.Error(t, err)
	assert.Equal(t, types.ErrTopology, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "references no slot")
}

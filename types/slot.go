package types

// Slot is one participating model configuration within a session. Slot ids
// are 1..N, unique and dense. Slots are immutable after session start.
type Slot struct {
	SlotID           int     `json:"slot_id" yaml:"slot_id"`
	ModelRef         string  `json:"model_ref" yaml:"model_ref"`
	Template         string  `json:"template" yaml:"template"`
	Temperature      float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens        int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Prepend          string  `json:"prepend,omitempty" yaml:"prepend,omitempty"`
	Append           string  `json:"append,omitempty" yaml:"append,omitempty"`
	EndpointOverride string  `json:"endpoint_override,omitempty" yaml:"endpoint_override,omitempty"`
}

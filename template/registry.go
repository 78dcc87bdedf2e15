// Package template provides the pure-function prompt template registry.
// A named template is a function (incoming text, persona params) -> formatted
// text with no side effects; adding a template is a registry entry, not new
// control flow. Template names are validated at session start, never at
// dispatch time.
package template

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Params carries the persona inputs available to a template render.
type Params struct {
	SlotID   int
	ModelRef string

	// Debate injects an explicit instruction to critique and rebut the
	// incoming message before answering.
	Debate bool

	// Extra holds free-form persona values for registered custom templates.
	Extra map[string]string
}

// Func is a pure template function. The same inputs must always produce the
// same output.
type Func func(incoming string, p Params) string

var (
	registry   = make(map[string]Func)
	registryMu sync.RWMutex
)

// Register adds or replaces a named template.
func Register(name string, fn Func) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

// Has reports whether a template name is registered. Session validation uses
// this so unknown names fail at creation.
func Has(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// Names returns the registered template names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const debateInstruction = "You are in a structured debate. Before giving your own answer, " +
	"critique and rebut the position below: identify its weakest claim and argue against it directly."

// Render formats incoming text through the named template. An unregistered
// name is an error; callers are expected to have validated the name at
// session start.
func Render(name, incoming string, p Params) (string, error) {
	registryMu.RLock()
	fn, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown template: %s", name)
	}

	out := fn(incoming, p)
	if p.Debate {
		out = debateInstruction + "\n\n" + out
	}
	return out, nil
}

// indent prefixes every line of s for quoted framing.
func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

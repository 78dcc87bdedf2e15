package template

import "fmt"

// Built-in persona templates. Each is a pure function; persona flavor lives
// entirely in the surrounding frame, the incoming text is never altered.

func init() {
	Register("basic", Basic)
	Register("cli-explorer", CLIExplorer)
	Register("philosopher", Philosopher)
	Register("dreamer", Dreamer)
	Register("scientist", Scientist)
	Register("storyteller", Storyteller)
}

// Basic delivers the incoming text with a minimal reply frame.
func Basic(incoming string, _ Params) string {
	return fmt.Sprintf("Respond to the following message:\n\n%s", incoming)
}

// CLIExplorer frames the exchange as an open terminal session.
func CLIExplorer(incoming string, _ Params) string {
	return "You are connected to another process through a raw terminal. " +
		"Treat the text below as the latest output on your tty and reply as if typing " +
		"directly into the session. Stay in the medium: short lines, no meta commentary.\n\n" +
		indent(incoming, "> ")
}

// Philosopher asks for a rigorous conceptual treatment.
func Philosopher(incoming string, _ Params) string {
	return "Consider the following statement as a philosopher would: question its premises, " +
		"name the strongest objection, and only then give your considered position.\n\n" +
		indent(incoming, "  ")
}

// Dreamer answers in associative, dream-logic imagery.
func Dreamer(incoming string, _ Params) string {
	return "Read the passage below as if it appeared in a dream. Answer with the images and " +
		"associations it evokes rather than a literal analysis, but keep a thread the next " +
		"dreamer can follow.\n\n" + incoming
}

// Scientist asks for hypotheses and testable claims.
func Scientist(incoming string, _ Params) string {
	return "Treat the following as an observation. State the most plausible hypothesis, what " +
		"evidence would falsify it, and what you would measure next.\n\n" +
		indent(incoming, "  ")
}

// Storyteller continues the narrative.
func Storyteller(incoming string, _ Params) string {
	return "The story so far ends with the passage below. Continue it in the same voice, " +
		"advancing the plot by one scene.\n\n" + incoming
}

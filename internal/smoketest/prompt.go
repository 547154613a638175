/*
PURPOSE:
  Operator prompts for the pipette smoke test.
  The operator physically adds and discards tips; the software waits.

REQUIREMENTS:
  User-specified:
  - 'r' continues, 'k' skips a mount, 's' stops the cycle loop,
    plain Enter runs another cycle.

  Implementation-discovered:
  - Must refuse to run without interactive stdin; a robot moving on a
    headless machine with nobody at the desk is how tips get crushed.

ARCHITECTURE INTEGRATION:
  - Called by: internal/smoketest/smoketest.go

ERROR HANDLING:
  - EOF on the input stream is an error (operator walked away / pipe closed).

IMPLEMENTATION RULES:
  - Prompts go to stderr with the log stream; answers come from the
    injected reader so tests can script them.

USAGE:
  p := NewPrompter(os.Stdin, os.Stderr, interactive)
  ok, err := p.ConfirmTip("left", "p300_single")

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/smoketest/smoketest.go

MAINTENANCE:
  - Keep key bindings stable; operators have muscle memory.
*/

package smoketest

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Prompter reads operator decisions from an input stream.
type Prompter struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

// NewPrompter creates a Prompter. interactive reports whether the input
// stream is a terminal; non-interactive runs fail before any prompt.
func NewPrompter(in io.Reader, out io.Writer, interactive bool) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, interactive: interactive}
}

// RequireInteractive fails unless the operator can actually answer.
func (p *Prompter) RequireInteractive() error {
	if !p.interactive {
		return fmt.Errorf("interactive stdin is required for operator prompts; run from a terminal")
	}
	return nil
}

func (p *Prompter) readAnswer(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("operator input closed: %w", err)
	}
	return strings.ToLower(strings.TrimSpace(line)), nil
}

// ConfirmTip asks the operator to attach a tip. Returns false to skip the mount.
func (p *Prompter) ConfirmTip(mount, pipette string) (bool, error) {
	prompt := fmt.Sprintf("%s@%s: add a tip, then type 'r' to continue (or 'k' to skip this mount): ",
		pipette, mount)
	for {
		answer, err := p.readAnswer(prompt)
		if err != nil {
			return false, err
		}
		switch answer {
		case "r":
			return true, nil
		case "k":
			return false, nil
		}
		fmt.Fprintln(p.out, "Please type 'r' to continue or 'k' to skip.")
	}
}

// ContinueCycles asks whether to run another aspirate/dispense cycle.
func (p *Prompter) ContinueCycles() (bool, error) {
	answer, err := p.readAnswer("Press Enter for another aspirate/dispense cycle, or type 's' to move on: ")
	if err != nil {
		return false, err
	}
	return answer != "s", nil
}

// ManualDiscard blocks until the operator confirms the tip is in the trash.
func (p *Prompter) ManualDiscard(mount, pipette string) error {
	prompt := fmt.Sprintf("%s@%s: put tip in physical trash now, then type 'r' to continue: ",
		pipette, mount)
	for {
		answer, err := p.readAnswer(prompt)
		if err != nil {
			return err
		}
		if answer == "r" {
			return nil
		}
		fmt.Fprintln(p.out, "Please type 'r' once the tip is in trash.")
	}
}

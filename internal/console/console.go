// Package console renders the operator-facing stream: one line per reading
// and a banner on every mode transition.
package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/sweeney/volcano-manager/internal/control"
)

// Printer writes console output. Safe for concurrent use.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	danger lipgloss.Style
	clear  lipgloss.Style
	notice lipgloss.Style
}

// New creates a Printer writing to w. Colour is used only if w is a terminal.
func New(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w: w,
		danger: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")).
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(0, 2),
		clear: r.NewStyle().
			Foreground(lipgloss.Color("42")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("42")).
			Padding(0, 2),
		notice: r.NewStyle().Bold(true),
	}
}

// Reading prints the per-reading status line.
func (p *Printer) Reading(r control.Reading) {
	p.printf("Rx: Temp=%.1f | Risk=%.4f | Mode=%s\n", r.Temperature, r.Risk, r.DeviceMode)
}

// SafeSignal prints de-escalation progress while ACTIVE.
func (p *Printer) SafeSignal(streak int) {
	p.printf("  [i] Safe signal detected (%d/%d)\n", streak, control.DebounceCount)
}

// Transition prints the banner for a mode change.
func (p *Printer) Transition(e control.Event) {
	var banner string
	switch e.Command {
	case control.CommandEscalate:
		banner = p.danger.Render(fmt.Sprintf(">>> DANGER DETECTED: IMMEDIATE ESCALATION <<<\nrisk %.4f, sending %s", e.Reading.Risk, e.Command.Wire()))
	case control.CommandDeescalate:
		banner = p.clear.Render(fmt.Sprintf(">>> ALL CLEAR: RETURNING TO SAFE MODE <<<\n%d safe readings, sending %s", control.DebounceCount, e.Command.Wire()))
	default:
		return
	}
	p.printf("\n%s\n\n", banner)
}

// Notice prints a bold one-line message.
func (p *Printer) Notice(msg string) {
	p.printf("%s\n", p.notice.Render(msg))
}

func (p *Printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

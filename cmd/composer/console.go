package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Console stages.
const (
	stageCompose = "COMPOSE"
	stageDryRun  = "DRY-RUN"
	stageSubset  = "SUBSET MODE"
	stageScan    = "SCAN"
	stageReport  = "REPORT"
	stageResolve = "RESOLVE"
	stageMerge   = "MERGE"
	stageHistory = "HISTORY"
)

var (
	accent = lipgloss.Color("#8BC34A")
	warn   = lipgloss.Color("#F0B429")
	danger = lipgloss.Color("#E5534B")
	muted  = lipgloss.Color("#8B949E")
)

// console prints stage-prefixed diagnostics. Styling is dropped automatically
// when the writer is not a terminal.
type console struct {
	out, err io.Writer

	stage  lipgloss.Style
	ok     lipgloss.Style
	fail   lipgloss.Style
	skip   lipgloss.Style
	dim    lipgloss.Style
	errTag lipgloss.Style
}

func newConsole(out, errOut io.Writer) *console {
	r := lipgloss.NewRenderer(out)
	re := lipgloss.NewRenderer(errOut)
	return &console{
		out:    out,
		err:    errOut,
		stage:  r.NewStyle().Bold(true).Foreground(accent),
		ok:     r.NewStyle().Foreground(accent),
		fail:   r.NewStyle().Bold(true).Foreground(danger),
		skip:   r.NewStyle().Foreground(warn),
		dim:    r.NewStyle().Foreground(muted),
		errTag: re.NewStyle().Bold(true).Foreground(danger),
	}
}

func (c *console) printf(stage, format string, args ...any) {
	fmt.Fprintf(c.out, "%s %s\n", c.stage.Render("["+stage+"]"), fmt.Sprintf(format, args...))
}

func (c *console) line(s string) {
	fmt.Fprintln(c.out, s)
}

func (c *console) status(pass bool) string {
	if pass {
		return c.ok.Render("PASS")
	}
	return c.fail.Render("FAIL")
}

func (c *console) errorf(format string, args ...any) {
	fmt.Fprintf(c.err, "%s %s\n", c.errTag.Render("error:"), fmt.Sprintf(format, args...))
}

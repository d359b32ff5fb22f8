package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/lox/gamefuzz/internal/corpus"
)

// verdictStyles colors replay outcomes in terminal output.
type verdictStyles struct {
	Pass lipgloss.Style
	Skip lipgloss.Style
	Fail lipgloss.Style
}

func newVerdictStyles() *verdictStyles {
	return &verdictStyles{
		Pass: lipgloss.NewStyle().Foreground(lipgloss.Color("#96CEB4")).Bold(true),
		Skip: lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")),
		Fail: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
	}
}

func (s *verdictStyles) Render(v corpus.Verdict) string {
	switch v {
	case corpus.Pass:
		return s.Pass.Render("PASS")
	case corpus.Skip:
		return s.Skip.Render("SKIP")
	case corpus.Fail:
		return s.Fail.Render("FAIL")
	default:
		return v.String()
	}
}

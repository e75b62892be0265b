package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/ivpsolve/internal/config"
)

var (
	heading  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	label    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	value    = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim      = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	good     = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	errStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

func field(name string, v any) {
	fmt.Printf("%s %s\n", label.Render(fmt.Sprintf("%-12s", name+":")), value.Render(fmt.Sprint(v)))
}

func describe(cfg *config.Config) string {
	var b strings.Builder
	m := cfg.Method
	if m == "" {
		m = "default"
	}
	fmt.Fprintf(&b, "%s, tol %g/%g", m, cfg.AbsTol, cfg.RelTol)
	if len(cfg.Times) > 0 {
		fmt.Fprintf(&b, ", %d outputs to t=%g", len(cfg.Times), cfg.Times[len(cfg.Times)-1])
	} else {
		fmt.Fprintf(&b, ", %d outputs to t=%g", cfg.Points, cfg.TEnd)
	}
	if len(cfg.Sweep) > 0 {
		fmt.Fprintf(&b, ", %d parameter sets", len(cfg.Sweep))
	}
	return b.String()
}

func formatState(y []float64) string {
	parts := make([]string, len(y))
	for i, v := range y {
		parts[i] = fmt.Sprintf("%.10g", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

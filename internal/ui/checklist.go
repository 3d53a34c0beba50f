package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// CheckRow is one expected/actual comparison
type CheckRow struct {
	Field    string
	Expected string
	Actual   string
	Match    bool
}

// RenderChecklist renders rows as an aligned table with a match marker per row
func RenderChecklist(rows []CheckRow) string {
	fieldW, expW, actW := len("Field"), len("Expected"), len("Actual")
	for _, r := range rows {
		fieldW = max(fieldW, lipgloss.Width(r.Field))
		expW = max(expW, lipgloss.Width(r.Expected))
		actW = max(actW, lipgloss.Width(r.Actual))
	}

	var b strings.Builder
	header := fmt.Sprintf("  %-*s  %-*s  %-*s  %s", fieldW, "Field", expW, "Expected", actW, "Actual", "Match")
	b.WriteString(HeaderParamKeyStyle.UnsetPaddingLeft().Render(header))
	b.WriteString("\n")

	for _, r := range rows {
		line := fmt.Sprintf("  %-*s  %-*s  %-*s  ", fieldW, r.Field, expW, r.Expected, actW, r.Actual)
		if r.Match {
			b.WriteString(line + DiffMatchStyle.Render(SuccessMarker))
		} else {
			b.WriteString(DiffMismatchStyle.Render(line + FailureMarker))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderFindings renders a titled list. Advisory findings are muted; real
// differences are highlighted.
func RenderFindings(title string, findings []string, advisory bool) string {
	var b strings.Builder
	b.WriteString(TroubleshootingTitleStyle.Render(title))
	b.WriteString("\n")

	if len(findings) == 0 {
		b.WriteString(indent(DiffMatchStyle.Render(SuccessMarker+" No differences"), "  "))
		b.WriteString("\n")
		return b.String()
	}

	for _, f := range findings {
		if advisory {
			b.WriteString(indent(AdvisoryStyle.Render("i "+f), "  "))
		} else {
			b.WriteString(indent(DiffMismatchStyle.Render("! "+f), "  "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

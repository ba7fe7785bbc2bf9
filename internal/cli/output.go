package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
)

var (
	colorDim   = lipgloss.AdaptiveColor{Light: "242", Dark: "240"}
	colorGreen = lipgloss.AdaptiveColor{Light: "28", Dark: "40"}
	colorRed   = lipgloss.AdaptiveColor{Light: "160", Dark: "196"}
	colorAmber = lipgloss.AdaptiveColor{Light: "136", Dark: "220"}
	colorCyan  = lipgloss.AdaptiveColor{Light: "30", Dark: "45"}
)

var (
	styleHeader  = lipgloss.NewStyle().Bold(true).Foreground(colorCyan).Padding(0, 1)
	styleCell    = lipgloss.NewStyle().Padding(0, 1)
	styleBorder  = lipgloss.NewStyle().Foreground(colorDim)
	styleSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleWarning = lipgloss.NewStyle().Bold(true).Foreground(colorAmber)
	styleError   = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	styleHint    = lipgloss.NewStyle().Foreground(colorDim)
)

func applyColor(disabled bool) {
	if disabled {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// rows is a tabular rendering of a result.
type rows struct {
	headers []string
	data    [][]string
}

func (r *rows) add(cells ...string) {
	r.data = append(r.data, cells)
}

// render writes v as indented JSON, or as a table when the table output is
// selected and tab is non-nil.
func (a *app) render(v any, tab func() rows) error {
	if a.cfg.Output == "table" && tab != nil {
		r := tab()
		if len(r.data) == 0 {
			fmt.Fprintln(a.stdout, styleHint.Render("No results."))
			return nil
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(styleBorder).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return styleHeader
				}
				return styleCell
			}).
			Headers(r.headers...).
			Rows(r.data...)
		fmt.Fprintln(a.stdout, t.Render())
		return nil
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// keyValues renders a flat summary as a two-column table.
func keyValues(pairs ...string) func() rows {
	return func() rows {
		r := rows{headers: []string{"Field", "Value"}}
		for i := 0; i+1 < len(pairs); i += 2 {
			r.add(pairs[i], pairs[i+1])
		}
		return r
	}
}

func (a *app) success(format string, args ...any) {
	fmt.Fprintln(a.stderr, styleSuccess.Render(fmt.Sprintf(format, args...)))
}

func (a *app) hint(format string, args ...any) {
	fmt.Fprintln(a.stderr, styleHint.Render(fmt.Sprintf(format, args...)))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func itoa(n int) string { return strconv.Itoa(n) }

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

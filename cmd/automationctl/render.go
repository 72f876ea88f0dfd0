package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"automationdash/internal/core"
	"automationdash/internal/engine"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const timeLayout = "2006-01-02 15:04 MST"

type renderer struct {
	out     io.Writer
	color   bool
	palette core.Palette
}

func newRenderer(out io.Writer, color bool) *renderer {
	return &renderer{out: out, color: color, palette: core.DefaultPalette()}
}

func (r *renderer) automations(page *core.AutomationPage) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Name", "Status", "Schedule", "Next Run", "Failures"})
	for _, a := range page.Items {
		t.AppendRow(table.Row{
			a.ID,
			a.Name,
			r.status(string(a.Status)),
			core.DescribeSchedule(a),
			formatTime(a.NextRunAt),
			fmt.Sprintf("%d/%d", a.FailureCount, a.MaxFailures),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total", page.Total})
	t.Render()
}

func (r *renderer) executions(page *core.ExecutionPage) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Status", "Started", "Duration", "Error"})
	for _, e := range page.Items {
		t.AppendRow(table.Row{
			e.ID,
			r.status(string(e.Status)),
			formatTime(e.StartedAt),
			formatDuration(e),
			truncate(deref(e.ErrorMessage), 60),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", page.Total})
	t.Render()
}

func (r *renderer) status(status string) string {
	if !r.color {
		return status
	}
	return toneColors(r.palette.Tone(status)).Sprint(status)
}

func toneColors(tone core.Tone) text.Colors {
	switch tone {
	case core.ToneSuccess:
		return text.Colors{text.FgGreen}
	case core.ToneWarning:
		return text.Colors{text.FgYellow}
	case core.ToneDanger:
		return text.Colors{text.FgRed, text.Bold}
	case core.ToneInfo:
		return text.Colors{text.FgCyan}
	default:
		return text.Colors{}
	}
}

func describeError(e *engine.Error) error {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case engine.KindRateLimited:
		if e.RetryAfter > 0 {
			return fmt.Errorf("rate limited: %s (retry in %s)", e.Message, e.RetryAfter.Round(time.Second))
		}
		return fmt.Errorf("rate limited: %s", e.Message)
	case engine.KindValidation:
		return fmt.Errorf("rejected: %s", e.Message)
	case engine.KindServer:
		return fmt.Errorf("server error (%d): %s", e.Status, e.Message)
	default:
		return fmt.Errorf("cannot reach automation api: %w", e.Err)
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func formatDuration(e core.Execution) string {
	d, ok := e.Duration()
	if !ok {
		return "-"
	}
	return d.Round(time.Second).String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}

package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/yairfalse/logkeep/internal/journal"
	"github.com/yairfalse/logkeep/internal/plugin"
	"github.com/yairfalse/logkeep/internal/reconcile"
	"github.com/yairfalse/logkeep/pkg/logresource"
)

const timeLayout = "2006-01-02 15:04:05"

func (a *app) success(msg string) {
	fmt.Fprint(a.out, pterm.Success.Sprintln(msg))
}

func (a *app) info(msg string) {
	fmt.Fprint(a.out, pterm.Info.Sprintln(msg))
}

func (a *app) warn(msg string) {
	fmt.Fprint(a.out, pterm.Warning.Sprintln(msg))
}

func (a *app) table(data [][]string) error {
	s, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	fmt.Fprintln(a.out, s)
	return nil
}

func (a *app) groupTable(groups []logresource.Group) error {
	data := [][]string{{"Name", "Created", "Retention", "Stored", "ARN"}}
	for _, g := range groups {
		data = append(data, []string{
			g.Name,
			formatTime(g.CreatedAt),
			formatRetention(g.RetentionDays),
			formatBytes(g.StoredBytes),
			g.ARN,
		})
	}
	return a.table(data)
}

func (a *app) streamTable(streams []logresource.Stream) error {
	data := [][]string{{"Group", "Stream", "Created", "Last event"}}
	for _, s := range streams {
		data = append(data, []string{
			s.GroupName,
			s.Name,
			formatTime(s.CreatedAt),
			formatTime(s.LastEventAt),
		})
	}
	return a.table(data)
}

func (a *app) roleTable(roles []plugin.Role) error {
	data := [][]string{{"Name", "Path", "Created", "ARN"}}
	for _, r := range roles {
		data = append(data, []string{r.Name, r.Path, formatTime(r.CreatedAt), r.ARN})
	}
	return a.table(data)
}

func (a *app) actionTable(actions []reconcile.Action) error {
	data := [][]string{{"Op", "Key", "Status", "Duration", "Detail"}}
	for _, act := range actions {
		detail := strings.Join(act.Reasons, "; ")
		if act.Err != nil {
			detail = act.Err.Error()
		}
		data = append(data, []string{
			act.Op,
			act.Key,
			statusStyle(act.Status).Sprint(string(act.Status)),
			act.Duration.Round(time.Millisecond).String(),
			detail,
		})
	}
	return a.table(data)
}

func (a *app) entryTable(entries []journal.Entry) error {
	data := [][]string{{"Rev", "Time", "Op", "Key", "Status", "Duration", "Source", "Detail"}}
	for _, e := range entries {
		data = append(data, []string{
			strconv.FormatInt(e.Rev, 10),
			formatTime(e.At.Local()),
			e.Op,
			e.Key,
			statusStyle(e.Status).Sprint(string(e.Status)),
			e.Duration.Round(time.Millisecond).String(),
			e.Source,
			e.Error,
		})
	}
	return a.table(data)
}

func statusStyle(s journal.Status) *pterm.Style {
	switch s {
	case journal.StatusConfirmed:
		return pterm.NewStyle(pterm.FgGreen)
	case journal.StatusUnconfirmed, journal.StatusDenied:
		return pterm.NewStyle(pterm.FgYellow)
	default:
		return pterm.NewStyle(pterm.FgRed)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(timeLayout)
}

func formatRetention(days *int32) string {
	if days == nil {
		return "never expire"
	}
	return fmt.Sprintf("%dd", *days)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

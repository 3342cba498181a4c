package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Mschirtzinger/pushy/internal/journal"
	"github.com/Mschirtzinger/pushy/internal/monitor"
)

// maxDetail truncates long error details in the history table.
const maxDetail = 60

var historyHeaders = []string{"TIME", "ACTION", "PATH", "BACKEND", "RESULT", "DETAIL"}

// HistoryTable renders journal entries, newest first as stored. Paths are
// shown relative to base when they fall under it.
func (s Styles) HistoryTable(entries []journal.Entry, base string) string {
	if len(entries) == 0 {
		return s.Muted.Render("no pushes recorded")
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Time.Local().Format(time.DateTime),
			e.Action + " " + e.Kind,
			displayPath(e.Path, base),
			e.Backend,
			e.Result.String(),
			truncate(e.Detail, maxDetail),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Border).
		Headers(historyHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			cell := s.Renderer.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return cell.Inherit(s.Header)
			case col == 4 && row < len(entries):
				return cell.Inherit(s.Result(entries[row].Result))
			case col == 0 || col == 5:
				return cell.Inherit(s.Muted)
			default:
				return cell
			}
		})
	return t.Render()
}

// Summary renders monitor statistics on one line.
func (s Styles) Summary(stats monitor.Stats) string {
	parts := []string{
		fmt.Sprintf("%d dirs", stats.Dirs),
		fmt.Sprintf("%d files", stats.Files),
		fmt.Sprintf("%d hot", stats.Hot),
		fmt.Sprintf("%d cycles (%d full, %d hot)", stats.Cycles, stats.FullScans, stats.HotScans),
		fmt.Sprintf("%d events", stats.Events),
	}
	return s.Accent.Render("pushy") + " " + strings.Join(parts, " · ")
}

func displayPath(path, base string) string {
	if base == "" {
		return path
	}
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

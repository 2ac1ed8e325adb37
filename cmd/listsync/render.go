package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/fyrsmithlabs/listsync/internal/engine"
	"github.com/fyrsmithlabs/listsync/internal/item"
)

// shortIDLen is how much of an id the list view shows; commands accept any
// unique prefix.
const shortIDLen = 8

// renderer writes styled command output.
type renderer struct {
	out io.Writer

	title   lipgloss.Style
	id      lipgloss.Style
	done    lipgloss.Style
	dim     lipgloss.Style
	tag     lipgloss.Style
	high    lipgloss.Style
	ok      lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
}

func newRenderer(w io.Writer, noColor bool) *renderer {
	lr := lipgloss.NewRenderer(w)
	if noColor {
		lr.SetColorProfile(termenv.Ascii)
	}
	return &renderer{
		out:     w,
		title:   lr.NewStyle().Foreground(lipgloss.Color("51")).Bold(true),
		id:      lr.NewStyle().Foreground(lipgloss.Color("45")),
		done:    lr.NewStyle().Foreground(lipgloss.Color("245")).Strikethrough(true),
		dim:     lr.NewStyle().Foreground(lipgloss.Color("245")),
		tag:     lr.NewStyle().Foreground(lipgloss.Color("226")).Italic(true),
		high:    lr.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		ok:      lr.NewStyle().Foreground(lipgloss.Color("46")).Bold(true),
		warning: lr.NewStyle().Foreground(lipgloss.Color("226")).Bold(true),
		err:     lr.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
}

// Items prints a list, one item per line.
func (r *renderer) Items(scope item.Scope, items []item.Item) {
	fmt.Fprintln(r.out, r.title.Render(scope.String()))
	if len(items) == 0 {
		fmt.Fprintln(r.out, r.dim.Render("  (empty)"))
		return
	}
	width := 0
	for _, it := range items {
		width = max(width, len(shortID(it.ID)))
	}
	for _, it := range items {
		fmt.Fprintln(r.out, r.itemLine(it, width))
	}
}

func (r *renderer) itemLine(it item.Item, idWidth int) string {
	box := "[ ]"
	text := it.Text
	if it.Completed {
		box = r.ok.Render("[x]")
		text = r.done.Render(text)
	}

	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(box)
	b.WriteString(" ")
	b.WriteString(r.id.Render(fmt.Sprintf("%-*s", idWidth, shortID(it.ID))))
	b.WriteString("  ")
	b.WriteString(text)
	if it.Priority == item.PriorityHigh {
		b.WriteString(" " + r.high.Render("!"))
	}
	if s := syncLabel(it.Sync); s != "" {
		b.WriteString(" " + r.tag.Render("("+s+")"))
	}
	return b.String()
}

// Changed confirms a single mutation.
func (r *renderer) Changed(verb string, it item.Item) {
	line := fmt.Sprintf("%s %s %s", r.ok.Render(verb), r.id.Render(shortID(it.ID)), it.Text)
	if s := syncLabel(it.Sync); s != "" {
		line += " " + r.tag.Render("("+s+")")
	}
	fmt.Fprintln(r.out, line)
}

// Pending prints queued operations oldest first.
func (r *renderer) Pending(ops []item.PendingOperation) {
	if len(ops) == 0 {
		fmt.Fprintln(r.out, r.dim.Render("nothing queued"))
		return
	}
	for _, op := range ops {
		line := fmt.Sprintf("%-7s %s", op.Type, r.id.Render(shortID(op.TargetID)))
		if op.Payload.Text != "" {
			line += fmt.Sprintf(" %q", op.Payload.Text)
		}
		line += " " + r.dim.Render(op.EnqueuedAt.Local().Format("2006-01-02 15:04:05"))
		if op.Attempts > 0 {
			line += " " + r.warning.Render(fmt.Sprintf("attempts=%d", op.Attempts))
		}
		if op.LastError != "" {
			line += " " + r.err.Render(op.LastError)
		}
		fmt.Fprintln(r.out, line)
	}
}

// Synced reports a manual sync.
func (r *renderer) Synced(acked, remaining int) {
	msg := r.ok.Render(fmt.Sprintf("synced %d change(s)", acked))
	if remaining > 0 {
		msg += ", " + r.warning.Render(fmt.Sprintf("%d still queued", remaining))
	}
	fmt.Fprintln(r.out, msg)
}

// Notice prints an engine notice.
func (r *renderer) Notice(n engine.Notice) {
	style := r.dim
	switch n.Kind {
	case engine.NoticeOffline, engine.NoticeCachedData:
		style = r.warning
	case engine.NoticeError:
		style = r.err
	case engine.NoticeSynced:
		style = r.ok
	}
	fmt.Fprintln(r.out, style.Render(n.Message))
}

func syncLabel(s item.SyncState) string {
	switch {
	case s.IsNeedsSync():
		return "pending sync"
	case s.IsOptimistic():
		return string(s.Action)
	}
	return ""
}

func shortID(id string) string {
	if item.IsTemporaryID(id) {
		rest := strings.TrimPrefix(id, item.TemporaryIDPrefix)
		if len(rest) > shortIDLen {
			rest = rest[:shortIDLen]
		}
		return item.TemporaryIDPrefix + rest
	}
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

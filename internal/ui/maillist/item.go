package maillist

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ajanik/maildeck/internal/model"
	"github.com/ajanik/maildeck/internal/theme"
)

// MailItem wraps a model.MessageSummary so it can be used in a bubbles/list.
type MailItem struct {
	Summary model.MessageSummary
}

// FilterValue returns the string used for fuzzy filtering.
func (i MailItem) FilterValue() string { return i.Summary.Subject }

// Title returns the subject line for the list.
func (i MailItem) Title() string { return i.Summary.Subject }

// Description returns a short summary line for the list.
func (i MailItem) Description() string {
	return i.Summary.Sender()
}

// ItemDelegate implements list.ItemDelegate for rendering message rows.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single message row: read marker, star, sender, subject,
// AI summary when present, and relative receipt time.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	mi, ok := item.(MailItem)
	if !ok {
		return
	}

	s := mi.Summary
	isSelected := index == m.Index()

	marker := "○"
	if s.IsRead {
		marker = " "
	}

	star := " "
	if s.IsStarred {
		star = theme.StarStyle.Render("★")
	}

	sender := truncateSender(s.Sender(), 24)
	senderStr := lipgloss.NewStyle().
		Width(24).
		Foreground(theme.ColorBlue).
		Render(sender)

	subject := s.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	subjectStyle := theme.ReadStyle
	if !s.IsRead {
		subjectStyle = theme.UnreadStyle
	}

	summaryStr := ""
	if s.AISummary != "" {
		summaryStr = theme.SummaryStyle.Render("  · " + s.AISummary)
	}

	timeStr := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render("  " + relativeTime(s.ReceivedAt))

	line := fmt.Sprintf(
		"%s %s %s %s%s%s",
		marker, star, senderStr, subjectStyle.Render(subject),
		summaryStr, timeStr,
	)

	if isSelected {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// truncateSender shortens the sender to max display characters,
// cutting on rune boundaries so multibyte names stay valid UTF-8.
func truncateSender(sender string, max int) string {
	runes := []rune(sender)
	if len(runes) <= max {
		return sender
	}
	return string(runes[:max-1]) + "…"
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case d < 24*time.Hour:
		hrs := int(d.Hours())
		if hrs == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hrs)
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		weeks := int(d.Hours() / 24 / 7)
		if weeks == 1 {
			return "1w ago"
		}
		return fmt.Sprintf("%dw ago", weeks)
	}
}

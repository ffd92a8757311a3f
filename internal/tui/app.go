// Package tui provides the interactive Bubble Tea timeline browser.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/reelstats/internal/cli"
	"github.com/theirongolddev/reelstats/internal/model"
	"github.com/theirongolddev/reelstats/internal/stats"
	"github.com/theirongolddev/reelstats/internal/tui/components"
	"github.com/theirongolddev/reelstats/internal/tui/theme"
)

// Timeline pages through a user's monthly activity.
type Timeline interface {
	Timeline(ctx context.Context, in stats.TimelineInput) (model.TimelinePage, error)
}

// PageLoadedMsg is sent when a timeline page finishes loading.
type PageLoadedMsg struct {
	Cursor   string
	Page     model.TimelinePage
	LoadTime time.Duration
	Err      error
}

// Options configure an App.
type Options struct {
	UserID   string
	Language string
	PageSize int
	Timeout  time.Duration // per page load, default 30s
}

// App is the root Bubble Tea model.
type App struct {
	source Timeline
	opts   Options

	// cursors[i] loaded page i; the last entry is the page on screen.
	cursors  []string
	page     model.TimelinePage
	loaded   bool
	loading  bool
	loadTime time.Duration
	err      error

	width    int
	height   int
	showHelp bool
	spinner  spinner.Model
}

const (
	minTerminalWidth = 60
	maxContentWidth  = 140
	wideLayoutWidth  = 110
	defaultTimeout   = 30 * time.Second
)

// NewApp returns a browser starting at the most recent month.
func NewApp(source Timeline, opts Options) App {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent)

	return App{
		source:  source,
		opts:    opts,
		cursors: []string{""},
		loading: true,
		spinner: sp,
	}
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.fetch(""))
}

// fetch loads the page starting at cursor.
func (a App) fetch(cursor string) tea.Cmd {
	source, opts := a.source, a.opts
	return func() tea.Msg {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
		defer cancel()
		page, err := source.Timeline(ctx, stats.TimelineInput{
			UserID:   opts.UserID,
			Language: opts.Language,
			Cursor:   cursor,
			PageSize: opts.PageSize,
		})
		return PageLoadedMsg{Cursor: cursor, Page: page, LoadTime: time.Since(start), Err: err}
	}
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		return a, nil

	case PageLoadedMsg:
		// Drop responses for pages the user already navigated away from.
		if msg.Cursor != a.cursors[len(a.cursors)-1] {
			return a, nil
		}
		a.loading = false
		a.loadTime = msg.LoadTime
		a.err = msg.Err
		if msg.Err == nil {
			a.page = msg.Page
			a.loaded = true
		}
		return a, nil

	case spinner.TickMsg:
		if !a.loading {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		return a.handleKey(msg)
	}
	return a, nil
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "?":
		a.showHelp = !a.showHelp
		return a, nil
	case "esc":
		a.showHelp = false
		return a, nil
	}
	if a.showHelp || a.loading {
		return a, nil
	}

	switch msg.String() {
	case "n", "right", "l":
		if a.page.NextCursor == nil {
			return a, nil
		}
		next := *a.page.NextCursor
		a.cursors = append(a.cursors, next)
		return a.startLoad(next)
	case "p", "left", "h":
		if len(a.cursors) < 2 {
			return a, nil
		}
		a.cursors = a.cursors[:len(a.cursors)-1]
		return a.startLoad(a.cursors[len(a.cursors)-1])
	case "r":
		return a.startLoad(a.cursors[len(a.cursors)-1])
	}
	return a, nil
}

func (a App) startLoad(cursor string) (tea.Model, tea.Cmd) {
	a.loading = true
	a.err = nil
	return a, tea.Batch(a.spinner.Tick, a.fetch(cursor))
}

// PageNumber is the 1-based index of the page on screen.
func (a App) PageNumber() int { return len(a.cursors) }

func (a App) contentWidth() int {
	return min(a.width, maxContentWidth)
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return fmt.Sprintf("\n  Terminal too narrow (%d cols)\n\n  reelstats needs at least %d columns.\n", a.width, minTerminalWidth)
	}
	if a.showHelp {
		return a.viewHelp()
	}
	if !a.loaded && a.err == nil {
		return a.viewLoading()
	}
	return a.viewMain()
}

func (a App) viewLoading() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(2, 4)
	logoStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	subtitleStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)

	var b strings.Builder
	b.WriteString(logoStyle.Render("◈ reelstats"))
	b.WriteString(subtitleStyle.Render(" · " + a.opts.UserID))
	b.WriteString("\n\n")
	b.WriteString(a.spinner.View())
	b.WriteString(subtitleStyle.Render(" Scanning months..."))

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewHelp() string {
	t := theme.Active
	keyStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(t.TextMuted)

	keys := []struct{ key, desc string }{
		{"n / →", "older months"},
		{"p / ←", "newer months"},
		{"r", "reload page"},
		{"?", "toggle help"},
		{"q", "quit"},
	}
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(keyStyle.Render(fmt.Sprintf("%-8s", k.key)))
		b.WriteString(descStyle.Render(k.desc))
		b.WriteString("\n")
	}
	card := components.ContentCard("Keys", strings.TrimRight(b.String(), "\n"), 36, true)
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card,
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewMain() string {
	t := theme.Active
	w := a.contentWidth()

	headerStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	errStyle := lipgloss.NewStyle().Foreground(t.Red)

	var b strings.Builder
	b.WriteString(" ")
	b.WriteString(headerStyle.Render("◈ reelstats timeline"))
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  %s  page %d", a.opts.UserID, a.PageNumber())))
	if a.loading {
		b.WriteString("  ")
		b.WriteString(a.spinner.View())
	}
	b.WriteString("\n\n")

	switch {
	case a.err != nil:
		b.WriteString(errStyle.Render("  " + describeError(a.err)))
		b.WriteString("\n")
	case len(a.page.Sections) == 0:
		b.WriteString(mutedStyle.Render("  No activity in the scanned months."))
		b.WriteString("\n")
	default:
		b.WriteString(" ")
		b.WriteString(mutedStyle.Render("trend "))
		b.WriteString(components.Sparkline(chronologicalHours(a.page.Sections), t.Green))
		b.WriteString("\n\n")
		b.WriteString(renderSections(a.page.Sections, w))
	}

	hints := "[n]ext  [p]rev  [r]eload  [?]help  [q]uit"
	info := ""
	if a.page.HasMore {
		info = "more ▸"
	}
	if a.loadTime > 0 {
		info = strings.TrimSpace(fmt.Sprintf("%s  %s", info, a.loadTime.Round(time.Millisecond)))
	}

	body := b.String()
	pad := max(0, a.height-lipgloss.Height(body)-1)
	return body + strings.Repeat("\n", pad) + components.RenderStatusBar(a.width, hints, info)
}

func describeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "Timed out loading the timeline. Press r to retry."
	}
	return fmt.Sprintf("Could not load the timeline: %v", err)
}

// chronologicalHours returns section hours oldest first.
func chronologicalHours(sections []model.TimelineSection) []float64 {
	out := make([]float64, len(sections))
	for i, s := range sections {
		out[len(sections)-1-i] = s.TotalHours
	}
	return out
}

// renderSections lays the months of a page out as cards, two per row when
// the terminal is wide enough.
func renderSections(sections []model.TimelineSection, width int) string {
	peak := 0.0
	for _, s := range sections {
		peak = max(peak, s.TotalHours)
	}

	perRow := 1
	if width >= wideLayoutWidth {
		perRow = 2
	}
	widths := components.LayoutRow(width, perRow)

	var b strings.Builder
	for i := 0; i < len(sections); i += perRow {
		var cards []string
		for j := i; j < min(i+perRow, len(sections)); j++ {
			cards = append(cards, renderSection(sections[j], peak, widths[j-i], j == 0))
		}
		b.WriteString(components.CardRow(cards))
		b.WriteString("\n")
	}
	return b.String()
}

func renderSection(s model.TimelineSection, peak float64, width int, focused bool) string {
	t := theme.Active
	inner := components.CardInnerWidth(width)
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)

	barW := max(10, inner-38)
	lines := []string{
		components.HoursBar("Watched", s.TotalHours, peak, 8, barW),
		mutedStyle.Render(fmt.Sprintf("%-8s ", "Split")) + components.SplitBar(s.MovieHours, s.SeriesHours, barW) +
			mutedStyle.Render(fmt.Sprintf(" %s movies · %s series", cli.FormatHours(s.MovieHours), cli.FormatHours(s.SeriesHours))),
	}

	var row []components.Stat
	if s.TopGenre != nil {
		row = append(row, components.Stat{Label: "Top genre", Value: s.TopGenre.Name})
	}
	if s.TopReview != nil {
		row = append(row, components.Stat{Label: "Top review", Value: s.TopReview.Title + "  " + cli.FormatRating(s.TopReview.Rating)})
	}
	if len(row) > 0 {
		lines = append(lines, "", components.StatRow(row, inner))
	}

	return components.ContentCard(cli.FormatYearMonth(s.YearMonth), strings.Join(lines, "\n"), width, focused)
}

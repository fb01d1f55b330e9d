package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jscyril/spotgpt_player/api"
)

// timeLabelWidth is the space reserved for " MM:SS/MM:SS"
const timeLabelWidth = 14

// ProgressBar represents a seek bar
type ProgressBar struct {
	Width       int
	Current     api.Clock
	Total       api.Clock
	BarChar     string
	EmptyChar   string
	ShowTime    bool
	Style       lipgloss.Style
	FilledStyle lipgloss.Style
	EmptyStyle  lipgloss.Style
}

// NewProgressBar creates a new progress bar
func NewProgressBar(width int) ProgressBar {
	return ProgressBar{
		Width:       width,
		BarChar:     "█",
		EmptyChar:   "░",
		ShowTime:    true,
		Style:       lipgloss.NewStyle(),
		FilledStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		EmptyStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// SetProgress sets the displayed clocks
func (p *ProgressBar) SetProgress(current, total api.Clock) {
	p.Current = current
	p.Total = total
}

// BarWidth returns the number of cells in the bar itself
func (p ProgressBar) BarWidth() int {
	barWidth := p.Width - timeLabelWidth
	if barWidth < 10 {
		barWidth = 10
	}
	return barWidth
}

// Offset converts a column relative to the bar start into a seek-bar
// offset, reporting false when x is outside the bar
func (p ProgressBar) Offset(x int) (int, bool) {
	if x < 0 || x >= p.BarWidth() {
		return 0, false
	}
	return x, true
}

// View renders the progress bar
func (p ProgressBar) View() string {
	var sb strings.Builder

	current := p.Current.Minute*60 + p.Current.Second
	total := p.Total.Minute*60 + p.Total.Second

	var percent float64
	if total > 0 {
		percent = float64(current) / float64(total)
	}
	if percent > 1 {
		percent = 1
	}

	barWidth := p.BarWidth()
	filled := int(float64(barWidth) * percent)
	empty := barWidth - filled

	sb.WriteString(p.FilledStyle.Render(strings.Repeat(p.BarChar, filled)))
	sb.WriteString(p.EmptyStyle.Render(strings.Repeat(p.EmptyChar, empty)))

	if p.ShowTime {
		sb.WriteString(" ")
		sb.WriteString(p.Current.String())
		sb.WriteString("/")
		sb.WriteString(p.Total.String())
	}

	return p.Style.Render(sb.String())
}

package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jscyril/spotgpt_player/api"
	"github.com/jscyril/spotgpt_player/internal/ui/components"
)

// Position of the progress bar inside the rendered view: border (1) plus
// padding (2 columns, 1 row), then the title, description and album lines
// and a blank line
const (
	barColumn = 3
	barRow    = 1 + 1 + 4
)

// PlayerView displays the current playback state
type PlayerView struct {
	Width       int
	Height      int
	State       api.PlaybackState
	Volume      float64
	ProgressBar components.ProgressBar

	// Styles
	TitleStyle    lipgloss.Style
	DescStyle     lipgloss.Style
	AlbumStyle    lipgloss.Style
	StatusStyle   lipgloss.Style
	ControlsStyle lipgloss.Style
	BorderStyle   lipgloss.Style
}

// NewPlayerView creates a new player view
func NewPlayerView(width, height int) PlayerView {
	return PlayerView{
		Width:       width,
		Height:      height,
		ProgressBar: components.NewProgressBar(width - 8),
		TitleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		DescStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")),
		AlbumStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true),
		StatusStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true),
		ControlsStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		BorderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2),
	}
}

// SetWidth resizes the view and its progress bar
func (v *PlayerView) SetWidth(width int) {
	v.Width = width
	v.ProgressBar.Width = width - 8
}

// SetState updates the playback state
func (v *PlayerView) SetState(state api.PlaybackState) {
	v.State = state
	v.ProgressBar.SetProgress(state.CurrentTime, state.TotalTime)
}

// SeekTarget maps a mouse click at (x, y), relative to the view's top-left
// corner, onto the seek bar. It returns the pointer offset and bar width.
func (v PlayerView) SeekTarget(x, y int) (offset, width int, ok bool) {
	if v.State.ActiveTrack == nil || y != barRow {
		return 0, 0, false
	}
	offset, ok = v.ProgressBar.Offset(x - barColumn)
	return offset, v.ProgressBar.BarWidth(), ok
}

// View renders the player view
func (v PlayerView) View() string {
	var lines []string

	track := v.State.ActiveTrack
	if track == nil {
		lines = append(lines, v.TitleStyle.Render("♪ No track loaded"), "")
	} else {
		// Status icon
		var statusIcon string
		switch v.State.Status {
		case api.StatusPlaying:
			statusIcon = "▶"
		case api.StatusPaused:
			statusIcon = "⏸"
		default:
			statusIcon = "⏹"
		}

		lines = append(lines,
			v.StatusStyle.Render(statusIcon+" ")+v.TitleStyle.Render(track.Name),
			v.DescStyle.Render(track.Desc),
			v.AlbumStyle.Render(track.Album),
			"",
		)

		lines = append(lines, v.ProgressBar.View(), "")

		status := fmt.Sprintf("Volume: %d%%", int(v.Volume*100))
		if v.State.Looping {
			status += "  🔂 Loop"
		}
		lines = append(lines, status)
	}

	lines = append(lines, "", v.ControlsStyle.Render(
		"[Space] Play/Pause  [n] Next  [p] Prev  [l] Loop  [←/→] Seek  [+/-] Volume  [q] Quit",
	))

	return v.BorderStyle.Width(v.Width - 4).Render(strings.Join(lines, "\n"))
}

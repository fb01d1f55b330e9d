package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jscyril/spotgpt_player/api"
	"github.com/jscyril/spotgpt_player/internal/config"
	"github.com/jscyril/spotgpt_player/internal/player"
	"github.com/jscyril/spotgpt_player/internal/ui/components"
	"github.com/jscyril/spotgpt_player/internal/ui/views"
	playerrors "github.com/jscyril/spotgpt_player/pkg/errors"
)

// seekStep is how far the arrow keys move the playback position
const seekStep = 5 * time.Second

// VolumeControl is the part of the audio engine the UI adjusts directly
type VolumeControl interface {
	Volume() float64
	SetVolume(level float64) error
}

// Model is the main bubbletea model
type Model struct {
	// Dimensions
	width  int
	height int

	playerView views.PlayerView
	trackList  components.TrackList

	controller *player.Controller
	volume     VolumeControl
	keys       config.KeyMap
	events     <-chan api.AudioEvent

	ctx    context.Context
	cancel context.CancelFunc
	err    error

	errorStyle lipgloss.Style
}

// ControllerEventMsg carries one controller event into the update loop
type ControllerEventMsg api.AudioEvent

// opResultMsg reports the outcome of an asynchronous controller call
type opResultMsg struct {
	err error
}

// NewModel creates a new application model
func NewModel(ctrl *player.Controller, volume VolumeControl, keys config.KeyMap) Model {
	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		width:      80,
		height:     24,
		controller: ctrl,
		volume:     volume,
		keys:       keys,
		events:     ctrl.Events(),
		ctx:        ctx,
		cancel:     cancel,
		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
	}

	m.playerView = views.NewPlayerView(m.width, 12)
	m.trackList = components.NewTrackList(m.height-14, m.width-2)
	m.trackList.Title = "🎵 Songs"
	m.syncState()

	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return m.listenForEvents()
}

// listenForEvents waits for the next controller event
func (m Model) listenForEvents() tea.Cmd {
	return func() tea.Msg {
		select {
		case event, ok := <-m.events:
			if !ok {
				return nil
			}
			return ControllerEventMsg(event)
		case <-m.ctx.Done():
			return nil
		}
	}
}

// run executes a possibly blocking controller call off the update loop
func (m Model) run(op func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return opResultMsg{err: op(m.ctx)}
	}
}

// syncState copies controller state into the views. The song list is
// reseeded when it differs in size, since the load event may have fired
// before this model subscribed.
func (m *Model) syncState() {
	if tracks := m.controller.Tracks(); len(tracks) != len(m.trackList.Items) {
		m.trackList.SetItems(tracks)
	}
	state := m.controller.State()
	m.playerView.SetState(state)
	if m.volume != nil {
		m.playerView.Volume = m.volume.Volume()
	}
	if state.ActiveTrack != nil {
		m.trackList.ActiveID = state.ActiveTrack.ID
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playerView.SetWidth(m.width)
		m.trackList.Width = m.width - 2
		m.trackList.Height = m.height - 14

	case ControllerEventMsg:
		switch msg.Type {
		case api.EventError:
			if perr, ok := msg.Payload.(*playerrors.PlayerError); ok {
				m.err = perr
			}
		case api.EventTrackChanged:
			m.err = nil
		}
		m.syncState()
		return m, m.listenForEvents()

	case opResultMsg:
		// Failures already arrive as EventError; only no-op reasons are shown here
		if msg.err != nil && isNoop(msg.err) {
			m.err = msg.err
		}
		m.syncState()

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			if offset, width, ok := m.playerView.SeekTarget(msg.X, msg.Y); ok {
				if err := m.controller.SeekOffset(offset, width); err != nil && isNoop(err) {
					m.err = err
				}
			}
		}

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	state := m.controller.State()

	switch key {
	case m.keys.Quit, "ctrl+c":
		m.cancel()
		return m, tea.Quit

	case m.keys.PlayPause:
		if state.IsPlaying() {
			return m, m.run(func(context.Context) error { return m.controller.Pause() })
		}
		return m, m.run(m.controller.Play)

	case m.keys.Next:
		return m, m.run(m.controller.Next)

	case m.keys.Previous:
		return m, m.run(m.controller.Previous)

	case m.keys.Loop:
		m.controller.ToggleLoop()
		m.syncState()

	case m.keys.SeekForward, m.keys.SeekBack:
		step := seekStep
		if key == m.keys.SeekBack {
			step = -seekStep
		}
		if fraction, ok := stepFraction(state, step); ok {
			if err := m.controller.Seek(fraction); err != nil && isNoop(err) {
				m.err = err
			}
		}

	case m.keys.VolumeUp, m.keys.VolumeDown:
		if m.volume != nil {
			level := m.volume.Volume() + 0.1
			if key == m.keys.VolumeDown {
				level = m.volume.Volume() - 0.1
			}
			level = clamp(level, 0, 1)
			if err := m.volume.SetVolume(level); err != nil {
				m.err = err
			}
			m.playerView.Volume = m.volume.Volume()
		}

	case "enter":
		if track, ok := m.trackList.SelectedItem(); ok {
			id := track.ID
			return m, m.run(func(ctx context.Context) error {
				return m.controller.SelectTrack(ctx, id)
			})
		}

	default:
		m.trackList, _ = m.trackList.Update(msg)
	}

	return m, nil
}

// stepFraction converts a relative step into an absolute seek fraction
func stepFraction(state api.PlaybackState, step time.Duration) (float64, bool) {
	total := clockDuration(state.TotalTime)
	if total <= 0 {
		return 0, false
	}
	target := clockDuration(state.CurrentTime) + step
	return clamp(float64(target)/float64(total), 0, 1), true
}

func clockDuration(c api.Clock) time.Duration {
	return time.Duration(c.Minute)*time.Minute + time.Duration(c.Second)*time.Second
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// isNoop reports errors that mean "nothing happened" rather than a failure
func isNoop(err error) bool {
	for _, target := range []error{
		playerrors.ErrNoActiveTrack,
		playerrors.ErrEmptyTrackList,
		playerrors.ErrDurationUnknown,
		playerrors.ErrTrackNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// View renders the UI
func (m Model) View() string {
	var sb string

	sb += m.playerView.View()
	sb += "\n"
	sb += m.trackList.View()

	// Error display
	if m.err != nil {
		sb += "\n" + m.errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}

	return sb
}

// Run starts the bubbletea program
func Run(ctrl *player.Controller, volume VolumeControl, keys config.KeyMap) error {
	model := NewModel(ctrl, volume, keys)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

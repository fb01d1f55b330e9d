package player

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jscyril/spotgpt_player/api"
	playerrors "github.com/jscyril/spotgpt_player/pkg/errors"
	"github.com/jscyril/spotgpt_player/pkg/events"
)

// Controller is the single owner of playback state. It fetches the song
// list, binds the active track to the audio element and mirrors the
// element's events back into State.
//
// Operations never panic. Failures are returned, logged and published on
// the event bus as EventError with a *PlayerError payload. Conditions that
// make an operation a no-op (no active track, unknown duration) are
// returned but not published.
type Controller struct {
	source api.TrackSource
	tracks *TrackList
	bus    *events.EventBus
	log    *zap.Logger

	mu      sync.Mutex
	element api.Element
	active  *api.Track
	status  api.PlaybackStatus
	looping bool
	current api.Clock
	total   api.Clock

	// token is bumped by every intent change (select, pause) so a late
	// play resolution cannot overwrite newer state
	token uint64
	// binding identifies the live handler set; stale handlers drop events
	binding uint64
	detach  func()

	ctx    context.Context
	cancel context.CancelFunc
}

// NewController creates a controller reading songs from source
func NewController(source api.TrackSource, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		source: source,
		tracks: NewTrackList(),
		bus:    events.NewEventBus(),
		log:    log.Named("player"),
		status: api.StatusNoTrack,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Attach hands the audio element to the controller. The loop flag is
// propagated and the active track, if any, is bound.
func (c *Controller) Attach(el api.Element) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.detachLocked()
	c.element = el
	if el == nil {
		return
	}
	el.SetLoop(c.looping)
	c.bindLocked()
}

// Initialize fetches the song list once and makes the first song active
// without starting playback. On failure the list stays empty.
func (c *Controller) Initialize(ctx context.Context) error {
	tracks, err := c.source.Fetch(ctx)
	if err != nil {
		return c.fail("fetch_songs", "", err)
	}

	c.tracks.Set(tracks)
	c.log.Info("song list loaded", zap.Int("count", len(tracks)))
	c.bus.Publish(api.AudioEvent{Type: api.EventTracksLoaded, Payload: len(tracks)})

	if len(tracks) == 0 {
		return nil
	}

	c.mu.Lock()
	first := tracks[0]
	c.token++
	c.active = &first
	c.status = api.StatusPaused
	c.bindLocked()
	state := c.snapshotLocked()
	c.mu.Unlock()

	c.bus.Publish(api.AudioEvent{Type: api.EventTrackChanged, Payload: state})
	return nil
}

// Play resumes the active track from its current position
func (c *Controller) Play(ctx context.Context) error {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return playerrors.ErrNoActiveTrack
	}
	if c.element == nil {
		id := c.active.ID
		c.mu.Unlock()
		return c.fail("play", id, playerrors.ErrNoElement)
	}
	tok, el, id := c.token, c.element, c.active.ID
	c.mu.Unlock()

	return c.resolvePlay(tok, el, id, el.Play(ctx))
}

// Pause pauses the active track
func (c *Controller) Pause() error {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return playerrors.ErrNoActiveTrack
	}
	if c.element == nil {
		id := c.active.ID
		c.mu.Unlock()
		return c.fail("pause", id, playerrors.ErrNoElement)
	}

	c.token++
	c.element.Pause()
	c.status = api.StatusPaused
	state := c.snapshotLocked()
	c.mu.Unlock()

	c.bus.Publish(api.AudioEvent{Type: api.EventStateChange, Payload: state})
	return nil
}

// SelectTrack makes the track with id active, binds its file to the
// element and starts playback. Unknown ids leave state untouched.
func (c *Controller) SelectTrack(ctx context.Context, id string) error {
	track, ok := c.tracks.Find(id)
	if !ok {
		return playerrors.ErrTrackNotFound
	}

	c.mu.Lock()
	if c.element == nil {
		c.mu.Unlock()
		return c.fail("select", id, playerrors.ErrNoElement)
	}

	c.token++
	tok := c.token
	c.active = &track
	c.status = api.StatusPaused
	c.bindLocked()
	el := c.element
	state := c.snapshotLocked()
	c.mu.Unlock()

	c.log.Debug("track selected", zap.String("id", id), zap.String("file", track.File))
	c.bus.Publish(api.AudioEvent{Type: api.EventTrackChanged, Payload: state})

	return c.resolvePlay(tok, el, id, el.Play(ctx))
}

// resolvePlay applies the outcome of an element Play call started under tok
func (c *Controller) resolvePlay(tok uint64, el api.Element, id string, playErr error) error {
	c.mu.Lock()

	if tok != c.token {
		// A newer select or pause owns the state now. If our play still
		// went through, honor the newer intent.
		if playErr == nil && c.status != api.StatusPlaying && c.element == el {
			el.Pause()
		}
		c.mu.Unlock()
		c.log.Debug("discarding stale play resolution", zap.String("id", id))
		return playerrors.ErrStaleSelection
	}

	if playErr != nil {
		c.status = api.StatusPaused
		c.mu.Unlock()
		return c.fail("play", id, fmt.Errorf("%w: %w", playerrors.ErrPlaybackRejected, playErr))
	}

	c.status = api.StatusPlaying
	state := c.snapshotLocked()
	c.mu.Unlock()

	c.bus.Publish(api.AudioEvent{Type: api.EventStateChange, Payload: state})
	return nil
}

// Next selects the cyclic successor of the active track
func (c *Controller) Next(ctx context.Context) error {
	return c.step(ctx, c.tracks.NextIndex)
}

// Previous selects the cyclic predecessor of the active track
func (c *Controller) Previous(ctx context.Context) error {
	return c.step(ctx, c.tracks.PrevIndex)
}

func (c *Controller) step(ctx context.Context, move func(int) int) error {
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()

	if active == nil {
		return playerrors.ErrNoActiveTrack
	}
	if c.tracks.Len() == 0 {
		return playerrors.ErrEmptyTrackList
	}

	target, ok := c.tracks.At(move(c.tracks.IndexOf(active.ID)))
	if !ok {
		return playerrors.ErrTrackNotFound
	}
	return c.SelectTrack(ctx, target.ID)
}

// ToggleLoop flips the loop flag, mirrors it to the element and returns it
func (c *Controller) ToggleLoop() bool {
	c.mu.Lock()
	c.looping = !c.looping
	if c.element != nil {
		c.element.SetLoop(c.looping)
	}
	looping := c.looping
	state := c.snapshotLocked()
	c.mu.Unlock()

	c.bus.Publish(api.AudioEvent{Type: api.EventStateChange, Payload: state})
	return looping
}

// Seek moves playback to fraction (0.0-1.0) of the track's duration
func (c *Controller) Seek(fraction float64) error {
	if math.IsNaN(fraction) || fraction < 0 || fraction > 1 {
		return playerrors.ErrInvalidPosition
	}

	c.mu.Lock()
	el := c.element
	var id string
	if c.active != nil {
		id = c.active.ID
	}
	c.mu.Unlock()

	if el == nil {
		return c.fail("seek", id, playerrors.ErrNoElement)
	}

	d, ok := el.Duration()
	if !ok {
		return playerrors.ErrDurationUnknown
	}

	if err := el.Seek(time.Duration(fraction * float64(d))); err != nil {
		return c.fail("seek", id, err)
	}
	return nil
}

// SeekOffset seeks to the pointer position offsetX on a seek bar of width
func (c *Controller) SeekOffset(offsetX, width int) error {
	if width <= 0 {
		return playerrors.ErrInvalidPosition
	}
	return c.Seek(float64(offsetX) / float64(width))
}

// State returns a copy of the current playback state
func (c *Controller) State() api.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Tracks returns a copy of the song list
func (c *Controller) Tracks() []api.Track {
	return c.tracks.All()
}

// Events returns a channel receiving every controller event
func (c *Controller) Events() <-chan api.AudioEvent {
	return c.bus.SubscribeAll()
}

// Unsubscribe releases a channel obtained from Events
func (c *Controller) Unsubscribe(ch <-chan api.AudioEvent) {
	c.bus.Unsubscribe(ch)
}

// Close detaches element handlers and closes event channels. In-flight
// element calls are not interrupted.
func (c *Controller) Close() {
	c.cancel()

	c.mu.Lock()
	c.detachLocked()
	c.mu.Unlock()

	c.bus.Close()
}

// bindLocked binds the active track's file to the element and replaces
// the event handlers. Must be called with mu held.
func (c *Controller) bindLocked() {
	c.detachLocked()
	if c.active == nil || c.element == nil {
		return
	}

	c.element.SetSource(c.active.File)
	c.current, c.total = api.Clock{}, api.Clock{}

	ch, cancel := c.element.Subscribe()
	c.detach = cancel
	go c.watch(c.binding, ch)
}

// detachLocked drops the live handlers. Must be called with mu held.
func (c *Controller) detachLocked() {
	c.binding++
	if c.detach != nil {
		c.detach()
		c.detach = nil
	}
}

// watch dispatches element events until the subscription is cancelled
func (c *Controller) watch(binding uint64, ch <-chan api.AudioEvent) {
	for ev := range ch {
		switch ev.Type {
		case api.EventTimeUpdate:
			c.onTimeUpdate(binding)
		case api.EventEnded:
			c.onEnded(binding)
		}
	}
}

// onTimeUpdate recomputes the display clocks; skipped until the
// element knows the duration
func (c *Controller) onTimeUpdate(binding uint64) {
	c.mu.Lock()
	if binding != c.binding || c.element == nil {
		c.mu.Unlock()
		return
	}

	d, ok := c.element.Duration()
	if !ok {
		c.mu.Unlock()
		return
	}
	c.current = api.ClockFromDuration(c.element.Position())
	c.total = api.ClockFromDuration(d)
	state := c.snapshotLocked()
	c.mu.Unlock()

	c.bus.Publish(api.AudioEvent{Type: api.EventTimeUpdate, Payload: state})
}

// onEnded marks playback stopped and advances unless looping
func (c *Controller) onEnded(binding uint64) {
	c.mu.Lock()
	if binding != c.binding {
		c.mu.Unlock()
		return
	}
	c.status = api.StatusPaused
	looping := c.looping
	state := c.snapshotLocked()
	c.mu.Unlock()

	c.bus.Publish(api.AudioEvent{Type: api.EventEnded, Payload: state})

	if looping {
		return
	}
	if err := c.Next(c.ctx); err != nil {
		c.log.Debug("auto-advance did not start playback", zap.Error(err))
	}
}

// snapshotLocked copies the state. Must be called with mu held.
func (c *Controller) snapshotLocked() api.PlaybackState {
	state := api.PlaybackState{
		Status:      c.status,
		Looping:     c.looping,
		CurrentTime: c.current,
		TotalTime:   c.total,
	}
	if c.active != nil {
		track := *c.active
		state.ActiveTrack = &track
	}
	return state
}

// fail logs and publishes err, returning it wrapped with context
func (c *Controller) fail(op, trackID string, err error) error {
	perr := playerrors.NewPlayerError(op, trackID, err)
	c.log.Warn("operation failed",
		zap.String("op", op),
		zap.String("track", trackID),
		zap.Error(err),
	)
	c.bus.Publish(api.AudioEvent{Type: api.EventError, Payload: perr})
	return perr
}

package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jscyril/spotgpt_player/api"
	playerrors "github.com/jscyril/spotgpt_player/pkg/errors"
	"github.com/jscyril/spotgpt_player/pkg/events"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

// fakeSource returns a fixed song list or error
type fakeSource struct {
	tracks []api.Track
	err    error
}

func (s *fakeSource) Fetch(ctx context.Context) ([]api.Track, error) {
	return s.tracks, s.err
}

// fakeElement records what the controller asks of the audio element
type fakeElement struct {
	mu       sync.Mutex
	src      string
	sources  []string
	loop     bool
	playing  bool
	pos      time.Duration
	dur      time.Duration
	durKnown bool
	playErr  error
	gate     chan struct{} // when set, Play blocks until closed
	blocked  int
	subs     int
	seeks    []time.Duration
	bus      *events.EventBus
}

var _ api.Element = (*fakeElement)(nil)

func newFakeElement() *fakeElement {
	return &fakeElement{bus: events.NewEventBus()}
}

func (f *fakeElement) SetSource(src string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.src = src
	f.sources = append(f.sources, src)
	f.playing = false
	f.durKnown = false
	f.pos = 0
}

func (f *fakeElement) Source() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.src
}

func (f *fakeElement) Play(ctx context.Context) error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		f.mu.Lock()
		f.blocked++
		f.mu.Unlock()
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	f.playing = true
	return nil
}

func (f *fakeElement) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = false
}

func (f *fakeElement) Position() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

func (f *fakeElement) Duration() (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dur, f.durKnown
}

func (f *fakeElement) Seek(pos time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos = pos
	f.seeks = append(f.seeks, pos)
	return nil
}

func (f *fakeElement) SetLoop(loop bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loop = loop
}

func (f *fakeElement) Loop() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loop
}

func (f *fakeElement) Subscribe() (<-chan api.AudioEvent, func()) {
	ch := f.bus.Subscribe(api.EventTimeUpdate, api.EventEnded)
	f.mu.Lock()
	f.subs++
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			f.subs--
			f.mu.Unlock()
			f.bus.Unsubscribe(ch)
		})
	}
}

func (f *fakeElement) setMedia(pos, dur time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos, f.dur, f.durKnown = pos, dur, true
}

func (f *fakeElement) isPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

func (f *fakeElement) waiting() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blocked
}

func (f *fakeElement) subscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs
}

func (f *fakeElement) emit(t api.EventType) {
	f.bus.Publish(api.AudioEvent{Type: t})
}

// newLoadedController returns an initialized controller over ids
func newLoadedController(t *testing.T, ids ...string) (*Controller, *fakeElement) {
	t.Helper()
	el := newFakeElement()
	c := NewController(&fakeSource{tracks: sampleTracks(ids...)}, nil)
	c.Attach(el)
	require.NoError(t, c.Initialize(context.Background()))
	t.Cleanup(c.Close)
	return c, el
}

func activeID(c *Controller) string {
	if s := c.State(); s.ActiveTrack != nil {
		return s.ActiveTrack.ID
	}
	return ""
}

func TestInitialize_SelectsFirstWithoutPlaying(t *testing.T) {
	c, el := newLoadedController(t, "A", "B", "C")

	state := c.State()
	require.NotNil(t, state.ActiveTrack)
	assert.Equal(t, "A", state.ActiveTrack.ID)
	assert.Equal(t, api.StatusPaused, state.Status)
	assert.False(t, state.IsPlaying())
	assert.False(t, el.isPlaying())
	assert.Equal(t, "https://cdn.test/A.mp3", el.Source())
	assert.Len(t, c.Tracks(), 3)
}

func TestInitialize_EmptyList(t *testing.T) {
	c, _ := newLoadedController(t)

	state := c.State()
	assert.Nil(t, state.ActiveTrack)
	assert.Equal(t, api.StatusNoTrack, state.Status)
	assert.ErrorIs(t, c.Play(context.Background()), playerrors.ErrNoActiveTrack)
	assert.ErrorIs(t, c.Next(context.Background()), playerrors.ErrNoActiveTrack)
}

func TestInitialize_FetchFailureDegradesSilently(t *testing.T) {
	el := newFakeElement()
	c := NewController(&fakeSource{err: errors.New("connection refused")}, nil)
	defer c.Close()
	c.Attach(el)
	evs := c.Events()

	err := c.Initialize(context.Background())
	require.Error(t, err)

	var perr *playerrors.PlayerError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "fetch_songs", perr.Op)

	assert.Empty(t, c.Tracks())
	assert.Nil(t, c.State().ActiveTrack)

	// Every operation is a no-op on an empty list
	ctx := context.Background()
	assert.ErrorIs(t, c.Play(ctx), playerrors.ErrNoActiveTrack)
	assert.ErrorIs(t, c.Pause(), playerrors.ErrNoActiveTrack)
	assert.ErrorIs(t, c.Previous(ctx), playerrors.ErrNoActiveTrack)
	assert.ErrorIs(t, c.SelectTrack(ctx, "A"), playerrors.ErrTrackNotFound)
	assert.ErrorIs(t, c.Seek(0.5), playerrors.ErrDurationUnknown)

	select {
	case ev := <-evs:
		assert.Equal(t, api.EventError, ev.Type)
		assert.IsType(t, &playerrors.PlayerError{}, ev.Payload)
	case <-time.After(waitFor):
		t.Fatal("fetch failure was not published")
	}
}

func TestPlayPause(t *testing.T) {
	c, el := newLoadedController(t, "A", "B")
	ctx := context.Background()

	require.NoError(t, c.Play(ctx))
	assert.True(t, c.State().IsPlaying())
	assert.True(t, el.isPlaying())

	require.NoError(t, c.Pause())
	assert.False(t, c.State().IsPlaying())
	assert.False(t, el.isPlaying())
}

func TestPlay_RejectionRollsBack(t *testing.T) {
	c, el := newLoadedController(t, "A", "B")
	el.playErr = errors.New("autoplay blocked")

	err := c.Play(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, playerrors.ErrPlaybackRejected)
	assert.Equal(t, api.StatusPaused, c.State().Status)

	err = c.SelectTrack(context.Background(), "B")
	require.Error(t, err)
	assert.ErrorIs(t, err, playerrors.ErrPlaybackRejected)

	// The source stays bound even though playback was refused
	state := c.State()
	assert.Equal(t, "B", state.ActiveTrack.ID)
	assert.False(t, state.IsPlaying())
	assert.Equal(t, "https://cdn.test/B.mp3", el.Source())
}

func TestSelectTrack(t *testing.T) {
	c, el := newLoadedController(t, "A", "B", "C")

	require.NoError(t, c.SelectTrack(context.Background(), "C"))

	state := c.State()
	assert.Equal(t, "C", state.ActiveTrack.ID)
	assert.True(t, state.IsPlaying())
	assert.Equal(t, "https://cdn.test/C.mp3", el.Source())
}

func TestSelectTrack_UnknownIDLeavesStateUnchanged(t *testing.T) {
	c, el := newLoadedController(t, "A", "B")
	require.NoError(t, c.Play(context.Background()))
	before := c.State()
	sources := len(el.sources)

	err := c.SelectTrack(context.Background(), "missing")
	assert.ErrorIs(t, err, playerrors.ErrTrackNotFound)

	after := c.State()
	assert.Equal(t, before.ActiveTrack.ID, after.ActiveTrack.ID)
	assert.Equal(t, before.Status, after.Status)
	assert.Len(t, el.sources, sources)
}

func TestSelectTrack_NoElementIsNoop(t *testing.T) {
	c := NewController(&fakeSource{tracks: sampleTracks("A", "B")}, nil)
	defer c.Close()
	require.NoError(t, c.Initialize(context.Background()))

	err := c.SelectTrack(context.Background(), "B")
	assert.ErrorIs(t, err, playerrors.ErrNoElement)
	assert.Equal(t, "A", activeID(c))

	assert.ErrorIs(t, c.Play(context.Background()), playerrors.ErrNoElement)
	assert.ErrorIs(t, c.Pause(), playerrors.ErrNoElement)
	assert.ErrorIs(t, c.Seek(0.5), playerrors.ErrNoElement)
}

func TestAttach_BindsActiveTrackAndLoop(t *testing.T) {
	c := NewController(&fakeSource{tracks: sampleTracks("A", "B")}, nil)
	defer c.Close()
	require.NoError(t, c.Initialize(context.Background()))
	c.ToggleLoop()

	el := newFakeElement()
	c.Attach(el)

	assert.Equal(t, "https://cdn.test/A.mp3", el.Source())
	assert.True(t, el.Loop())
	assert.Equal(t, 1, el.subscriptions())
}

func TestNextPrevious_WrapAround(t *testing.T) {
	c, _ := newLoadedController(t, "A", "B", "C")
	ctx := context.Background()

	require.NoError(t, c.Previous(ctx))
	assert.Equal(t, "C", activeID(c), "previous from first wraps to last")

	require.NoError(t, c.Next(ctx))
	assert.Equal(t, "A", activeID(c), "next from last wraps to first")
}

func TestNextPrevious_CyclicClosure(t *testing.T) {
	ids := []string{"A", "B", "C", "D", "E"}
	ctx := context.Background()

	for _, start := range ids {
		c, _ := newLoadedController(t, ids...)
		require.NoError(t, c.SelectTrack(ctx, start))

		for i := 0; i < len(ids); i++ {
			require.NoError(t, c.Next(ctx))
		}
		assert.Equal(t, start, activeID(c), "next x len from %s", start)

		for i := 0; i < len(ids); i++ {
			require.NoError(t, c.Previous(ctx))
		}
		assert.Equal(t, start, activeID(c), "previous x len from %s", start)
	}
}

func TestToggleLoop(t *testing.T) {
	c, el := newLoadedController(t, "A")

	assert.True(t, c.ToggleLoop())
	assert.True(t, c.State().Looping)
	assert.True(t, el.Loop())

	assert.False(t, c.ToggleLoop())
	assert.False(t, c.State().Looping)
	assert.False(t, el.Loop())
}

func TestToggleLoop_DoesNotRebind(t *testing.T) {
	c, el := newLoadedController(t, "A")
	sources := len(el.sources)

	c.ToggleLoop()
	c.ToggleLoop()

	assert.Len(t, el.sources, sources)
}

func TestSeek(t *testing.T) {
	c, el := newLoadedController(t, "A")

	assert.ErrorIs(t, c.Seek(0.5), playerrors.ErrDurationUnknown)
	assert.Empty(t, el.seeks, "seek before duration is known is a no-op")

	el.setMedia(0, 200*time.Second)
	require.NoError(t, c.Seek(0.5))
	assert.Equal(t, 100*time.Second, el.Position())

	require.NoError(t, c.SeekOffset(30, 120))
	assert.Equal(t, 50*time.Second, el.Position())

	assert.ErrorIs(t, c.Seek(1.5), playerrors.ErrInvalidPosition)
	assert.ErrorIs(t, c.Seek(-0.1), playerrors.ErrInvalidPosition)
	assert.ErrorIs(t, c.SeekOffset(10, 0), playerrors.ErrInvalidPosition)
}

func TestTimeUpdate(t *testing.T) {
	c, el := newLoadedController(t, "A")

	el.setMedia(75*time.Second+400*time.Millisecond, 3*time.Minute+59*time.Second)
	el.emit(api.EventTimeUpdate)

	require.Eventually(t, func() bool {
		return c.State().TotalTime == api.Clock{Minute: 3, Second: 59}
	}, waitFor, tick)
	assert.Equal(t, api.Clock{Minute: 1, Second: 15}, c.State().CurrentTime)
}

func TestTimeUpdate_UnknownDurationIsIgnored(t *testing.T) {
	c, el := newLoadedController(t, "A")

	el.mu.Lock()
	el.pos = 90 * time.Second
	el.mu.Unlock()

	c.mu.Lock()
	binding := c.binding
	c.mu.Unlock()
	c.onTimeUpdate(binding)

	state := c.State()
	assert.Equal(t, api.Clock{}, state.CurrentTime)
	assert.Equal(t, api.Clock{}, state.TotalTime)
}

func TestEnded_AdvancesWhenNotLooping(t *testing.T) {
	c, el := newLoadedController(t, "A", "B", "C")
	require.NoError(t, c.SelectTrack(context.Background(), "C"))

	gate := make(chan struct{})
	el.mu.Lock()
	el.gate = gate
	el.mu.Unlock()

	el.emit(api.EventEnded)

	// Next track is bound but not playing until its play attempt resolves
	require.Eventually(t, func() bool { return activeID(c) == "A" }, waitFor, tick)
	assert.False(t, c.State().IsPlaying())

	close(gate)
	require.Eventually(t, func() bool { return c.State().IsPlaying() }, waitFor, tick)
	assert.Equal(t, "https://cdn.test/A.mp3", el.Source())
}

func TestEnded_NoAdvanceWhenLooping(t *testing.T) {
	c, el := newLoadedController(t, "A", "B")
	require.NoError(t, c.Play(context.Background()))
	c.ToggleLoop()
	evs := c.Events()

	el.emit(api.EventEnded)

	require.Eventually(t, func() bool {
		select {
		case ev := <-evs:
			return ev.Type == api.EventEnded
		default:
			return false
		}
	}, waitFor, tick)

	state := c.State()
	assert.Equal(t, "A", state.ActiveTrack.ID)
	assert.False(t, state.IsPlaying())
}

func TestHandlersAreReplacedNotStacked(t *testing.T) {
	c, el := newLoadedController(t, "A", "B", "C")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Next(ctx))
	}
	assert.Equal(t, 1, el.subscriptions())

	// A single ended event advances exactly one track
	require.NoError(t, c.SelectTrack(ctx, "A"))
	el.emit(api.EventEnded)
	require.Eventually(t, func() bool { return activeID(c) == "B" }, waitFor, tick)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, "B", activeID(c))

	c.Close()
	assert.Equal(t, 0, el.subscriptions())
}

func TestSelectTrack_StaleResolutionIsDiscarded(t *testing.T) {
	c, el := newLoadedController(t, "A", "B", "C")

	gate := make(chan struct{})
	el.mu.Lock()
	el.gate = gate
	el.mu.Unlock()

	staleErr := make(chan error, 1)
	go func() { staleErr <- c.SelectTrack(context.Background(), "B") }()
	require.Eventually(t, func() bool { return el.waiting() == 1 }, waitFor, tick)
	assert.Equal(t, "B", activeID(c))

	el.mu.Lock()
	el.gate = nil
	el.mu.Unlock()
	require.NoError(t, c.SelectTrack(context.Background(), "C"))

	close(gate)
	select {
	case err := <-staleErr:
		assert.ErrorIs(t, err, playerrors.ErrStaleSelection)
	case <-time.After(waitFor):
		t.Fatal("stale selection never resolved")
	}

	state := c.State()
	assert.Equal(t, "C", state.ActiveTrack.ID)
	assert.True(t, state.IsPlaying())
}

func TestPause_WinsOverInFlightPlay(t *testing.T) {
	c, el := newLoadedController(t, "A")

	gate := make(chan struct{})
	el.mu.Lock()
	el.gate = gate
	el.mu.Unlock()

	playErr := make(chan error, 1)
	go func() { playErr <- c.Play(context.Background()) }()

	// Let the play call reach the element before pausing
	require.Eventually(t, func() bool { return el.waiting() == 1 }, waitFor, tick)
	require.NoError(t, c.Pause())
	close(gate)

	assert.ErrorIs(t, <-playErr, playerrors.ErrStaleSelection)
	assert.False(t, c.State().IsPlaying())
	assert.False(t, el.isPlaying())
}

package audio

import (
	"context"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/speaker"
	"go.uber.org/zap"

	"github.com/jscyril/spotgpt_player/api"
	playerrors "github.com/jscyril/spotgpt_player/pkg/errors"
	"github.com/jscyril/spotgpt_player/pkg/events"
)

// Ensure AudioEngine implements Element interface at compile time
var _ api.Element = (*AudioEngine)(nil)

const (
	outputRate   = beep.SampleRate(44100)
	tickInterval = 250 * time.Millisecond
)

// AudioEngine is the beep-backed audio element. Loading happens lazily in
// Play; until then Duration reports unknown.
type AudioEngine struct {
	mu          sync.Mutex
	src         string
	gen         uint64 // bumped by every SetSource
	streamer    beep.StreamSeekCloser
	ctrl        *beep.Ctrl
	volume      *effects.Volume
	output      beep.Streamer
	format      beep.Format
	level       float64
	loop        bool
	playing     bool
	finished    bool
	speakerInit bool
	loading     chan struct{} // closed when the in-flight load settles

	loader *Loader
	bus    *events.EventBus
	ended  chan uint64
	log    *zap.Logger
}

// NewAudioEngine creates a new audio engine instance
func NewAudioEngine(loader *Loader, log *zap.Logger) *AudioEngine {
	if loader == nil {
		loader = NewLoader(0)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AudioEngine{
		level:  0.5,
		loader: loader,
		bus:    events.NewEventBus(),
		ended:  make(chan uint64, 4),
		log:    log,
	}
}

// Start begins the engine goroutine that emits time updates and handles
// end of stream
func (e *AudioEngine) Start(ctx context.Context) {
	go e.run(ctx)
}

// run is the main event loop
func (e *AudioEngine) run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.cleanup()
			return

		case gen := <-e.ended:
			e.handleEnded(gen)

		case <-ticker.C:
			e.mu.Lock()
			playing := e.playing && e.streamer != nil
			e.mu.Unlock()
			if playing {
				e.bus.Publish(api.AudioEvent{Type: api.EventTimeUpdate, Payload: e.Position()})
			}
		}
	}
}

// handleEnded rewinds when looping, otherwise reports the end of the track
func (e *AudioEngine) handleEnded(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || e.streamer == nil {
		e.mu.Unlock()
		return
	}

	if e.loop {
		speaker.Lock()
		err := e.streamer.Seek(0)
		speaker.Unlock()
		if err == nil {
			speaker.Play(e.sequence(gen))
			e.mu.Unlock()
			return
		}
		e.log.Warn("rewind for loop failed", zap.String("src", e.src), zap.Error(err))
	}

	e.playing = false
	e.finished = true
	src := e.src
	e.mu.Unlock()

	e.log.Debug("track ended", zap.String("src", src))
	e.bus.Publish(api.AudioEvent{Type: api.EventEnded, Payload: src})
}

// sequence wraps the output so the end of stream is reported for gen
func (e *AudioEngine) sequence(gen uint64) beep.Streamer {
	return beep.Seq(e.output, beep.Callback(func() {
		// Runs under the speaker lock, so only hand off
		select {
		case e.ended <- gen:
		default:
		}
	}))
}

// SetSource binds a new locator, dropping whatever was loaded
func (e *AudioEngine) SetSource(src string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gen++
	e.src = src
	e.stopLocked()
}

// Source returns the bound locator
func (e *AudioEngine) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

// Play starts output from the current position, loading the source first
// if needed. It blocks while loading and fails with ErrSourceChanged if a
// new source was bound meanwhile. Concurrent calls share a single load.
func (e *AudioEngine) Play(ctx context.Context) error {
	e.mu.Lock()
	for e.loading != nil {
		wait := e.loading
		e.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
		e.mu.Lock()
	}

	if e.src == "" {
		e.mu.Unlock()
		return playerrors.ErrNoSource
	}

	if e.streamer != nil {
		defer e.mu.Unlock()
		return e.resumeLocked()
	}

	src, gen := e.src, e.gen
	done := make(chan struct{})
	e.loading = done
	e.mu.Unlock()

	streamer, format, err := e.loader.Load(ctx, src)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.loading = nil
	close(done)

	if err != nil {
		return playerrors.NewPlayerError("load", src, err)
	}

	if gen != e.gen {
		streamer.Close()
		return playerrors.ErrSourceChanged
	}

	if err := e.initSpeakerLocked(); err != nil {
		streamer.Close()
		return playerrors.NewPlayerError("speaker_init", src, err)
	}

	e.streamer = streamer
	e.format = format
	e.ctrl = &beep.Ctrl{Streamer: beep.Resample(4, format.SampleRate, outputRate, streamer), Paused: false}
	e.volume = &effects.Volume{
		Streamer: e.ctrl,
		Base:     2,
		Volume:   e.level*2 - 1,
		Silent:   e.level == 0,
	}
	e.output = e.volume
	e.finished = false
	e.playing = true

	speaker.Play(e.sequence(gen))
	e.log.Debug("playback started", zap.String("src", src), zap.Duration("duration", format.SampleRate.D(streamer.Len())))
	return nil
}

// resumeLocked continues a paused stream or restarts a finished one
func (e *AudioEngine) resumeLocked() error {
	if e.finished {
		speaker.Lock()
		err := e.streamer.Seek(0)
		e.ctrl.Paused = false
		speaker.Unlock()
		if err != nil {
			return playerrors.NewPlayerError("rewind", e.src, err)
		}
		e.finished = false
		speaker.Play(e.sequence(e.gen))
	} else {
		speaker.Lock()
		e.ctrl.Paused = false
		speaker.Unlock()
	}
	e.playing = true
	return nil
}

// initSpeakerLocked initializes the output device once
func (e *AudioEngine) initSpeakerLocked() error {
	if e.speakerInit {
		return nil
	}
	if err := speaker.Init(outputRate, outputRate.N(time.Second/10)); err != nil {
		return err
	}
	e.speakerInit = true
	return nil
}

// Pause pauses output, keeping the position
func (e *AudioEngine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctrl != nil {
		speaker.Lock()
		e.ctrl.Paused = true
		speaker.Unlock()
	}
	e.playing = false
}

// Position returns the playback position of the loaded stream
func (e *AudioEngine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := e.streamer.Position()
	speaker.Unlock()
	return e.format.SampleRate.D(pos)
}

// Duration returns the media length, or false before the source is loaded
func (e *AudioEngine) Duration() (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.streamer == nil {
		return 0, false
	}
	return e.format.SampleRate.D(e.streamer.Len()), true
}

// Seek moves the playback position, clamped to the media bounds
func (e *AudioEngine) Seek(pos time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.streamer == nil {
		return playerrors.ErrElementNotLoaded
	}

	n := e.format.SampleRate.N(pos)
	if n < 0 {
		n = 0
	}
	if last := e.streamer.Len() - 1; n > last && last >= 0 {
		n = last
	}

	speaker.Lock()
	err := e.streamer.Seek(n)
	speaker.Unlock()
	if err != nil {
		return playerrors.NewPlayerError("seek", e.src, err)
	}
	return nil
}

// SetLoop sets whether the stream rewinds at its end
func (e *AudioEngine) SetLoop(loop bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loop = loop
}

// Loop reports the loop flag
func (e *AudioEngine) Loop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loop
}

// SetVolume sets the volume level (0.0 to 1.0)
func (e *AudioEngine) SetVolume(level float64) error {
	if level < 0 || level > 1 {
		return playerrors.ErrInvalidVolume
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.level = level
	if e.volume != nil {
		speaker.Lock()
		// Convert 0-1 range to -1..1 on a base-2 scale
		e.volume.Volume = level*2 - 1
		e.volume.Silent = level == 0
		speaker.Unlock()
	}
	return nil
}

// Volume returns the volume level
func (e *AudioEngine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.level
}

// Subscribe returns time-update and ended notifications; the returned
// func detaches the subscription and closes the channel
func (e *AudioEngine) Subscribe() (<-chan api.AudioEvent, func()) {
	ch := e.bus.Subscribe(api.EventTimeUpdate, api.EventEnded)
	var once sync.Once
	return ch, func() {
		once.Do(func() { e.bus.Unsubscribe(ch) })
	}
}

// stopLocked stops output and releases the loaded stream
func (e *AudioEngine) stopLocked() {
	if e.streamer != nil {
		speaker.Clear()
		e.streamer.Close()
	}
	e.streamer = nil
	e.ctrl = nil
	e.volume = nil
	e.output = nil
	e.playing = false
	e.finished = false
}

// cleanup releases resources
func (e *AudioEngine) cleanup() {
	e.mu.Lock()
	e.stopLocked()
	e.mu.Unlock()
	e.bus.Close()
}

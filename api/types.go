package api

import (
	"context"
	"fmt"
	"time"
)

// Track is one playable song as served by the song-list endpoint
type Track struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Desc     string `json:"desc"`
	Album    string `json:"album"`
	Image    string `json:"image"`
	File     string `json:"file"`
	Duration string `json:"duration"`
}

// Clock is a minute/second display value
type Clock struct {
	Minute int `json:"minute"`
	Second int `json:"second"`
}

// ClockFromDuration splits d into whole minutes and the remaining whole seconds
func ClockFromDuration(d time.Duration) Clock {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return Clock{Minute: int(secs / 60), Second: int(secs % 60)}
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Minute, c.Second)
}

// PlaybackStatus is the controller's playback state machine
type PlaybackStatus int

const (
	StatusNoTrack PlaybackStatus = iota
	StatusPaused
	StatusPlaying
)

func (s PlaybackStatus) String() string {
	switch s {
	case StatusNoTrack:
		return "no-track"
	case StatusPaused:
		return "paused"
	case StatusPlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// PlaybackState is a snapshot of what the controller exposes to consumers
type PlaybackState struct {
	ActiveTrack *Track
	Status      PlaybackStatus
	Looping     bool
	CurrentTime Clock
	TotalTime   Clock
}

// IsPlaying reports whether a track is bound and output is running
func (s PlaybackState) IsPlaying() bool {
	return s.ActiveTrack != nil && s.Status == StatusPlaying
}

// EventType identifies an AudioEvent
type EventType int

const (
	EventTracksLoaded EventType = iota
	EventTrackChanged
	EventStateChange
	EventTimeUpdate
	EventEnded
	EventError
)

// AllEventTypes lists every event type in declaration order
func AllEventTypes() []EventType {
	return []EventType{
		EventTracksLoaded,
		EventTrackChanged,
		EventStateChange,
		EventTimeUpdate,
		EventEnded,
		EventError,
	}
}

// AudioEvent is published by the element and the controller
type AudioEvent struct {
	Type    EventType
	Payload interface{}
}

// Element is the audio output primitive the controller drives.
// Duration reports false until the media length is known.
type Element interface {
	SetSource(src string)
	Source() string
	Play(ctx context.Context) error
	Pause()
	Position() time.Duration
	Duration() (time.Duration, bool)
	Seek(pos time.Duration) error
	SetLoop(loop bool)
	Loop() bool
	Subscribe() (<-chan AudioEvent, func())
}

// TrackSource produces the ordered song list the controller cycles through
type TrackSource interface {
	Fetch(ctx context.Context) ([]Track, error)
}

package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions
var (
	ErrTrackNotFound    = errors.New("track not found")
	ErrNoActiveTrack    = errors.New("no active track")
	ErrEmptyTrackList   = errors.New("track list is empty")
	ErrNoElement        = errors.New("audio element not attached")
	ErrDurationUnknown  = errors.New("duration not yet known")
	ErrInvalidPosition  = errors.New("seek position must be between 0.0 and 1.0")
	ErrPlaybackRejected = errors.New("playback rejected")
	ErrStaleSelection   = errors.New("selection superseded by a newer one")
	ErrSourceChanged    = errors.New("source changed while loading")
	ErrInvalidFormat    = errors.New("unsupported audio format")
	ErrNoSource         = errors.New("no source bound")
	ErrFetchFailed      = errors.New("song list fetch failed")
	ErrElementNotLoaded = errors.New("no media loaded")
	ErrInvalidVolume    = errors.New("volume must be between 0.0 and 1.0")
	ErrSourceTooLarge   = errors.New("remote source too large")
)

// PlayerError wraps errors with additional context
type PlayerError struct {
	Op    string // Operation that failed
	Track string // Track ID if applicable
	Err   error  // Underlying error
}

func (e *PlayerError) Error() string {
	if e.Track != "" {
		return fmt.Sprintf("%s failed for track %s: %v", e.Op, e.Track, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PlayerError) Unwrap() error {
	return e.Err
}

// NewPlayerError creates a new PlayerError
func NewPlayerError(op, track string, err error) *PlayerError {
	return &PlayerError{Op: op, Track: track, Err: err}
}

// FetchError describes a failed song-list request
type FetchError struct {
	URL    string
	Status int // HTTP status, zero when no response arrived
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrFetchFailed, e.Err}
}

// ScanError represents an error during directory scanning
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan error at %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

package player

import (
	"sync"

	"github.com/samber/lo"

	"github.com/jscyril/spotgpt_player/api"
)

// TrackList is the ordered song list in server response order. It is
// replaced wholesale on load and never edited in place.
type TrackList struct {
	tracks []api.Track
	mu     sync.RWMutex
}

// NewTrackList creates a new empty list
func NewTrackList() *TrackList {
	return &TrackList{tracks: make([]api.Track, 0)}
}

// Set replaces the list contents
func (l *TrackList) Set(tracks []api.Track) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.tracks = make([]api.Track, len(tracks))
	copy(l.tracks, tracks)
}

// Len returns the number of tracks
func (l *TrackList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tracks)
}

// At returns the track at index i
func (l *TrackList) At(i int) (api.Track, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if i < 0 || i >= len(l.tracks) {
		return api.Track{}, false
	}
	return l.tracks[i], true
}

// IndexOf returns the position of the track with id, or -1
func (l *TrackList) IndexOf(id string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, index, _ := lo.FindIndexOf(l.tracks, func(t api.Track) bool {
		return t.ID == id
	})
	return index
}

// Find returns the track with id
func (l *TrackList) Find(id string) (api.Track, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return lo.Find(l.tracks, func(t api.Track) bool {
		return t.ID == id
	})
}

// NextIndex returns the cyclic successor of i
func (l *TrackList) NextIndex(i int) int {
	n := l.Len()
	if n == 0 {
		return -1
	}
	return (i + 1) % n
}

// PrevIndex returns the cyclic predecessor of i
func (l *TrackList) PrevIndex(i int) int {
	n := l.Len()
	if n == 0 {
		return -1
	}
	return (i - 1 + n) % n
}

// All returns a copy of all tracks
func (l *TrackList) All() []api.Track {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]api.Track, len(l.tracks))
	copy(result, l.tracks)
	return result
}

package catalog

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/jscyril/spotgpt_player/api"
	"github.com/jscyril/spotgpt_player/internal/audio"
	playerrors "github.com/jscyril/spotgpt_player/pkg/errors"
)

var _ api.TrackSource = (*DirSource)(nil)

// DirSource builds the song list from local music directories using a
// worker pool. Unreadable files are logged and skipped.
type DirSource struct {
	paths      []string
	workers    int
	metaReader *MetadataReader
	log        *zap.Logger
}

// NewDirSource creates a source over the given directories
func NewDirSource(paths []string, workers int, log *zap.Logger) *DirSource {
	if workers <= 0 {
		workers = 4 // Default worker count
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DirSource{
		paths:      paths,
		workers:    workers,
		metaReader: NewMetadataReader(),
		log:        log,
	}
}

// Fetch scans every directory and returns tracks ordered by path
func (s *DirSource) Fetch(ctx context.Context) ([]api.Track, error) {
	tracks, errs := s.scan(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range errs {
			s.log.Warn("skipping file", zap.Error(err))
		}
	}()

	var result []api.Track
	for track := range tracks {
		result = append(result, *track)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].File < result[j].File
	})
	return result, nil
}

// scan walks directories concurrently and returns channels for results and errors
func (s *DirSource) scan(ctx context.Context) (<-chan *api.Track, <-chan error) {
	tracks := make(chan *api.Track, 100)
	errors := make(chan error, 10)
	files := make(chan string, 100)

	var wg, discovery sync.WaitGroup

	// File discovery
	discovery.Add(1)
	go func() {
		defer discovery.Done()
		defer close(files)
		for _, path := range s.paths {
			if ctx.Err() != nil {
				return
			}

			err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					errors <- &playerrors.ScanError{Path: p, Err: err}
					return nil
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}

				if !d.IsDir() && audio.IsSupported(p) {
					select {
					case files <- p:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
				return nil
			})

			if err != nil && err != context.Canceled {
				errors <- &playerrors.ScanError{Path: path, Err: err}
			}
		}
	}()

	// Worker pool
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for filePath := range files {
				track, err := s.metaReader.Read(filePath)
				if err != nil {
					errors <- &playerrors.ScanError{Path: filePath, Err: err}
					continue
				}

				select {
				case tracks <- track:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Close channels when done
	go func() {
		wg.Wait()
		close(tracks)
		discovery.Wait()
		close(errors)
	}()

	return tracks, errors
}

package catalog

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/jscyril/spotgpt_player/api"
)

// MetadataReader extracts metadata from audio files
type MetadataReader struct{}

// NewMetadataReader creates a new metadata reader
func NewMetadataReader() *MetadataReader {
	return &MetadataReader{}
}

// Read builds a Track for a local audio file, falling back to the file
// name when the file carries no tags
func (r *MetadataReader) Read(filePath string) (*api.Track, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	track := &api.Track{
		ID:   generateTrackID(filePath),
		Name: strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath)),
		File: filePath,
	}

	metadata, err := tag.ReadFrom(file)
	if err != nil {
		return track, nil
	}

	track.Name = getOrDefault(metadata.Title(), track.Name)
	track.Album = getOrDefault(metadata.Album(), "Unknown Album")
	track.Desc = getOrDefault(metadata.Artist(), "Unknown Artist")

	return track, nil
}

// generateTrackID creates a stable ID for a track based on its file path
func generateTrackID(filePath string) string {
	hash := md5.Sum([]byte(filePath))
	return fmt.Sprintf("track-%x", hash[:8])
}

func getOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/faiface/beep"

	playerrors "github.com/jscyril/spotgpt_player/pkg/errors"
)

// maxRemoteSize caps how much of a remote file is buffered in memory
const maxRemoteSize = 200 << 20

// Loader resolves a source locator into a decoded, seekable stream
type Loader struct {
	client  *http.Client
	maxSize int64
}

// NewLoader creates a loader; timeout bounds each remote download
func NewLoader(timeout time.Duration) *Loader {
	return &Loader{client: &http.Client{Timeout: timeout}, maxSize: maxRemoteSize}
}

// Load opens src (http(s) URL, file:// URL or local path) and decodes it
func (l *Loader) Load(ctx context.Context, src string) (beep.StreamSeekCloser, beep.Format, error) {
	u, err := url.Parse(src)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return l.loadRemote(ctx, src, u)
	}

	filePath := src
	if err == nil && u.Scheme == "file" {
		filePath = u.Path
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("open: %w", err)
	}

	streamer, format, err := DecodeAudio(file, filePath)
	if err != nil {
		file.Close()
		return nil, beep.Format{}, fmt.Errorf("decode: %w", err)
	}
	return streamer, format, nil
}

// loadRemote buffers the whole body so the decoder can seek
func (l *Loader) loadRemote(ctx context.Context, src string, u *url.URL) (beep.StreamSeekCloser, beep.Format, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, beep.Format{}, fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxSize+1))
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > l.maxSize {
		return nil, beep.Format{}, fmt.Errorf("%w: body exceeds %d bytes", playerrors.ErrSourceTooLarge, l.maxSize)
	}

	name := path.Base(u.Path)
	if !IsSupported(name) {
		if ext := ExtensionForContentType(resp.Header.Get("Content-Type")); ext != "" {
			name = strings.TrimSuffix(name, path.Ext(name)) + ext
		}
	}

	streamer, format, err := DecodeAudio(nopCloser{bytes.NewReader(data)}, name)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode: %w", err)
	}
	return streamer, format, nil
}

type nopCloser struct {
	io.ReadSeeker
}

func (nopCloser) Close() error { return nil }

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jscyril/spotgpt_player/api"
	playerrors "github.com/jscyril/spotgpt_player/pkg/errors"
)

var _ api.TrackSource = (*HTTPSource)(nil)

// songListResponse is the body returned by GET /api/song/list
type songListResponse struct {
	Success *bool       `json:"success,omitempty"`
	Message string      `json:"message,omitempty"`
	Songs   []api.Track `json:"songs"`
}

// HTTPSource fetches the song list from the remote API
type HTTPSource struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSource creates a source for the given endpoint. A zero timeout
// leaves the request bounded only by ctx.
func NewHTTPSource(endpoint string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Endpoint returns the URL the source reads from
func (s *HTTPSource) Endpoint() string {
	return s.endpoint
}

// Fetch issues one GET and decodes the songs array. No retries.
func (s *HTTPSource) Fetch(ctx context.Context) ([]api.Track, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, &playerrors.FetchError{URL: s.endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &playerrors.FetchError{URL: s.endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little of the body so the connection can be reused
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return nil, &playerrors.FetchError{
			URL:    s.endpoint,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	var body songListResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &playerrors.FetchError{URL: s.endpoint, Status: resp.StatusCode, Err: fmt.Errorf("decode body: %w", err)}
	}

	if body.Success != nil && !*body.Success {
		return nil, &playerrors.FetchError{URL: s.endpoint, Status: resp.StatusCode, Err: fmt.Errorf("server reported failure: %s", body.Message)}
	}

	if body.Songs == nil {
		return []api.Track{}, nil
	}
	return body.Songs, nil
}

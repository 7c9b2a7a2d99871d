package scanner

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// FrameSource is an exclusively owned camera handle. Grab returns the current
// still frame; Close releases the device and must be safe to call on every
// exit path, any number of times.
type FrameSource interface {
	Grab(ctx context.Context) ([]byte, error)
	Close() error
}

// SourceFactory acquires a fresh frame source. A scan session calls it on
// start and again on continue after a match released the previous handle.
// Acquisition failure is the one error that keeps a session in Idle.
type SourceFactory func(ctx context.Context) (FrameSource, error)

// HTTPFrameSource pulls JPEG stills from a network camera snapshot URL
type HTTPFrameSource struct {
	url    string
	client *http.Client

	mu     sync.Mutex
	closed bool
}

// OpenHTTPFrameSource acquires a snapshot camera. It probes the URL once so
// a dead or busy device surfaces immediately instead of on the first tick.
func OpenHTTPFrameSource(ctx context.Context, snapshotURL string) (*HTTPFrameSource, error) {
	s := &HTTPFrameSource{
		url: snapshotURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	if _, err := s.Grab(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("camera unavailable: %v", err)
	}

	return s, nil
}

// Grab fetches the current frame
func (s *HTTPFrameSource) Grab(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("frame source is closed")
	}
	s.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot endpoint returned %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// Close releases the camera connection. Idempotent.
func (s *HTTPFrameSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.client.CloseIdleConnections()
	return nil
}

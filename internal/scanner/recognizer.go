package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Recognizer turns an image frame into best-effort text. An empty string is a
// normal "nothing found" result, not an error; errors are reserved for the
// call itself failing.
type Recognizer interface {
	Recognize(ctx context.Context, frame []byte) (string, error)
}

// RecognizerConfig is passed through to the OCR engine
type RecognizerConfig struct {
	// Whitelist restricts the recognized character set
	Whitelist string
	// SingleLine treats the frame as one line of text, which is both faster
	// and more accurate for printed labels
	SingleLine bool
}

// DefaultRecognizerConfig matches what the printed order ids can contain
func DefaultRecognizerConfig() RecognizerConfig {
	return RecognizerConfig{
		Whitelist:  "#ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789",
		SingleLine: true,
	}
}

// HTTPRecognizer calls an external OCR service with a JPEG frame and reads
// back the recognized text. The engine itself is a black box; recognition can
// take several seconds per frame.
type HTTPRecognizer struct {
	url    string
	cfg    RecognizerConfig
	client *http.Client
}

// NewHTTPRecognizer creates a recognizer client for the given OCR service URL
func NewHTTPRecognizer(serviceURL string, cfg RecognizerConfig) *HTTPRecognizer {
	return &HTTPRecognizer{
		url: serviceURL,
		cfg: cfg,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Recognize posts the frame to the OCR service
func (r *HTTPRecognizer) Recognize(ctx context.Context, frame []byte) (string, error) {
	params := url.Values{}
	if r.cfg.Whitelist != "" {
		params.Set("whitelist", r.cfg.Whitelist)
	}
	if r.cfg.SingleLine {
		params.Set("psm", "single_line")
	}

	endpoint := r.url
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(frame))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ocr service returned %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode ocr response: %v", err)
	}

	return result.Text, nil
}

// RecognizerFunc adapts a plain function to the Recognizer interface
type RecognizerFunc func(ctx context.Context, frame []byte) (string, error)

// Recognize implements Recognizer
func (f RecognizerFunc) Recognize(ctx context.Context, frame []byte) (string, error) {
	return f(ctx, frame)
}

package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type ObserverFunc func(endpoint string, status int, duration time.Duration)

type Option func(*Client)

// Client talks to a faster-whisper sidecar over HTTP. The sidecar answers
// a multipart upload with an NDJSON event stream: an "info" event carrying
// language/duration metadata and one "segment" event per decoded span.
type Client struct {
	baseURL     string
	computeType string
	httpClient  *http.Client
	observer    ObserverFunc
}

type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("speech model request failed with status %d", e.StatusCode)
}

// DecodeOptions controls the sidecar's decoding search behavior. Language
// empty means auto-detect.
type DecodeOptions struct {
	BeamSize    int
	VADFilter   bool
	Temperature float64
	Language    string
}

// Info is the per-request metadata reported by the sidecar. Language is
// empty when the model did not report one; Duration is nil when unavailable.
type Info struct {
	Language string
	Duration *float64
}

// RawSegment is one model segment before normalization. Fields are pointers
// because the sidecar may omit any of them; callers substitute defaults.
type RawSegment struct {
	Start *float64
	End   *float64
	Text  *string
}

func WithObserver(observer ObserverFunc) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

func New(baseURL, computeType string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		computeType: strings.TrimSpace(computeType),
		httpClient:  httpClient,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Transcribe uploads the audio at path and returns the sidecar's segment
// stream. The stream reads directly from the response body: it is
// forward-only, not restartable, and must be closed by the caller.
func (c *Client) Transcribe(ctx context.Context, path string, opts DecodeOptions) (*SegmentStream, error) {
	started := time.Now()
	statusCode := 0
	defer func() { c.observe("transcribe", statusCode, time.Since(started)) }()

	audio, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio artifact: %w", err)
	}
	defer audio.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	fields := map[string]string{
		"beam_size":   strconv.Itoa(opts.BeamSize),
		"vad_filter":  strconv.FormatBool(opts.VADFilter),
		"temperature": strconv.FormatFloat(opts.Temperature, 'f', -1, 64),
	}
	if opts.Language != "" {
		fields["language"] = opts.Language
	}
	if c.computeType != "" {
		fields["compute_type"] = c.computeType
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, err
		}
	}
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	url := c.baseURL + "/v1/audio/transcribe"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body.Bytes()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	statusCode = resp.StatusCode

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, &Error{StatusCode: resp.StatusCode, Body: truncateBody(string(respBody))}
	}

	return newSegmentStream(resp.Body), nil
}

func (c *Client) observe(endpoint string, status int, duration time.Duration) {
	if c.observer != nil {
		c.observer(endpoint, status, duration)
	}
}

// event is one NDJSON line from the sidecar.
type event struct {
	Event    string   `json:"event"`
	Language *string  `json:"language"`
	Duration *float64 `json:"duration"`
	Start    *float64 `json:"start"`
	End      *float64 `json:"end"`
	Text     *string  `json:"text"`
}

// SegmentStream is a one-shot, forward-only iterator over model segments.
// Info becomes complete once the stream is fully drained.
type SegmentStream struct {
	body io.ReadCloser
	dec  *json.Decoder
	info Info
	cur  RawSegment
	err  error
	done bool
}

func newSegmentStream(body io.ReadCloser) *SegmentStream {
	return &SegmentStream{body: body, dec: json.NewDecoder(body)}
}

// Next advances to the next segment event, skipping metadata events. It
// returns false at end of stream or on error; check Err afterwards.
func (s *SegmentStream) Next() bool {
	if s.done || s.err != nil {
		return false
	}
	for {
		var ev event
		if err := s.dec.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				s.done = true
			} else {
				s.err = err
			}
			return false
		}
		switch ev.Event {
		case "info":
			if ev.Language != nil {
				s.info.Language = strings.TrimSpace(*ev.Language)
			}
			if ev.Duration != nil {
				s.info.Duration = ev.Duration
			}
		case "segment":
			s.cur = RawSegment{Start: ev.Start, End: ev.End, Text: ev.Text}
			return true
		default:
			// Unknown event types are skipped for forward compatibility.
		}
	}
}

func (s *SegmentStream) Segment() RawSegment { return s.cur }

func (s *SegmentStream) Info() Info { return s.info }

func (s *SegmentStream) Err() error { return s.err }

func (s *SegmentStream) Close() error { return s.body.Close() }

func truncateBody(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4096 {
		return s
	}
	return s[:4096] + "..."
}

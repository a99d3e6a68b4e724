package transcription

import (
	"context"
	"fmt"
	"strings"

	"vaani/internal/model"
	"vaani/internal/upstream/whisper"
)

// Fixed decoding configuration for every request; only the language varies.
const (
	beamSize    = 5
	vadFilter   = true
	temperature = 0.2
)

const unknownLanguage = "unknown"

// ModelError marks a speech model invocation failure. It is fatal for the
// request; an immediate re-attempt on the same file is not expected to
// succeed without operator intervention.
type ModelError struct {
	Err error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("transcription failed: %v", e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// SegmentStream is the one-shot segment iterator produced by the speech
// model. It must be drained exactly once; Info is complete after draining.
type SegmentStream interface {
	Next() bool
	Segment() whisper.RawSegment
	Info() whisper.Info
	Err() error
	Close() error
}

type Engine interface {
	Transcribe(ctx context.Context, path string, opts whisper.DecodeOptions) (SegmentStream, error)
}

// WhisperEngine adapts the sidecar client to the Engine interface.
type WhisperEngine struct {
	Client *whisper.Client
}

func (e WhisperEngine) Transcribe(ctx context.Context, path string, opts whisper.DecodeOptions) (SegmentStream, error) {
	stream, err := e.Client.Transcribe(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

type Result struct {
	Segments []model.Segment
	Info     model.TranscriptionInfo
}

// Service invokes the speech model and normalizes its output. A semaphore
// bounds simultaneous model invocations since decoding is the dominant
// blocking operation.
type Service struct {
	engine        Engine
	fixedLanguage string
	slots         chan struct{}
}

func New(engine Engine, fixedLanguage string, concurrency int) *Service {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Service{
		engine:        engine,
		fixedLanguage: strings.TrimSpace(fixedLanguage),
		slots:         make(chan struct{}, concurrency),
	}
}

// Transcribe runs the model on the audio at path. An empty language means
// the configured fixed override, falling back to auto-detection. The raw
// segment stream is materialized immediately into an owned ordered slice;
// missing per-segment fields default to 0.0/0.0/"".
func (s *Service) Transcribe(ctx context.Context, path, language string) (Result, error) {
	lang := strings.TrimSpace(language)
	if lang == "" {
		lang = s.fixedLanguage
	}

	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	stream, err := s.engine.Transcribe(ctx, path, whisper.DecodeOptions{
		BeamSize:    beamSize,
		VADFilter:   vadFilter,
		Temperature: temperature,
		Language:    lang,
	})
	if err != nil {
		return Result{}, &ModelError{Err: err}
	}
	defer func() { _ = stream.Close() }()

	segments := make([]model.Segment, 0, 16)
	for stream.Next() {
		raw := stream.Segment()
		seg := model.Segment{ID: len(segments)}
		if raw.Start != nil {
			seg.Start = *raw.Start
		}
		if raw.End != nil {
			seg.End = *raw.End
		}
		if raw.Text != nil {
			seg.Text = strings.TrimSpace(*raw.Text)
		}
		segments = append(segments, seg)
	}
	if err := stream.Err(); err != nil {
		return Result{}, &ModelError{Err: err}
	}

	info := model.TranscriptionInfo{
		DetectedLanguage: stream.Info().Language,
		Duration:         stream.Info().Duration,
	}
	if info.DetectedLanguage == "" {
		info.DetectedLanguage = unknownLanguage
	}

	return Result{Segments: segments, Info: info}, nil
}

package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"vaani/internal/model"
	"vaani/internal/postprocess"
	"vaani/internal/tempstore"
	"vaani/internal/transcription"
)

// ErrNoSpeech is returned when the model yields zero segments. It is a
// client-input problem, not a server fault.
var ErrNoSpeech = errors.New("no speech detected in the audio")

type Storage interface {
	Save(file io.Reader, fileName string) (*tempstore.Artifact, error)
	Release(artifact *tempstore.Artifact)
}

type Transcriber interface {
	Transcribe(ctx context.Context, path, language string) (transcription.Result, error)
}

type PostProcessor interface {
	Process(ctx context.Context, in postprocess.Input) (postprocess.Result, error)
}

type Service struct {
	storage       Storage
	transcriber   Transcriber
	postProcessor PostProcessor
	logger        *slog.Logger
}

type ProcessInput struct {
	File     io.Reader
	FileName string
	Language string
}

type Timings struct {
	Transcription  time.Duration
	PostProcessing time.Duration
	Total          time.Duration
}

type ProcessResult struct {
	OriginalText        string
	TranslatedText      string
	Segments            []model.Segment
	Info                model.TranscriptionInfo
	PostProcessFallback bool
	Timings             Timings
}

func New(storage Storage, transcriber Transcriber, postProcessor PostProcessor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		storage:       storage,
		transcriber:   transcriber,
		postProcessor: postProcessor,
		logger:        logger,
	}
}

// Process runs one upload through store, transcribe, empty-check and
// post-process. The temporary artifact is released on every exit path.
// Each external failure terminates the request immediately; there are no
// retries.
func (s *Service) Process(ctx context.Context, in ProcessInput) (ProcessResult, error) {
	started := time.Now()

	artifact, err := s.storage.Save(in.File, in.FileName)
	if err != nil {
		return ProcessResult{}, err
	}
	defer s.storage.Release(artifact)

	transcriptionStarted := time.Now()
	tr, err := s.transcriber.Transcribe(ctx, artifact.Path, in.Language)
	transcriptionDuration := time.Since(transcriptionStarted)
	if err != nil {
		return ProcessResult{}, err
	}

	// Checked before post-processing so an empty transcript never wastes
	// a translation call.
	if len(tr.Segments) == 0 {
		return ProcessResult{}, ErrNoSpeech
	}

	originalText := joinSegments(tr.Segments)

	result := ProcessResult{
		OriginalText:   originalText,
		TranslatedText: originalText,
		Segments:       tr.Segments,
		Info:           tr.Info,
		Timings:        Timings{Transcription: transcriptionDuration},
	}

	postProcessingStarted := time.Now()
	post, postErr := s.postProcessor.Process(ctx, postprocess.Input{
		DetectedLanguage: tr.Info.DetectedLanguage,
		Text:             originalText,
	})
	result.Timings.PostProcessing = time.Since(postProcessingStarted)

	if postErr != nil {
		s.logger.Warn("post-processing failed, using original text",
			"detected_language", tr.Info.DetectedLanguage,
			"error", postErr,
		)
		result.PostProcessFallback = true
	} else {
		result.TranslatedText = post.Text
	}

	result.Timings.Total = time.Since(started)
	return result, nil
}

// joinSegments space-joins trimmed segment texts in id order. Empty texts
// contribute no token to the join but stay in the segment list.
func joinSegments(segments []model.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg.Text == "" {
			continue
		}
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " ")
}

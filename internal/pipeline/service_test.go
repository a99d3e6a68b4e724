package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"vaani/internal/model"
	"vaani/internal/postprocess"
	"vaani/internal/tempstore"
	"vaani/internal/transcription"
)

func ptr[T any](v T) *T { return &v }

type fakeStorage struct {
	artifact  *tempstore.Artifact
	saveErr   error
	saves     int
	releases  int
	released  *tempstore.Artifact
	savedBody string
}

func (f *fakeStorage) Save(file io.Reader, _ string) (*tempstore.Artifact, error) {
	f.saves++
	body, _ := io.ReadAll(file)
	f.savedBody = string(body)
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	if f.artifact == nil {
		f.artifact = &tempstore.Artifact{Path: "/tmp/vaani-test.wav"}
	}
	return f.artifact, nil
}

func (f *fakeStorage) Release(artifact *tempstore.Artifact) {
	f.releases++
	f.released = artifact
}

type fakeTranscriber struct {
	result   transcription.Result
	err      error
	path     string
	language string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, path, language string) (transcription.Result, error) {
	f.path = path
	f.language = language
	return f.result, f.err
}

type fakePostProcessor struct {
	result postprocess.Result
	err    error
	calls  int
	input  postprocess.Input
}

func (f *fakePostProcessor) Process(_ context.Context, in postprocess.Input) (postprocess.Result, error) {
	f.calls++
	f.input = in
	return f.result, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func twoSegmentResult() transcription.Result {
	return transcription.Result{
		Segments: []model.Segment{
			{ID: 0, Start: 0.0, End: 2.0, Text: "hello"},
			{ID: 1, Start: 2.0, End: 4.0, Text: "world"},
		},
		Info: model.TranscriptionInfo{DetectedLanguage: "en", Duration: ptr(4.0)},
	}
}

func TestProcessSuccess(t *testing.T) {
	storage := &fakeStorage{}
	transcriber := &fakeTranscriber{result: twoSegmentResult()}
	post := &fakePostProcessor{result: postprocess.Result{Text: "hello world"}}
	svc := New(storage, transcriber, post, discardLogger())

	res, err := svc.Process(context.Background(), ProcessInput{
		File:     strings.NewReader("audio"),
		FileName: "sample.wav",
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if res.OriginalText != "hello world" {
		t.Fatalf("unexpected original text: %q", res.OriginalText)
	}
	if res.TranslatedText != "hello world" {
		t.Fatalf("unexpected translated text: %q", res.TranslatedText)
	}
	if len(res.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(res.Segments))
	}
	if res.Info.DetectedLanguage != "en" {
		t.Fatalf("unexpected language: %q", res.Info.DetectedLanguage)
	}
	if storage.savedBody != "audio" {
		t.Fatalf("unexpected stored body: %q", storage.savedBody)
	}
	if transcriber.path != storage.artifact.Path {
		t.Fatalf("transcriber got path %q, want %q", transcriber.path, storage.artifact.Path)
	}
	if storage.releases != 1 || storage.released != storage.artifact {
		t.Fatalf("expected exactly one release of the artifact, got %d", storage.releases)
	}
}

func TestProcessJoinSkipsEmptySegmentTexts(t *testing.T) {
	storage := &fakeStorage{}
	transcriber := &fakeTranscriber{result: transcription.Result{
		Segments: []model.Segment{
			{ID: 0, Text: "hello"},
			{ID: 1, Text: ""},
			{ID: 2, Text: "world"},
		},
		Info: model.TranscriptionInfo{DetectedLanguage: "en"},
	}}
	post := &fakePostProcessor{result: postprocess.Result{Text: "hello world"}}
	svc := New(storage, transcriber, post, discardLogger())

	res, err := svc.Process(context.Background(), ProcessInput{File: strings.NewReader("x"), FileName: "a.wav"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.OriginalText != "hello world" {
		t.Fatalf("empty texts must not double-space the join, got %q", res.OriginalText)
	}
	if len(res.Segments) != 3 {
		t.Fatalf("empty segments must stay in the list, got %d", len(res.Segments))
	}
}

func TestProcessReturnsErrNoSpeechWithoutPostProcessing(t *testing.T) {
	storage := &fakeStorage{}
	transcriber := &fakeTranscriber{result: transcription.Result{
		Info: model.TranscriptionInfo{DetectedLanguage: "en"},
	}}
	post := &fakePostProcessor{}
	svc := New(storage, transcriber, post, discardLogger())

	_, err := svc.Process(context.Background(), ProcessInput{File: strings.NewReader("x"), FileName: "a.wav"})
	if !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("expected ErrNoSpeech, got %v", err)
	}
	if post.calls != 0 {
		t.Fatalf("post-processor must not run on empty transcript, got %d calls", post.calls)
	}
	if storage.releases != 1 {
		t.Fatalf("artifact must be released on failure, got %d releases", storage.releases)
	}
}

func TestProcessPropagatesStorageError(t *testing.T) {
	storageErr := &tempstore.StorageError{Op: "write", Err: errors.New("disk full")}
	storage := &fakeStorage{saveErr: storageErr}
	svc := New(storage, &fakeTranscriber{}, &fakePostProcessor{}, discardLogger())

	_, err := svc.Process(context.Background(), ProcessInput{File: strings.NewReader("x"), FileName: "a.wav"})
	var got *tempstore.StorageError
	if !errors.As(err, &got) {
		t.Fatalf("expected *StorageError, got %v", err)
	}
	if storage.releases != 0 {
		t.Fatal("nothing to release when save failed")
	}
}

func TestProcessPropagatesModelErrorAndReleases(t *testing.T) {
	storage := &fakeStorage{}
	transcriber := &fakeTranscriber{err: &transcription.ModelError{Err: errors.New("decode failed")}}
	svc := New(storage, transcriber, &fakePostProcessor{}, discardLogger())

	_, err := svc.Process(context.Background(), ProcessInput{File: strings.NewReader("x"), FileName: "a.wav"})
	var modelErr *transcription.ModelError
	if !errors.As(err, &modelErr) {
		t.Fatalf("expected *ModelError, got %v", err)
	}
	if storage.releases != 1 {
		t.Fatalf("artifact must be released on model failure, got %d releases", storage.releases)
	}
}

func TestProcessFallsBackOnPostProcessFailure(t *testing.T) {
	storage := &fakeStorage{}
	transcriber := &fakeTranscriber{result: transcription.Result{
		Segments: []model.Segment{{ID: 0, Text: "namaste duniya"}},
		Info:     model.TranscriptionInfo{DetectedLanguage: "hi"},
	}}
	post := &fakePostProcessor{err: errors.New("translation service down")}
	svc := New(storage, transcriber, post, discardLogger())

	res, err := svc.Process(context.Background(), ProcessInput{File: strings.NewReader("x"), FileName: "a.wav"})
	if err != nil {
		t.Fatalf("post-process failure must not fail the request: %v", err)
	}
	if res.TranslatedText != "namaste duniya" {
		t.Fatalf("expected fallback to original text, got %q", res.TranslatedText)
	}
	if !res.PostProcessFallback {
		t.Fatal("expected fallback flag to be set")
	}
}

func TestProcessUsesNormalizedText(t *testing.T) {
	storage := &fakeStorage{}
	transcriber := &fakeTranscriber{result: transcription.Result{
		Segments: []model.Segment{{ID: 0, Text: "namaste duniya"}},
		Info:     model.TranscriptionInfo{DetectedLanguage: "hi"},
	}}
	post := &fakePostProcessor{result: postprocess.Result{Text: "नमस्ते दुनिया", Normalized: true}}
	svc := New(storage, transcriber, post, discardLogger())

	res, err := svc.Process(context.Background(), ProcessInput{
		File:     strings.NewReader("x"),
		FileName: "a.wav",
		Language: "hi",
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.TranslatedText != "नमस्ते दुनिया" {
		t.Fatalf("unexpected translated text: %q", res.TranslatedText)
	}
	if res.OriginalText != "namaste duniya" {
		t.Fatalf("original text must stay unchanged, got %q", res.OriginalText)
	}
	if post.input.DetectedLanguage != "hi" || post.input.Text != "namaste duniya" {
		t.Fatalf("unexpected post-process input: %+v", post.input)
	}
	if transcriber.language != "hi" {
		t.Fatalf("language param not forwarded, got %q", transcriber.language)
	}
}

package postprocess

import (
	"context"
	"errors"
	"testing"
)

type fakeTranslator struct {
	text   string
	err    error
	calls  int
	gotIn  string
	gotTgt string
}

func (f *fakeTranslator) Translate(_ context.Context, text, target string) (string, error) {
	f.calls++
	f.gotIn = text
	f.gotTgt = target
	return f.text, f.err
}

func TestProcessTranslatesTriggerLanguages(t *testing.T) {
	for _, lang := range []string{"hi", "ur", "unknown", "HI"} {
		client := &fakeTranslator{text: "नमस्ते दुनिया"}
		svc := New(client, "hi", []string{"hi", "ur", "unknown"})

		res, err := svc.Process(context.Background(), Input{DetectedLanguage: lang, Text: "namaste duniya"})
		if err != nil {
			t.Fatalf("Process(%q) error = %v", lang, err)
		}
		if !res.Normalized || res.Text != "नमस्ते दुनिया" {
			t.Fatalf("Process(%q): unexpected result %+v", lang, res)
		}
		if client.gotIn != "namaste duniya" || client.gotTgt != "hi" {
			t.Fatalf("Process(%q): unexpected call %q -> %q", lang, client.gotIn, client.gotTgt)
		}
	}
}

func TestProcessPassesThroughOtherLanguages(t *testing.T) {
	client := &fakeTranslator{text: "should not be used"}
	svc := New(client, "hi", []string{"hi", "ur", "unknown"})

	res, err := svc.Process(context.Background(), Input{DetectedLanguage: "en", Text: "hello world"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Normalized {
		t.Fatal("expected pass-through for non-trigger language")
	}
	if res.Text != "hello world" {
		t.Fatalf("unexpected text: %q", res.Text)
	}
	if client.calls != 0 {
		t.Fatalf("translator should not be called, got %d calls", client.calls)
	}
}

func TestProcessSurfacesTranslationFailure(t *testing.T) {
	client := &fakeTranslator{err: errors.New("quota exceeded")}
	svc := New(client, "hi", []string{"hi"})

	_, err := svc.Process(context.Background(), Input{DetectedLanguage: "hi", Text: "namaste"})
	if err == nil {
		t.Fatal("expected error from translator")
	}
}

package postprocess

import (
	"context"
	"strings"
)

// Translator is the external normalization/translation collaborator.
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

type Input struct {
	DetectedLanguage string
	Text             string
}

type Result struct {
	Text       string
	Normalized bool
}

// Service decides, from the detected language, whether a transcript needs
// a normalization pass through the translation service. Languages outside
// the trigger set pass through unchanged.
type Service struct {
	client   Translator
	target   string
	triggers map[string]struct{}
}

func New(client Translator, target string, triggerLanguages []string) *Service {
	triggers := make(map[string]struct{}, len(triggerLanguages))
	for _, lang := range triggerLanguages {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang == "" {
			continue
		}
		triggers[lang] = struct{}{}
	}
	return &Service{
		client:   client,
		target:   strings.TrimSpace(target),
		triggers: triggers,
	}
}

func (s *Service) shouldNormalize(language string) bool {
	_, ok := s.triggers[strings.ToLower(strings.TrimSpace(language))]
	return ok
}

// Process returns the normalized text for trigger languages, or the input
// text unchanged otherwise. A translation failure is returned to the
// caller, which is expected to fall back to the original text; it must
// never fail the overall request.
func (s *Service) Process(ctx context.Context, in Input) (Result, error) {
	if !s.shouldNormalize(in.DetectedLanguage) {
		return Result{Text: in.Text}, nil
	}

	translated, err := s.client.Translate(ctx, in.Text, s.target)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: translated, Normalized: true}, nil
}

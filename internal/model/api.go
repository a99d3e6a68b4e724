package model

// Segment is one contiguous span of decoded speech. IDs are zero-based
// ordinals assigned in production order, which is chronological order.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptionInfo carries per-request metadata reported by the speech
// model. DetectedLanguage is "unknown" when the model reports none;
// Duration is omitted when unavailable.
type TranscriptionInfo struct {
	DetectedLanguage string   `json:"detected_language"`
	Duration         *float64 `json:"duration,omitempty"`
}

// TranscriptResponse is the canonical success document. TranslatedText
// equals OriginalText unless normalization replaced it.
type TranscriptResponse struct {
	OriginalText   string            `json:"original_text"`
	TranslatedText string            `json:"translated_text"`
	Segments       []Segment         `json:"segments"`
	Info           TranscriptionInfo `json:"info"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model,omitempty"`
	Device string `json:"device,omitempty"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

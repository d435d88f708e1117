package provider

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Kind is the type of asset a job produces.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindMusic Kind = "music"
)

// ParseKind converts a case-insensitive name into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindText, KindImage, KindVideo, KindMusic:
		return k, nil
	}
	return "", ErrUnknownKind
}

// Backend identifies one remote generation service and capability.
// The set is closed and resolved when clients are configured.
type Backend string

const (
	BackendFalImage       Backend = "fal-image"
	BackendFalVideo       Backend = "fal-video"
	BackendReplicateImage Backend = "replicate-image"
	BackendReplicateVideo Backend = "replicate-video"
	BackendReplicateMusic Backend = "replicate-music"
	BackendOpenAIText     Backend = "openai-text"
)

// Kind returns the asset kind the backend produces.
func (b Backend) Kind() Kind {
	switch b {
	case BackendFalImage, BackendReplicateImage:
		return KindImage
	case BackendFalVideo, BackendReplicateVideo:
		return KindVideo
	case BackendReplicateMusic:
		return KindMusic
	case BackendOpenAIText:
		return KindText
	default:
		return ""
	}
}

func (b Backend) String() string { return string(b) }

// Job is a single generation request handed to a Client.
type Job struct {
	Kind        Kind
	Prompt      string
	ModelID     string
	SubmittedAt time.Time

	ImageSize       string // fal image size preset, e.g. square_hd
	AspectRatio     string // replicate aspect ratio, e.g. 1:1
	DurationSeconds int    // video and music length
	MaxTokens       int    // text completion budget
	SystemPrompt    string
}

// NewJob builds a job with a normalized prompt.
func NewJob(kind Kind, prompt, modelID string, now time.Time) Job {
	return Job{
		Kind:        kind,
		Prompt:      NormalizePrompt(prompt),
		ModelID:     modelID,
		SubmittedAt: now,
	}
}

// NormalizePrompt trims the prompt and converts it to Unicode NFC so
// visually identical prompts are sent byte-identical.
func NormalizePrompt(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// Handle references a submitted remote job.
type Handle struct {
	Backend     Backend
	ID          string
	ModelID     string
	StatusURL   string
	ResponseURL string

	// Done is set by backends that answer synchronously; Poll returns it as is.
	Done *Outcome
}

// Status is the terminal state of a polled job.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
)

// Outcome is the terminal result of Poll.
type Outcome struct {
	Status   Status
	AssetURL string
	Text     string

	PromptTokens     int
	CompletionTokens int

	// Err is set for failed and timed out jobs.
	Err *Error
}

// Succeeded reports whether the job produced an asset.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSucceeded
}

// TotalTokens is the token usage reported by text backends.
func (o Outcome) TotalTokens() int {
	return o.PromptTokens + o.CompletionTokens
}

// Success builds a successful outcome for an asset URL.
func Success(assetURL string) Outcome {
	return Outcome{Status: StatusSucceeded, AssetURL: assetURL}
}

// Failure builds a failed outcome from a classified error.
func Failure(err *Error) Outcome {
	status := StatusFailed
	if err != nil && err.Kind == Timeout {
		status = StatusTimeout
	}
	return Outcome{Status: status, Err: err}
}

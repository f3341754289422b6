package core

import (
	"context"
	"regexp"
)

// LanguageModel is the wire-level contract every chat-capable driver implements.
type LanguageModel interface {
	// Provider returns the provider identifier for logging.
	Provider() string
	// ModelID returns the provider-specific model identifier.
	ModelID() string
	// SupportedURLs lists, per media type, URL patterns the driver can forward
	// as references instead of downloading.
	SupportedURLs() map[string][]*regexp.Regexp

	Generate(ctx context.Context, opts CallOptions) (*GenerateResponse, error)
	Stream(ctx context.Context, opts CallOptions) (*StreamResponse, error)
}

// EmbedRequest carries values to embed in a single driver call.
type EmbedRequest struct {
	Values          []string          `json:"values"`
	ProviderOptions map[string]any    `json:"provider_options,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
}

// EmbeddingUsage accounts tokens consumed by an embedding call.
type EmbeddingUsage struct {
	Tokens int `json:"tokens"`
}

// EmbedResponse holds one embedding vector per input value, in order.
type EmbedResponse struct {
	Embeddings [][]float64       `json:"embeddings"`
	Usage      EmbeddingUsage    `json:"usage"`
	Response   *ResponseMetadata `json:"response,omitempty"`
}

// EmbeddingModel embeds batches of text values. Drivers may enforce a per-call
// batch ceiling; callers batch externally.
type EmbeddingModel interface {
	Provider() string
	ModelID() string
	// MaxBatchSize returns the per-call value ceiling, 0 for unlimited.
	MaxBatchSize() int
	Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error)
}

// TranscriptionRequest submits audio for transcription.
type TranscriptionRequest struct {
	Audio           BlobRef           `json:"audio"`
	MediaType       string            `json:"media_type,omitempty"`
	ProviderOptions map[string]any    `json:"provider_options,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
}

// TranscriptionSegment is a timed span of transcribed speech.
type TranscriptionSegment struct {
	StartSec float64 `json:"start_s"`
	EndSec   float64 `json:"end_s"`
	Text     string  `json:"text"`
}

// Transcription is the terminal result of a transcription job. Drivers that
// expose asynchronous jobs submit, poll, and surface only the terminal state.
type Transcription struct {
	Text        string                 `json:"text"`
	Segments    []TranscriptionSegment `json:"segments,omitempty"`
	Language    string                 `json:"language,omitempty"`
	DurationSec float64                `json:"duration_s,omitempty"`
	Warnings    []Warning              `json:"warnings,omitempty"`
	Response    *ResponseMetadata      `json:"response,omitempty"`
}

// TranscriptionModel converts audio to text.
type TranscriptionModel interface {
	Provider() string
	ModelID() string
	Transcribe(ctx context.Context, req TranscriptionRequest) (*Transcription, error)
}

// SpeechRequest submits text for synthesis.
type SpeechRequest struct {
	Text            string            `json:"text"`
	Voice           string            `json:"voice,omitempty"`
	OutputFormat    string            `json:"output_format,omitempty"`
	Speed           float64           `json:"speed,omitempty"`
	Language        string            `json:"language,omitempty"`
	Instructions    string            `json:"instructions,omitempty"`
	ProviderOptions map[string]any    `json:"provider_options,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
}

// SpeechResponse carries synthesized audio.
type SpeechResponse struct {
	Audio    BlobRef           `json:"audio"`
	Warnings []Warning         `json:"warnings,omitempty"`
	Response *ResponseMetadata `json:"response,omitempty"`
}

// SpeechModel converts text to audio.
type SpeechModel interface {
	Provider() string
	ModelID() string
	Synthesize(ctx context.Context, req SpeechRequest) (*SpeechResponse, error)
}

// ImageRequest submits a prompt for image generation.
type ImageRequest struct {
	Prompt          string            `json:"prompt"`
	N               int               `json:"n,omitempty"`
	Size            string            `json:"size,omitempty"`
	AspectRatio     string            `json:"aspect_ratio,omitempty"`
	Seed            int64             `json:"seed,omitempty"`
	ProviderOptions map[string]any    `json:"provider_options,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
}

// GeneratedImage is a single generated image.
type GeneratedImage struct {
	Data      BlobRef `json:"data"`
	MediaType string  `json:"media_type,omitempty"`
}

// ImageResponse carries generated images.
type ImageResponse struct {
	Images    []GeneratedImage   `json:"images"`
	Warnings  []Warning          `json:"warnings,omitempty"`
	Responses []ResponseMetadata `json:"responses,omitempty"`
}

// ImageModel generates images from text prompts.
type ImageModel interface {
	Provider() string
	ModelID() string
	GenerateImages(ctx context.Context, req ImageRequest) (*ImageResponse, error)
}

// RerankRequest scores documents against a query.
type RerankRequest struct {
	Query           string         `json:"query"`
	Documents       []string       `json:"documents"`
	TopN            int            `json:"top_n,omitempty"`
	RankFields      []string       `json:"rank_fields,omitempty"`
	ProviderOptions map[string]any `json:"provider_options,omitempty"`
}

// RankedDocument pairs an input document with its relevance score.
type RankedDocument struct {
	Index    int     `json:"index"`
	Document string  `json:"document,omitempty"`
	Score    float64 `json:"relevance_score"`
}

// RerankResponse lists documents in relevance order.
type RerankResponse struct {
	Documents []RankedDocument  `json:"documents"`
	Response  *ResponseMetadata `json:"response,omitempty"`
}

// RerankingModel reorders documents by relevance to a query.
type RerankingModel interface {
	Provider() string
	ModelID() string
	Rerank(ctx context.Context, req RerankRequest) (*RerankResponse, error)
}

// Provider exposes factory methods for each capability. Factories return a
// capability-bound model or a no_such_model error.
type Provider interface {
	ProviderID() string
	LanguageModel(modelID string) (LanguageModel, error)
	TextEmbeddingModel(modelID string) (EmbeddingModel, error)
	TranscriptionModel(modelID string) (TranscriptionModel, error)
	SpeechModel(modelID string) (SpeechModel, error)
	ImageModel(modelID string) (ImageModel, error)
	RerankingModel(modelID string) (RerankingModel, error)
}

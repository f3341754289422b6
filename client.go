// Package loom is the unified entry point of the SDK: a client that resolves
// "provider/model" references across registered providers and runs multi-step
// generations through the orchestrator.
package loom

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/harmonia-ai/loom/core"
	"github.com/harmonia-ai/loom/internal/httpclient"
	"github.com/harmonia-ai/loom/runner"
)

// Client manages provider instances, model resolution, and request execution.
type Client struct {
	mu         sync.RWMutex
	providers  map[string]core.Provider
	aliases    map[string]string
	defaults   ClientDefaults
	httpClient *http.Client
	run        *runner.Runner
}

// ClientDefaults holds default values applied to all requests.
type ClientDefaults struct {
	// Model is used when a request names no model (e.g. "openai/gpt-4o").
	Model string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithProvider installs a pre-built provider instance, bypassing the registry.
func WithProvider(name string, provider core.Provider) ClientOption {
	return func(c *Client) { c.providers[name] = provider }
}

// WithDefaultModel sets the model used when a request names none.
func WithDefaultModel(ref string) ClientOption {
	return func(c *Client) { c.defaults.Model = ref }
}

// WithAlias maps a short name to a full "provider/model" reference.
func WithAlias(alias, ref string) ClientOption {
	return func(c *Client) { c.aliases[alias] = ref }
}

// WithRunnerOptions configures the orchestrator behind Generate and Stream.
func WithRunnerOptions(opts ...runner.Option) ClientOption {
	return func(c *Client) { c.run = runner.New(opts...) }
}

// WithHTTPClient sets the HTTP client shared by auto-configured providers.
// Factories that receive an explicit ProviderConfig.HTTPClient keep it.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// NewClient creates a Client and auto-configures every registered provider
// whose factory finds credentials in the environment. Import drivers for
// their side effect to make them available:
//
//	import _ "github.com/harmonia-ai/loom/providers/openai"
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		providers: make(map[string]core.Provider),
		aliases:   make(map[string]string),
		run:       runner.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = httpclient.New()
	}
	c.autoConfigure()
	return c
}

func (c *Client) autoConfigure() {
	for _, name := range RegisteredProviders() {
		if _, exists := c.providers[name]; exists {
			continue
		}
		factory, ok := GetProviderFactory(name)
		if !ok {
			continue
		}
		config := factory.DefaultConfig()
		if config.APIKey == "" {
			continue
		}
		if config.HTTPClient == nil {
			config.HTTPClient = c.httpClient
		}
		provider, err := factory.New(config)
		if err != nil {
			continue
		}
		c.providers[name] = provider
	}
}

// Provider returns the named provider instance.
func (c *Client) Provider(name string) (core.Provider, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.providers[name]
	return p, ok
}

// resolveRef splits "provider/model" after alias and default expansion.
func (c *Client) resolveRef(ref string) (core.Provider, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if ref == "" {
		ref = c.defaults.Model
	}
	if expanded, ok := c.aliases[ref]; ok {
		ref = expanded
	}
	providerName, modelID, found := strings.Cut(ref, "/")
	if !found || providerName == "" || modelID == "" {
		return nil, "", core.NewInvalidArgument("model", ref, `expected "provider/model"`)
	}
	provider, ok := c.providers[providerName]
	if !ok {
		return nil, "", core.NewNoSuchModel(modelID, providerName)
	}
	return provider, modelID, nil
}

// LanguageModel resolves a "provider/model" reference to a chat driver.
func (c *Client) LanguageModel(ref string) (core.LanguageModel, error) {
	provider, modelID, err := c.resolveRef(ref)
	if err != nil {
		return nil, err
	}
	return provider.LanguageModel(modelID)
}

// EmbeddingModel resolves a reference to an embedding driver.
func (c *Client) EmbeddingModel(ref string) (core.EmbeddingModel, error) {
	provider, modelID, err := c.resolveRef(ref)
	if err != nil {
		return nil, err
	}
	return provider.TextEmbeddingModel(modelID)
}

// TranscriptionModel resolves a reference to a transcription driver.
func (c *Client) TranscriptionModel(ref string) (core.TranscriptionModel, error) {
	provider, modelID, err := c.resolveRef(ref)
	if err != nil {
		return nil, err
	}
	return provider.TranscriptionModel(modelID)
}

// SpeechModel resolves a reference to a speech synthesis driver.
func (c *Client) SpeechModel(ref string) (core.SpeechModel, error) {
	provider, modelID, err := c.resolveRef(ref)
	if err != nil {
		return nil, err
	}
	return provider.SpeechModel(modelID)
}

// ImageModel resolves a reference to an image generation driver.
func (c *Client) ImageModel(ref string) (core.ImageModel, error) {
	provider, modelID, err := c.resolveRef(ref)
	if err != nil {
		return nil, err
	}
	return provider.ImageModel(modelID)
}

// RerankingModel resolves a reference to a reranking driver.
func (c *Client) RerankingModel(ref string) (core.RerankingModel, error) {
	provider, modelID, err := c.resolveRef(ref)
	if err != nil {
		return nil, err
	}
	return provider.RerankingModel(modelID)
}

// Generate resolves the model reference and runs a full generation.
func (c *Client) Generate(ctx context.Context, ref string, req runner.Request) (*core.GenerateResult, error) {
	model, err := c.LanguageModel(ref)
	if err != nil {
		return nil, err
	}
	req.Model = model
	return c.run.Generate(ctx, req)
}

// Stream resolves the model reference and runs a streaming generation.
func (c *Client) Stream(ctx context.Context, ref string, req runner.Request) (*runner.StreamResult, error) {
	model, err := c.LanguageModel(ref)
	if err != nil {
		return nil, err
	}
	req.Model = model
	return c.run.Stream(ctx, req)
}

// Package llm configures and invokes the generative model for the RAG
// answer path. Client-supplied generation parameters are validated field by
// field, merged over safe defaults, and applied to a per-request model
// handle.
package llm

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
)

// DefaultModel is the text generation model used when none is configured.
const DefaultModel = openai.ChatModelGPT4oMini

var (
	// ErrProvider marks failures returned by the model provider's API, as
	// opposed to local failures assembling or parsing the request.
	ErrProvider = errors.New("model provider error")

	// ErrNotConfigured is returned when the configurator has no usable
	// client.
	ErrNotConfigured = errors.New("generative model client not configured")
)

// Configurator builds per-request model handles from client-supplied
// generation parameters.
type Configurator struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewConfigurator creates a configurator for the given client and model.
// An empty model falls back to DefaultModel.
func NewConfigurator(client *openai.Client, model string, logger *slog.Logger) *Configurator {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Configurator{
		client: client,
		model:  model,
		logger: logger,
	}
}

// Configure validates and merges the generation config into a model handle.
// Invalid fields are dropped with a warning, never rejected. If handle
// construction fails, one fallback attempt is made with the hardcoded safe
// defaults; if that also fails the error is returned — the single case
// where configuration failure is fatal to a request.
func (c *Configurator) Configure(cfg GenerationConfig) (*Handle, error) {
	eff := cfg.sanitize(c.logger).merge()

	handle, err := c.newHandle(eff)
	if err == nil {
		c.logger.Info("model handle configured",
			"model", c.model,
			"temperature", eff.Temperature,
			"maxTokens", eff.MaxTokens,
		)
		return handle, nil
	}

	c.logger.Warn("failed to configure model handle, falling back to defaults", "error", err)
	handle, err = c.newHandle(defaultEffectiveConfig())
	if err != nil {
		return nil, fmt.Errorf("fallback handle: %w", err)
	}
	return handle, nil
}

func (c *Configurator) newHandle(eff effectiveConfig) (*Handle, error) {
	if c.client == nil {
		return nil, ErrNotConfigured
	}
	if c.model == "" {
		return nil, fmt.Errorf("%w: empty model id", ErrNotConfigured)
	}
	return &Handle{
		client: c.client,
		model:  c.model,
		cfg:    eff,
	}, nil
}

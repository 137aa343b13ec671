package llm

import (
	"log/slog"
)

// Hardcoded safe defaults, also used for the fallback handle when a
// dynamically configured handle cannot be constructed.
const (
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 1024

	// MaxTokenLimit is the upper bound accepted for maxTokenCount.
	MaxTokenLimit = 8192
)

// GenerationConfig carries client-supplied generation parameters. All
// fields are optional; absent fields fall back to provider defaults or the
// hardcoded safe defaults. Field names in JSON follow the provider's
// casing.
type GenerationConfig struct {
	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"topP,omitempty"`
	MaxTokenCount *int     `json:"maxTokenCount,omitempty"`
	StopSequences []string `json:"stopSequences,omitempty"`
}

// effectiveConfig is a fully-resolved configuration applied to a model
// handle. Optional fields left nil/empty defer to the provider's defaults.
type effectiveConfig struct {
	Temperature float64
	TopP        *float64
	MaxTokens   int
	Stop        []string
}

func defaultEffectiveConfig() effectiveConfig {
	return effectiveConfig{
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

// sanitize validates each field independently and drops invalid values with
// a warning. Validation never fails a request.
func (c GenerationConfig) sanitize(logger *slog.Logger) GenerationConfig {
	out := GenerationConfig{}

	if c.Temperature != nil {
		if v := *c.Temperature; v >= 0.0 && v <= 1.0 {
			out.Temperature = c.Temperature
		} else {
			logger.Warn("invalid temperature value, using default", "temperature", v)
		}
	}

	if c.TopP != nil {
		if v := *c.TopP; v >= 0.0 && v <= 1.0 {
			out.TopP = c.TopP
		} else {
			logger.Warn("invalid topP value, using default", "topP", v)
		}
	}

	if c.MaxTokenCount != nil {
		if v := *c.MaxTokenCount; v >= 0 && v <= MaxTokenLimit {
			out.MaxTokenCount = c.MaxTokenCount
		} else {
			logger.Warn("invalid maxTokenCount, letting the provider apply its default", "maxTokenCount", v)
		}
	}

	if c.StopSequences != nil {
		valid := true
		for _, s := range c.StopSequences {
			if s == "" {
				valid = false
				break
			}
		}
		if valid {
			out.StopSequences = c.StopSequences
		} else {
			logger.Warn("invalid stopSequences, ignoring client value", "stopSequences", c.StopSequences)
		}
	}

	return out
}

// merge applies the sanitized config over the safe defaults.
func (c GenerationConfig) merge() effectiveConfig {
	eff := defaultEffectiveConfig()
	if c.Temperature != nil {
		eff.Temperature = *c.Temperature
	}
	if c.TopP != nil {
		eff.TopP = c.TopP
	}
	if c.MaxTokenCount != nil {
		eff.MaxTokens = *c.MaxTokenCount
	}
	if len(c.StopSequences) > 0 {
		eff.Stop = c.StopSequences
	}
	return eff
}

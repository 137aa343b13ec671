package query

import "github.com/grimoire-labs/arcane-scribe/internal/llm"

// LLMConfigurator adapts *llm.Configurator to the ModelConfigurator
// interface (the concrete Configure returns *llm.Handle).
type LLMConfigurator struct {
	Configurator *llm.Configurator
}

func (c LLMConfigurator) Configure(cfg llm.GenerationConfig) (Generator, error) {
	handle, err := c.Configurator.Configure(cfg)
	if err != nil {
		return nil, err
	}
	return handle, nil
}

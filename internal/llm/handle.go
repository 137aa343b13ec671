package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
)

// ragPromptTemplate instructs the model to answer only from the provided
// SRD context. Grounded synthesis and advice are permitted; invented rules
// are not.
const ragPromptTemplate = `You are 'Arcane Scribe', a helpful TTRPG assistant.
Based *only* on the following context from the System Reference Document (SRD), provide a concise and direct answer to the question.
If the question (which might be formatted as 'User: ... Bot:') asks for advice, optimization (e.g., "min-max"), or creative ideas, you may synthesize or infer suggestions *grounded in the provided SRD context*.
Do not introduce rules, abilities, or concepts not present in or directly supported by the context.
If the context does not provide enough information for a comprehensive answer or suggestion, state that clearly.
Always be helpful and aim to directly address the user's intent.
If the question is not formatted as 'User: ... Bot:', you may assume it is a direct question and respond accordingly.

Context:
%s

Question: %s

Helpful Answer:`

// contextSeparator joins retrieved chunks in the prompt context block.
const contextSeparator = "\n\n---\n\n"

// Handle is a model-invocation handle carrying a fully-resolved generation
// configuration for one request.
type Handle struct {
	client *openai.Client
	model  string
	cfg    effectiveConfig
}

// Generate builds the retrieval-augmented prompt from the question and the
// retrieved context chunks and invokes the model. Provider API failures are
// wrapped with ErrProvider so callers can distinguish them from local
// failures.
func (h *Handle) Generate(ctx context.Context, question string, contexts []string) (string, error) {
	prompt := fmt.Sprintf(ragPromptTemplate, strings.Join(contexts, contextSeparator), question)

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel(h.model),
		Temperature: openai.Float(h.cfg.Temperature),
		MaxTokens:   openai.Int(int64(h.cfg.MaxTokens)),
	}
	if h.cfg.TopP != nil {
		params.TopP = openai.Float(*h.cfg.TopP)
	}
	if len(h.cfg.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{
			OfStringArray: h.cfg.Stop,
		}
	}

	resp, err := h.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w: %v", ErrProvider, err)
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("model returned no answer")
	}
	return resp.Choices[0].Message.Content, nil
}

package summarize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/snarg/meetbrief/internal/metrics"
)

const (
	DefaultTemperature float32 = 0.7
	DefaultMaxTokens           = 500

	// Unavailable is returned when the model answers with empty content.
	Unavailable = "Résumé non disponible"
)

const systemPrompt = "Tu es un assistant qui résume des transcriptions de réunions professionnelles en français. Génère un résumé structuré et concis."

const userPromptTemplate = `Voici la transcription d'une réunion. Génère un résumé exécutif en français avec:

1. Points clés (3-5 bullet points maximum)
2. Prochaines actions (si mentionnées)

Transcription:
%s

Format souhaité:
## Points clés
- Point 1
- Point 2
- Point 3

## Prochaines actions
- Action 1
- Action 2
`

var errNoChoices = errors.New("completion returned no choices")

// ChatAPI is the subset of *openai.Client used for summaries.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Options configures a Client. Zero values take the package defaults.
type Options struct {
	API         ChatAPI
	Model       string
	Temperature float32
	MaxTokens   int
	Log         zerolog.Logger
}

// Client issues one chat completion per transcript.
type Client struct {
	api         ChatAPI
	model       string
	temperature float32
	maxTokens   int
	log         zerolog.Logger
}

// NewClient creates a summary client, filling unset options with defaults.
func NewClient(opts Options) *Client {
	c := &Client{
		api:         opts.API,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		log:         opts.Log.With().Str("component", "summarize").Logger(),
	}
	if c.model == "" {
		c.model = openai.GPT4
	}
	if c.temperature == 0 {
		c.temperature = DefaultTemperature
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	return c
}

// Model returns the configured chat model.
func (c *Client) Model() string { return c.model }

// Summarize returns a summary with a "Points clés" section and a
// "Prochaines actions" section. Output is capped at the configured token
// limit and may be truncated.
func (c *Client) Summarize(ctx context.Context, transcription string) (string, error) {
	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, BuildRequest(c.model, c.temperature, c.maxTokens, transcription))
	metrics.ObserveExternalCall("summary", "chat", err, time.Since(start))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonLength {
		c.log.Debug().Int("max_tokens", c.maxTokens).Msg("summary truncated at token limit")
	}
	if choice.Message.Content == "" {
		return Unavailable, nil
	}
	return choice.Message.Content, nil
}

// BuildRequest assembles the fixed system instruction and the user prompt
// embedding the transcript verbatim.
func BuildRequest(model string, temperature float32, maxTokens int, transcription string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(userPromptTemplate, transcription)},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

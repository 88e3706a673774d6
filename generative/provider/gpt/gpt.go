// Package gpt adapts github.com/openai/openai-go to the generative.ModelClient
// interface.
package gpt

import (
	"context"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/runforge/execengine/generative"
)

// ChatClient is the narrow slice of the OpenAI SDK this adapter depends on.
type ChatClient interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// Client implements generative.ModelClient against the OpenAI Chat
// Completions API.
type Client struct {
	chat ChatClient
}

type chatAdapter struct {
	svc openai.ChatCompletionService
}

func (a chatAdapter) New(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return a.svc.New(ctx, params)
}

// New constructs a Client using apiKey against the default OpenAI endpoint.
func New(apiKey string, httpClient *http.Client) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	sdkClient := openai.NewClient(opts...)
	return &Client{chat: chatAdapter{svc: sdkClient.Chat.Completions}}
}

// NewWithChatClient builds a Client around an already-constructed ChatClient,
// for tests.
func NewWithChatClient(c ChatClient) *Client {
	return &Client{chat: c}
}

// Complete implements generative.ModelClient. GPT requests
// prepend the system prompt as a "system" role message rather than using a
// dedicated system field.
func (c *Client) Complete(ctx context.Context, req generative.Request) (generative.Response, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	if len(req.Messages) > 0 {
		for _, m := range req.Messages {
			if m.Role == "assistant" {
				messages = append(messages, openai.AssistantMessage(m.Content))
			} else {
				messages = append(messages, openai.UserMessage(m.Content))
			}
		}
	} else {
		messages = append(messages, openai.UserMessage(req.User))
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	completion, err := c.chat.New(ctx, params)
	if err != nil {
		return generative.Response{}, classifyError(err)
	}
	if len(completion.Choices) == 0 {
		return generative.Response{}, &generative.ProviderError{Err: errNoChoices, Retryable: false}
	}

	choice := completion.Choices[0]
	return generative.Response{
		Text:         choice.Message.Content,
		StopReason:   normalizeStopReason(string(choice.FinishReason)),
		InputTokens:  int(completion.Usage.PromptTokens),
		OutputTokens: int(completion.Usage.CompletionTokens),
	}, nil
}

// normalizeStopReason maps OpenAI's finish_reason vocabulary onto the
// tier's provider-neutral stop reasons; every other value passes through
// unchanged.
func normalizeStopReason(finishReason string) string {
	if finishReason == "length" {
		return "max_tokens"
	}
	return finishReason
}

// Package claude adapts github.com/anthropics/anthropic-sdk-go to the
// generative.ModelClient interface.
package claude

import (
	"context"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/runforge/execengine/generative"
)

// MessagesClient is the narrow slice of the Anthropic SDK this adapter
// depends on, so tests can substitute a fake without a real API key.
type MessagesClient interface {
	New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

// Client implements generative.ModelClient against the Anthropic Messages
// API.
type Client struct {
	messages MessagesClient
}

// messagesAdapter narrows the generated SDK client down to MessagesClient.
type messagesAdapter struct {
	svc anthropic.MessageService
}

func (a messagesAdapter) New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return a.svc.New(ctx, params)
}

// New constructs a Client using apiKey against the default Anthropic API
// endpoint. httpClient may be nil to use the SDK's own default transport.
func New(apiKey string, httpClient *http.Client) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	sdkClient := anthropic.NewClient(opts...)
	return &Client{messages: messagesAdapter{svc: sdkClient.Messages}}
}

// NewWithMessagesClient builds a Client around an already-constructed
// MessagesClient, for tests.
func NewWithMessagesClient(m MessagesClient) *Client {
	return &Client{messages: m}
}

// Complete implements generative.ModelClient.
func (c *Client) Complete(ctx context.Context, req generative.Request) (generative.Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokensOrDefault(req.MaxTokens)),
		Messages:  buildMessageParams(req),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	msg, err := c.messages.New(ctx, params)
	if err != nil {
		return generative.Response{}, classifyError(err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return generative.Response{
		Text:         text,
		StopReason:   string(msg.StopReason),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}

// buildMessageParams sends the full rendered few-shot transcript when
// present, falling back to a single user turn otherwise.
func buildMessageParams(req generative.Request) []anthropic.MessageParam {
	if len(req.Messages) == 0 {
		return []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.User))}
	}
	params := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == "assistant" {
			params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		} else {
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return params
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return 1024
	}
	return n
}

package gpt

import (
	"context"
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runforge/execengine/generative"
)

type fakeChat struct {
	resp       *openai.ChatCompletion
	err        error
	lastParams openai.ChatCompletionNewParams
}

func (f *fakeChat) New(_ context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	f.lastParams = params
	return f.resp, f.err
}

func TestCompleteExtractsMessageAndUsage(t *testing.T) {
	fake := &fakeChat{
		resp: &openai.ChatCompletion{
			Choices: []openai.ChatCompletionChoice{
				{
					Message:      openai.ChatCompletionMessage{Content: "hi there"},
					FinishReason: "stop",
				},
			},
			Usage: openai.CompletionUsage{PromptTokens: 12, CompletionTokens: 4},
		},
	}
	client := NewWithChatClient(fake)
	resp, err := client.Complete(context.Background(), generative.Request{Model: "gpt-4o", System: "be terse", User: "say hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Text)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, 12, resp.InputTokens)
	assert.Equal(t, 4, resp.OutputTokens)
}

func TestCompleteNoChoicesIsNotRetryable(t *testing.T) {
	fake := &fakeChat{resp: &openai.ChatCompletion{}}
	client := NewWithChatClient(fake)
	_, err := client.Complete(context.Background(), generative.Request{Model: "gpt-4o", User: "hi"})
	require.Error(t, err)
	var perr *generative.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.False(t, perr.Retryable)
}

func TestCompleteLengthFinishReasonMapsToMaxTokens(t *testing.T) {
	fake := &fakeChat{
		resp: &openai.ChatCompletion{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "cut off"}, FinishReason: "length"}},
		},
	}
	client := NewWithChatClient(fake)
	resp, err := client.Complete(context.Background(), generative.Request{Model: "gpt-4o", User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "max_tokens", resp.StopReason)
}

func TestCompleteSendsFewShotTranscript(t *testing.T) {
	fake := &fakeChat{
		resp: &openai.ChatCompletion{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "ok"}, FinishReason: "stop"}},
		},
	}
	client := NewWithChatClient(fake)
	_, err := client.Complete(context.Background(), generative.Request{
		Model:  "gpt-4o",
		System: "be terse",
		User:   "say hi to Bo",
		Messages: []generative.Message{
			{Role: "user", Content: "say hi to Ada"},
			{Role: "assistant", Content: "Hi Ada!"},
			{Role: "user", Content: "say hi to Bo"},
		},
	})
	require.NoError(t, err)
	require.Len(t, fake.lastParams.Messages, 4)
}

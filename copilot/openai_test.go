package copilot

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	resp openai.ChatCompletionResponse
	err  error
	req  openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func toolCallResponse(name, args string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:       "call_1",
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: name, Arguments: args},
				}},
			},
		}},
	}
}

func TestOpenAIInterpreter_ToolCall(t *testing.T) {
	// GIVEN a model that calls run_simulation
	chat := &fakeChat{resp: toolCallResponse("run_simulation", `{"orders": 300, "return_rate_pct": 12.5}`)}
	interp := NewOpenAIInterpreter(chat, "")

	// WHEN interpreting
	intent, err := interp.Interpret(context.Background(), "simulate 300 orders at 12.5% returns")

	// THEN the tool call becomes the intent
	require.NoError(t, err)
	assert.Equal(t, OpRunSimulation, intent.Operation)
	assert.Equal(t, 300, intent.Args.Orders)
	require.NotNil(t, intent.Args.ReturnRatePct)
	assert.Equal(t, 12.5, *intent.Args.ReturnRatePct)
	assert.Equal(t, "openai:"+DefaultModel, intent.Source)

	// AND every operation was offered as a tool
	assert.Equal(t, DefaultModel, chat.req.Model)
	require.Len(t, chat.req.Tools, len(Operations))
	for i, op := range Operations {
		assert.Equal(t, string(op), chat.req.Tools[i].Function.Name)
	}
	require.Len(t, chat.req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleUser, chat.req.Messages[1].Role)
}

func TestOpenAIInterpreter_EmptyArguments(t *testing.T) {
	chat := &fakeChat{resp: toolCallResponse("summarize_dataset", "")}
	intent, err := NewOpenAIInterpreter(chat, "m").Interpret(context.Background(), "describe it")
	require.NoError(t, err)
	assert.Equal(t, OpSummarizeDataset, intent.Operation)
	assert.Equal(t, Arguments{}, intent.Args)
}

func TestOpenAIInterpreter_Failures(t *testing.T) {
	tests := []struct {
		name        string
		chat        *fakeChat
		wantUnknown bool
	}{
		{"api error", &fakeChat{err: errors.New("401")}, false},
		{"no choices", &fakeChat{}, false},
		{"bad json", &fakeChat{resp: toolCallResponse("forecast_demand", "{")}, false},
		{"unknown tool", &fakeChat{resp: toolCallResponse("delete_everything", "{}")}, true},
		{"plain text", &fakeChat{resp: openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Content: "I cannot help"},
		}}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOpenAIInterpreter(tt.chat, "m").Interpret(context.Background(), "q")
			require.Error(t, err)
			assert.Equal(t, tt.wantUnknown, errors.Is(err, ErrUnknownIntent))
		})
	}
}

package copilot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/sirupsen/logrus"
)

const DefaultModel = "gpt-4o-mini"

const systemPrompt = `You are a supply chain planning assistant. Answer every question by calling exactly one of the provided tools with the arguments you can infer from the question. Leave out arguments the user did not mention.`

// ChatClient is the part of *openai.Client the interpreter uses.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewOpenAIClient builds a client for the hosted API or, with baseURL set,
// any compatible endpoint.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// OpenAIInterpreter lets a chat model pick an operation through tool calling.
type OpenAIInterpreter struct {
	client ChatClient
	model  string
}

func NewOpenAIInterpreter(client ChatClient, model string) *OpenAIInterpreter {
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIInterpreter{client: client, model: model}
}

// Model is the chat model queried.
func (o *OpenAIInterpreter) Model() string { return o.model }

func (o *OpenAIInterpreter) Interpret(ctx context.Context, query string) (*Intent, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
		Tools:       tools(),
		ToolChoice:  "required",
		Temperature: 0,
	}
	logrus.Debugf("copilot: asking %s to interpret %q", o.model, query)
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}
	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		logrus.Debugf("copilot: model answered without a tool call: %q", msg.Content)
		return nil, unknownIntent(query)
	}
	call := msg.ToolCalls[0].Function
	op := Operation(call.Name)
	if !op.Valid() {
		return nil, unknownIntent(query)
	}
	intent := &Intent{Operation: op, Source: "openai:" + o.model}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &intent.Args); err != nil {
			return nil, fmt.Errorf("decoding %s arguments: %w", op, err)
		}
	}
	return intent, nil
}

func tools() []openai.Tool {
	integer := func(desc string) jsonschema.Definition {
		return jsonschema.Definition{Type: jsonschema.Integer, Description: desc}
	}
	str := func(desc string) jsonschema.Definition {
		return jsonschema.Definition{Type: jsonschema.String, Description: desc}
	}
	fn := func(op Operation, desc string, props map[string]jsonschema.Definition) openai.Tool {
		if props == nil {
			props = map[string]jsonschema.Definition{}
		}
		return openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        string(op),
				Description: desc,
				Parameters:  jsonschema.Definition{Type: jsonschema.Object, Properties: props},
			},
		}
	}
	return []openai.Tool{
		fn(OpRunSimulation, "Run the order delivery simulation on the uploaded dataset and report profit, delivery, return and stockout KPIs.",
			map[string]jsonschema.Definition{
				"dataset_id":      str("Dataset to sample orders from; omit for the latest upload"),
				"orders":          integer("Number of orders to sample"),
				"return_rate_pct": {Type: jsonschema.Number, Description: "Probability of a return, in percent (0-100)"},
				"delay_min_days":  integer("Minimum shipping delay in days"),
				"delay_max_days":  integer("Maximum shipping delay in days"),
				"initial_stock":   integer("Units on hand at the start"),
			}),
		fn(OpForecastDemand, "Forecast daily order quantity from the dataset's order dates.",
			map[string]jsonschema.Definition{
				"dataset_id": str("Dataset to forecast; omit for the latest upload"),
				"periods":    integer("Number of future days to forecast"),
			}),
		fn(OpSafetyStock, "Compute safety stock, reorder point and economic order quantity from a simulation run.",
			map[string]jsonschema.Definition{
				"run_id": str("Simulation run to analyse; omit for the latest run"),
			}),
		fn(OpSummarizeDataset, "Describe the uploaded order dataset: row counts and profit, quantity and price statistics.",
			map[string]jsonschema.Definition{
				"dataset_id": str("Dataset to describe; omit for the latest upload"),
			}),
		fn(OpOptimizeRoute, "Plan delivery routes from the depot to the configured stops.",
			map[string]jsonschema.Definition{
				"vehicles":         integer("Number of vehicles available"),
				"vehicle_capacity": integer("Units each vehicle can carry"),
			}),
	}
}

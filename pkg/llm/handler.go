package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// CallTools interface for handling tool calls
type CallTools interface {
	SendLink(ctx context.Context, platform, link string) string
	RequestHandoff(reason string) string
}

// TranscriptSink receives finished utterances for transcript capture
type TranscriptSink interface {
	AppendTranscript(speaker, text string)
}

// SendLinkArgs arguments of the send_link tool call
type SendLinkArgs struct {
	Platform string `json:"platform"`
	Link     string `json:"link"`
}

// TransferArgs arguments of the transfer_to_human tool call
type TransferArgs struct {
	Reason string `json:"reason"`
}

var sendLinkDefinition = openai.FunctionDefinition{
	Name:        "send_link",
	Description: "Send a product link to the customer via messaging platform. Use this when the customer expresses interest in a product and wants to receive a link to view or purchase it.",
	Parameters: json.RawMessage(`{
		"type": "object",
		"properties": {
			"platform": {
				"type": "string",
				"description": "The messaging platform to use (telegram or viber)"
			},
			"link": {
				"type": "string",
				"description": "The full URL to the product page"
			}
		},
		"required": ["platform", "link"]
	}`),
}

var transferDefinition = openai.FunctionDefinition{
	Name:        "transfer_to_human",
	Description: "Transfer the call to a human sales representative. Use this when the customer explicitly asks to speak with a human or manager, has a complex issue, or is upset.",
	Parameters: json.RawMessage(`{
		"type": "object",
		"properties": {
			"reason": {
				"type": "string",
				"description": "Brief description of why the transfer is needed"
			}
		},
		"required": []
	}`),
}

// maximum tool-call round trips per user turn
const maxToolRounds = 3

const defaultTemperature = 0.7

// Config connection and sampling settings for the hosted model.
type Config struct {
	APIKey      string
	Endpoint    string
	Model       string
	Temperature float32 // 0 falls back to defaultTemperature
	MaxTokens   int     // 0 leaves the provider default
}

// Handler manages the conversation with the hosted model for one call.
// Tool calls from the model are dispatched into the call's tool
// surface; finished utterances go to the transcript sink.
type Handler struct {
	client    *openai.Client
	cfg       Config
	systemMsg string
	tools     CallTools
	sink      TranscriptSink
	logger    *logrus.Logger

	mutex    sync.Mutex
	messages []openai.ChatCompletionMessage
}

// NewHandler creates a conversation handler.
func NewHandler(cfg Config, systemPrompt string, tools CallTools, sink TranscriptSink, logger *logrus.Logger) *Handler {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		config.BaseURL = cfg.Endpoint
	}
	client := openai.NewClientWithConfig(config)

	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		},
	}

	return &Handler{
		client:    client,
		cfg:       cfg,
		systemMsg: systemPrompt,
		tools:     tools,
		sink:      sink,
		logger:    logger,
		messages:  messages,
	}
}

// QueryStream sends one user turn and streams the reply. onDelta is
// called for each content chunk; the full reply is returned once the
// stream (including any tool-call round trips) finishes.
func (h *Handler) QueryStream(ctx context.Context, text string, onDelta func(delta string)) (string, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.messages = append(h.messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})
	if h.sink != nil {
		h.sink.AppendTranscript("user", text)
	}

	playID := fmt.Sprintf("llm-%s", uuid.New().String())
	h.logger.WithField("playID", playID).Info("Starting LLM stream")

	fullResponse := ""
	for round := 0; round < maxToolRounds; round++ {
		content, toolCalls, err := h.streamOnce(ctx)
		if err != nil {
			return "", err
		}

		if content != "" {
			fullResponse += content
			if onDelta != nil {
				onDelta(content)
			}
		}

		if len(toolCalls) == 0 {
			h.messages = append(h.messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: content,
			})
			break
		}

		// record the assistant turn with its tool calls, then feed
		// every tool result back for the next round
		h.messages = append(h.messages, openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			Content:   content,
			ToolCalls: toolCalls,
		})
		for _, tc := range toolCalls {
			result := h.dispatchTool(ctx, tc)
			h.messages = append(h.messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: tc.ID,
				Content:    result,
			})
		}
	}

	if h.sink != nil && fullResponse != "" {
		h.sink.AppendTranscript("agent", fullResponse)
	}

	h.logger.WithFields(logrus.Fields{
		"playID":   playID,
		"response": fullResponse,
	}).Info("LLM stream completed")

	return fullResponse, nil
}

// streamOnce runs a single streamed completion, accumulating content
// and chunked tool-call arguments.
func (h *Handler) streamOnce(ctx context.Context) (string, []openai.ToolCall, error) {
	request := openai.ChatCompletionRequest{
		Model:       h.cfg.Model,
		Messages:    h.messages,
		Temperature: h.cfg.Temperature,
		MaxTokens:   h.cfg.MaxTokens,
		Stream:      true,
		Tools: []openai.Tool{
			{Type: openai.ToolTypeFunction, Function: &sendLinkDefinition},
			{Type: openai.ToolTypeFunction, Function: &transferDefinition},
		},
	}

	stream, err := h.client.CreateChatCompletionStream(ctx, request)
	if err != nil {
		return "", nil, fmt.Errorf("error creating chat completion stream: %w", err)
	}
	defer stream.Close()

	content := ""
	var calls []openai.ToolCall

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, fmt.Errorf("error receiving from stream: %w", err)
		}
		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta

		content += delta.Content

		// tool-call arguments arrive in fragments keyed by index
		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			for len(calls) <= idx {
				calls = append(calls, openai.ToolCall{Type: openai.ToolTypeFunction})
			}
			if tc.ID != "" {
				calls[idx].ID = tc.ID
			}
			if tc.Function.Name != "" {
				calls[idx].Function.Name = tc.Function.Name
			}
			calls[idx].Function.Arguments += tc.Function.Arguments
		}

		if response.Choices[0].FinishReason != "" {
			break
		}
	}

	return content, calls, nil
}

func (h *Handler) dispatchTool(ctx context.Context, tc openai.ToolCall) string {
	h.logger.WithFields(logrus.Fields{
		"tool": tc.Function.Name,
		"args": tc.Function.Arguments,
	}).Info("Dispatching tool call")

	switch tc.Function.Name {
	case "send_link":
		var args SendLinkArgs
		if err := sonic.UnmarshalString(tc.Function.Arguments, &args); err != nil {
			h.logger.WithError(err).Error("Failed to parse send_link arguments")
			return "Could not parse the link request. Offer to read the link aloud instead."
		}
		return h.tools.SendLink(ctx, args.Platform, args.Link)
	case "transfer_to_human":
		var args TransferArgs
		if err := sonic.UnmarshalString(tc.Function.Arguments, &args); err != nil {
			h.logger.WithError(err).Error("Failed to parse transfer_to_human arguments")
			args.Reason = ""
		}
		return h.tools.RequestHandoff(args.Reason)
	default:
		h.logger.WithField("tool", tc.Function.Name).Warn("Unknown tool call")
		return fmt.Sprintf("Unknown tool: %s", tc.Function.Name)
	}
}

// Reset clears the conversation history but keeps the system prompt.
func (h *Handler) Reset() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.messages = []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: h.systemMsg,
		},
	}
}

// Messages returns a copy of the conversation so far.
func (h *Handler) Messages() []openai.ChatCompletionMessage {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	messages := make([]openai.ChatCompletionMessage, len(h.messages))
	copy(messages, h.messages)
	return messages
}

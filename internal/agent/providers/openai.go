package providers

import (
	"context"
	"errors"
	"io"

	"github.com/kestrel-agent/kestrel/internal/agent"
	"github.com/kestrel-agent/kestrel/pkg/models"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements agent.Provider against the Chat Completions API.
type OpenAIProvider struct {
	BaseProvider
	client       *openai.Client
	defaultModel string
}

func NewOpenAIProvider(apiKey, defaultModel string) *OpenAIProvider {
	if defaultModel == "" {
		defaultModel = "gpt-4o"
	}
	p := &OpenAIProvider{
		BaseProvider: NewBaseProvider("openai", 3, 0),
		defaultModel: defaultModel,
	}
	if apiKey != "" {
		p.client = openai.NewClient(apiKey)
	}
	return p
}

func (p *OpenAIProvider) Name() string { return "openai" }

// SupportsNativeTools is always true: Chat Completions accepts a
// tools array and returns structured tool_calls.
func (p *OpenAIProvider) SupportsNativeTools() bool { return true }

func (p *OpenAIProvider) Complete(ctx context.Context, req agent.CompletionRequest) (*models.ProviderResponse, error) {
	if p.client == nil {
		return nil, errors.New("openai: API key not configured")
	}

	chatReq := p.buildRequest(req)
	chatReq.Stream = false

	var resp openai.ChatCompletionResponse
	err := p.Retry(ctx, p.isRetryableError, func() error {
		r, err := p.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return &models.ProviderResponse{Model: resp.Model}, nil
	}

	choice := resp.Choices[0]
	out := &models.ProviderResponse{
		Content: choice.Message.Content,
		Model:   resp.Model,
		Usage: &models.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, req agent.CompletionRequest) (<-chan models.StreamChunk, error) {
	if p.client == nil {
		return nil, errors.New("openai: API key not configured")
	}

	chatReq := p.buildRequest(req)
	chatReq.Stream = true

	var stream *openai.ChatCompletionStream
	err := p.Retry(ctx, p.isRetryableError, func() error {
		s, err := p.client.CreateChatCompletionStream(ctx, chatReq)
		if err != nil {
			return err
		}
		stream = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	chunks := make(chan models.StreamChunk)
	go p.processStream(ctx, stream, chunks)
	return chunks, nil
}

func (p *OpenAIProvider) processStream(ctx context.Context, stream *openai.ChatCompletionStream, chunks chan<- models.StreamChunk) {
	defer close(chunks)
	defer stream.Close()

	toolCalls := make(map[int]*models.ToolCall)
	started := make(map[int]bool)

	for {
		select {
		case <-ctx.Done():
			chunks <- models.StreamChunk{Type: models.ChunkError, Error: ctx.Err().Error()}
			return
		default:
		}

		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				final := &models.ProviderResponse{}
				for _, tc := range toolCalls {
					if tc.ID != "" && tc.Name != "" {
						final.ToolCalls = append(final.ToolCalls, *tc)
					}
				}
				chunks <- models.StreamChunk{Type: models.ChunkDone, Response: final}
				return
			}
			chunks <- models.StreamChunk{Type: models.ChunkError, Error: err.Error()}
			return
		}

		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta

		if delta.Content != "" {
			chunks <- models.StreamChunk{Type: models.ChunkText, Text: delta.Content}
		}

		for _, tc := range delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			if toolCalls[index] == nil {
				toolCalls[index] = &models.ToolCall{}
			}
			if tc.ID != "" {
				toolCalls[index].ID = tc.ID
			}
			if tc.Function.Name != "" {
				toolCalls[index].Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				toolCalls[index].Arguments += tc.Function.Arguments
			}
			if !started[index] && toolCalls[index].ID != "" && toolCalls[index].Name != "" {
				started[index] = true
				chunks <- models.StreamChunk{Type: models.ChunkToolStart, ToolCallID: toolCalls[index].ID, ToolName: toolCalls[index].Name}
			}
			if tc.Function.Arguments != "" {
				chunks <- models.StreamChunk{Type: models.ChunkToolDelta, ToolCallID: toolCalls[index].ID, ToolArgDelta: tc.Function.Arguments}
			}
		}
	}
}

func (p *OpenAIProvider) buildRequest(req agent.CompletionRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, msg := range req.Messages {
		if msg.Role == "tool" {
			for _, tr := range msg.ToolResults {
				messages = append(messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    tr.Content,
					ToolCallID: tr.ToolCallID,
				})
			}
			continue
		}

		oaiMsg := openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content}
		for _, tc := range msg.ToolCalls {
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		messages = append(messages, oaiMsg)
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = p.convertTools(req.Tools)
	}
	return chatReq
}

func (p *OpenAIProvider) convertTools(tools []models.ToolSpec) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		}
	}
	return result
}

func (p *OpenAIProvider) isRetryableError(err error) bool {
	return IsRetryable(err)
}

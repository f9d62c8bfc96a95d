package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/kestrel-agent/kestrel/internal/agent"
	"github.com/kestrel-agent/kestrel/pkg/models"
)

// BedrockProvider implements agent.Provider against AWS Bedrock's Converse
// API, giving access to foundation models hosted on AWS including
// Anthropic Claude, Amazon Titan, and Meta Llama.
type BedrockProvider struct {
	BaseProvider
	client       *bedrockruntime.Client
	defaultModel string
	region       string
}

// BedrockConfig holds configuration for the Bedrock provider.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	DefaultModel    string
	MaxRetries      int
	RetryDelay      time.Duration
}

func NewBedrockProvider(cfg BedrockConfig) (*BedrockProvider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = config.LoadDefaultConfig(context.Background(),
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken,
			)),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(context.Background(), config.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("bedrock: failed to load AWS config: %w", err)
	}

	return &BedrockProvider{
		BaseProvider: NewBaseProvider("bedrock", cfg.MaxRetries, cfg.RetryDelay),
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: cfg.DefaultModel,
		region:       cfg.Region,
	}, nil
}

func (p *BedrockProvider) Name() string { return "bedrock" }

// SupportsNativeTools is always true: the Converse API accepts a
// ToolConfiguration and returns structured ToolUseBlock content.
func (p *BedrockProvider) SupportsNativeTools() bool { return true }

func (p *BedrockProvider) Complete(ctx context.Context, req agent.CompletionRequest) (*models.ProviderResponse, error) {
	chunks, err := p.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	var out models.ProviderResponse
	for chunk := range chunks {
		switch chunk.Type {
		case models.ChunkText:
			out.Content += chunk.Text
		case models.ChunkDone:
			if chunk.Response != nil {
				out.Usage = chunk.Response.Usage
				out.ToolCalls = append(out.ToolCalls, chunk.Response.ToolCalls...)
			}
		case models.ChunkError:
			return nil, errors.New(chunk.Error)
		}
	}
	out.Model = p.getModel(req.Model)
	return &out, nil
}

func (p *BedrockProvider) Stream(ctx context.Context, req agent.CompletionRequest) (<-chan models.StreamChunk, error) {
	if p.client == nil {
		return nil, NewProviderError("bedrock", req.Model, errors.New("bedrock client not initialized"))
	}
	model := p.getModel(req.Model)

	messages, err := p.convertMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("bedrock: failed to convert messages: %w", err)
	}

	converseReq := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(model),
		Messages: messages,
	}
	if req.System != "" {
		converseReq.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
	}
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		if maxTokens > math.MaxInt32 {
			maxTokens = math.MaxInt32
		}
		converseReq.InferenceConfig = &types.InferenceConfiguration{MaxTokens: aws.Int32(int32(maxTokens))}
	}
	if len(req.Tools) > 0 {
		converseReq.ToolConfig = toBedrockTools(req.Tools)
	}

	var stream *bedrockruntime.ConverseStreamOutput
	retryErr := p.Retry(ctx, p.isRetryableError, func() error {
		s, err := p.client.ConverseStream(ctx, converseReq)
		if err != nil {
			return p.wrapError(err, model)
		}
		stream = s
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}

	chunks := make(chan models.StreamChunk)
	go p.processStream(ctx, stream, chunks, model)
	return chunks, nil
}

func (p *BedrockProvider) processStream(ctx context.Context, stream *bedrockruntime.ConverseStreamOutput, chunks chan<- models.StreamChunk, model string) {
	defer close(chunks)

	eventStream := stream.GetStream()
	defer eventStream.Close()

	var currentToolCall *models.ToolCall
	var toolInput strings.Builder
	var finished []models.ToolCall

	eventChan := eventStream.Events()
	for {
		select {
		case <-ctx.Done():
			chunks <- models.StreamChunk{Type: models.ChunkError, Error: ctx.Err().Error()}
			return
		case event, ok := <-eventChan:
			if !ok {
				if currentToolCall != nil && currentToolCall.ID != "" {
					currentToolCall.Arguments = toolInput.String()
					finished = append(finished, *currentToolCall)
				}
				if err := eventStream.Err(); err != nil {
					chunks <- models.StreamChunk{Type: models.ChunkError, Error: p.wrapError(err, model).Error()}
					return
				}
				chunks <- models.StreamChunk{Type: models.ChunkDone, Response: &models.ProviderResponse{Model: model, ToolCalls: finished}}
				return
			}

			switch ev := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockStart:
				if toolUse, ok := ev.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
					currentToolCall = &models.ToolCall{
						ID:   aws.ToString(toolUse.Value.ToolUseId),
						Name: aws.ToString(toolUse.Value.Name),
					}
					toolInput.Reset()
					chunks <- models.StreamChunk{Type: models.ChunkToolStart, ToolCallID: currentToolCall.ID, ToolName: currentToolCall.Name}
				}

			case *types.ConverseStreamOutputMemberContentBlockDelta:
				switch delta := ev.Value.Delta.(type) {
				case *types.ContentBlockDeltaMemberText:
					if delta.Value != "" {
						chunks <- models.StreamChunk{Type: models.ChunkText, Text: delta.Value}
					}
				case *types.ContentBlockDeltaMemberToolUse:
					if delta.Value.Input != nil {
						toolInput.WriteString(*delta.Value.Input)
						chunks <- models.StreamChunk{Type: models.ChunkToolDelta, ToolArgDelta: *delta.Value.Input}
					}
				}

			case *types.ConverseStreamOutputMemberContentBlockStop:
				if currentToolCall != nil && currentToolCall.ID != "" {
					currentToolCall.Arguments = toolInput.String()
					finished = append(finished, *currentToolCall)
					currentToolCall = nil
					toolInput.Reset()
				}

			case *types.ConverseStreamOutputMemberMessageStop:
				chunks <- models.StreamChunk{Type: models.ChunkDone, Response: &models.ProviderResponse{Model: model, ToolCalls: finished}}
				return
			}
		}
	}
}

func (p *BedrockProvider) convertMessages(messages []agent.Message) ([]types.Message, error) {
	result := make([]types.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == "system" {
			continue
		}

		var content []types.ContentBlock
		if msg.Content != "" {
			content = append(content, &types.ContentBlockMemberText{Value: msg.Content})
		}
		for _, tr := range msg.ToolResults {
			content = append(content, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(tr.ToolCallID),
					Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: tr.Content}},
				},
			})
		}
		for _, tc := range msg.ToolCalls {
			var inputDoc any
			if err := json.Unmarshal([]byte(tc.Arguments), &inputDoc); err != nil {
				inputDoc = map[string]any{}
			}
			content = append(content, &types.ContentBlockMemberToolUse{
				Value: types.ToolUseBlock{
					ToolUseId: aws.String(tc.ID),
					Name:      aws.String(tc.Name),
					Input:     document.NewLazyDocument(inputDoc),
				},
			})
		}

		role := types.ConversationRoleUser
		if msg.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		if len(content) > 0 {
			result = append(result, types.Message{Role: role, Content: content})
		}
	}
	return result, nil
}

// toBedrockTools converts the provider-agnostic tool specs into Bedrock's
// Converse tool configuration.
func toBedrockTools(tools []models.ToolSpec) *types.ToolConfiguration {
	specs := make([]types.Tool, 0, len(tools))
	for _, tool := range tools {
		specs = append(specs, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(tool.Name),
				Description: aws.String(tool.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{
					Value: document.NewLazyDocument(tool.Parameters),
				},
			},
		})
	}
	return &types.ToolConfiguration{Tools: specs}
}

func (p *BedrockProvider) getModel(model string) string {
	if model == "" {
		return p.defaultModel
	}
	return model
}

func (p *BedrockProvider) isRetryableError(err error) bool {
	return IsRetryable(err)
}

func (p *BedrockProvider) wrapError(err error, model string) error {
	return NewProviderError(p.Name(), model, err)
}

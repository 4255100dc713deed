package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockClient calls the Bedrock Converse API with tool declarations.
type BedrockClient struct {
	api     bedrockConverseAPI
	modelID string
}

// NewBedrockClient wraps a Converse client. modelID is used when a request leaves Model empty.
func NewBedrockClient(api bedrockConverseAPI, modelID string) *BedrockClient {
	if api == nil {
		panic("llm: bedrock converse client cannot be nil")
	}
	return &BedrockClient{api: api, modelID: strings.TrimSpace(modelID)}
}

func (c *BedrockClient) Complete(ctx context.Context, req Request) (Response, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.modelID
	}
	if model == "" {
		return Response{}, errors.New("llm: bedrock model id is required")
	}

	systemBlocks := make([]brtypes.SystemContentBlock, 0, len(req.System))
	for _, block := range req.System {
		if strings.TrimSpace(block) == "" {
			continue
		}
		systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: block})
	}
	messages, extraSystem, err := bedrockMessages(req.Messages)
	if err != nil {
		return Response{}, err
	}
	systemBlocks = append(systemBlocks, extraSystem...)

	inference := &brtypes.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(req.MaxTokens)
	}
	if req.Temperature >= 0 {
		inference.Temperature = aws.Float32(req.Temperature)
	}
	if inference.MaxTokens == nil && inference.Temperature == nil {
		inference = nil
	}

	out, err := c.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(model),
		System:          systemBlocks,
		Messages:        messages,
		InferenceConfig: inference,
		ToolConfig:      bedrockToolConfig(req.Tools),
	})
	if err != nil {
		return Response{}, fmt.Errorf("llm: bedrock converse: %w", err)
	}
	return bedrockResponse(out)
}

func bedrockToolConfig(specs []ToolSpec) *brtypes.ToolConfiguration {
	if len(specs) == 0 {
		return nil
	}
	tools := make([]brtypes.Tool, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, &brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpecification{
			Name:        aws.String(spec.Name),
			Description: aws.String(spec.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(spec.Parameters.Map())},
		}})
	}
	return &brtypes.ToolConfiguration{Tools: tools}
}

// bedrockMessages converts the conversation. Consecutive tool results are folded
// into one user message because Converse requires alternating roles.
func bedrockMessages(msgs []Message) ([]brtypes.Message, []brtypes.SystemContentBlock, error) {
	var system []brtypes.SystemContentBlock
	out := make([]brtypes.Message, 0, len(msgs))
	for _, msg := range msgs {
		content := strings.TrimSpace(msg.Content)
		switch msg.Role {
		case RoleSystem:
			if content != "" {
				system = append(system, &brtypes.SystemContentBlockMemberText{Value: content})
			}
		case RoleUser:
			if content == "" {
				continue
			}
			out = append(out, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: content}},
			})
		case RoleAssistant:
			var blocks []brtypes.ContentBlock
			if content != "" {
				blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: content})
			}
			for _, call := range msg.ToolCalls {
				var input any = map[string]any{}
				if len(call.Arguments) > 0 {
					if err := json.Unmarshal(call.Arguments, &input); err != nil {
						return nil, nil, fmt.Errorf("llm: tool call %s arguments: %w", call.ID, err)
					}
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
					ToolUseId: aws.String(call.ID),
					Name:      aws.String(call.Name),
					Input:     document.NewLazyDocument(input),
				}})
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, brtypes.Message{Role: brtypes.ConversationRoleAssistant, Content: blocks})
		case RoleTool:
			block := &brtypes.ContentBlockMemberToolResult{Value: brtypes.ToolResultBlock{
				ToolUseId: aws.String(msg.ToolCallID),
				Content:   []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: msg.Content}},
			}}
			if n := len(out); n > 0 && out[n-1].Role == brtypes.ConversationRoleUser && isToolResultMessage(out[n-1]) {
				out[n-1].Content = append(out[n-1].Content, block)
				continue
			}
			out = append(out, brtypes.Message{Role: brtypes.ConversationRoleUser, Content: []brtypes.ContentBlock{block}})
		default:
			return nil, nil, fmt.Errorf("llm: unsupported role %q", msg.Role)
		}
	}
	return out, system, nil
}

func isToolResultMessage(msg brtypes.Message) bool {
	for _, block := range msg.Content {
		if _, ok := block.(*brtypes.ContentBlockMemberToolResult); !ok {
			return false
		}
	}
	return len(msg.Content) > 0
}

func bedrockResponse(out *bedrockruntime.ConverseOutput) (Response, error) {
	if out == nil {
		return Response{}, errors.New("llm: bedrock response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return Response{}, errors.New("llm: bedrock response did not include a message output")
	}

	var resp Response
	var text strings.Builder
	for _, block := range msgOut.Value.Content {
		switch b := block.(type) {
		case *brtypes.ContentBlockMemberText:
			text.WriteString(b.Value)
		case *brtypes.ContentBlockMemberToolUse:
			args := json.RawMessage("{}")
			if b.Value.Input != nil {
				raw, err := b.Value.Input.MarshalSmithyDocument()
				if err != nil {
					return Response{}, fmt.Errorf("llm: decode tool input: %w", err)
				}
				args = raw
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        aws.ToString(b.Value.ToolUseId),
				Name:      aws.ToString(b.Value.Name),
				Arguments: args,
			})
		}
	}
	resp.Text = strings.TrimSpace(text.String())
	resp.StopReason = string(out.StopReason)
	if out.Usage != nil {
		resp.Usage = TokenUsage{
			InputTokens:  int32OrZero(out.Usage.InputTokens),
			OutputTokens: int32OrZero(out.Usage.OutputTokens),
			TotalTokens:  int32OrZero(out.Usage.TotalTokens),
		}
	}
	return resp, nil
}

func int32OrZero(v *int32) int32 {
	if v == nil {
		return 0
	}
	return *v
}

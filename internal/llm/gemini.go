package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// GeminiClient implements Client using Google's Gemini API with function calling.
type GeminiClient struct {
	client  *genai.Client
	modelID string
}

// NewGeminiClient creates a Gemini client.
func NewGeminiClient(ctx context.Context, apiKey, modelID string) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("llm: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("llm: failed to create gemini client: %w", err)
	}
	return &GeminiClient{client: client, modelID: modelID}, nil
}

func (c *GeminiClient) Complete(ctx context.Context, req Request) (Response, error) {
	model := c.client.GenerativeModel(c.modelID)
	if req.Temperature >= 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}
	if tools := geminiTools(req.Tools); tools != nil {
		model.Tools = tools
	}

	system := append([]string(nil), req.System...)
	for _, msg := range req.Messages {
		if msg.Role == RoleSystem {
			system = append(system, msg.Content)
		}
	}
	if text := strings.TrimSpace(strings.Join(system, "\n\n")); text != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(text))
	}

	contents, err := geminiContents(req.Messages)
	if err != nil {
		return Response{}, err
	}
	if len(contents) == 0 {
		return Response{}, errors.New("llm: gemini requires at least one message")
	}

	cs := model.StartChat()
	cs.History = contents[:len(contents)-1]
	last := contents[len(contents)-1]
	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return Response{}, fmt.Errorf("llm: gemini completion failed: %w", err)
	}
	return geminiResponse(resp)
}

// Close releases resources held by the Gemini client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func geminiTools(specs []ToolSpec) []*genai.Tool {
	if len(specs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  geminiSchema(spec.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func geminiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        geminiType(s.Type),
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = geminiSchema(prop)
		}
	}
	return out
}

func geminiType(t string) genai.Type {
	switch t {
	case "object":
		return genai.TypeObject
	case "string":
		return genai.TypeString
	case "boolean":
		return genai.TypeBoolean
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeUnspecified
	}
}

// geminiContents maps the conversation onto user/model turns. Tool results
// become function responses grouped into a single user turn.
func geminiContents(msgs []Message) ([]*genai.Content, error) {
	out := make([]*genai.Content, 0, len(msgs))
	for _, msg := range msgs {
		content := strings.TrimSpace(msg.Content)
		switch msg.Role {
		case RoleSystem:
			continue
		case RoleUser:
			if content == "" {
				continue
			}
			out = append(out, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(content)}})
		case RoleAssistant:
			var parts []genai.Part
			if content != "" {
				parts = append(parts, genai.Text(content))
			}
			for _, call := range msg.ToolCalls {
				args := map[string]any{}
				if len(call.Arguments) > 0 {
					if err := json.Unmarshal(call.Arguments, &args); err != nil {
						return nil, fmt.Errorf("llm: tool call %s arguments: %w", call.ID, err)
					}
				}
				parts = append(parts, genai.FunctionCall{Name: call.Name, Args: args})
			}
			if len(parts) == 0 {
				continue
			}
			out = append(out, &genai.Content{Role: "model", Parts: parts})
		case RoleTool:
			payload := map[string]any{}
			if err := json.Unmarshal([]byte(msg.Content), &payload); err != nil {
				payload = map[string]any{"result": msg.Content}
			}
			part := genai.FunctionResponse{Name: msg.ToolName, Response: payload}
			if n := len(out); n > 0 && out[n-1].Role == "user" && onlyFunctionResponses(out[n-1]) {
				out[n-1].Parts = append(out[n-1].Parts, part)
				continue
			}
			out = append(out, &genai.Content{Role: "user", Parts: []genai.Part{part}})
		default:
			return nil, fmt.Errorf("llm: unsupported role %q", msg.Role)
		}
	}
	return out, nil
}

func onlyFunctionResponses(c *genai.Content) bool {
	for _, p := range c.Parts {
		if _, ok := p.(genai.FunctionResponse); !ok {
			return false
		}
	}
	return len(c.Parts) > 0
}

func geminiResponse(resp *genai.GenerateContentResponse) (Response, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return Response{}, errors.New("llm: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return Response{}, errors.New("llm: gemini returned empty content")
	}

	var result Response
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text.WriteString(string(p))
		case genai.FunctionCall:
			args, err := json.Marshal(p.Args)
			if err != nil {
				return Response{}, fmt.Errorf("llm: encode function args: %w", err)
			}
			if p.Args == nil {
				args = []byte("{}")
			}
			result.ToolCalls = append(result.ToolCalls, ToolCall{ID: uuid.NewString(), Name: p.Name, Arguments: args})
		}
	}
	result.Text = strings.TrimSpace(text.String())
	result.StopReason = candidate.FinishReason.String()
	if resp.UsageMetadata != nil {
		result.Usage = TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		}
	}
	return result, nil
}

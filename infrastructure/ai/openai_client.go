package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"webagent/domain/entities"
	"webagent/domain/interfaces"

	"github.com/sirupsen/logrus"
)

const defaultEndpoint = "https://api.openai.com/v1/chat/completions"

// The model only makes one decision per call, so output stays small and
// deterministic.
const (
	decisionTemperature = 0.0
	decisionMaxTokens   = 500
)

type OpenAIClient struct {
	apiKey       string
	endpoint     string
	client       *http.Client
	logger       *logrus.Logger
	model        string
	systemPrompt string
	tools        []Tool
}

func NewOpenAIClient(logger *logrus.Logger, schemas []entities.ToolSchema, systemPrompt string) (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o"
	}

	endpoint := os.Getenv("OPENAI_ENDPOINT")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	tools := make([]Tool, 0, len(schemas))
	for _, schema := range schemas {
		tools = append(tools, Tool{
			Type: "function",
			Function: ToolFunction{
				Name:        schema.Name,
				Description: schema.Description,
				Parameters:  schema.Parameters,
			},
		})
	}

	return &OpenAIClient{
		apiKey:       apiKey,
		endpoint:     endpoint,
		client:       &http.Client{},
		logger:       logger,
		model:        model,
		systemPrompt: systemPrompt,
		tools:        tools,
	}, nil
}

// DecideNextAction asks the model for the next tool call given the annotated
// page state.
func (c *OpenAIClient) DecideNextAction(ctx context.Context, task string, obs entities.Observation, history []entities.Decision) (entities.Decision, error) {
	parts := []ContentPart{
		{Type: "text", Text: c.buildObservationText(task, obs, history)},
	}
	if len(obs.Screenshot) > 0 {
		parts = append(parts, ContentPart{
			Type: "image_url",
			ImageURL: &ImageURL{
				URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(obs.Screenshot),
			},
		})
	}

	messages := []Message{
		{Role: "system", Content: c.systemPrompt},
		{Role: "user", Content: parts},
	}

	decision, err := c.callAPI(ctx, messages)
	if err != nil {
		return entities.Decision{}, err
	}
	return decision, nil
}

func (c *OpenAIClient) buildObservationText(task string, obs entities.Observation, history []entities.Decision) string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Task: %s\n\n", task))
	builder.WriteString(fmt.Sprintf("Current page: %s", obs.URL))
	if obs.Title != "" {
		builder.WriteString(fmt.Sprintf(" (%s)", obs.Title))
	}
	builder.WriteString("\n\n")

	if obs.ElementText != "" {
		builder.WriteString("Interactive elements on the page, numbered as on the screenshot:\n")
		builder.WriteString(obs.ElementText)
		builder.WriteString("\n\n")
	} else {
		builder.WriteString("No interactive elements were described on this page.\n\n")
	}

	if len(history) > 0 {
		builder.WriteString("Previous actions:\n")
		for i, decision := range history {
			builder.WriteString(fmt.Sprintf("%d. %s", i+1, describeDecision(decision)))
			if decision.Error != "" {
				builder.WriteString(fmt.Sprintf(" (failed: %s)", decision.Error))
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString("Decide what action to take next.")
	return builder.String()
}

func describeDecision(d entities.Decision) string {
	if d.Tool == "" {
		return "no action chosen"
	}
	if len(d.Arguments) == 0 {
		return d.Tool
	}
	args, err := json.Marshal(d.Arguments)
	if err != nil {
		return d.Tool
	}
	return fmt.Sprintf("%s %s", d.Tool, args)
}

func (c *OpenAIClient) callAPI(ctx context.Context, messages []Message) (entities.Decision, error) {
	requestBody := map[string]interface{}{
		"model":       c.model,
		"messages":    messages,
		"temperature": decisionTemperature,
		"max_tokens":  decisionMaxTokens,
	}

	if len(c.tools) > 0 {
		requestBody["tools"] = c.tools
		requestBody["tool_choice"] = "auto"
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return entities.Decision{}, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return entities.Decision{}, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.client.Do(req)
	if err != nil {
		return entities.Decision{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return entities.Decision{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return entities.Decision{}, fmt.Errorf("API error: %s - %s", resp.Status, string(body))
	}

	var apiResponse APIResponse
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return entities.Decision{}, err
	}

	if len(apiResponse.Choices) == 0 {
		return entities.Decision{}, fmt.Errorf("no response from API")
	}

	choice := apiResponse.Choices[0]

	if len(choice.Message.ToolCalls) > 0 {
		toolCall := choice.Message.ToolCalls[0]
		var args map[string]interface{}
		if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &args); err != nil {
			return entities.Decision{}, fmt.Errorf("failed to parse tool call arguments: %w", err)
		}
		return entities.Decision{
			Tool:      toolCall.Function.Name,
			Arguments: args,
		}, nil
	}

	return c.parseContentDecision(choice.Message.Content), nil
}

// parseContentDecision salvages a decision from plain content when the model
// answered without a structured tool call.
func (c *OpenAIClient) parseContentDecision(content string) entities.Decision {
	cleaned := extractJSONFromMarkdown(content)

	var toolCall struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(cleaned), &toolCall); err == nil && toolCall.Name != "" {
		return entities.Decision{
			Tool:      toolCall.Name,
			Arguments: toolCall.Arguments,
		}
	}

	return entities.Decision{Reasoning: content}
}

// extractJSONFromMarkdown - extracts JSON from markdown code blocks
func extractJSONFromMarkdown(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		var jsonLines []string
		inCodeBlock := false

		for _, line := range lines {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "```") {
				if !inCodeBlock {
					inCodeBlock = true
					continue
				} else {
					break
				}
			}
			if inCodeBlock {
				jsonLines = append(jsonLines, line)
			}
		}

		if len(jsonLines) > 0 {
			return strings.Join(jsonLines, "\n")
		}
	}

	startIdx := strings.Index(text, "{")
	endIdx := strings.LastIndex(text, "}")
	if startIdx != -1 && endIdx != -1 && endIdx > startIdx {
		return text[startIdx : endIdx+1]
	}

	return text
}

// API structures

type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type APIResponse struct {
	Choices []struct {
		Message struct {
			Content   string     `json:"content"`
			ToolCalls []ToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
	} `json:"choices"`
}

// Ensure OpenAIClient implements the AI interface
var _ interfaces.AI = (*OpenAIClient)(nil)

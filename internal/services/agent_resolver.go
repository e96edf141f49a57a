package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	openai "github.com/sashabaranov/go-openai"

	domain "github.com/laminate-navigator/api/internal/domain"
	"github.com/laminate-navigator/api/internal/platform/color"
)

// resolutionInstruction pins the collaborator to a strict two-field JSON
// reply. Pure white and black are disallowed because they match either
// nothing or everything in a laminate catalog.
const resolutionInstruction = "Return ONLY valid JSON. Do not add any text, markdown, or explanation. " +
	"The JSON must have exactly two keys: 'hexcode' and 'description'. " +
	"Hexcode must start with # and must not be white (#FFFFFF) or black (#000000). " +
	`Example: {"hexcode": "#AABBCC", "description": "Soft blue shade"}. ` +
	"Now extract for: "

// ChatCompleter abstracts the chat-completion API for testing.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// AgentResolverDeps bundles constructor inputs for the agent resolver.
type AgentResolverDeps struct {
	Client    ChatCompleter
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

type agentResolver struct {
	client    ChatCompleter
	model     string
	maxTokens int
	timeout   time.Duration
	sanitizer *bluemonday.Policy
}

// NewAgentResolver constructs the resolver around an initialised completion client.
func NewAgentResolver(deps AgentResolverDeps) (AgentResolver, error) {
	if deps.Client == nil {
		return nil, errors.New("agent resolver: completion client is required")
	}
	if strings.TrimSpace(deps.Model) == "" {
		return nil, errors.New("agent resolver: model is required")
	}
	return &agentResolver{
		client:    deps.Client,
		model:     deps.Model,
		maxTokens: deps.MaxTokens,
		timeout:   deps.Timeout,
		sanitizer: bluemonday.StrictPolicy(),
	}, nil
}

type agentReply struct {
	Hexcode     string `json:"hexcode"`
	Description string `json:"description"`
}

// Resolve implements the AgentResolver contract. A single call, no retries:
// any malformed reply is terminal for the turn.
func (r *agentResolver) Resolve(ctx context.Context, phrase string, history []domain.Message) (ColorResolution, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     r.model,
		MaxTokens: r.maxTokens,
		Messages:  buildMessages(phrase, history),
	})
	if err != nil {
		return ColorResolution{}, fmt.Errorf("%w: completion call: %v", ErrAgentResponse, err)
	}
	if len(resp.Choices) == 0 {
		return ColorResolution{}, fmt.Errorf("%w: no choices returned", ErrAgentResponse)
	}

	content := trimCodeFence(resp.Choices[0].Message.Content)

	var reply agentReply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return ColorResolution{}, fmt.Errorf("%w: non-JSON reply", ErrAgentResponse)
	}

	hexcode := strings.TrimSpace(reply.Hexcode)
	if hexcode == "" {
		return ColorResolution{}, fmt.Errorf("%w: hexcode field is missing or empty", ErrAgentResponse)
	}
	if !domain.HasHexMarker(hexcode) {
		return ColorResolution{}, fmt.Errorf("%w: hexcode %q lacks the # marker", ErrAgentResponse, hexcode)
	}
	if _, err := color.ParseHex(hexcode); err != nil {
		return ColorResolution{}, fmt.Errorf("%w: hexcode %q does not parse", ErrAgentResponse, hexcode)
	}

	key := color.NormalizeKey(hexcode)
	if key == "#FFFFFF" || key == "#000000" {
		return ColorResolution{}, fmt.Errorf("%w: hexcode %s is disallowed", ErrAgentResponse, key)
	}

	description := strings.TrimSpace(r.sanitizer.Sanitize(reply.Description))
	if description == "" {
		description = "Found matching color."
	}

	return ColorResolution{ColorKey: key, Description: description}, nil
}

func buildMessages(phrase string, history []domain.Message) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if msg.Speaker == domain.SpeakerAgent {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Text})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: resolutionInstruction + phrase,
	})
	return messages
}

// trimCodeFence strips a surrounding markdown fence when the model ignores
// the no-markdown instruction.
func trimCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

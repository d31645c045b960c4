package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/compasshq/keel/pkg/contracts"
)

const systemPrompt = `You are the strategic-planning advisor for an OGSM dashboard.
Answer the user's question, and when a concrete data change is warranted,
propose it as an action. Respond with ONLY a JSON object of this shape:

{
  "text": "<your advice>",
  "proposed_actions": [
    {"type": "updateKpiValue", "target_entity_id": "<kpi id>", "payload": {"value": 123}}
  ]
}

Allowed action types: updateKpiValue {value}, updateKpiTarget {target},
updateOgsmStatus {status}, createKpiHistoryEntry {value}.
Propose no actions when none are needed.`

// OpenAIConfig configures the client. BaseURL supports OpenAI-compatible
// local endpoints (LM Studio, vLLM).
type OpenAIConfig struct {
	APIKey            string
	Model             string
	BaseURL           string
	RequestsPerSecond float64
	Burst             int
}

// OpenAIAdvisor obtains recommendations from an OpenAI-compatible chat
// endpoint and parses the structured JSON reply.
type OpenAIAdvisor struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewOpenAIAdvisor(cfg OpenAIConfig, logger *slog.Logger) *OpenAIAdvisor {
	if logger == nil {
		logger = slog.Default()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 4
	}
	return &OpenAIAdvisor{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}
}

func (a *OpenAIAdvisor) GetRecommendation(ctx context.Context, history []Message, userMessage string) (*contracts.Recommendation, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, classify(err)
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleSystem, Content: systemPrompt,
	})
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: userMessage,
	})

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		a.logger.Warn("advisor call failed", "error", err)
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, contracts.NewTurnError(contracts.KindCollaboratorError, errors.New("advisor returned no choices"))
	}

	rec, err := parseRecommendation(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, contracts.NewTurnError(contracts.KindCollaboratorError, err)
	}
	return rec, nil
}

// classify maps transport errors onto the turn-error taxonomy. Deadline
// and cancellation become CollaboratorTimeout; everything else is a
// CollaboratorError.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return contracts.NewTurnError(contracts.KindCollaboratorTimeout, err)
	}
	return contracts.NewTurnError(contracts.KindCollaboratorError, err)
}

// parseRecommendation decodes the advisor's JSON reply, tolerating a
// fenced code block around the object.
func parseRecommendation(content string) (*contracts.Recommendation, error) {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	var rec contracts.Recommendation
	if err := json.Unmarshal([]byte(trimmed), &rec); err != nil {
		return nil, fmt.Errorf("advisor reply is not valid recommendation JSON: %w", err)
	}
	if rec.Text == "" {
		return nil, errors.New("advisor reply has empty text")
	}
	return &rec, nil
}

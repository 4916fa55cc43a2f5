package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/yberthe/call-triage/internal/session"
	"github.com/yberthe/call-triage/pkg/logger"
)

// Config configures the OpenAI-backed reply generator.
type Config struct {
	APIKey         string
	Model          string
	SummaryModel   string
	TimeoutSeconds int
	MaxTokens      int
	Temperature    float64
}

const dispatcherSystemPrompt = `Tu es un assistant de régulation médicale d'urgence.
Tu réponds à l'appelant en une ou deux phrases courtes, calmes et directives.
Priorités : confirmer l'adresse exacte, évaluer l'état de conscience et la
respiration, rassurer, et donner une consigne simple à la fois.
Ne pose jamais plus d'une question par réponse.`

const summarySystemPrompt = `Résume l'appel d'urgence suivant en UNE phrase de
100 caractères maximum, au format :
"Patient [âge/sexe si connus], [symptômes principaux], [contexte]".
Réponds uniquement avec la phrase, sans guillemets.`

// Client implements session.ReplyGenerator against the OpenAI chat
// completions API.
type Client struct {
	client       openai.Client
	model        string
	summaryModel string
	maxTokens    int
	temperature  float64
	logger       *logger.Logger
}

var _ session.ReplyGenerator = (*Client)(nil)

// NewClient creates a new OpenAI client.
func NewClient(config Config, log *logger.Logger) *Client {
	l := log.Named("llm-client")
	if config.APIKey == "" {
		l.Warn("OpenAI API key is empty - reply generation will fall back to static text")
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.SummaryModel == "" {
		config.SummaryModel = config.Model
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 200
	}
	if config.Temperature <= 0 {
		config.Temperature = 0.4
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = 30
	}

	return &Client{
		client: openai.NewClient(
			option.WithAPIKey(config.APIKey),
			option.WithRequestTimeout(time.Duration(config.TimeoutSeconds)*time.Second),
		),
		model:        config.Model,
		summaryModel: config.SummaryModel,
		maxTokens:    config.MaxTokens,
		temperature:  config.Temperature,
		logger:       l,
	}
}

// GenerateReply produces the dispatcher's next utterance from the full
// message history.
func (c *Client) GenerateReply(ctx context.Context, history []session.Message) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	messages = append(messages, openai.SystemMessage(dispatcherSystemPrompt))
	for _, m := range history {
		switch m.Role {
		case session.RoleCaller:
			messages = append(messages, openai.UserMessage(m.Content))
		case session.RoleDispatcher:
			messages = append(messages, openai.AssistantMessage(m.Content))
		case session.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(c.model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(c.maxTokens)),
		Temperature:         openai.Float(c.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	c.logger.Debug("Generated dispatcher reply",
		logger.Int("history_len", len(history)),
		logger.Int("reply_len", len(reply)))
	return reply, nil
}

// Summarize produces the one-sentence triage summary from the message
// history. The orchestrator truncates and substitutes a placeholder when the
// result is malformed.
func (c *Client) Summarize(ctx context.Context, history []session.Message) (string, error) {
	var b strings.Builder
	for _, m := range history {
		if m.Role == session.RoleSystem {
			continue
		}
		role := "Appelant"
		if m.Role == session.RoleDispatcher {
			role = "Régulateur"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.summaryModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(summarySystemPrompt),
			openai.UserMessage(b.String()),
		},
		MaxCompletionTokens: openai.Int(80),
		Temperature:         openai.Float(0.2),
	})
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summarization returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

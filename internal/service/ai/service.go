package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"kaizenbot/internal/config"
	"kaizenbot/internal/models"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

const defaultTimeout = 30 * time.Second

const systemPrompt = "You are the AI assistant of a daily reflection question bot. " +
	"Answer only with the requested JSON, without any additional text."

// ChatModel is the narrow slice of an eino chat model the service needs.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Service wraps a chat model with the bot's question-generation and
// analysis operations. Every operation runs under a bounded timeout and
// falls back to static content when the model fails.
type Service struct {
	chatModel ChatModel
	timeout   time.Duration
}

// NewService builds the service for the configured provider.
func NewService(cfg *config.Config) (*Service, error) {
	provider := cfg.AI.Provider
	provCfg, ok := cfg.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", provider)
	}
	modelName := cfg.AI.Model
	if modelName == "" {
		modelName = provCfg.Model
	}

	var (
		chatModel model.ToolCallingChatModel
		err       error
	)
	switch provider {
	case "openai":
		chatModel, err = openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   modelName,
			APIKey:  provCfg.APIKey,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey: provCfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(context.Background(), &gemini.Config{
			Client: client,
			Model:  modelName,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(context.Background(), &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     modelName,
			BaseURL:   baseURLPtr,
			MaxTokens: 1000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", provider, err)
	}

	timeout := time.Duration(cfg.AI.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Service{chatModel: chatModel, timeout: timeout}, nil
}

// NewServiceWithModel builds the service around an existing chat model.
func NewServiceWithModel(chatModel ChatModel, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Service{chatModel: chatModel, timeout: timeout}
}

func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	if s.chatModel == nil {
		return "", errors.New("chat model not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.chatModel.Generate(ctx, []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: prompt},
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

func contextText(userCtx *models.Context) string {
	if userCtx == nil {
		return "No context provided"
	}
	return fmt.Sprintf("- About: %s\n- Goals: %s\n- Life areas: %s",
		userCtx.AboutMe, userCtx.Goals, userCtx.Areas)
}

func logFallback(op string, err error) {
	log.Printf("[AI] %s failed, using fallback: %v", op, err)
}

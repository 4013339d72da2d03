package llm

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/blingmoon/stepchain/workflow"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

func NewOpenAIClient(cfg OpenAIConfig) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return openai.NewClientWithConfig(clientConfig)
}

// OpenAIGenerator 带固定 system 指令的生成器，一个指令对应一个"角色"
type OpenAIGenerator struct {
	client       *openai.Client
	model        string
	name         string
	instructions string
	logger       *slog.Logger
}

func NewOpenAIGenerator(client *openai.Client, model, name, instructions string, logger *slog.Logger) *OpenAIGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIGenerator{
		client:       client,
		model:        model,
		name:         name,
		instructions: instructions,
		logger:       logger.With(slog.String("generator", name)),
	}
}

func (g *OpenAIGenerator) Name() string { return g.name }

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (TextStream, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if g.instructions != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: g.instructions,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})
	stream, err := g.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		g.logger.WarnContext(ctx, "[warn]create completion stream failed", slog.String("err", err.Error()))
		return nil, errors.WithMessagef(workflow.ErrExternalCall, "generator %s: %v", g.name, err)
	}
	return &openAIStream{stream: stream, name: g.name}, nil
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
	name   string
}

func (s *openAIStream) Recv() (string, error) {
	for {
		response, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", errors.WithMessagef(workflow.ErrExternalCall, "generator %s recv: %v", s.name, err)
		}
		if len(response.Choices) == 0 || response.Choices[0].Delta.Content == "" {
			// role 分片或者空分片
			continue
		}
		return response.Choices[0].Delta.Content, nil
	}
}

func (s *openAIStream) Close() error {
	s.stream.Close()
	return nil
}

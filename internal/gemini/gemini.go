package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielpatrickdp/cotherapist/internal/capability"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// ErrNoEmbedding is returned when the API answers without a vector.
var ErrNoEmbedding = errors.New("no embedding returned")

// SystemPrompt frames every generation call.
const SystemPrompt = "You are a supportive, empathetic assistant trained to respond like a " +
	"licensed therapist. You are not a replacement for professional care and you " +
	"never diagnose or prescribe."

// #region config
// Config selects the Gemini models.
type Config struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	BaseURL        string // optional endpoint override
}

// DefaultConfig returns the default model names.
func DefaultConfig() Config {
	return Config{
		Model:          "gemini-2.0-flash",
		EmbeddingModel: "gemini-embedding-001",
	}
}

// #endregion config

// #region client
// Client adapts the Gemini API to the generation and embedding
// capabilities.
type Client struct {
	client *genai.Client
	config Config
	logger *zap.Logger
}

var (
	_ capability.Generator = (*Client)(nil)
	_ capability.Embedder  = (*Client)(nil)
)

// New creates a Gemini client. logger may be nil.
func New(ctx context.Context, config Config, logger *zap.Logger) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	defaults := DefaultConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = defaults.EmbeddingModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cc := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{client: client, config: config, logger: logger.Named("gemini")}, nil
}

// #endregion client

// #region generate
// Generate renders retrieved context into the prompt and asks the model.
func (c *Client) Generate(ctx context.Context, req capability.GenerateRequest) (string, error) {
	gc := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
	}
	if req.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(req.MaxTokens)
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.config.Model,
		genai.Text(capability.FormatPrompt(req.Prompt, req.Context)), gc)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	c.logger.Debug("generated",
		zap.String("model", c.config.Model),
		zap.Int("context", len(req.Context)),
		zap.Int("chars", len(text)),
	)
	return text, nil
}

// #endregion generate

// #region embed
// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	resp, err := c.client.Models.EmbedContent(ctx, c.config.EmbeddingModel, contents,
		&genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"})
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, ErrNoEmbedding
	}
	return resp.Embeddings[0].Values, nil
}

// #endregion embed

// Package generation wraps the Gemini API for grounded and ungrounded
// answer generation.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/skripsi-assistant/rag-server/internal/vectorstore"
)

const (
	// ModelName is the hosted language model used for answers.
	ModelName = "gemini-1.5-flash"

	// DefaultMaxOutputTokens bounds answer length.
	DefaultMaxOutputTokens = 1000

	// DefaultTemperature for answer generation.
	DefaultTemperature = 0.7
)

// Client wraps a Gemini generative model. Provider failures never escape as
// errors from the generation methods; they degrade to user-visible
// apologies so a Q&A request always gets an answer string.
type Client struct {
	client *genai.Client
	model  *genai.GenerativeModel
	logger *slog.Logger
}

// NewClient creates a Gemini client. Initialization failure is fatal to
// service startup.
func NewClient(ctx context.Context, apiKey string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(ModelName)
	model.SetMaxOutputTokens(DefaultMaxOutputTokens)
	model.SetTemperature(DefaultTemperature)

	return &Client{
		client: client,
		model:  model,
		logger: logger,
	}, nil
}

// Generate produces a grounded answer from the question and retrieved
// context chunks.
func (c *Client) Generate(ctx context.Context, question string, chunks []vectorstore.Result) string {
	prompt := BuildPrompt(question, chunks)

	answer, err := c.complete(ctx, prompt)
	if err != nil {
		c.logger.Error("gemini generation failed", "error", err)
		return fmt.Sprintf("Maaf, terjadi kesalahan saat memproses pertanyaan Anda. Error: %v", err)
	}
	return answer
}

// GenerateSimple produces an ungrounded answer when retrieval found no
// relevant context.
func (c *Client) GenerateSimple(ctx context.Context, question string) string {
	answer, err := c.complete(ctx, BuildSimplePrompt(question))
	if err != nil {
		c.logger.Error("gemini simple generation failed", "error", err)
		return "Maaf, terjadi kesalahan saat memproses pertanyaan Anda."
	}
	return answer
}

// TestConnection reports whether the model answers a trivial prompt.
func (c *Client) TestConnection(ctx context.Context) bool {
	answer, err := c.complete(ctx, "Test connection")
	if err != nil {
		c.logger.Error("gemini connection test failed", "error", err)
		return false
	}
	return len(answer) > 0
}

// Close releases the underlying client.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// complete sends one prompt and collects the text parts of all candidates.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	var parts []string
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				parts = append(parts, string(text))
			}
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("empty response from model")
	}
	return strings.Join(parts, "\n"), nil
}

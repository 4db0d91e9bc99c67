package provider

import (
	"context"
	"strings"

	"github.com/kelsos/genjobs/internal/client"
	"github.com/kelsos/genjobs/internal/logger"
	"github.com/kelsos/genjobs/internal/models"
)

const translateInstruction = "Translate the following content into English:"

// Translator turns prompts into English through a chat completion endpoint.
type Translator struct {
	client *client.APIClient
	url    string
	model  string
}

// NewTranslator returns a translator. An empty url disables translation.
func NewTranslator(apiClient *client.APIClient, url, model string) *Translator {
	return &Translator{client: apiClient, url: url, model: model}
}

// Translate never fails: any error or empty answer yields the original text.
func (t *Translator) Translate(ctx context.Context, text string) string {
	if t == nil || t.url == "" || strings.TrimSpace(text) == "" {
		return text
	}

	request := models.ChatRequest{
		Model: t.model,
		Messages: []models.ChatMessage{
			{Role: "system", Content: translateInstruction},
			{Role: "user", Content: text},
		},
		MaxTokens: 1000,
	}

	var response models.ChatResponse
	if err := t.client.Post(ctx, t.url, request, &response); err != nil {
		logger.Error("Translation failed, using original prompt: %v", err)
		return text
	}

	if len(response.Choices) == 0 {
		logger.Warn("Translation returned no choices, using original prompt")
		return text
	}

	translated := strings.TrimSpace(response.Choices[0].Message.Content)
	if translated == "" {
		logger.Warn("Translation returned empty content, using original prompt")
		return text
	}

	logger.Info("Translated prompt: %s", translated)
	return translated
}

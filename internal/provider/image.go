package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/kelsos/genjobs/internal/client"
	"github.com/kelsos/genjobs/internal/config"
	"github.com/kelsos/genjobs/internal/logger"
	"github.com/kelsos/genjobs/internal/models"
)

// ImageProvider calls the synchronous image generation endpoint.
type ImageProvider struct {
	client *client.APIClient
	url    string
	model  string
}

func NewImageProvider(apiClient *client.APIClient, url, model string) *ImageProvider {
	return &ImageProvider{client: apiClient, url: url, model: model}
}

// BuildRequest includes size only for the size-aware model.
func (p *ImageProvider) BuildRequest(prompt, size string) models.ImageRequest {
	request := models.ImageRequest{Model: p.model, Prompt: prompt}
	if p.model == config.SizeAwareImageModel && size != "" {
		request.Size = size
	}
	return request
}

// Generate blocks until the provider returns the URL of the finished image.
func (p *ImageProvider) Generate(ctx context.Context, prompt, size string) (string, error) {
	request := p.BuildRequest(prompt, size)

	var response models.ImageResponse
	if err := p.client.Post(ctx, p.url, request, &response); err != nil {
		return "", newGenerationError("generate image", err)
	}

	if len(response.Data) == 0 || response.Data[0].URL == "" {
		return "", newGenerationError("generate image", errors.New("response contains no image url"))
	}

	logger.Info("Generated image URL: %s", response.Data[0].URL)
	return response.Data[0].URL, nil
}

func (p *ImageProvider) String() string {
	return fmt.Sprintf("image provider %s (%s)", p.model, p.url)
}

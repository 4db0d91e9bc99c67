package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kelsos/genjobs/internal/client"
	"github.com/kelsos/genjobs/internal/logger"
	"github.com/kelsos/genjobs/internal/models"
)

// VideoProvider submits asynchronous video jobs and queries their status.
type VideoProvider struct {
	client         *client.APIClient
	submitURL      string
	resultTemplate string
	model          string
}

// NewVideoProvider returns a provider; resultTemplate must contain {id}.
func NewVideoProvider(apiClient *client.APIClient, submitURL, resultTemplate, model string) *VideoProvider {
	return &VideoProvider{
		client:         apiClient,
		submitURL:      submitURL,
		resultTemplate: resultTemplate,
		model:          model,
	}
}

// Submit starts a job and returns the provider-assigned task id.
func (p *VideoProvider) Submit(ctx context.Context, prompt, ownerID string) (models.TaskID, error) {
	request := models.VideoRequest{
		Model:  p.model,
		Prompt: prompt,
		UserID: ownerID,
	}

	var response models.VideoSubmitResponse
	if err := p.client.Post(ctx, p.submitURL, request, &response); err != nil {
		return "", newGenerationError("submit video", err)
	}

	if response.ID == "" {
		return "", newGenerationError("submit video", errors.New("response contains no task id"))
	}

	logger.Info("Video task %s submitted (status %s)", response.ID, response.TaskStatus)
	return models.TaskID(response.ID), nil
}

// Query fetches the provider's view of one job. Transport and decode
// failures wrap models.ErrQuery.
func (p *VideoProvider) Query(ctx context.Context, id models.TaskID) (models.VideoResultResponse, error) {
	url := strings.ReplaceAll(p.resultTemplate, "{id}", string(id))

	var response models.VideoResultResponse
	if err := p.client.Get(ctx, url, &response); err != nil {
		return models.VideoResultResponse{}, fmt.Errorf("%w: task %s: %w", models.ErrQuery, id, err)
	}
	return response, nil
}

package provider

import (
	"context"
	"fmt"

	"github.com/kelsos/genjobs/internal/client"
	"github.com/kelsos/genjobs/internal/config"
	"github.com/kelsos/genjobs/internal/models"
)

// JobRequest describes one generation request. Size only applies to images.
type JobRequest struct {
	Kind    models.ArtifactKind
	Prompt  string
	Size    string
	OwnerID string
}

// JobHandle is the result of a successful submission: a final ResultURL for
// images, a provider TaskID to poll for videos.
type JobHandle struct {
	Kind      models.ArtifactKind
	TaskID    models.TaskID
	ResultURL string
}

// Submitter sends jobs to the provider matching their kind.
type Submitter struct {
	Images *ImageProvider
	Videos *VideoProvider
}

// NewSubmitter wires both providers from configuration with one shared
// authenticated client.
func NewSubmitter(cfg *config.Config, apiClient *client.APIClient) *Submitter {
	return &Submitter{
		Images: NewImageProvider(apiClient, cfg.ImageBaseURL, cfg.ImageModel),
		Videos: NewVideoProvider(apiClient, cfg.VideoBaseURL, cfg.VideoResultURL, cfg.VideoModel),
	}
}

// Submit blocks until an image is finished, or until a video job is accepted.
func (s *Submitter) Submit(ctx context.Context, req JobRequest) (JobHandle, error) {
	switch req.Kind {
	case models.KindImage:
		url, err := s.Images.Generate(ctx, req.Prompt, req.Size)
		if err != nil {
			return JobHandle{}, err
		}
		return JobHandle{Kind: models.KindImage, ResultURL: url}, nil
	case models.KindVideo:
		id, err := s.Videos.Submit(ctx, req.Prompt, req.OwnerID)
		if err != nil {
			return JobHandle{}, err
		}
		return JobHandle{Kind: models.KindVideo, TaskID: id}, nil
	default:
		return JobHandle{}, fmt.Errorf("%w: unknown job kind %q", models.ErrSubmission, req.Kind)
	}
}

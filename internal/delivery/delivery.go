// Package delivery sends progress, results and failures back to the session
// that created a job.
package delivery

import (
	"context"

	"github.com/kelsos/genjobs/internal/models"
)

// Replies sent to the owner when a job cannot be completed.
const (
	MsgGenerationFailed = "Generation failed, please try again later."
	MsgQueryFailed      = "Failed to query the task status, please try again later."
	MsgDeliveryFailed   = "Video send failed, please try again later."
	MsgImageSendFailed  = "Image send failed, please try again later."
)

// Kind classifies a payload.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindError Kind = "error"
)

// Payload is one message for the originating session. Path is set for image
// and video payloads and points at the stored artifact.
type Payload struct {
	Kind    Kind          `json:"kind"`
	Text    string        `json:"text,omitempty"`
	Path    string        `json:"path,omitempty"`
	TaskID  models.TaskID `json:"task_id,omitempty"`
	OwnerID string        `json:"owner_id"`
	IsGroup bool          `json:"is_group"`
}

// Channel transports payloads to a delivery target.
type Channel interface {
	Deliver(ctx context.Context, target models.DeliveryTarget, payload Payload) error
}

// Text builds a plain text payload.
func Text(ownerID string, isGroup bool, text string) Payload {
	return Payload{Kind: KindText, Text: text, OwnerID: ownerID, IsGroup: isGroup}
}

// Failure builds an error payload.
func Failure(ownerID string, isGroup bool, text string) Payload {
	return Payload{Kind: KindError, Text: text, OwnerID: ownerID, IsGroup: isGroup}
}

// Artifact builds an image or video payload for a stored file.
func Artifact(kind models.ArtifactKind, ownerID string, isGroup bool, path string) Payload {
	k := KindImage
	if kind == models.KindVideo {
		k = KindVideo
	}
	return Payload{Kind: k, Path: path, OwnerID: ownerID, IsGroup: isGroup}
}

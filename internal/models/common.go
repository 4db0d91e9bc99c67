package models

// APIErrorBody is the error envelope returned by the generation providers.
type APIErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ArtifactKind identifies what a job produces.
type ArtifactKind string

const (
	KindImage ArtifactKind = "image"
	KindVideo ArtifactKind = "video"
)

// Extension returns the file extension used when persisting the artifact.
func (k ArtifactKind) Extension() string {
	switch k {
	case KindVideo:
		return ".mp4"
	default:
		return ".png"
	}
}

func (k ArtifactKind) Valid() bool {
	return k == KindImage || k == KindVideo
}

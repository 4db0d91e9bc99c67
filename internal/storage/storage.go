package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kelsos/genjobs/internal/logger"
	"github.com/kelsos/genjobs/internal/models"
)

// ErrRootMissing is returned when the storage root does not exist.
var ErrRootMissing = errors.New("storage root does not exist")

const tempPrefix = ".partial-"

// StoredArtifact describes one file directly under the storage root.
type StoredArtifact struct {
	Name      string
	Path      string
	Kind      models.ArtifactKind
	Size      int64
	CreatedAt time.Time
}

// ResultStore reads and writes generated artifacts under a single root.
// Files are written once under a fresh timestamped name and never rewritten.
type ResultStore struct {
	root string
	now  func() time.Time
}

func NewResultStore(root string) *ResultStore {
	return &ResultStore{root: root, now: time.Now}
}

// WithClock overrides the clock used for artifact names.
func (s *ResultStore) WithClock(now func() time.Time) *ResultStore {
	s.now = now
	return s
}

func (s *ResultStore) Root() string {
	return s.root
}

// artifactName builds <kind>_<unix seconds>_<short id><ext>.
func (s *ResultStore) artifactName(kind models.ArtifactKind) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s%s", kind, s.now().Unix(), suffix, kind.Extension())
}

// Save writes an artifact produced by fill. The file only appears under its
// final name once fill succeeded, so readers never see partial content.
func (s *ResultStore) Save(kind models.ArtifactKind, fill func(w io.Writer) error) (StoredArtifact, error) {
	if !kind.Valid() {
		return StoredArtifact{}, fmt.Errorf("unknown artifact kind %q", kind)
	}

	if err := os.MkdirAll(s.root, 0755); err != nil {
		return StoredArtifact{}, fmt.Errorf("failed to create storage directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.root, tempPrefix+"*")
	if err != nil {
		return StoredArtifact{}, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := fill(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return StoredArtifact{}, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return StoredArtifact{}, fmt.Errorf("failed to close temporary file: %w", err)
	}

	name := s.artifactName(kind)
	finalPath := filepath.Join(s.root, name)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return StoredArtifact{}, fmt.Errorf("failed to move artifact into place: %w", err)
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return StoredArtifact{}, fmt.Errorf("failed to stat artifact: %w", err)
	}

	logger.Info("Artifact saved to: %s", finalPath)
	return StoredArtifact{
		Name:      name,
		Path:      finalPath,
		Kind:      kind,
		Size:      info.Size(),
		CreatedAt: info.ModTime(),
	}, nil
}

// kindFromName recovers the artifact kind from its name prefix.
func kindFromName(name string) models.ArtifactKind {
	switch {
	case strings.HasPrefix(name, string(models.KindVideo)+"_"):
		return models.KindVideo
	case strings.HasPrefix(name, string(models.KindImage)+"_"):
		return models.KindImage
	default:
		return ""
	}
}

// List returns every regular file directly under the root, oldest first.
// Age comes from the modification time: artifacts are never rewritten, so it
// equals the creation time on every platform.
func (s *ResultStore) List() ([]StoredArtifact, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRootMissing, s.root)
		}
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	artifacts := make([]StoredArtifact, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		artifacts = append(artifacts, StoredArtifact{
			Name:      entry.Name(),
			Path:      filepath.Join(s.root, entry.Name()),
			Kind:      kindFromName(entry.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].CreatedAt.Before(artifacts[j].CreatedAt)
	})
	return artifacts, nil
}

// Remove deletes one artifact by name. Missing files are not an error.
func (s *ResultStore) Remove(name string) error {
	path := filepath.Join(s.root, filepath.Base(name))
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

package core

import (
	"time"

	"github.com/jmylchreest/corpusctl/internal/models"
)

// Artifact represents an in-flight output from a pipeline stage, before
// it is persisted as a models.Artifact row and a blob object. Bucket/Key
// follow the persisted layout of spec.md §6.
type Artifact struct {
	ID        models.ULID
	Type      models.ArtifactType
	Name      string
	CreatedBy models.StageName
	Bucket    string
	Key       string
	SizeBytes int64
	CreatedAt time.Time
	Metadata  map[string]any
}

// NewArtifact creates a new in-flight artifact.
func NewArtifact(artifactType models.ArtifactType, name string, createdBy models.StageName) Artifact {
	return Artifact{
		ID:        models.NewULID(),
		Type:      artifactType,
		Name:      name,
		CreatedBy: createdBy,
		CreatedAt: models.Now(),
		Metadata:  make(map[string]any),
	}
}

// WithBlobLocation sets the bucket/key/size the artifact was written to.
func (a Artifact) WithBlobLocation(bucket, key string, size int64) Artifact {
	a.Bucket = bucket
	a.Key = key
	a.SizeBytes = size
	return a
}

// WithMetadata adds metadata to the artifact.
func (a Artifact) WithMetadata(key string, value any) Artifact {
	a.Metadata[key] = value
	return a
}

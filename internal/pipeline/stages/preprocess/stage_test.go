package preprocess

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/jmylchreest/corpusctl/internal/blobstore"
	"github.com/jmylchreest/corpusctl/internal/models"
	"github.com/jmylchreest/corpusctl/internal/pipeline/core"
	"github.com/jmylchreest/corpusctl/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway serves fixed content/ETags per (bucket, key) without touching
// any real storage backend.
type fakeGateway struct {
	blobstore.Gateway
	content map[string]string
	etag    map[string]string
}

func (f *fakeGateway) Head(_ context.Context, bucket, key string) (*blobstore.Object, error) {
	return &blobstore.Object{Bucket: bucket, Key: key, ETag: f.etag[key]}, nil
}

func (f *fakeGateway) Get(_ context.Context, _, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.content[key])), nil
}

func (f *fakeGateway) Put(_ context.Context, bucket, key string, r io.Reader) (*blobstore.Object, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &blobstore.Object{Bucket: bucket, Key: key, SizeBytes: int64(len(b))}, nil
}

// fakeRawFileRepo records MarkFailed calls without touching a real
// database; the embedded nil interface satisfies the remaining methods,
// which this test never calls.
type fakeRawFileRepo struct {
	repository.RawFileRepository
	failed map[string]string
}

func (f *fakeRawFileRepo) MarkFailed(_ context.Context, id models.ULID, reason string) error {
	if f.failed == nil {
		f.failed = make(map[string]string)
	}
	f.failed[id.String()] = reason
	return nil
}

func TestExecute_ETagMismatchMarksFileFailed(t *testing.T) {
	goodID := models.NewULID()
	badID := models.NewULID()

	blob := &fakeGateway{
		content: map[string]string{"good": "hello world. this is fine.", "bad": "corrupted"},
		etag:    map[string]string{"good": "etag-good", "bad": "etag-on-disk"},
	}
	repo := &fakeRawFileRepo{}

	stage := New(blob, repo)

	bb := &core.RunBlackboard{
		WorkspaceID: models.NewULID(),
		ProductID:   models.NewULID(),
		Version:     1,
		RawFiles: []*models.RawFile{
			{BaseModel: models.BaseModel{ID: goodID}, FileStem: "good", BlobKey: "good", ETag: "etag-good"},
			{BaseModel: models.BaseModel{ID: badID}, FileStem: "bad", BlobKey: "bad", ETag: "etag-expected"},
		},
	}

	result, err := stage.Execute(context.Background(), bb)

	require.NoError(t, err)
	assert.Equal(t, 1, result.RecordsFailed)
	assert.Contains(t, repo.failed[badID.String()], "etag mismatch")
	_, goodWasMarked := repo.failed[goodID.String()]
	assert.False(t, goodWasMarked, "a matching-etag file must not be marked failed")
}

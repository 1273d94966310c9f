// Package blobstore implements the Blob Store Gateway (C2): a bucketed,
// content-addressed object namespace backing raw file uploads, cleaned
// chunks, packed embeddings, and generated reports. No grounded
// third-party object-storage client carries actual call-site source in
// the retrieval pack (only a go.mod manifest entry for
// aws-sdk-go-v2/service/s3 with no corresponding code), so this gateway
// is built on the local sandboxed-filesystem idiom instead, generalized
// from a single directory into the bucketed namespace of spec.md §4.2.
package blobstore

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/corpusctl/internal/corpuserrors"
	"github.com/jmylchreest/corpusctl/internal/storage"
)

// Bucket names recognized by the gateway, per spec.md §6's persisted
// layout table.
const (
	BucketRaw    = "raw"
	BucketClean  = "clean"
	BucketChunk  = "chunk"
	BucketEmbed  = "embed"
	BucketExport = "export"
	BucketReport = "report"
)

// Object describes metadata returned by Head/Put.
type Object struct {
	Bucket    string
	Key       string
	SizeBytes int64
	ETag      string
}

// Gateway is the Blob Store Gateway contract: Put/Get/Exists/Head/Delete
// plus presigned content URLs for the Control API's artifact endpoints.
type Gateway interface {
	Put(ctx context.Context, bucket, key string, r io.Reader) (*Object, error)
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, bucket, key string) (bool, error)
	Head(ctx context.Context, bucket, key string) (*Object, error)
	Delete(ctx context.Context, bucket, key string) error
	// Presign returns a time-limited URL (or path token) a client can use
	// to fetch the object's bytes without further auth, valid for ttl.
	Presign(bucket, key string, ttl time.Duration) (string, error)
	// VerifyPresigned validates a presigned token previously returned by
	// Presign and reports whether it is still within its expiry window.
	VerifyPresigned(bucket, key, token string) (bool, error)
}

// sandboxGateway implements Gateway on top of a local Sandbox rooted at
// baseDir, with one subdirectory per bucket.
type sandboxGateway struct {
	sandbox       *storage.Sandbox
	presignSecret []byte
}

// New creates a Gateway rooted at baseDir. presignSecret signs presigned
// URL tokens (HMAC-SHA256); an empty secret still signs and verifies
// tokens, using an empty HMAC key.
func New(baseDir, presignSecret string) (Gateway, error) {
	sandbox, err := storage.NewSandbox(baseDir)
	if err != nil {
		return nil, fmt.Errorf("creating blob store sandbox: %w", err)
	}
	return &sandboxGateway{sandbox: sandbox, presignSecret: []byte(presignSecret)}, nil
}

func objectPath(bucket, key string) string {
	return path.Join(bucket, key)
}

func (g *sandboxGateway) Put(_ context.Context, bucket, key string, r io.Reader) (*Object, error) {
	hasher := sha256.New()
	tee := io.TeeReader(r, hasher)
	buf, err := io.ReadAll(tee)
	if err != nil {
		return nil, fmt.Errorf("reading object body: %w", err)
	}
	rel := objectPath(bucket, key)
	if err := g.sandbox.AtomicWrite(rel, buf); err != nil {
		return nil, fmt.Errorf("writing object %s/%s: %w", bucket, key, err)
	}
	return &Object{
		Bucket:    bucket,
		Key:       key,
		SizeBytes: int64(len(buf)),
		ETag:      hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

func (g *sandboxGateway) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	rel := objectPath(bucket, key)
	f, err := g.sandbox.OpenFile(rel, os.O_RDONLY, 0)
	if err != nil {
		return nil, corpuserrors.NotFoundError(
			fmt.Sprintf("object %s/%s not found", bucket, key),
			map[string]any{"bucket": bucket, "key": key})
	}
	return f, nil
}

func (g *sandboxGateway) Exists(_ context.Context, bucket, key string) (bool, error) {
	ok, err := g.sandbox.Exists(objectPath(bucket, key))
	if err != nil {
		return false, fmt.Errorf("checking object existence: %w", err)
	}
	return ok, nil
}

func (g *sandboxGateway) Head(_ context.Context, bucket, key string) (*Object, error) {
	rel := objectPath(bucket, key)
	info, err := g.sandbox.Stat(rel)
	if err != nil {
		return nil, corpuserrors.NotFoundError(
			fmt.Sprintf("object %s/%s not found", bucket, key),
			map[string]any{"bucket": bucket, "key": key})
	}
	data, err := g.sandbox.ReadFile(rel)
	if err != nil {
		return nil, fmt.Errorf("reading object for etag: %w", err)
	}
	sum := sha256.Sum256(data)
	return &Object{
		Bucket:    bucket,
		Key:       key,
		SizeBytes: info.Size(),
		ETag:      hex.EncodeToString(sum[:]),
	}, nil
}

func (g *sandboxGateway) Delete(_ context.Context, bucket, key string) error {
	if err := g.sandbox.Remove(objectPath(bucket, key)); err != nil {
		return fmt.Errorf("deleting object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Presign returns "<bucket>/<key>?expires=<unix>&sig=<hmac-hex>". Since
// there is no separate content server, VerifyPresigned is used by the
// Control API's inline-content handler to check the signature before
// streaming bytes back.
func (g *sandboxGateway) Presign(bucket, key string, ttl time.Duration) (string, error) {
	expires := time.Now().Add(ttl).Unix()
	sig := g.sign(bucket, key, expires)
	return fmt.Sprintf("%s/%s?expires=%d&sig=%s", bucket, key, expires, sig), nil
}

func (g *sandboxGateway) VerifyPresigned(bucket, key, token string) (bool, error) {
	expires, sig, err := parsePresignedToken(token)
	if err != nil {
		return false, err
	}
	if time.Now().Unix() > expires {
		return false, nil
	}
	expected := g.sign(bucket, key, expires)
	return hmac.Equal([]byte(expected), []byte(sig)), nil
}

func (g *sandboxGateway) sign(bucket, key string, expires int64) string {
	mac := hmac.New(sha256.New, g.presignSecret)
	fmt.Fprintf(mac, "%s/%s:%d", bucket, key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

// parsePresignedToken extracts expires/sig from a "?expires=...&sig=..."
// query fragment as returned by Presign.
func parsePresignedToken(token string) (int64, string, error) {
	parts := strings.SplitN(token, "?", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("malformed presigned token")
	}
	var expires int64
	var sig string
	for _, pair := range strings.Split(parts[1], "&") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "expires":
			v, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, "", fmt.Errorf("parsing expires: %w", err)
			}
			expires = v
		case "sig":
			sig = kv[1]
		}
	}
	if sig == "" {
		return 0, "", fmt.Errorf("missing signature in presigned token")
	}
	return expires, sig, nil
}

// Package ingest implements the Ingest Coordinator (C3): it pulls raw bytes
// from per-DataSource connectors, stores them in the Blob Store Gateway
// (C2), and registers them in the Catalog Store (C1) under a newly minted
// version, per spec.md §4.3.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/url"
	"strings"

	"github.com/jmylchreest/corpusctl/internal/models"
)

// fileStem derives a dedup-stable key from an item's canonical URI: the
// URI's path/host normalized to a filesystem-safe form, falling back to a
// content hash of the full URI when normalization yields nothing usable.
// Stable across runs so re-ingesting the same source skips unchanged items.
func fileStem(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil {
		return hashStem(uri)
	}

	stem := strings.TrimPrefix(parsed.Host+parsed.Path, "/")
	stem = strings.Trim(stem, "/")
	stem = strings.ReplaceAll(stem, "/", "_")
	if stem == "" {
		return hashStem(uri)
	}
	return stem
}

func hashStem(uri string) string {
	sum := sha256.Sum256([]byte(uri))
	return hex.EncodeToString(sum[:])
}

// Item is one unit of raw bytes pulled from a connector: a web page, a
// folder-resident file, or a serialized database row.
type Item struct {
	// URI is the item's canonical source location, used to derive the
	// dedup-stable file_stem.
	URI         string
	Filename    string
	ContentType string
	Body        io.ReadCloser
}

// ItemIterator streams Items from an opened connector session. Next
// returns io.EOF once exhausted. Close releases any underlying resources
// (open files, HTTP connections, DB cursors) regardless of exhaustion.
type ItemIterator interface {
	Next(ctx context.Context) (*Item, error)
	Close() error
}

// Connector opens a streaming session against a DataSource's configured
// origin. Implementations are selected by DataSourceType.
type Connector interface {
	Open(ctx context.Context, ds *models.DataSource) (ItemIterator, error)
}

// sliceIterator adapts a pre-materialized slice of Items to ItemIterator,
// used by connectors whose origin is cheap to enumerate up front (folder
// walks, single-query database pulls).
type sliceIterator struct {
	items []*Item
	pos   int
}

func newSliceIterator(items []*Item) *sliceIterator {
	return &sliceIterator{items: items}
}

func (it *sliceIterator) Next(_ context.Context) (*Item, error) {
	if it.pos >= len(it.items) {
		return nil, io.EOF
	}
	item := it.items[it.pos]
	it.pos++
	return item, nil
}

func (it *sliceIterator) Close() error {
	return nil
}

package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/jmylchreest/corpusctl/internal/models"
)

// folderConfig is the opaque DataSource.Config payload for
// DataSourceTypeFolder.
type folderConfig struct {
	Root string `json:"root"`
	Glob string `json:"glob"`
}

// folderConnector walks a mounted/synced directory, yielding one Item per
// matching file.
type folderConnector struct{}

func newFolderConnector() *folderConnector {
	return &folderConnector{}
}

func (c *folderConnector) Open(_ context.Context, ds *models.DataSource) (ItemIterator, error) {
	var cfg folderConfig
	if err := json.Unmarshal([]byte(ds.Config), &cfg); err != nil {
		return nil, fmt.Errorf("parsing folder data source config: %w", err)
	}
	if cfg.Root == "" {
		return nil, fmt.Errorf("folder data source config has no root")
	}
	glob := cfg.Glob
	if glob == "" {
		glob = "*"
	}

	var items []*Item
	err := filepath.WalkDir(cfg.Root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		matched, err := filepath.Match(glob, d.Name())
		if err != nil || !matched {
			return nil
		}

		rel, err := filepath.Rel(cfg.Root, p)
		if err != nil {
			rel = p
		}
		items = append(items, &Item{
			URI:         "file://" + filepath.ToSlash(filepath.Join(cfg.Root, rel)),
			Filename:    d.Name(),
			ContentType: contentTypeByExt(p),
			Body:        &lazyFile{path: p},
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking folder data source root: %w", err)
	}

	return newSliceIterator(items), nil
}

func contentTypeByExt(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// lazyFile defers opening the underlying file until the first Read, so
// walking a large tree does not hold thousands of file descriptors open
// at once.
type lazyFile struct {
	path string
	f    *os.File
}

func (l *lazyFile) Read(p []byte) (int, error) {
	if l.f == nil {
		f, err := os.Open(l.path)
		if err != nil {
			return 0, err
		}
		l.f = f
	}
	return l.f.Read(p)
}

func (l *lazyFile) Close() error {
	if l.f == nil {
		return nil
	}
	return l.f.Close()
}

var _ io.ReadCloser = (*lazyFile)(nil)

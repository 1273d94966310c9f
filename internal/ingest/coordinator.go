package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmylchreest/corpusctl/internal/blobstore"
	"github.com/jmylchreest/corpusctl/internal/httpclient"
	"github.com/jmylchreest/corpusctl/internal/models"
	"github.com/jmylchreest/corpusctl/internal/repository"
	"github.com/jmylchreest/corpusctl/internal/service/progress"
)

// Result summarizes one ingest batch's outcome per spec.md §4.3.
type Result struct {
	Version          int
	Ingested         int
	SkippedDuplicate int
	Failed           int
}

// Coordinator implements the Ingest Coordinator (C3): it opens the
// connector matching a DataSource's type, streams Items into the blob
// store, and registers each as a RawFile under a newly allocated product
// version.
type Coordinator struct {
	dataSourceRepo repository.DataSourceRepository
	rawFileRepo    repository.RawFileRepository
	productRepo    repository.ProductRepository
	blob           blobstore.Gateway

	connectors map[models.DataSourceType]Connector

	logger   *slog.Logger
	progress *progress.Service
}

// NewCoordinator creates a Coordinator with the default web/folder/database
// connectors, the latter two deriving from standard library and driver
// packages rather than the web connector's resilient httpClient, since
// they don't cross the network boundary httpclient is built to harden.
func NewCoordinator(
	dataSourceRepo repository.DataSourceRepository,
	rawFileRepo repository.RawFileRepository,
	productRepo repository.ProductRepository,
	blob blobstore.Gateway,
	httpClient *httpclient.Client,
) *Coordinator {
	c := &Coordinator{
		dataSourceRepo: dataSourceRepo,
		rawFileRepo:    rawFileRepo,
		productRepo:    productRepo,
		blob:           blob,
		logger:         slog.Default(),
	}
	c.connectors = map[models.DataSourceType]Connector{
		models.DataSourceTypeWeb:      newWebConnector(httpClient),
		models.DataSourceTypeFolder:   newFolderConnector(),
		models.DataSourceTypeDatabase: newDatabaseConnector(),
	}
	return c
}

// WithLogger sets the coordinator's logger.
func (c *Coordinator) WithLogger(logger *slog.Logger) *Coordinator {
	c.logger = logger.With("component", "ingest_coordinator")
	return c
}

// WithProgressService attaches a progress service for ingest operation
// tracking, surfaced over the Control API's progress stream.
func (c *Coordinator) WithProgressService(svc *progress.Service) *Coordinator {
	c.progress = svc
	return c
}

// IngestAsync triggers a background ingest for a single DataSource and
// returns immediately, matching the handlers.Ingestor contract used by
// the on-demand /datasources/{id}/ingest endpoint.
func (c *Coordinator) IngestAsync(ctx context.Context, dataSourceID models.ULID) error {
	ds, err := c.dataSourceRepo.GetByID(ctx, dataSourceID)
	if err != nil {
		return fmt.Errorf("loading data source: %w", err)
	}
	if ds == nil {
		return fmt.Errorf("data source %s not found", dataSourceID.String())
	}

	go func() {
		bgCtx := context.Background()
		result, err := c.Ingest(bgCtx, ds, nil)
		if err != nil {
			c.logger.Error("ingest failed", "data_source_id", dataSourceID.String(), "error", err)
			return
		}
		c.logger.Info("ingest completed",
			"data_source_id", dataSourceID.String(),
			"version", result.Version,
			"ingested", result.Ingested,
			"skipped_duplicate", result.SkippedDuplicate,
			"failed", result.Failed,
		)
	}()
	return nil
}

// Ingest runs the spec.md §4.3 protocol for a single DataSource: allocate a
// version, stream items through the matching connector, persist each as a
// RawFile, then finalize the version.
func (c *Coordinator) Ingest(ctx context.Context, ds *models.DataSource, requestedVersion *int) (*Result, error) {
	connector, ok := c.connectors[ds.Type]
	if !ok {
		return nil, fmt.Errorf("no connector registered for data source type %q", ds.Type)
	}

	version, err := c.allocateVersion(ctx, ds.ProductID, requestedVersion)
	if err != nil {
		return nil, fmt.Errorf("allocating ingest version: %w", err)
	}

	var opManager *progress.OperationManager
	if c.progress != nil {
		mgr, err := c.progress.StartOperation(progress.OpIngest, ds.ID, "data_source", ds.ID.String(), []progress.StageInfo{
			{ID: "stream", Name: "Streaming raw files", Weight: 1.0},
		})
		if err == nil {
			opManager = mgr
		}
	}

	iter, err := connector.Open(ctx, ds)
	if err != nil {
		if opManager != nil {
			opManager.Fail(err)
		}
		return nil, fmt.Errorf("opening connector: %w", err)
	}
	defer iter.Close()

	result := &Result{Version: version}
	var stageUpdater *progress.StageUpdater
	if opManager != nil {
		stageUpdater = opManager.StartStage("stream")
	}

	for {
		item, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.logger.Warn("connector iteration failed", "error", err)
			break
		}

		switch c.ingestItem(ctx, ds, version, item) {
		case outcomeIngested:
			result.Ingested++
		case outcomeDuplicate:
			result.SkippedDuplicate++
		case outcomeFailed:
			result.Failed++
		}
		if stageUpdater != nil {
			stageUpdater.SetProgress(0, fmt.Sprintf("%d ingested, %d skipped, %d failed", result.Ingested, result.SkippedDuplicate, result.Failed))
		}
	}

	if err := c.productRepo.FinalizeIngest(ctx, ds.ProductID, version); err != nil {
		if opManager != nil {
			opManager.Fail(err)
		}
		return nil, fmt.Errorf("finalizing ingest: %w", err)
	}

	if opManager != nil {
		opManager.Complete(fmt.Sprintf("ingested %d, skipped %d, failed %d", result.Ingested, result.SkippedDuplicate, result.Failed))
	}

	return result, nil
}

func (c *Coordinator) allocateVersion(ctx context.Context, productID models.ULID, requested *int) (int, error) {
	if requested != nil {
		return *requested, nil
	}
	return c.productRepo.AllocateIngestVersion(ctx, productID)
}

type itemOutcome int

const (
	outcomeIngested itemOutcome = iota
	outcomeDuplicate
	outcomeFailed
)

// ingestItem implements one iteration of spec.md §4.3 step 2: derive the
// dedup-stable file_stem, insert the RawFile row, stream bytes to the blob
// store, then mark the row INGESTED (or FAILED on upload error).
func (c *Coordinator) ingestItem(ctx context.Context, ds *models.DataSource, version int, item *Item) itemOutcome {
	stem := fileStem(item.URI)

	if existing, err := c.rawFileRepo.GetByStem(ctx, ds.ProductID, version, stem); err == nil && existing != nil {
		if item.Body != nil {
			item.Body.Close()
		}
		return outcomeDuplicate
	}

	blobKey := fmt.Sprintf("%s/%s/%d/%s", ds.WorkspaceID.String(), ds.ProductID.String(), version, stem)

	rf := &models.RawFile{
		WorkspaceID:  ds.WorkspaceID,
		ProductID:    ds.ProductID,
		DataSourceID: ds.ID,
		Version:      version,
		FileStem:     stem,
		Filename:     item.Filename,
		ContentType:  item.ContentType,
		BlobBucket:   blobstore.BucketRaw,
		BlobKey:      blobKey,
		Status:       models.RawFileStatusIngesting,
	}
	if err := c.rawFileRepo.Create(ctx, rf); err != nil {
		if item.Body != nil {
			item.Body.Close()
		}
		if errors.Is(err, repository.ErrDuplicateKey) {
			return outcomeDuplicate
		}
		c.logger.Warn("failed to register raw file", "uri", item.URI, "error", err)
		return outcomeFailed
	}

	if item.Body == nil {
		rf.MarkFailed(fmt.Errorf("connector returned no body for %s", item.URI))
		_ = c.rawFileRepo.Update(ctx, rf)
		return outcomeFailed
	}
	defer item.Body.Close()

	obj, err := c.blob.Put(ctx, blobstore.BucketRaw, blobKey, item.Body)
	if err != nil {
		// The DB row already exists as INGESTING; leave any partial blob
		// for reconciliation rather than deleting it, per spec.md §4.3.
		rf.MarkFailed(err)
		_ = c.rawFileRepo.Update(ctx, rf)
		c.logger.Warn("failed to upload raw file", "uri", item.URI, "error", err)
		return outcomeFailed
	}

	rf.MarkIngested(obj.SizeBytes, obj.ETag, obj.ETag)
	if err := c.rawFileRepo.Update(ctx, rf); err != nil {
		c.logger.Warn("failed to mark raw file ingested", "uri", item.URI, "error", err)
		return outcomeFailed
	}

	return outcomeIngested
}

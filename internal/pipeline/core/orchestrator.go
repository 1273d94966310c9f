package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/corpusctl/internal/models"
)

// MetricsRecorder receives per-stage and per-run outcome observations.
// Nothing in the tree implements it; it is optional, so the orchestrator
// works without one (e.g. in tests).
type MetricsRecorder interface {
	RecordStageDuration(stage models.StageName, d time.Duration, status models.StageStatus)
	RecordRunOutcome(status models.RunStatus)
}

// Orchestrator executes the fixed stage DAG for a single PipelineRun,
// persisting StageExecution/Artifact rows as it goes and checking
// cancel_requested at each stage boundary per spec.md §4.4's execution
// protocol.
type Orchestrator struct {
	stages  []Stage
	deps    *Dependencies
	bb      *RunBlackboard
	logger  *slog.Logger
	metrics MetricsRecorder
}

// NewOrchestrator creates a new Orchestrator with the given stages,
// executed in the order they were registered (the caller, Factory, is
// responsible for registering them in models.StageDAGOrder).
func NewOrchestrator(stages []Stage, deps *Dependencies, bb *RunBlackboard) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{stages: stages, deps: deps, bb: bb, logger: logger}
}

// SetMetricsRecorder attaches an optional metrics recorder.
func (o *Orchestrator) SetMetricsRecorder(m MetricsRecorder) {
	o.metrics = m
}

// Execute runs all stages in DAG order, stopping at the first cancellation
// or terminal stage failure, and transitions the run's terminal status.
func (o *Orchestrator) Execute(ctx context.Context) (*Result, error) {
	result := &Result{
		Status:       models.RunStatusRunning,
		StageResults: make(map[models.StageName]*StageResult),
	}

	if err := o.deps.RunRepo.TransitionRun(ctx, o.bb.RunID, models.RunStatusQueued, models.RunStatusRunning, models.Now()); err != nil {
		return result, fmt.Errorf("transitioning run to RUNNING: %w", err)
	}

	o.logger.InfoContext(ctx, "starting pipeline run",
		slog.String("run_id", o.bb.RunID.String()),
		slog.String("product_id", o.bb.ProductID.String()),
		slog.Int("version", o.bb.Version),
		slog.Int("stage_count", len(o.stages)),
	)

	startTime := time.Now()
	terminal := models.RunStatusSucceeded

	for _, stage := range o.stages {
		cancelled, err := o.deps.RunRepo.IsCancelRequested(ctx, o.bb.RunID)
		if err != nil {
			o.logger.WarnContext(ctx, "checking cancel_requested failed", slog.String("error", err.Error()))
		}
		if cancelled {
			o.markSkipped(ctx, stage)
			terminal = models.RunStatusCancelled
			result.Errors = append(result.Errors, ErrRunCancelled)
			break
		}

		stageResult, err := o.executeStage(ctx, stage)
		result.StageResults[stage.ID()] = stageResult

		if err != nil {
			result.Errors = append(result.Errors, NewStageError(string(stage.ID()), err))
		}

		if stageResult.Status == models.StageStatusFailed {
			terminal = models.RunStatusFailed
			break
		}

		if o.deps.Config.EnableGCHints {
			o.bb.SetMetadata("last_completed_stage", stage.ID())
		}
	}

	result.Duration = time.Since(startTime)
	result.Status = terminal

	if err := o.deps.RunRepo.TransitionRun(ctx, o.bb.RunID, models.RunStatusRunning, terminal, models.Now()); err != nil {
		o.logger.ErrorContext(ctx, "transitioning run to terminal status failed",
			slog.String("run_id", o.bb.RunID.String()),
			slog.String("target_status", string(terminal)),
			slog.String("error", err.Error()),
		)
	}

	if o.metrics != nil {
		o.metrics.RecordRunOutcome(terminal)
	}

	o.cleanupStages(ctx)

	o.logger.InfoContext(ctx, "pipeline run finished",
		slog.String("run_id", o.bb.RunID.String()),
		slog.String("status", string(terminal)),
		slog.Duration("duration", result.Duration),
	)

	return result, nil
}

// executeStage runs a single stage, persists its StageExecution row and
// any produced Artifact rows, and reports progress.
func (o *Orchestrator) executeStage(ctx context.Context, stage Stage) (*StageResult, error) {
	stageStart := time.Now()
	now := models.Now()

	if err := o.deps.StageRepo.Upsert(ctx, &models.StageExecution{
		RunID:     o.bb.RunID,
		StageName: stage.ID(),
		Status:    models.StageStatusRunning,
		StartedAt: &now,
	}); err != nil {
		o.logger.WarnContext(ctx, "recording stage start failed", slog.String("error", err.Error()))
	}

	if o.bb.ProgressReporter != nil {
		o.bb.ProgressReporter.ReportProgress(ctx, stage.ID(), 0.0, "starting")
	}

	stageCtx := ctx
	var cancel context.CancelFunc
	if o.deps.Config.StageTimeoutSeconds > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, time.Duration(o.deps.Config.StageTimeoutSeconds)*time.Second)
		defer cancel()
	}

	stageResult, err := stage.Execute(stageCtx, o.bb)
	if stageResult == nil {
		stageResult = &StageResult{}
	}
	stageResult.Duration = time.Since(stageStart)
	if stageResult.Status == "" {
		if err != nil {
			stageResult.Status = models.StageStatusFailed
		} else {
			stageResult.Status = models.StageStatusSucceeded
		}
	}

	finishedAt := models.Now()
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	metricsJSON := marshalMetrics(stageResult.Metrics)

	if updateErr := o.deps.StageRepo.Upsert(ctx, &models.StageExecution{
		RunID:        o.bb.RunID,
		StageName:    stage.ID(),
		Status:       stageResult.Status,
		StartedAt:    &now,
		FinishedAt:   &finishedAt,
		Metrics:      metricsJSON,
		ErrorMessage: errMsg,
	}); updateErr != nil {
		o.logger.WarnContext(ctx, "recording stage completion failed", slog.String("error", updateErr.Error()))
	}

	for _, artifact := range stageResult.Artifacts {
		o.bb.AddArtifact(stage.ID(), artifact)
		if o.deps.ArtifactRepo == nil {
			continue
		}
		if persistErr := o.deps.ArtifactRepo.Create(ctx, &models.Artifact{
			RunID:        o.bb.RunID,
			StageName:    stage.ID(),
			ArtifactType: artifact.Type,
			Name:         artifact.Name,
			BlobBucket:   artifact.Bucket,
			BlobKey:      artifact.Key,
			SizeBytes:    artifact.SizeBytes,
		}); persistErr != nil {
			o.logger.WarnContext(ctx, "persisting artifact failed", slog.String("error", persistErr.Error()))
		}
	}

	if o.metrics != nil {
		o.metrics.RecordStageDuration(stage.ID(), stageResult.Duration, stageResult.Status)
	}

	logLevel := slog.LevelInfo
	if stageResult.Status == models.StageStatusFailed {
		logLevel = slog.LevelError
	}
	o.logger.Log(ctx, logLevel, "stage finished",
		slog.String("stage_name", string(stage.ID())),
		slog.String("status", string(stageResult.Status)),
		slog.Duration("duration", stageResult.Duration),
		slog.Int("records_processed", stageResult.RecordsProcessed),
		slog.Int("records_failed", stageResult.RecordsFailed),
	)

	if o.bb.ProgressReporter != nil {
		o.bb.ProgressReporter.ReportProgress(ctx, stage.ID(), 1.0, string(stageResult.Status))
	}

	return stageResult, err
}

func (o *Orchestrator) markSkipped(ctx context.Context, stage Stage) {
	if err := o.deps.StageRepo.Upsert(ctx, &models.StageExecution{
		RunID:     o.bb.RunID,
		StageName: stage.ID(),
		Status:    models.StageStatusSkipped,
	}); err != nil {
		o.logger.WarnContext(ctx, "recording skipped stage failed", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) cleanupStages(ctx context.Context) {
	for _, stage := range o.stages {
		if err := stage.Cleanup(ctx); err != nil {
			o.logger.WarnContext(ctx, "stage cleanup failed",
				slog.String("stage_name", string(stage.ID())),
				slog.String("error", err.Error()),
			)
		}
	}
}

func marshalMetrics(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}

// Blackboard returns the orchestrator's RunBlackboard (for testing).
func (o *Orchestrator) Blackboard() *RunBlackboard {
	return o.bb
}

// Stages returns the configured stages (for testing).
func (o *Orchestrator) Stages() []Stage {
	return o.stages
}

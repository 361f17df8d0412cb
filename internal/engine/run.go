package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"anatomap/internal/fileutil"
	"anatomap/internal/labelspace"
	"anatomap/internal/logging"
	"anatomap/internal/reconcile"
	"anatomap/internal/runlog"
	"anatomap/internal/services/bodyseg"
	"anatomap/internal/tasks"
	"anatomap/internal/textutil"
)

// lockRetryDelay is how often a waiting run re-attempts the workspace lock.
const lockRetryDelay = 500 * time.Millisecond

// modelOutputTailLines bounds how much model output a failed subtask
// carries in its error.
const modelOutputTailLines = 25

// Request describes one segmentation run.
type Request struct {
	// InputFile is the CT volume handed to the model.
	InputFile string
	// TaskID selects the task, or "all" for the composite run.
	TaskID string
	// Targets restricts output to these display labels. Empty means all.
	Targets []string
	// ContainerName overrides the destination container name. Defaults to
	// the input file's base name plus " segmentation".
	ContainerName string
}

// TaskOutcome reports how one task ended within a run.
type TaskOutcome struct {
	TaskID      string
	TaskTitle   string
	Status      reconcile.Status
	Segments    int
	SidecarPath string
}

// Summary is the aggregate result of a run.
type Summary struct {
	RunID      string
	TaskID     string
	Containers int
	Segments   int
	Elapsed    time.Duration
	Outcomes   []TaskOutcome
	// WorkspaceDir is set when the workspace was kept for debugging.
	WorkspaceDir string
}

// exporter is satisfied by containers that can persist themselves to disk.
type exporter interface {
	Export(path string) error
}

// Run executes a segmentation run end to end. Validation failures surface
// before any file is touched; once the model starts, per-task problems
// become outcome statuses and only infrastructure faults abort the run.
func (e *Engine) Run(ctx context.Context, req Request) (*Summary, error) {
	started := time.Now()

	canonical, err := e.registry.Canonical(req.TaskID)
	if err != nil {
		return nil, err
	}
	subset := labelspace.NewSubset(req.Targets)
	if err := e.reconciler.ValidateSubset(canonical, subset); err != nil {
		return nil, err
	}
	if _, err := os.Stat(req.InputFile); err != nil {
		return nil, fmt.Errorf("input volume: %w", err)
	}

	runID := uuid.NewString()
	e.recordStart(ctx, runID, canonical, subset)

	summary, runErr := e.execute(ctx, runID, canonical, subset, req)
	if runErr != nil {
		e.recordFinish(ctx, runID, runlog.StatusFailed, summary, runErr)
		return nil, runErr
	}

	summary.RunID = runID
	summary.TaskID = canonical
	summary.Elapsed = time.Since(started)
	e.recordFinish(ctx, runID, runlog.StatusCompleted, summary, nil)

	e.logger.Info("run complete",
		logging.String("run_id", runID),
		logging.String("task", canonical),
		logging.Int("containers", summary.Containers),
		logging.Int("segments", summary.Segments),
		logging.Duration("elapsed", summary.Elapsed))
	return summary, nil
}

func (e *Engine) execute(ctx context.Context, runID, canonical string, subset labelspace.Subset, req Request) (*Summary, error) {
	if err := e.cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(e.cfg.Paths.WorkspaceDir, ".anatomap.lock"))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire workspace lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("workspace %s is in use by another run", e.cfg.Paths.WorkspaceDir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			e.logger.Warn("failed to release workspace lock", logging.Error(err))
		}
	}()

	workspace, err := os.MkdirTemp(e.cfg.Paths.WorkspaceDir, "run-"+shortID(runID)+"-")
	if err != nil {
		return nil, fmt.Errorf("create run workspace: %w", err)
	}
	summary := &Summary{}
	defer func() {
		if e.cfg.Segmentation.KeepWorkspace {
			summary.WorkspaceDir = workspace
			e.logger.Info("keeping run workspace", logging.String("dir", workspace))
			return
		}
		if err := os.RemoveAll(workspace); err != nil {
			e.logger.Warn("failed to remove run workspace",
				logging.String("dir", workspace), logging.Error(err))
		}
	}()

	staged := filepath.Join(workspace, filepath.Base(req.InputFile))
	if err := fileutil.CopyFileVerified(req.InputFile, staged); err != nil {
		return nil, fmt.Errorf("stage input volume: %w", err)
	}

	modelOut := filepath.Join(workspace, "output")
	if err := os.MkdirAll(modelOut, 0o755); err != nil {
		return nil, fmt.Errorf("create model output directory: %w", err)
	}

	subtasks, err := e.registry.Expand(canonical)
	if err != nil {
		return nil, err
	}
	for i, subtask := range subtasks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.logger.Info("running segmentation task",
			logging.String("task", subtask),
			logging.Int("index", i+1),
			logging.Int("total", len(subtasks)))
		segReq := bodyseg.Request{
			InputFile:      staged,
			OutputDir:      modelOut,
			TaskID:         subtask,
			CPU:            e.cfg.Segmentation.ForceCPU,
			Preprocessing:  true,
			Postprocessing: true,
			Processes:      e.cfg.Segmentation.Processes,
			Threads:        e.cfg.Segmentation.Threads,
		}
		tail := &outputTail{limit: modelOutputTailLines}
		if err := e.client.Segment(ctx, segReq, func(line string) {
			if line != "" {
				tail.Append(line)
				e.logger.Debug("model output", logging.String("task", subtask), logging.String("line", line))
			}
		}); err != nil {
			if excerpt := tail.Excerpt(); excerpt != "" {
				return nil, fmt.Errorf("%w\nrecent model output:\n%s", err, excerpt)
			}
			return nil, err
		}
	}

	results, err := e.reconcile(ctx, canonical, subset, modelOut, req)
	if err != nil {
		return nil, err
	}

	for _, result := range results {
		outcome := TaskOutcome{
			TaskID:    result.TaskID,
			TaskTitle: result.TaskTitle,
			Status:    result.Status,
			Segments:  result.SegmentCount,
		}
		if result.Completed() {
			path, err := e.exportSidecar(result.Container)
			if err != nil {
				return nil, err
			}
			outcome.SidecarPath = path
			summary.Containers++
			summary.Segments += result.SegmentCount
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
	}
	return summary, nil
}

// reconcile dispatches to the composite or single-task reconciliation path.
func (e *Engine) reconcile(ctx context.Context, canonical string, subset labelspace.Subset, modelOut string, req Request) ([]reconcile.Result, error) {
	base := e.newContainer(containerName(req))
	if canonical == tasks.CompositeID {
		return e.reconciler.ProcessComposite(ctx, subset, modelOut, base)
	}

	task, _ := e.registry.Get(canonical)
	e.reconciler.TagContainer(base, canonical, task.Title)
	result, err := e.reconciler.ProcessTask(canonical, subset, modelOut, base)
	if err != nil {
		return nil, err
	}
	return []reconcile.Result{result}, nil
}

// exportSidecar persists a completed container next to the run's other
// outputs. Containers without export support (host adapters own their own
// persistence) are left alone.
func (e *Engine) exportSidecar(container reconcile.Container) (string, error) {
	exp, ok := container.(exporter)
	if !ok {
		return "", nil
	}
	name := textutil.SanitizeFileName(container.Name())
	if name == "" {
		name = "segmentation"
	}
	path := filepath.Join(e.cfg.Paths.OutputDir, name+".seg.json")
	if err := exp.Export(path); err != nil {
		return "", fmt.Errorf("export container %q: %w", container.Name(), err)
	}
	return path, nil
}

func (e *Engine) recordStart(ctx context.Context, runID, canonical string, subset labelspace.Subset) {
	if e.store == nil {
		return
	}
	run := runlog.Run{
		ID:      runID,
		Model:   e.cfg.Model.Name,
		Task:    canonical,
		Targets: strings.Join(subset.Labels(), ","),
	}
	if err := e.store.RecordStart(ctx, run); err != nil {
		e.logger.Warn("failed to record run start", logging.Error(err))
	}
}

func (e *Engine) recordFinish(ctx context.Context, runID, status string, summary *Summary, runErr error) {
	if e.store == nil {
		return
	}
	containers, segments := 0, 0
	if summary != nil {
		containers, segments = summary.Containers, summary.Segments
	}
	message := ""
	if runErr != nil {
		message = runErr.Error()
	}
	if err := e.store.RecordFinish(ctx, runID, status, containers, segments, message); err != nil {
		e.logger.Warn("failed to record run finish", logging.Error(err))
	}
}

func containerName(req Request) string {
	if req.ContainerName != "" {
		return req.ContainerName
	}
	base := filepath.Base(req.InputFile)
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, ".nii")
	return base + " segmentation"
}

// shortID trims a UUID down to a workspace-directory prefix.
func shortID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}

// outputTail keeps the most recent model output lines so a failed subtask
// can report what the model printed before exiting.
type outputTail struct {
	limit int
	lines []string
}

func (t *outputTail) Append(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.limit {
		t.lines = t.lines[len(t.lines)-t.limit:]
	}
}

func (t *outputTail) Excerpt() string {
	return strings.Join(t.lines, "\n")
}

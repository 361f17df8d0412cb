package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"anatomap/internal/labelspace"
	"anatomap/internal/logging"
	"anatomap/internal/tasks"
	"anatomap/internal/terminology"
)

// ErrInvalidSubset reports requested display labels that cannot be
// resolved within a task's label space. Raised before any processing
// begins.
var ErrInvalidSubset = errors.New("invalid subset")

// TerminologyEntryTag is the segment tag carrying the serialized
// terminology entry string.
const TerminologyEntryTag = "TerminologyEntry"

// Options configures a Reconciler.
type Options struct {
	Catalog    *terminology.Catalog
	Dictionary *labelspace.Dictionary
	Registry   *tasks.Registry
	Layout     ArtifactLayout
	// ModelName prefixes container attributes, e.g. "cads" yields
	// CADS.TaskID / CADS.TaskTitle.
	ModelName string
	// UseStandardNames renames segments to resolved display labels.
	UseStandardNames bool
	// Palette provides import colors; a random session palette when nil.
	Palette *Palette
	// NewContainer creates containers for composite subtasks beyond the
	// first. Defaults to NewMemoryContainer.
	NewContainer func(name string) Container
	Logger       *slog.Logger
}

// Reconciler merges per-task segmentation results into destination
// containers. Safe for sequential use from a single goroutine only.
type Reconciler struct {
	catalog          *terminology.Catalog
	dict             *labelspace.Dictionary
	registry         *tasks.Registry
	layout           ArtifactLayout
	attributePrefix  string
	useStandardNames bool
	palette          *Palette
	newContainer     func(name string) Container
	logger           *slog.Logger
}

// New builds a Reconciler, applying defaults for optional fields.
func New(opts Options) (*Reconciler, error) {
	if opts.Catalog == nil {
		return nil, errors.New("reconcile: catalog is required")
	}
	if opts.Dictionary == nil {
		return nil, errors.New("reconcile: label dictionary is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("reconcile: task registry is required")
	}
	layout := opts.Layout
	if layout == "" {
		layout = LayoutMultiLabel
	}
	palette := opts.Palette
	if palette == nil {
		palette = NewPalette()
	}
	newContainer := opts.NewContainer
	if newContainer == nil {
		newContainer = func(name string) Container { return NewMemoryContainer(name) }
	}
	prefix := strings.ToUpper(strings.TrimSpace(opts.ModelName))
	if prefix == "" {
		prefix = "ANATOMAP"
	}
	return &Reconciler{
		catalog:          opts.Catalog,
		dict:             opts.Dictionary,
		registry:         opts.Registry,
		layout:           layout,
		attributePrefix:  prefix,
		useStandardNames: opts.UseStandardNames,
		palette:          palette,
		newContainer:     newContainer,
		logger:           logging.WithDefault(opts.Logger),
	}, nil
}

// TagContainer stamps the model's task attributes onto a container.
func (r *Reconciler) TagContainer(dest Container, taskID, taskTitle string) {
	dest.SetAttribute(r.attributePrefix+".TaskID", taskID)
	dest.SetAttribute(r.attributePrefix+".TaskTitle", taskTitle)
}

// ValidateSubset checks, before any processing, that every requested
// display label translates to a structure in the task's label space.
// Composite tasks are exempt: their subtasks legitimately cover disjoint
// target sets.
func (r *Reconciler) ValidateSubset(taskID string, subset labelspace.Subset) error {
	if subset == nil || taskID == tasks.CompositeID {
		return nil
	}
	mapping, err := r.mappingFor(taskID)
	if err != nil {
		return err
	}

	resolvable := make(map[string]struct{}, len(mapping))
	for _, structure := range mapping {
		resolvable[r.catalog.DisplayLabel(structure)] = struct{}{}
	}

	var unresolved []string
	for _, label := range subset.Labels() {
		if _, ok := resolvable[label]; !ok {
			unresolved = append(unresolved, label)
		}
	}
	if len(unresolved) > 0 {
		sort.Strings(unresolved)
		return fmt.Errorf("%w: task %s has no targets named %s", ErrInvalidSubset, taskID, strings.Join(unresolved, ", "))
	}
	return nil
}

// ProcessTask reconciles one task's artifact into the destination
// container. Per-task problems surface as Result statuses; errors are
// reserved for structural and infrastructure failures.
func (r *Reconciler) ProcessTask(taskID string, subset labelspace.Subset, outputDir string, dest Container) (Result, error) {
	canonical, err := r.registry.Canonical(taskID)
	if err != nil {
		return Result{}, err
	}
	task, _ := r.registry.Get(canonical)
	result := Result{TaskID: canonical, TaskTitle: task.Title}

	mapping, err := r.mappingFor(canonical)
	if err != nil {
		return Result{}, err
	}

	filtered, ok := labelspace.FilterBySubset(mapping, subset, r.catalog)
	if !ok {
		r.logger.Info("no selected targets in label space, skipping task", logging.String("task", canonical))
		result.Status = StatusSkipped
		return result, nil
	}

	imported, err := r.importArtifact(canonical, filtered, outputDir, dest)
	if err != nil {
		return Result{}, err
	}
	if !imported {
		r.logger.Warn("no segmentation file found for task", logging.String("task", canonical), logging.String("dir", outputDir))
		result.Status = StatusArtifactMissing
		return result, nil
	}

	r.pruneUnselected(filtered, dest)
	r.applyTerminology(filtered, dest)

	result.Status = StatusCompleted
	result.Container = dest
	result.SegmentCount = len(dest.SegmentIDs())
	return result, nil
}

// ProcessComposite expands the composite task and reconciles each subtask
// in order. The base container serves the first subtask; later subtasks
// get fresh containers. Every container is renamed to "<base>: <title>"
// and tagged with the subtask's id and title. Skipped and artifact-missing
// subtasks contribute nothing but never abort the sequence; ctx is
// honoured between subtasks only.
func (r *Reconciler) ProcessComposite(ctx context.Context, subset labelspace.Subset, outputDir string, base Container) ([]Result, error) {
	subtasks, err := r.registry.Expand(tasks.CompositeID)
	if err != nil {
		return nil, err
	}

	baseName := strings.TrimSuffix(base.Name(), " segmentation")
	var results []Result
	for i, subtask := range subtasks {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		task, _ := r.registry.Get(subtask)
		containerName := baseName + ": " + task.Title
		var dest Container
		if i == 0 {
			dest = base
			dest.SetName(containerName)
		} else {
			dest = r.newContainer(containerName)
		}
		r.TagContainer(dest, subtask, task.Title)

		r.logger.Info("processing subtask",
			logging.String("task", subtask),
			logging.Int("index", i+1),
			logging.Int("total", len(subtasks)))

		result, err := r.ProcessTask(subtask, subset, outputDir, dest)
		if err != nil {
			return results, err
		}
		if result.Completed() {
			results = append(results, result)
		}
	}
	return results, nil
}

func (r *Reconciler) mappingFor(taskID string) (labelspace.Mapping, error) {
	numeric, err := strconv.Atoi(taskID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", tasks.ErrInvalidTask, taskID)
	}
	mapping, ok := r.dict.Mapping(numeric)
	if !ok {
		return nil, fmt.Errorf("%w: no label space for task %s", tasks.ErrInvalidTask, taskID)
	}
	return mapping, nil
}

// importArtifact locates the task's output and drives the container
// import. Returns false when no artifact exists.
func (r *Reconciler) importArtifact(taskID string, filtered labelspace.Mapping, outputDir string, dest Container) (bool, error) {
	switch r.layout {
	case LayoutPerSegment:
		files, ok := locatePerSegment(outputDir, taskID)
		if !ok {
			return false, nil
		}
		for _, value := range filtered.Values() {
			structure := filtered[value]
			path, ok := files[structure]
			if !ok {
				r.logger.Debug("structure file absent in per-segment artifact",
					logging.String("task", taskID), logging.String("structure", structure))
				continue
			}
			table := NewColorTable(taskID, value+1)
			table.Set(value, structure, r.palette.Color(value))
			if err := dest.ImportLabelmap(path, table); err != nil {
				return false, fmt.Errorf("import %s for task %s: %w", structure, taskID, err)
			}
		}
		return true, nil
	default:
		artifact, ok := locateMultiLabel(outputDir, taskID, r.logger)
		if !ok {
			return false, nil
		}
		table := NewColorTable(taskID, filtered.MaxValue()+1)
		for _, value := range filtered.Values() {
			table.Set(value, filtered[value], r.palette.Color(value))
		}
		if err := dest.ImportLabelmap(artifact, table); err != nil {
			return false, fmt.Errorf("import labelmap for task %s: %w", taskID, err)
		}
		return true, nil
	}
}

// pruneUnselected removes imported segments whose identity is not in the
// filtered mapping.
func (r *Reconciler) pruneUnselected(filtered labelspace.Mapping, dest Container) {
	for _, id := range dest.SegmentIDs() {
		if !filtered.HasStructure(id) {
			dest.RemoveSegment(id)
		}
	}
}

// applyTerminology tags, renames, and recolors each retained segment.
// Resolution misses keep the segment's prior name and color.
func (r *Reconciler) applyTerminology(filtered labelspace.Mapping, dest Container) {
	for _, value := range filtered.Values() {
		structure := filtered[value]
		if !dest.HasSegment(structure) {
			continue
		}
		entryStr, ok := r.catalog.EntryString(structure)
		if !ok {
			continue
		}
		dest.SetSegmentTag(structure, TerminologyEntryTag, entryStr)

		label, color, err := r.catalog.Resolve(structure)
		if err != nil {
			r.catalog.LogResolveFailure(structure, err)
			continue
		}
		if r.useStandardNames {
			dest.SetSegmentName(structure, label)
		}
		dest.SetSegmentColor(structure, color)
	}
}

package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"anatomap/internal/config"
	"anatomap/internal/labelspace"
	"anatomap/internal/logging"
	"anatomap/internal/reconcile"
	"anatomap/internal/runlog"
	"anatomap/internal/services/bodyseg"
	"anatomap/internal/tasks"
	"anatomap/internal/terminology"
)

// Options configures engine construction. Config is required; everything
// else defaults from it.
type Options struct {
	Config *config.Config
	// Client overrides the segmentation executable wrapper, for tests.
	Client bodyseg.Client
	// Store records run history when non-nil.
	Store *runlog.Store
	// NewContainer overrides destination container creation, for host
	// adapters and tests. Defaults to in-memory containers with JSON
	// sidecar export.
	NewContainer func(name string) reconcile.Container
	Logger       *slog.Logger
}

// Engine wires the terminology catalog, label dictionary, task registry,
// model client, and reconciler behind one Run entry point.
type Engine struct {
	cfg          *config.Config
	client       bodyseg.Client
	store        *runlog.Store
	logger       *slog.Logger
	registry     *tasks.Registry
	catalog      *terminology.Catalog
	dict         *labelspace.Dictionary
	reconciler   *reconcile.Reconciler
	newContainer func(name string) reconcile.Container
}

// New loads the model's resource files and assembles a ready engine.
func New(opts Options) (*Engine, error) {
	if opts.Config == nil {
		return nil, errors.New("engine: config is required")
	}
	cfg := opts.Config
	logger := logging.WithDefault(opts.Logger)

	service := terminology.NewService()
	modelContext, err := service.LoadContextFile(cfg.Model.TerminologyFile)
	if err != nil {
		return nil, err
	}
	if modelContext.Name != cfg.Model.ContextName {
		return nil, fmt.Errorf("terminology file declares context %q, config expects %q",
			modelContext.Name, cfg.Model.ContextName)
	}
	if cfg.Model.DicomTerminologyFile != "" {
		if _, err := service.LoadContextFile(cfg.Model.DicomTerminologyFile); err != nil {
			return nil, err
		}
	}

	catalog, err := terminology.LoadCatalog(cfg.Model.MappingFile, service, modelContext, logger)
	if err != nil {
		return nil, err
	}

	dict, err := labelspace.LoadDictionary(cfg.Model.LabelDictionaryFile)
	if err != nil {
		return nil, err
	}

	layout, err := reconcile.ParseLayout(cfg.Segmentation.ArtifactLayout)
	if err != nil {
		return nil, err
	}

	registry := tasks.Default()
	for _, id := range registry.IDs() {
		task, _ := registry.Get(id)
		if task.IsComposite() {
			continue
		}
		numeric, err := strconv.Atoi(id)
		if err != nil {
			continue
		}
		if _, ok := dict.Mapping(numeric); !ok {
			return nil, fmt.Errorf("%w: dictionary %s defines no label space for task %s",
				labelspace.ErrInvalidLabelSpace, cfg.Model.LabelDictionaryFile, id)
		}
	}

	newContainer := opts.NewContainer
	if newContainer == nil {
		newContainer = func(name string) reconcile.Container { return reconcile.NewMemoryContainer(name) }
	}

	reconciler, err := reconcile.New(reconcile.Options{
		Catalog:          catalog,
		Dictionary:       dict,
		Registry:         registry,
		Layout:           layout,
		ModelName:        cfg.Model.Name,
		UseStandardNames: cfg.Segmentation.UseStandardNames,
		NewContainer:     newContainer,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	client := opts.Client
	if client == nil {
		client = bodyseg.NewCLI(bodyseg.WithBinary(cfg.Model.Binary))
	}

	return &Engine{
		cfg:          cfg,
		client:       client,
		store:        opts.Store,
		logger:       logger,
		registry:     registry,
		catalog:      catalog,
		dict:         dict,
		reconciler:   reconciler,
		newContainer: newContainer,
	}, nil
}

// Registry exposes the task catalog for listing commands.
func (e *Engine) Registry() *tasks.Registry {
	return e.registry
}

// Targets lists the display labels a task can produce. The composite task
// returns the union of its subtasks in subtask order.
func (e *Engine) Targets(taskID string) ([]string, error) {
	subtasks, err := e.registry.Expand(taskID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var targets []string
	for _, subtask := range subtasks {
		mapping, err := e.mappingFor(subtask)
		if err != nil {
			return nil, err
		}
		for _, label := range mapping.Targets(e.catalog) {
			if _, dup := seen[label]; dup {
				continue
			}
			seen[label] = struct{}{}
			targets = append(targets, label)
		}
	}
	return targets, nil
}

func (e *Engine) mappingFor(taskID string) (labelspace.Mapping, error) {
	canonical, err := e.registry.Canonical(taskID)
	if err != nil {
		return nil, err
	}
	numeric, err := strconv.Atoi(canonical)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", tasks.ErrInvalidTask, taskID)
	}
	mapping, ok := e.dict.Mapping(numeric)
	if !ok {
		return nil, fmt.Errorf("%w: no label space for task %s", tasks.ErrInvalidTask, canonical)
	}
	return mapping, nil
}

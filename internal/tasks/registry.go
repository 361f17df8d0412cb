package tasks

import (
	"errors"
	"fmt"
	"strconv"
)

// CompositeID is the pseudo-task that expands to every real task.
const CompositeID = "all"

// ErrInvalidTask reports an unknown or malformed task id. Raised before
// any processing begins.
var ErrInvalidTask = errors.New("invalid task")

// Task describes one segmentation task. Subtasks is populated only for
// the composite task.
type Task struct {
	ID       string
	Title    string
	Subtasks []string
}

// IsComposite reports whether the task fans out to subtasks.
func (t Task) IsComposite() bool {
	return len(t.Subtasks) > 0
}

// Registry holds the available tasks in declaration order.
type Registry struct {
	order []string
	byID  map[string]Task
}

// Default returns the task catalog of the whole-body CT model.
func Default() *Registry {
	return New([]Task{
		{ID: "551", Title: "Core organs"},
		{ID: "552", Title: "Spine complete"},
		{ID: "553", Title: "Heart & vessels"},
		{ID: "554", Title: "Trunk muscles"},
		{ID: "555", Title: "Ribs complete"},
		{ID: "556", Title: "RT risk organs"},
		{ID: "557", Title: "Brain tissues"},
		{ID: "558", Title: "Head-neck organs"},
		{ID: "559", Title: "Body regions"},
		{ID: CompositeID, Title: "All", Subtasks: []string{"551", "552", "553", "554", "555", "556", "557", "558", "559"}},
	})
}

// New builds a registry from the given tasks. Every subtask id of a
// composite task must exist as a standalone task; New panics otherwise
// since registries are static program data.
func New(list []Task) *Registry {
	registry := &Registry{byID: make(map[string]Task, len(list))}
	for _, task := range list {
		registry.order = append(registry.order, task.ID)
		registry.byID[task.ID] = task
	}
	for _, task := range list {
		for _, sub := range task.Subtasks {
			if _, ok := registry.byID[sub]; !ok {
				panic(fmt.Sprintf("tasks: composite %q references unknown subtask %q", task.ID, sub))
			}
		}
	}
	return registry
}

// Get returns the task registered under the given id.
func (r *Registry) Get(id string) (Task, bool) {
	task, ok := r.byID[id]
	return task, ok
}

// IDs returns all task ids in declaration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Validate checks a task id string: it must be the composite id or parse
// as an integer matching a registered task.
func (r *Registry) Validate(id string) error {
	if id == "" {
		return fmt.Errorf("%w: task id must be specified", ErrInvalidTask)
	}
	if id == CompositeID {
		return nil
	}
	numeric, err := strconv.Atoi(id)
	if err != nil {
		return fmt.Errorf("%w: %q must be a number or %q", ErrInvalidTask, id, CompositeID)
	}
	if _, ok := r.byID[strconv.Itoa(numeric)]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidTask, id)
	}
	return nil
}

// Canonical validates a task id and returns its registered form, folding
// away leading zeros in numeric ids.
func (r *Registry) Canonical(id string) (string, error) {
	if err := r.Validate(id); err != nil {
		return "", err
	}
	if id == CompositeID {
		return CompositeID, nil
	}
	numeric, _ := strconv.Atoi(id)
	return strconv.Itoa(numeric), nil
}

// Expand returns the ordered subtask ids a task runs: the composite's
// fan-out list, or the task itself.
func (r *Registry) Expand(id string) ([]string, error) {
	canonical, err := r.Canonical(id)
	if err != nil {
		return nil, err
	}
	task := r.byID[canonical]
	if task.IsComposite() {
		out := make([]string, len(task.Subtasks))
		copy(out, task.Subtasks)
		return out, nil
	}
	return []string{task.ID}, nil
}

package labelspace

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrInvalidLabelSpace reports a malformed label dictionary: negative
// label values or duplicate structure names within one task. Fatal; the
// dictionary is model metadata and must be internally consistent.
var ErrInvalidLabelSpace = errors.New("invalid label space")

// BackgroundLabel is the conventional background label value.
const BackgroundLabel = 0

// Mapping is one task's label space: label value to structure name.
type Mapping map[int]string

// Dictionary holds the label space of every task, keyed by numeric task id.
type Dictionary struct {
	tasks map[int]Mapping
}

// LoadDictionary reads and validates a label dictionary file. The file is
// YAML of the form:
//
//	551:
//	  0: background
//	  1: spleen
func LoadDictionary(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read label dictionary: %w", err)
	}

	var raw map[int]map[int]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse label dictionary %s: %w", path, err)
	}

	converted := make(map[int]Mapping, len(raw))
	for taskID, mapping := range raw {
		converted[taskID] = Mapping(mapping)
	}
	return NewDictionary(converted)
}

// NewDictionary validates and wraps already-loaded label spaces.
func NewDictionary(spaces map[int]Mapping) (*Dictionary, error) {
	dict := &Dictionary{tasks: make(map[int]Mapping, len(spaces))}
	for taskID, mapping := range spaces {
		if err := validateMapping(taskID, mapping); err != nil {
			return nil, err
		}
		dict.tasks[taskID] = mapping
	}
	return dict, nil
}

func validateMapping(taskID int, mapping map[int]string) error {
	seen := make(map[string]int, len(mapping))
	for value, name := range mapping {
		if value < 0 {
			return fmt.Errorf("%w: task %d has negative label value %d", ErrInvalidLabelSpace, taskID, value)
		}
		if name == "" {
			return fmt.Errorf("%w: task %d label value %d has no structure name", ErrInvalidLabelSpace, taskID, value)
		}
		if previous, dup := seen[name]; dup {
			return fmt.Errorf("%w: task %d maps both %d and %d to %q", ErrInvalidLabelSpace, taskID, previous, value, name)
		}
		seen[name] = value
	}
	return nil
}

// Mapping returns the label space of a task.
func (d *Dictionary) Mapping(taskID int) (Mapping, bool) {
	mapping, ok := d.tasks[taskID]
	return mapping, ok
}

// TaskIDs returns the task ids present in the dictionary, ascending.
func (d *Dictionary) TaskIDs() []int {
	ids := make([]int, 0, len(d.tasks))
	for id := range d.tasks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Values returns the label values of a mapping in ascending order.
func (m Mapping) Values() []int {
	values := make([]int, 0, len(m))
	for value := range m {
		values = append(values, value)
	}
	sort.Ints(values)
	return values
}

// MaxValue returns the largest label value, or -1 for an empty mapping.
func (m Mapping) MaxValue() int {
	max := -1
	for value := range m {
		if value > max {
			max = value
		}
	}
	return max
}

// HasStructure reports whether any label value maps to the given name.
func (m Mapping) HasStructure(name string) bool {
	for _, candidate := range m {
		if candidate == name {
			return true
		}
	}
	return false
}

// Labeler translates structure names into display labels. Satisfied by
// terminology.Catalog.
type Labeler interface {
	DisplayLabel(structureName string) string
}

// Subset is a set of user-chosen display labels.
type Subset map[string]struct{}

// NewSubset builds a subset from display labels, dropping empties.
func NewSubset(labels []string) Subset {
	if len(labels) == 0 {
		return nil
	}
	subset := make(Subset, len(labels))
	for _, label := range labels {
		if label == "" {
			continue
		}
		subset[label] = struct{}{}
	}
	if len(subset) == 0 {
		return nil
	}
	return subset
}

// Contains reports subset membership. A nil subset contains everything.
func (s Subset) Contains(label string) bool {
	if s == nil {
		return true
	}
	_, ok := s[label]
	return ok
}

// Labels returns the subset's display labels in sorted order.
func (s Subset) Labels() []string {
	labels := make([]string, 0, len(s))
	for label := range s {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// FilterBySubset returns the entries of a mapping whose structure's
// display label is in the subset. The source mapping is never mutated.
// The second return is false when nothing survives the filter, which
// callers treat as "skip this task", not an error.
func FilterBySubset(mapping Mapping, subset Subset, labels Labeler) (Mapping, bool) {
	if subset == nil {
		copied := make(Mapping, len(mapping))
		for value, name := range mapping {
			copied[value] = name
		}
		return copied, len(copied) > 0
	}

	filtered := make(Mapping)
	for value, name := range mapping {
		if subset.Contains(labels.DisplayLabel(name)) {
			filtered[value] = name
		}
	}
	return filtered, len(filtered) > 0
}

// Targets lists the display labels a task can produce, excluding the
// background sentinel, deduplicated and sorted.
func (m Mapping) Targets(labels Labeler) []string {
	seen := make(map[string]struct{})
	var targets []string
	for _, value := range m.Values() {
		if value == BackgroundLabel {
			continue
		}
		label := labels.DisplayLabel(m[value])
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		targets = append(targets, label)
	}
	sort.Strings(targets)
	return targets
}

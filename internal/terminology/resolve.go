package terminology

import (
	"errors"
	"fmt"

	"anatomap/internal/logging"
)

// ErrNotFound reports that a terminology entry could not be matched in the
// loaded terminology trees. Callers treat this as non-fatal: the segment
// keeps its raw name and default color.
var ErrNotFound = errors.New("terminology not found")

// Resolve returns the display label and color for a structure by walking
// the terminology tree named in its entry string. The result is cached
// after the first call, so repeated lookups are deterministic and cheap.
func (c *Catalog) Resolve(structureName string) (string, RGB, error) {
	entry, ok := c.entries[structureName]
	if !ok {
		return "", RGB{}, fmt.Errorf("structure %q: %w", structureName, ErrNotFound)
	}
	if !entry.resolved {
		entry.displayLabel, entry.color, entry.resolveErr = c.service.ResolveEntry(entry.entry)
		entry.resolved = true
	}
	if entry.resolveErr != nil {
		return "", RGB{}, entry.resolveErr
	}
	return entry.displayLabel, entry.color, nil
}

// DisplayLabel returns the resolved display label for a structure, or the
// structure name itself when resolution is impossible. Never fails.
func (c *Catalog) DisplayLabel(structureName string) string {
	label, _, err := c.Resolve(structureName)
	if err != nil {
		return structureName
	}
	return label
}

// StructureName reverse-maps a display label to a structure name by linear
// scan in mapping-file order, returning the input unchanged when nothing
// matches. The reverse direction is lossy: two structures may share one
// display label after modifier resolution, in which case the first wins.
func (c *Catalog) StructureName(displayLabel string) string {
	for _, name := range c.order {
		if c.DisplayLabel(name) == displayLabel {
			return name
		}
	}
	return displayLabel
}

// LogResolveFailure emits the standard warning for a non-fatal resolution
// miss.
func (c *Catalog) LogResolveFailure(structureName string, err error) {
	logging.WithDefault(c.logger).Warn("terminology resolution failed",
		logging.String("structure", structureName), logging.Error(err))
}

// ResolveEntry walks category, type, and optional modifier, matching by
// coding scheme designator and code value. When the entry names a modifier
// the modifier's label and color win; otherwise the base type's are used.
func (s *Service) ResolveEntry(entry Entry) (string, RGB, error) {
	ctx, ok := s.Context(entry.ContextName)
	if !ok {
		return "", RGB{}, fmt.Errorf("context %q not loaded: %w", entry.ContextName, ErrNotFound)
	}

	category, ok := ctx.FindCategory(entry.Category)
	if !ok {
		return "", RGB{}, fmt.Errorf("category %s in context %q: %w", entry.Category.Key(), ctx.Name, ErrNotFound)
	}

	node, ok := category.FindType(entry.Type)
	if !ok {
		return "", RGB{}, fmt.Errorf("type %s in context %q: %w", entry.Type.Key(), ctx.Name, ErrNotFound)
	}

	if entry.TypeModifier.Value != "" {
		modifier, ok := node.FindModifier(entry.TypeModifier)
		if !ok {
			return "", RGB{}, fmt.Errorf("type modifier %s for type %s: %w", entry.TypeModifier.Key(), entry.Type.Key(), ErrNotFound)
		}
		return modifier.DisplayLabel(), modifier.Color, nil
	}
	return node.DisplayLabel(), node.Color, nil
}

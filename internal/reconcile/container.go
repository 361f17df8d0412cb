package reconcile

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"anatomap/internal/terminology"
)

// Container is the narrow capability surface the reconciler needs from a
// destination segmentation container. Host-application adapters implement
// it against their own scene graph; MemoryContainer implements it for
// headless runs and tests.
type Container interface {
	Name() string
	SetName(name string)
	SetAttribute(key, value string)

	// ImportLabelmap loads segments from a label-map artifact, using the
	// color table to map voxel values to segment identities.
	ImportLabelmap(artifactPath string, table *ColorTable) error

	SegmentIDs() []string
	HasSegment(id string) bool
	RemoveSegment(id string)
	SetSegmentTag(id, key, value string)
	SetSegmentName(id, name string)
	SetSegmentColor(id string, color terminology.RGB)
}

// Segment is the reconciled state of one imported segment.
type Segment struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Color terminology.RGB `json:"color"`
	Tags  map[string]string
}

// MemoryContainer is an in-memory Container. Importing creates one
// segment per named color-table entry; the host-application behaviour of
// dropping label values absent from the voxel data is the adapter's
// concern, not simulated here.
type MemoryContainer struct {
	name       string
	attributes map[string]string
	order      []string
	segments   map[string]*Segment
}

// NewMemoryContainer returns an empty container with the given name.
func NewMemoryContainer(name string) *MemoryContainer {
	return &MemoryContainer{
		name:       name,
		attributes: make(map[string]string),
		segments:   make(map[string]*Segment),
	}
}

func (c *MemoryContainer) Name() string { return c.name }

func (c *MemoryContainer) SetName(name string) { c.name = name }

func (c *MemoryContainer) SetAttribute(key, value string) { c.attributes[key] = value }

// Attribute returns a container attribute.
func (c *MemoryContainer) Attribute(key string) string { return c.attributes[key] }

func (c *MemoryContainer) ImportLabelmap(artifactPath string, table *ColorTable) error {
	if _, err := os.Stat(artifactPath); err != nil {
		return fmt.Errorf("labelmap artifact: %w", err)
	}
	for _, entry := range table.Entries() {
		// Voxel value 0 is background; importers create no segment for it.
		if entry.Name == "" || entry.Value == 0 {
			continue
		}
		if _, exists := c.segments[entry.Name]; exists {
			continue
		}
		c.order = append(c.order, entry.Name)
		c.segments[entry.Name] = &Segment{
			ID:    entry.Name,
			Name:  entry.Name,
			Color: entry.Color,
			Tags:  make(map[string]string),
		}
	}
	return nil
}

func (c *MemoryContainer) SegmentIDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

func (c *MemoryContainer) HasSegment(id string) bool {
	_, ok := c.segments[id]
	return ok
}

func (c *MemoryContainer) RemoveSegment(id string) {
	if _, ok := c.segments[id]; !ok {
		return
	}
	delete(c.segments, id)
	for i, candidate := range c.order {
		if candidate == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *MemoryContainer) SetSegmentTag(id, key, value string) {
	if segment, ok := c.segments[id]; ok {
		segment.Tags[key] = value
	}
}

func (c *MemoryContainer) SetSegmentName(id, name string) {
	if segment, ok := c.segments[id]; ok {
		segment.Name = name
	}
}

func (c *MemoryContainer) SetSegmentColor(id string, color terminology.RGB) {
	if segment, ok := c.segments[id]; ok {
		segment.Color = color
	}
}

// Segments returns the container's segments in import order.
func (c *MemoryContainer) Segments() []Segment {
	out := make([]Segment, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.segments[id])
	}
	return out
}

// sidecar is the JSON export shape of a reconciled container.
type sidecar struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Segments   []sidecarSegment  `json:"segments"`
}

type sidecarSegment struct {
	ID    string            `json:"id"`
	Name  string            `json:"name"`
	Color [3]float64        `json:"color"`
	Tags  map[string]string `json:"tags,omitempty"`
}

// Export writes the container state to a JSON sidecar file so headless
// runs leave an inspectable record of every reconciled segment.
func (c *MemoryContainer) Export(path string) error {
	doc := sidecar{Name: c.name, Segments: make([]sidecarSegment, 0, len(c.order))}
	if len(c.attributes) > 0 {
		doc.Attributes = make(map[string]string, len(c.attributes))
		keys := make([]string, 0, len(c.attributes))
		for key := range c.attributes {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			doc.Attributes[key] = c.attributes[key]
		}
	}
	for _, segment := range c.Segments() {
		doc.Segments = append(doc.Segments, sidecarSegment{
			ID:    segment.ID,
			Name:  segment.Name,
			Color: [3]float64{segment.Color.R, segment.Color.G, segment.Color.B},
			Tags:  segment.Tags,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode container %s: %w", c.name, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}

package reconcile

import (
	"math/rand"

	"anatomap/internal/terminology"
)

// ColorTable is a transient import aid: an indexed table mapping label
// values to segment names and colors. It exists only to drive a container
// import and is discarded afterwards.
type ColorTable struct {
	name    string
	entries []ColorEntry
}

// ColorEntry is one defined slot of a color table.
type ColorEntry struct {
	Value int
	Name  string
	Color terminology.RGB
}

// NewColorTable returns a table with the given name and slot count.
func NewColorTable(name string, size int) *ColorTable {
	if size < 0 {
		size = 0
	}
	return &ColorTable{name: name, entries: make([]ColorEntry, 0, size)}
}

// Name returns the table's name, conventionally the task id.
func (t *ColorTable) Name() string { return t.name }

// Set assigns a name and color to a label value.
func (t *ColorTable) Set(value int, name string, color terminology.RGB) {
	for i := range t.entries {
		if t.entries[i].Value == value {
			t.entries[i] = ColorEntry{Value: value, Name: name, Color: color}
			return
		}
	}
	t.entries = append(t.entries, ColorEntry{Value: value, Name: name, Color: color})
}

// Entries returns the defined entries in insertion order.
func (t *ColorTable) Entries() []ColorEntry {
	out := make([]ColorEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Lookup returns the entry for a label value.
func (t *ColorTable) Lookup(value int) (ColorEntry, bool) {
	for _, entry := range t.entries {
		if entry.Value == value {
			return entry, true
		}
	}
	return ColorEntry{}, false
}

// Palette hands out arbitrary but session-stable colors for import
// tables: the same label value always yields the same color within one
// palette, regardless of lookup order.
type Palette struct {
	seed uint64
}

// NewPalette returns a palette with a random session seed.
func NewPalette() *Palette {
	return &Palette{seed: rand.Uint64() | 1}
}

// NewSeededPalette returns a palette with a fixed seed, for deterministic
// output across sessions.
func NewSeededPalette(seed uint64) *Palette {
	return &Palette{seed: seed | 1}
}

// Color returns the palette color for a label value.
func (p *Palette) Color(value int) terminology.RGB {
	mixed := splitmix64(p.seed + uint64(value)*0x9e3779b97f4a7c15)
	r := float64(mixed&0xffff) / 0xffff
	g := float64((mixed>>16)&0xffff) / 0xffff
	b := float64((mixed>>32)&0xffff) / 0xffff
	return terminology.RGB{R: r, G: g, B: b}
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

package terminology

import (
	"fmt"
	"strings"
)

// CodeTriple is one coded concept: coding scheme designator, code value,
// and code meaning. A zero triple stands for an absent optional field.
type CodeTriple struct {
	Scheme  string
	Value   string
	Meaning string
}

// IsZero reports whether the triple carries no code.
func (c CodeTriple) IsZero() bool {
	return c.Scheme == "" && c.Value == "" && c.Meaning == ""
}

// Key returns the scheme^value pair used for set membership and matching.
func (c CodeTriple) Key() string {
	return c.Scheme + "^" + c.Value
}

// Matches reports whether two triples denote the same code. Meanings are
// ignored; only scheme designator and code value identify a code.
func (c CodeTriple) Matches(other CodeTriple) bool {
	return c.Scheme == other.Scheme && c.Value == other.Value
}

func (c CodeTriple) serialize() string {
	return c.Scheme + "^" + c.Value + "^" + c.Meaning
}

func parseCodeTriple(field string) (CodeTriple, error) {
	parts := strings.Split(field, "^")
	if len(parts) != 3 {
		return CodeTriple{}, fmt.Errorf("code triple %q: want 3 caret-separated fields, got %d", field, len(parts))
	}
	return CodeTriple{Scheme: parts[0], Value: parts[1], Meaning: parts[2]}, nil
}

// RGB is a display color with components in [0, 1].
type RGB struct {
	R, G, B float64
}

func rgbFrom255(r, g, b int) RGB {
	return RGB{R: float64(r) / 255.0, G: float64(g) / 255.0, B: float64(b) / 255.0}
}

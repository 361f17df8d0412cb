package terminology

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestResolveModifierWins(t *testing.T) {
	catalog := loadTestCatalog(t)

	label, color, err := catalog.Resolve("kidney_left")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if label != "Kidney" {
		t.Errorf("display label: got %q, want %q", label, "Kidney")
	}
	if !almostEqual(color.R, 185.0/255.0) || !almostEqual(color.G, 102.0/255.0) || !almostEqual(color.B, 83.0/255.0) {
		t.Errorf("unexpected color: %+v", color)
	}

	// Laterality variants share a label but carry distinct colors.
	_, rightColor, err := catalog.Resolve("kidney_right")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if almostEqual(color.B, rightColor.B) {
		t.Error("left and right kidney should have distinct modifier colors")
	}
}

func TestResolveBaseTypeWithoutModifier(t *testing.T) {
	catalog := loadTestCatalog(t)

	label, color, err := catalog.Resolve("spleen")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if label != "Spleen" {
		t.Errorf("display label: got %q, want %q", label, "Spleen")
	}
	if !almostEqual(color.R, 157.0/255.0) {
		t.Errorf("unexpected color: %+v", color)
	}
}

func TestResolveNotFound(t *testing.T) {
	catalog := loadTestCatalog(t)

	// mystery_organ's type code is outside the model terminology, so its
	// entry points at the DICOM master list context, which is not loaded.
	_, _, err := catalog.Resolve("mystery_organ")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	_, _, err = catalog.Resolve("never_heard_of_it")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound for unknown structure, got %v", err)
	}
}

func TestDisplayLabelFallsBackToStructureName(t *testing.T) {
	catalog := loadTestCatalog(t)

	if got := catalog.DisplayLabel("mystery_organ"); got != "mystery_organ" {
		t.Errorf("unresolvable structure should keep its name, got %q", got)
	}
	if got := catalog.DisplayLabel("not_in_catalog"); got != "not_in_catalog" {
		t.Errorf("unknown structure should pass through, got %q", got)
	}
}

func TestDisplayLabelDeterministic(t *testing.T) {
	catalog := loadTestCatalog(t)
	first := catalog.DisplayLabel("kidney_left")
	for i := 0; i < 5; i++ {
		if got := catalog.DisplayLabel("kidney_left"); got != first {
			t.Fatalf("DisplayLabel not stable: %q then %q", first, got)
		}
	}
}

func TestStructureNameReverseLookup(t *testing.T) {
	catalog := loadTestCatalog(t)

	// Two structures share the "Kidney" label; the first in file order wins.
	if got := catalog.StructureName("Kidney"); got != "kidney_left" {
		t.Errorf("reverse lookup: got %q, want %q", got, "kidney_left")
	}
	if got := catalog.StructureName("Spleen"); got != "spleen" {
		t.Errorf("reverse lookup: got %q, want %q", got, "spleen")
	}
	// No match returns the input unchanged.
	if got := catalog.StructureName("Unmapped Label"); got != "Unmapped Label" {
		t.Errorf("reverse lookup fallback: got %q", got)
	}
}

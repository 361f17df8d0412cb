package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"anatomap/internal/labelspace"
	"anatomap/internal/tasks"
	"anatomap/internal/terminology"
)

const fixtureContextJSON = `{
  "SegmentationCategoryTypeContextName": "Segmentation category and type - CADS",
  "SegmentationCodes": {
    "Category": [
      {
        "CodingSchemeDesignator": "SCT", "CodeValue": "123037004", "CodeMeaning": "Anatomical Structure",
        "Type": [
          {
            "CodingSchemeDesignator": "SCT", "CodeValue": "64033007", "CodeMeaning": "Kidney",
            "3dSlicerLabel": "kidney", "recommendedDisplayRGBValue": [185, 102, 83],
            "Modifier": [
              {"CodingSchemeDesignator": "SCT", "CodeValue": "7771000", "CodeMeaning": "Left", "3dSlicerLabel": "Kidney", "recommendedDisplayRGBValue": [185, 102, 83]},
              {"CodingSchemeDesignator": "SCT", "CodeValue": "24028007", "CodeMeaning": "Right", "3dSlicerLabel": "Kidney", "recommendedDisplayRGBValue": [185, 102, 84]}
            ]
          },
          {"CodingSchemeDesignator": "SCT", "CodeValue": "78961009", "CodeMeaning": "Spleen", "3dSlicerLabel": "Spleen", "recommendedDisplayRGBValue": [157, 108, 162]}
        ]
      }
    ]
  }
}`

const fixtureMappingCSV = `Structure,SegmentedPropertyCategoryCodeSequence.CodingSchemeDesignator,SegmentedPropertyCategoryCodeSequence.CodeValue,SegmentedPropertyCategoryCodeSequence.CodeMeaning,SegmentedPropertyTypeCodeSequence.CodingSchemeDesignator,SegmentedPropertyTypeCodeSequence.CodeValue,SegmentedPropertyTypeCodeSequence.CodeMeaning,SegmentedPropertyTypeModifierCodeSequence.CodingSchemeDesignator,SegmentedPropertyTypeModifierCodeSequence.CodeValue,SegmentedPropertyTypeModifierCodeSequence.CodeMeaning,AnatomicRegionSequence.CodingSchemeDesignator,AnatomicRegionSequence.CodeValue,AnatomicRegionSequence.CodeMeaning,AnatomicRegionModifierSequence.CodingSchemeDesignator,AnatomicRegionModifierSequence.CodeValue,AnatomicRegionModifierSequence.CodeMeaning
kidney_left,SCT,123037004,Anatomical Structure,SCT,64033007,Kidney,SCT,7771000,Left,,,,,,
kidney_right,SCT,123037004,Anatomical Structure,SCT,64033007,Kidney,SCT,24028007,Right,,,,,,
spleen,SCT,123037004,Anatomical Structure,SCT,78961009,Spleen,,,,,,,,,
`

type fixture struct {
	reconciler *Reconciler
	outputDir  string
}

// newFixture builds a reconciler over a catalog with kidneys and spleen,
// plus label spaces for every registered task so composite runs work.
func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	dir := t.TempDir()

	service := terminology.NewService()
	ctx, err := terminology.ParseContext([]byte(fixtureContextJSON))
	if err != nil {
		t.Fatalf("ParseContext failed: %v", err)
	}
	service.Register(ctx)

	mappingPath := filepath.Join(dir, "mapping.csv")
	if err := os.WriteFile(mappingPath, []byte(fixtureMappingCSV), 0o644); err != nil {
		t.Fatalf("write mapping: %v", err)
	}
	catalog, err := terminology.LoadCatalog(mappingPath, service, ctx, nil)
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}

	spaces := map[int]labelspace.Mapping{
		551: {0: "background", 1: "spleen", 5: "kidney_left", 6: "kidney_right"},
	}
	for taskID := 552; taskID <= 559; taskID++ {
		spaces[taskID] = labelspace.Mapping{
			0: "background",
			1: "structure_" + strconv.Itoa(taskID),
		}
	}
	dict, err := labelspace.NewDictionary(spaces)
	if err != nil {
		t.Fatalf("NewDictionary failed: %v", err)
	}

	opts.Catalog = catalog
	opts.Dictionary = dict
	opts.Registry = tasks.Default()
	if opts.Palette == nil {
		opts.Palette = NewSeededPalette(42)
	}
	reconciler, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	outputDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		t.Fatalf("mkdir output: %v", err)
	}
	return &fixture{reconciler: reconciler, outputDir: outputDir}
}

func (f *fixture) writeArtifact(t *testing.T, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(f.outputDir, name), []byte("stub"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
}

func TestProcessTaskCompleted(t *testing.T) {
	f := newFixture(t, Options{UseStandardNames: true, ModelName: "cads"})
	f.writeArtifact(t, "volume_551_seg.nii.gz")

	dest := NewMemoryContainer("CT chest")
	result, err := f.reconciler.ProcessTask("551", nil, f.outputDir, dest)
	if err != nil {
		t.Fatalf("ProcessTask failed: %v", err)
	}
	if result.Status != StatusCompleted {
		t.Fatalf("status: got %s, want %s", result.Status, StatusCompleted)
	}
	if result.SegmentCount != 3 {
		t.Errorf("segment count: got %d, want 3 (background excluded)", result.SegmentCount)
	}

	segments := dest.Segments()
	byID := make(map[string]Segment, len(segments))
	for _, segment := range segments {
		byID[segment.ID] = segment
	}

	left, ok := byID["kidney_left"]
	if !ok {
		t.Fatal("kidney_left segment missing")
	}
	if left.Name != "Kidney" {
		t.Errorf("standard name not applied: got %q", left.Name)
	}
	if left.Tags[TerminologyEntryTag] == "" {
		t.Error("terminology tag not set")
	}
	if !strings.HasSuffix(left.Tags[TerminologyEntryTag], "|") {
		t.Errorf("terminology tag not terminated: %q", left.Tags[TerminologyEntryTag])
	}

	right := byID["kidney_right"]
	if left.Color == right.Color {
		t.Error("laterality variants should carry distinct terminology colors")
	}
}

func TestProcessTaskKeepsRawNamesWhenDisabled(t *testing.T) {
	f := newFixture(t, Options{UseStandardNames: false})
	f.writeArtifact(t, "551.nii.gz")

	dest := NewMemoryContainer("CT chest")
	result, err := f.reconciler.ProcessTask("551", nil, f.outputDir, dest)
	if err != nil {
		t.Fatalf("ProcessTask failed: %v", err)
	}
	if !result.Completed() {
		t.Fatalf("status: %s", result.Status)
	}
	for _, segment := range dest.Segments() {
		if segment.ID == "kidney_left" && segment.Name != "kidney_left" {
			t.Errorf("raw name should be kept, got %q", segment.Name)
		}
		// Terminology colors still apply even without renaming.
		if segment.ID == "spleen" && segment.Color != (terminology.RGB{R: 157.0 / 255.0, G: 108.0 / 255.0, B: 162.0 / 255.0}) {
			t.Errorf("terminology color not applied: %+v", segment.Color)
		}
	}
}

func TestProcessTaskSubsetPrunes(t *testing.T) {
	f := newFixture(t, Options{UseStandardNames: true})
	f.writeArtifact(t, "551.nii.gz")

	dest := NewMemoryContainer("CT chest")
	subset := labelspace.NewSubset([]string{"Kidney"})
	result, err := f.reconciler.ProcessTask("551", subset, f.outputDir, dest)
	if err != nil {
		t.Fatalf("ProcessTask failed: %v", err)
	}
	if result.SegmentCount != 2 {
		t.Fatalf("both kidneys should survive a display-label subset, got %d segments", result.SegmentCount)
	}
	if dest.HasSegment("spleen") {
		t.Error("spleen should be pruned by the subset")
	}
}

func TestProcessTaskSkippedOnEmptyFilter(t *testing.T) {
	f := newFixture(t, Options{})
	f.writeArtifact(t, "551.nii.gz")

	dest := NewMemoryContainer("CT chest")
	result, err := f.reconciler.ProcessTask("551", labelspace.NewSubset([]string{"Femur"}), f.outputDir, dest)
	if err != nil {
		t.Fatalf("ProcessTask failed: %v", err)
	}
	if result.Status != StatusSkipped {
		t.Errorf("status: got %s, want %s", result.Status, StatusSkipped)
	}
	if len(dest.SegmentIDs()) != 0 {
		t.Error("skipped task must not touch the container")
	}
}

func TestProcessTaskPerSegmentLayout(t *testing.T) {
	f := newFixture(t, Options{Layout: LayoutPerSegment, UseStandardNames: true, ModelName: "cads"})
	taskDir := filepath.Join(f.outputDir, "551")
	if err := os.MkdirAll(taskDir, 0o755); err != nil {
		t.Fatalf("mkdir task dir: %v", err)
	}
	for _, name := range []string{"kidney_left.nii.gz", "kidney_right.nii.gz", "spleen.nii.gz"} {
		if err := os.WriteFile(filepath.Join(taskDir, name), []byte("stub"), 0o644); err != nil {
			t.Fatalf("write structure file: %v", err)
		}
	}

	dest := NewMemoryContainer("CT chest")
	subset := labelspace.NewSubset([]string{"Kidney"})
	result, err := f.reconciler.ProcessTask("551", subset, f.outputDir, dest)
	if err != nil {
		t.Fatalf("ProcessTask failed: %v", err)
	}
	if result.Status != StatusCompleted {
		t.Fatalf("status: got %s, want %s", result.Status, StatusCompleted)
	}
	if result.SegmentCount != 2 {
		t.Fatalf("segment count: got %d, want 2", result.SegmentCount)
	}
	if dest.HasSegment("spleen") {
		t.Error("spleen file must not be imported outside the subset")
	}
	for _, segment := range dest.Segments() {
		if segment.Name != "Kidney" {
			t.Errorf("standard name not applied to %s: got %q", segment.ID, segment.Name)
		}
		if segment.Tags[TerminologyEntryTag] == "" {
			t.Errorf("terminology tag not set on %s", segment.ID)
		}
	}
}

func TestProcessTaskPerSegmentArtifactMissing(t *testing.T) {
	f := newFixture(t, Options{Layout: LayoutPerSegment})

	dest := NewMemoryContainer("CT chest")
	result, err := f.reconciler.ProcessTask("551", nil, f.outputDir, dest)
	if err != nil {
		t.Fatalf("ProcessTask failed: %v", err)
	}
	if result.Status != StatusArtifactMissing {
		t.Errorf("status: got %s, want %s", result.Status, StatusArtifactMissing)
	}
}

func TestProcessTaskArtifactMissing(t *testing.T) {
	f := newFixture(t, Options{})

	dest := NewMemoryContainer("CT chest")
	result, err := f.reconciler.ProcessTask("551", nil, f.outputDir, dest)
	if err != nil {
		t.Fatalf("ProcessTask failed: %v", err)
	}
	if result.Status != StatusArtifactMissing {
		t.Errorf("status: got %s, want %s", result.Status, StatusArtifactMissing)
	}
}

func TestProcessTaskInvalidID(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.reconciler.ProcessTask("999", nil, f.outputDir, NewMemoryContainer("x"))
	if !errors.Is(err, tasks.ErrInvalidTask) {
		t.Fatalf("want ErrInvalidTask, got %v", err)
	}
}

func TestProcessTaskIdempotent(t *testing.T) {
	f := newFixture(t, Options{UseStandardNames: true})
	f.writeArtifact(t, "551.nii.gz")

	run := func() []Segment {
		dest := NewMemoryContainer("CT chest")
		result, err := f.reconciler.ProcessTask("551", nil, f.outputDir, dest)
		if err != nil {
			t.Fatalf("ProcessTask failed: %v", err)
		}
		if !result.Completed() {
			t.Fatalf("status: %s", result.Status)
		}
		return dest.Segments()
	}

	first := run()
	second := run()
	if len(first) != len(second) {
		t.Fatalf("segment counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].Name != second[i].Name || first[i].Color != second[i].Color {
			t.Errorf("segment %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestValidateSubset(t *testing.T) {
	f := newFixture(t, Options{})

	if err := f.reconciler.ValidateSubset("551", labelspace.NewSubset([]string{"Kidney", "Spleen"})); err != nil {
		t.Errorf("valid subset rejected: %v", err)
	}

	err := f.reconciler.ValidateSubset("551", labelspace.NewSubset([]string{"nonexistent_organ"}))
	if !errors.Is(err, ErrInvalidSubset) {
		t.Fatalf("want ErrInvalidSubset, got %v", err)
	}
	if !strings.Contains(err.Error(), "nonexistent_organ") {
		t.Errorf("error should name the unresolvable entry: %v", err)
	}

	// Composite runs skip subset validation; subtasks may cover disjoint targets.
	if err := f.reconciler.ValidateSubset("all", labelspace.NewSubset([]string{"Kidney"})); err != nil {
		t.Errorf("composite subset should not be validated up front: %v", err)
	}
}

func TestProcessCompositeOrderAndSkips(t *testing.T) {
	f := newFixture(t, Options{UseStandardNames: true, ModelName: "cads"})
	// Artifacts for three subtasks only; 553 is intentionally missing.
	f.writeArtifact(t, "551.nii.gz")
	f.writeArtifact(t, "552.nii.gz")
	f.writeArtifact(t, "554.nii.gz")

	base := NewMemoryContainer("CT chest segmentation")
	results, err := f.reconciler.ProcessComposite(context.Background(), nil, f.outputDir, base)
	if err != nil {
		t.Fatalf("ProcessComposite failed: %v", err)
	}

	want := []string{"551", "552", "554"}
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d", len(results), len(want))
	}
	for i, result := range results {
		if result.TaskID != want[i] {
			t.Errorf("result %d: got task %s, want %s", i, result.TaskID, want[i])
		}
		if !result.Completed() {
			t.Errorf("result %d has status %s", i, result.Status)
		}
	}

	// Subtask 0 reuses the base container, renamed from the base name.
	if base.Name() != "CT chest: Core organs" {
		t.Errorf("base container name: got %q", base.Name())
	}
	if base.Attribute("CADS.TaskID") != "551" {
		t.Errorf("task id attribute: got %q", base.Attribute("CADS.TaskID"))
	}
	if results[1].Container == Container(base) {
		t.Error("later subtasks must get fresh containers")
	}
}

func TestProcessCompositeSubsetSkipsForeignTasks(t *testing.T) {
	f := newFixture(t, Options{UseStandardNames: true})
	for task := 551; task <= 559; task++ {
		f.writeArtifact(t, strconv.Itoa(task)+".nii.gz")
	}

	base := NewMemoryContainer("CT chest")
	results, err := f.reconciler.ProcessComposite(context.Background(), labelspace.NewSubset([]string{"Kidney"}), f.outputDir, base)
	if err != nil {
		t.Fatalf("ProcessComposite failed: %v", err)
	}
	// Only task 551 contains kidneys.
	if len(results) != 1 || results[0].TaskID != "551" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if results[0].SegmentCount != 2 {
		t.Errorf("segment count: got %d, want 2", results[0].SegmentCount)
	}
}

func TestProcessCompositeHonoursCancellation(t *testing.T) {
	f := newFixture(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.reconciler.ProcessComposite(ctx, nil, f.outputDir, NewMemoryContainer("x"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

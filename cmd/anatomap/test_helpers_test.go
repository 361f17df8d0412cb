package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testTerminology = `{
  "SegmentationCategoryTypeContextName": "Segmentation category and type - CADS",
  "SegmentationCodes": {
    "Category": [
      {
        "CodingSchemeDesignator": "SCT",
        "CodeValue": "123037004",
        "CodeMeaning": "Anatomical Structure",
        "Type": [
          {
            "CodingSchemeDesignator": "SCT",
            "CodeValue": "78961009",
            "CodeMeaning": "Spleen",
            "3dSlicerLabel": "spleen",
            "recommendedDisplayRGBValue": [157, 108, 162]
          },
          {
            "CodingSchemeDesignator": "SCT",
            "CodeValue": "10200004",
            "CodeMeaning": "Liver",
            "3dSlicerLabel": "liver",
            "recommendedDisplayRGBValue": [221, 130, 101]
          }
        ]
      }
    ]
  }
}`

// fakeModelScript mimics the segmentation executable: it drops one empty
// artifact named after the task into the output directory.
const fakeModelScript = `#!/bin/sh
out=""
task=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift 2 ;;
    -task) task="$2"; shift 2 ;;
    *) shift ;;
  esac
done
: > "$out/seg_${task}.nii.gz"
`

type cliTestEnv struct {
	baseDir    string
	configPath string
	inputPath  string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	termPath := filepath.Join(base, "model.term.json")
	if err := os.WriteFile(termPath, []byte(testTerminology), 0o644); err != nil {
		t.Fatal(err)
	}

	mapping := "Structure," +
		"SegmentedPropertyCategoryCodeSequence.CodingSchemeDesignator,SegmentedPropertyCategoryCodeSequence.CodeValue,SegmentedPropertyCategoryCodeSequence.CodeMeaning," +
		"SegmentedPropertyTypeCodeSequence.CodingSchemeDesignator,SegmentedPropertyTypeCodeSequence.CodeValue,SegmentedPropertyTypeCodeSequence.CodeMeaning," +
		"SegmentedPropertyTypeModifierCodeSequence.CodingSchemeDesignator,SegmentedPropertyTypeModifierCodeSequence.CodeValue,SegmentedPropertyTypeModifierCodeSequence.CodeMeaning," +
		"AnatomicRegionSequence.CodingSchemeDesignator,AnatomicRegionSequence.CodeValue,AnatomicRegionSequence.CodeMeaning," +
		"AnatomicRegionModifierSequence.CodingSchemeDesignator,AnatomicRegionModifierSequence.CodeValue,AnatomicRegionModifierSequence.CodeMeaning\n" +
		"spleen,SCT,123037004,Anatomical Structure,SCT,78961009,Spleen,,,,,,,,,\n" +
		"liver,SCT,123037004,Anatomical Structure,SCT,10200004,Liver,,,,,,,,,\n"
	mappingPath := filepath.Join(base, "mapping.csv")
	if err := os.WriteFile(mappingPath, []byte(mapping), 0o644); err != nil {
		t.Fatal(err)
	}

	var dictionary strings.Builder
	dictionary.WriteString("551:\n  0: background\n  1: spleen\n  2: liver\n")
	for _, id := range []string{"552", "553", "554", "555", "556", "557", "558", "559"} {
		fmt.Fprintf(&dictionary, "%s:\n  1: structure %s\n", id, id)
	}
	dictPath := filepath.Join(base, "labels.yaml")
	if err := os.WriteFile(dictPath, []byte(dictionary.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	binaryPath := filepath.Join(base, "fake-model.sh")
	if err := os.WriteFile(binaryPath, []byte(fakeModelScript), 0o755); err != nil {
		t.Fatal(err)
	}

	inputPath := filepath.Join(base, "patient.nii.gz")
	if err := os.WriteFile(inputPath, []byte("volume-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
workspace_dir = %q
output_dir = %q
log_dir = %q

[model]
name = "cads"
binary = %q
context_name = "Segmentation category and type - CADS"
terminology_file = %q
mapping_file = %q
label_dictionary_file = %q

[segmentation]
use_standard_names = true
artifact_layout = "multilabel"

[run_log]
enabled = true
path = %q

[logging]
format = "console"
level = "error"
`,
		filepath.Join(base, "workspace"),
		filepath.Join(base, "out"),
		filepath.Join(base, "logs"),
		binaryPath,
		termPath,
		mappingPath,
		dictPath,
		filepath.Join(base, "runs.db"),
	)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	return &cliTestEnv{baseDir: base, configPath: configPath, inputPath: inputPath}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

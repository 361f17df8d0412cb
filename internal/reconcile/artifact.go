package reconcile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"anatomap/internal/logging"
)

// ArtifactLayout selects how a task's output is laid out on disk.
type ArtifactLayout string

const (
	// LayoutMultiLabel expects one combined label volume per task,
	// located by a glob containing the task id.
	LayoutMultiLabel ArtifactLayout = "multilabel"
	// LayoutPerSegment expects a per-task folder holding one file per
	// structure, named by structure.
	LayoutPerSegment ArtifactLayout = "per-segment"
)

// ParseLayout validates a layout string from configuration.
func ParseLayout(value string) (ArtifactLayout, error) {
	switch ArtifactLayout(strings.ToLower(strings.TrimSpace(value))) {
	case LayoutMultiLabel:
		return LayoutMultiLabel, nil
	case LayoutPerSegment:
		return LayoutPerSegment, nil
	default:
		return "", fmt.Errorf("unknown artifact layout %q", value)
	}
}

const artifactExtension = ".nii.gz"

// locateMultiLabel finds the combined label volume for a task. Zero
// matches means the artifact is missing. Multiple matches are a
// recoverable ambiguity: the glob-first file wins and the rest are
// logged.
func locateMultiLabel(outputDir, taskID string, logger *slog.Logger) (string, bool) {
	logger = logging.WithDefault(logger)
	pattern := filepath.Join(outputDir, "*"+taskID+"*"+artifactExtension)
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return "", false
	}
	if len(matches) > 1 {
		logger.Warn("multiple segmentation files found for task, using first",
			logging.String("task", taskID),
			logging.String("chosen", filepath.Base(matches[0])),
			logging.Int("candidates", len(matches)))
		for _, match := range matches {
			logger.Debug("artifact candidate", logging.String("file", filepath.Base(match)))
		}
	}
	return matches[0], true
}

// locatePerSegment scans the task's folder for one file per structure and
// returns structure name to file path. An absent or empty folder means
// the artifact is missing.
func locatePerSegment(outputDir, taskID string) (map[string]string, bool) {
	dir := filepath.Join(outputDir, taskID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, false
	}
	files := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), artifactExtension) {
			continue
		}
		structure := strings.TrimSuffix(entry.Name(), artifactExtension)
		files[structure] = filepath.Join(dir, entry.Name())
	}
	if len(files) == 0 {
		return nil, false
	}
	return files, true
}

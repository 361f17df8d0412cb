package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"anatomap/internal/reconcile"
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

// renderOutcomeLine formats one task outcome for the run summary.
func renderOutcomeLine(taskID, title string, status reconcile.Status, segments int, colorize bool) string {
	var tail string
	switch status {
	case reconcile.StatusCompleted:
		tail = fmt.Sprintf("%d segments", segments)
	case reconcile.StatusSkipped:
		tail = "skipped (no selected targets)"
	case reconcile.StatusArtifactMissing:
		tail = "no segmentation file produced"
	default:
		tail = string(status)
	}
	line := fmt.Sprintf("  %-6s %-18s %s", taskID, title, tail)
	if colorize {
		if status == reconcile.StatusCompleted {
			return ansiGreen + line + ansiReset
		}
		return ansiYellow + line + ansiReset
	}
	return line
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

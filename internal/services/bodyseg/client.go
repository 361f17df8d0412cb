package bodyseg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// Request describes one segmentation invocation.
type Request struct {
	InputFile string
	OutputDir string
	TaskID    string
	// CPU forces inference off the GPU.
	CPU bool
	// Preprocessing and Postprocessing toggle the model's resampling and
	// cleanup passes.
	Preprocessing  bool
	Postprocessing bool
	// Processes and Threads are forwarded as -np / -ns when positive.
	Processes int
	Threads   int
}

// Client defines segmentation model behaviour.
type Client interface {
	Segment(ctx context.Context, req Request, onLine func(string)) error
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the segmentation command-line executable.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "CADSSlicer"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Segment launches the model for one task, streaming combined output line
// by line into onLine. A non-zero exit is a fatal run error.
func (c *CLI) Segment(ctx context.Context, req Request, onLine func(string)) error {
	if req.InputFile == "" {
		return errors.New("input file required")
	}
	if req.OutputDir == "" {
		return errors.New("output directory required")
	}
	if req.TaskID == "" {
		return errors.New("task id required")
	}

	args := []string{"-i", req.InputFile, "-o", req.OutputDir, "-task", req.TaskID}
	if req.Preprocessing {
		args = append(args, "--preprocessing")
	}
	if req.Postprocessing {
		args = append(args, "--postprocessing")
	}
	if req.Processes > 0 {
		args = append(args, "-np", strconv.Itoa(req.Processes))
	}
	if req.Threads > 0 {
		args = append(args, "-ns", strconv.Itoa(req.Threads))
	}
	if req.CPU {
		args = append(args, "--cpu")
	}

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", c.binary, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if onLine != nil {
			onLine(line)
		}
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return fmt.Errorf("read segmentation output: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("segmentation task %s failed: %w", req.TaskID, err)
	}
	return nil
}

var _ Client = (*CLI)(nil)

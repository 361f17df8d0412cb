package bodyseg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
)

func TestNewCLIWithBinary(t *testing.T) {
	cli := NewCLI(WithBinary("/opt/models/omaseg"))
	if cli.binary != "/opt/models/omaseg" {
		t.Fatalf("expected binary override to be applied, got %q", cli.binary)
	}
}

func TestSegmentRequiresFields(t *testing.T) {
	cli := NewCLI()
	cases := []Request{
		{OutputDir: "/tmp", TaskID: "551"},
		{InputFile: "/tmp/in.nii", TaskID: "551"},
		{InputFile: "/tmp/in.nii", OutputDir: "/tmp"},
	}
	for i, req := range cases {
		if err := cli.Segment(context.Background(), req, nil); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func stubCommand(t *testing.T, mode string, captured *[]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if captured != nil {
			*captured = append([]string(nil), args...)
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "BODYSEG_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestSegmentBuildsCommandLine(t *testing.T) {
	var capturedArgs []string
	stubCommand(t, "success", &capturedArgs)

	cli := NewCLI()
	req := Request{
		InputFile:      "/work/input.nii",
		OutputDir:      "/work/out",
		TaskID:         "553",
		CPU:            true,
		Preprocessing:  true,
		Postprocessing: true,
		Processes:      4,
		Threads:        6,
	}
	if err := cli.Segment(context.Background(), req, nil); err != nil {
		t.Fatalf("Segment returned error: %v", err)
	}

	want := []string{"-i", "/work/input.nii", "-o", "/work/out", "-task", "553", "--preprocessing", "--postprocessing", "-np", "4", "-ns", "6", "--cpu"}
	if len(capturedArgs) != len(want) {
		t.Fatalf("args: got %v, want %v", capturedArgs, want)
	}
	for i := range want {
		if capturedArgs[i] != want[i] {
			t.Errorf("arg %d: got %q, want %q", i, capturedArgs[i], want[i])
		}
	}
}

func TestSegmentStreamsOutput(t *testing.T) {
	stubCommand(t, "success", nil)

	var lines []string
	cli := NewCLI()
	req := Request{InputFile: "/work/in.nii", OutputDir: "/work/out", TaskID: "551"}
	if err := cli.Segment(context.Background(), req, func(line string) {
		lines = append(lines, line)
	}); err != nil {
		t.Fatalf("Segment returned error: %v", err)
	}

	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %v", len(lines), lines)
	}
	if lines[0] != "loading model weights" {
		t.Errorf("line 0: %q", lines[0])
	}
}

func TestSegmentReportsFailure(t *testing.T) {
	stubCommand(t, "failure", nil)

	cli := NewCLI()
	req := Request{InputFile: "/work/in.nii", OutputDir: "/work/out", TaskID: "551"}
	err := cli.Segment(context.Background(), req, nil)
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("BODYSEG_HELPER_MODE") {
	case "success":
		fmt.Println("loading model weights")
		fmt.Println("task complete")
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "CUDA out of memory")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}

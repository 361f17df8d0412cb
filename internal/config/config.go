package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkspaceDir string `toml:"workspace_dir"`
	OutputDir    string `toml:"output_dir"`
	LogDir       string `toml:"log_dir"`
}

// Model describes the external segmentation model and its resource files.
// The same engine serves any model (CADS, OMASeg) that follows the shared
// resource layout; nothing outside this section is model specific.
type Model struct {
	// Name identifies the model in logs, run records, and container tags.
	Name string `toml:"name"`
	// Binary is the segmentation executable invoked per task.
	Binary string `toml:"binary"`
	// ContextName is the model's terminology context, for example
	// "Segmentation category and type - CADS".
	ContextName string `toml:"context_name"`
	// TerminologyFile is the model's terminology definition (.term.json).
	TerminologyFile string `toml:"terminology_file"`
	// DicomTerminologyFile optionally supplies the DICOM master list
	// context used for structures the model terminology does not define.
	DicomTerminologyFile string `toml:"dicom_terminology_file"`
	// MappingFile is the structure-name to terminology-code CSV.
	MappingFile string `toml:"mapping_file"`
	// LabelDictionaryFile maps task ids to label-value/structure tables.
	LabelDictionaryFile string `toml:"label_dictionary_file"`
}

// Segmentation contains per-run processing behaviour.
type Segmentation struct {
	// UseStandardNames renames segments to their resolved display labels.
	UseStandardNames bool `toml:"use_standard_names"`
	// ArtifactLayout selects how task output is located on disk:
	// "multilabel" (one combined volume per task) or "per-segment"
	// (one file per structure).
	ArtifactLayout string `toml:"artifact_layout"`
	// ForceCPU passes --cpu to the segmentation executable.
	ForceCPU bool `toml:"force_cpu"`
	// KeepWorkspace skips temp workspace cleanup for debugging.
	KeepWorkspace bool `toml:"keep_workspace"`
	// Processes and Threads are forwarded as -np / -ns.
	Processes int `toml:"processes"`
	Threads   int `toml:"threads"`
}

// RunLog contains configuration for the run history journal.
type RunLog struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for anatomap.
type Config struct {
	Paths        Paths        `toml:"paths"`
	Model        Model        `toml:"model"`
	Segmentation Segmentation `toml:"segmentation"`
	RunLog       RunLog       `toml:"run_log"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/anatomap/config.toml")
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the annotated sample configuration to path.
func CreateSample(path string) error {
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("anatomap.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run needs.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkspaceDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

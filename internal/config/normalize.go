package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeModel(); err != nil {
		return err
	}
	c.normalizeSegmentation()
	if err := c.normalizeRunLog(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		c.Paths.WorkspaceDir = defaultWorkspaceDir
	}
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeModel() error {
	c.Model.Name = strings.ToLower(strings.TrimSpace(c.Model.Name))
	if c.Model.Name == "" {
		c.Model.Name = defaultModelName
	}
	if c.Model.Binary == "" {
		if value, ok := os.LookupEnv("ANATOMAP_MODEL_BIN"); ok {
			c.Model.Binary = value
		}
	}
	c.Model.Binary = strings.TrimSpace(c.Model.Binary)
	if c.Model.Binary == "" {
		c.Model.Binary = defaultModelBinary
	}
	c.Model.ContextName = strings.TrimSpace(c.Model.ContextName)
	if c.Model.ContextName == "" {
		c.Model.ContextName = defaultContextName
	}

	var err error
	for _, field := range []struct {
		name  string
		value *string
	}{
		{"model.terminology_file", &c.Model.TerminologyFile},
		{"model.dicom_terminology_file", &c.Model.DicomTerminologyFile},
		{"model.mapping_file", &c.Model.MappingFile},
		{"model.label_dictionary_file", &c.Model.LabelDictionaryFile},
	} {
		if strings.TrimSpace(*field.value) == "" {
			continue
		}
		if *field.value, err = expandPath(*field.value); err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
	}
	return nil
}

func (c *Config) normalizeSegmentation() {
	c.Segmentation.ArtifactLayout = strings.ToLower(strings.TrimSpace(c.Segmentation.ArtifactLayout))
	if c.Segmentation.ArtifactLayout == "" {
		c.Segmentation.ArtifactLayout = defaultArtifactLayout
	}
	if c.Segmentation.Processes <= 0 {
		c.Segmentation.Processes = defaultProcesses
	}
	if c.Segmentation.Threads <= 0 {
		c.Segmentation.Threads = defaultThreads
	}
}

func (c *Config) normalizeRunLog() error {
	if strings.TrimSpace(c.RunLog.Path) == "" {
		c.RunLog.Path = defaultRunLogPath
	}
	var err error
	if c.RunLog.Path, err = expandPath(c.RunLog.Path); err != nil {
		return fmt.Errorf("run_log.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

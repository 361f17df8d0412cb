package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateModel(); err != nil {
		return err
	}
	if err := c.validateSegmentation(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateModel() error {
	if c.Model.TerminologyFile == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/anatomap/config.toml"
		}
		return fmt.Errorf("model.terminology_file is required. Edit %s (create with 'anatomap config init')", defaultPath)
	}
	if c.Model.MappingFile == "" {
		return errors.New("model.mapping_file must point to the structure-to-terminology CSV")
	}
	if c.Model.LabelDictionaryFile == "" {
		return errors.New("model.label_dictionary_file must point to the per-task label dictionary")
	}
	return nil
}

func (c *Config) validateSegmentation() error {
	switch c.Segmentation.ArtifactLayout {
	case "multilabel", "per-segment":
	default:
		return fmt.Errorf("segmentation.artifact_layout must be %q or %q, got %q", "multilabel", "per-segment", c.Segmentation.ArtifactLayout)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be %q or %q, got %q", "console", "json", c.Logging.Format)
	}
	return nil
}

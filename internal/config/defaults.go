package config

const (
	defaultWorkspaceDir    = "~/.local/share/anatomap/workspace"
	defaultOutputDir       = "~/.local/share/anatomap/output"
	defaultLogDir          = "~/.local/share/anatomap/logs"
	defaultModelName       = "cads"
	defaultModelBinary     = "CADSSlicer"
	defaultContextName     = "Segmentation category and type - CADS"
	defaultArtifactLayout  = "multilabel"
	defaultRunLogPath      = "~/.local/share/anatomap/runs.db"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultProcesses       = 4
	defaultThreads         = 6
	defaultUseStandardName = true
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			OutputDir:    defaultOutputDir,
			LogDir:       defaultLogDir,
		},
		Model: Model{
			Name:        defaultModelName,
			Binary:      defaultModelBinary,
			ContextName: defaultContextName,
		},
		Segmentation: Segmentation{
			UseStandardNames: defaultUseStandardName,
			ArtifactLayout:   defaultArtifactLayout,
			Processes:        defaultProcesses,
			Threads:          defaultThreads,
		},
		RunLog: RunLog{
			Enabled: true,
			Path:    defaultRunLogPath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

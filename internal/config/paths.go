package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved, absolute file system locations used by the
// server and the batch pipeline.
type Paths struct {
	BaseDir   string
	DataDir   string
	OutputDir string
	LogsDir   string

	// Well-known files
	InputFile    string // raw transactions read by make_daily
	DailyFile    string // ds,y written by make_daily, read by forecast
	ForecastFile string // ds,yhat,yhat_lower,yhat_upper written by forecast
}

// ExecutableDir returns the directory containing the running binary with symlinks resolved
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}

	return filepath.Dir(exe), nil
}

// GetPaths resolves the default path layout relative to the executable
func GetPaths() (*Paths, error) {
	return Default().Paths.Resolve()
}

// Resolve turns the configured (possibly relative) entries into absolute paths.
// Bare file names land in their owning directory: the input and daily files in
// DataDir, the forecast file in OutputDir.
func (pc PathsConfig) Resolve() (*Paths, error) {
	base := pc.BaseDir
	if base == "" {
		exeDir, err := ExecutableDir()
		if err != nil {
			return nil, err
		}
		base = exeDir
	}

	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base dir %s: %w", pc.BaseDir, err)
	}

	dataDir := under(base, pc.DataDir)
	outputDir := under(base, pc.OutputDir)

	return &Paths{
		BaseDir:      base,
		DataDir:      dataDir,
		OutputDir:    outputDir,
		LogsDir:      under(base, pc.LogsDir),
		InputFile:    under(dataDir, pc.InputFile),
		DailyFile:    under(dataDir, pc.DailyFile),
		ForecastFile: under(outputDir, pc.ForecastFile),
	}, nil
}

func under(dir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}

// EnsureDirectories creates the data, output and log directories if missing
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.OutputDir,
		p.LogsDir,
		filepath.Dir(p.DailyFile),
		filepath.Dir(p.ForecastFile),
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// LogPathResolution writes the resolved layout at debug level
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("Path resolution",
		slog.String("base_dir", p.BaseDir),
		slog.String("data_dir", p.DataDir),
		slog.String("output_dir", p.OutputDir),
		slog.String("logs_dir", p.LogsDir),
		slog.String("input_file", p.InputFile),
		slog.String("daily_file", p.DailyFile),
		slog.String("forecast_file", p.ForecastFile))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

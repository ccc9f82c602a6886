package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"retailcast/internal/infrastructure"
)

// SupportedExtensions lists the tabular formats the loader can read
var SupportedExtensions = []string{".csv", ".txt", ".xlsx"}

var (
	// ErrNoFile is returned when an upload carries no file
	ErrNoFile = errors.New("no file uploaded")
	// ErrUnsupportedFile is returned for extensions outside SupportedExtensions
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrEmptyFile is returned for zero-byte files
	ErrEmptyFile = errors.New("file is empty")
	// ErrOutsideBase is returned for override paths that escape the base directory
	ErrOutsideBase = errors.New("path is outside the data directory")
)

// FileTooLargeError reports an upload above the configured limit
type FileTooLargeError struct {
	Size  int64
	Limit int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file of %d bytes exceeds the %d byte limit", e.Size, e.Limit)
}

// FileValidator checks uploads and file paths before they reach the pipeline
type FileValidator struct {
	logger   *slog.Logger
	maxBytes int64
}

// NewFileValidator creates a validator. maxBytes <= 0 disables the size check.
func NewFileValidator(maxBytes int64, logger *slog.Logger) *FileValidator {
	return &FileValidator{
		logger:   infrastructure.WithComponent(logger, "file_validator"),
		maxBytes: maxBytes,
	}
}

// MaxBytes returns the upload size limit
func (v *FileValidator) MaxBytes() int64 {
	return v.maxBytes
}

// ValidateUpload checks an uploaded file's name and size
func (v *FileValidator) ValidateUpload(name string, size int64) error {
	if strings.TrimSpace(name) == "" {
		return ErrNoFile
	}
	if err := checkExtension(name); err != nil {
		v.logger.Warn("upload_rejected",
			slog.String("file", name),
			slog.String("reason", "extension"))
		return err
	}
	if size == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, name)
	}
	if v.maxBytes > 0 && size > v.maxBytes {
		v.logger.Warn("upload_rejected",
			slog.String("file", name),
			slog.Int64("size", size),
			slog.Int64("limit", v.maxBytes))
		return &FileTooLargeError{Size: size, Limit: v.maxBytes}
	}
	return nil
}

// ValidateInputFile checks that path exists, is a regular readable file and
// has a supported extension.
func (v *FileValidator) ValidateInputFile(path string) error {
	if err := checkExtension(path); err != nil {
		return err
	}
	return v.ValidateFile(path)
}

func checkExtension(name string) error {
	base := filepath.Base(name)
	if strings.HasPrefix(base, "~$") {
		return fmt.Errorf("%w: %s is a temporary Excel file", ErrUnsupportedFile, base)
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, allowed := range SupportedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: %q (expected one of %s)", ErrUnsupportedFile, ext, strings.Join(SupportedExtensions, ", "))
}

// ValidateFile checks if a specific file exists and is readable
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		v.logger.Error("file_stat_failed",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("input file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	v.logger.Debug("file_validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateOutputDirectory ensures dir exists and is writable
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("output_dir_create_failed",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	probe, err := os.CreateTemp(dir, ".write_test_*")
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return nil
}

// ResolveWithin resolves a caller-supplied path against base and rejects
// results outside base. Empty input returns "" so callers keep their default.
func ResolveWithin(base, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(filepath.Clean(base), path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideBase, path)
	}
	return path, nil
}

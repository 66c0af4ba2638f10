package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"terabox-go/internal"
)

// PartSuffix marks a download that has not finished yet
const PartSuffix = ".part"

// FileOperations provides local file system helpers for transfers
type FileOperations struct{}

// NewFileOperations creates a new FileOperations instance
func NewFileOperations() *FileOperations {
	return &FileOperations{}
}

// EnsureDir creates the parent directory of path if it doesn't exist
func (f *FileOperations) EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0755)
}

// IsDir reports whether path exists and is a directory
func (f *FileOperations) IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// UploadSource describes a local file about to be uploaded
type UploadSource struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// StatUploadSource checks that path is a regular file and returns its size
// and modification time.
func (f *FileOperations) StatUploadSource(path string) (*UploadSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, internal.NewValidationErrorWithValue("local_file", "cannot stat file", path).
			WithContext("error", err.Error())
	}
	if !info.Mode().IsRegular() {
		return nil, internal.NewValidationErrorWithValue("local_file", "not a regular file", path).
			WithSuggestion("Only single files can be uploaded")
	}

	return &UploadSource{
		Path:    path,
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// PartPath returns the temporary path used while outputPath is being written
func PartPath(outputPath string) string {
	return outputPath + PartSuffix
}

// CreatePartialFile creates or truncates the .part file for outputPath
func (f *FileOperations) CreatePartialFile(outputPath string) (*os.File, error) {
	if err := f.EnsureDir(outputPath); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.OpenFile(PartPath(outputPath), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create partial file: %w", err)
	}
	return file, nil
}

// CommitPartialFile moves a finished .part file onto outputPath
func (f *FileOperations) CommitPartialFile(outputPath string) error {
	if err := os.Rename(PartPath(outputPath), outputPath); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", outputPath, err)
	}
	return nil
}

// DiscardPartialFile removes the .part file for outputPath if present
func (f *FileOperations) DiscardPartialFile(outputPath string) error {
	err := os.Remove(PartPath(outputPath))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

package utils

import (
	"fmt"
	"path/filepath"
	"strings"
)

// OutputManager handles file naming and path layout for raw and processed images
type OutputManager struct {
	BaseURL      string
	FilePattern  string
	RawDir       string
	ProcessedDir string
}

// NewOutputManager creates a new output manager
func NewOutputManager(baseURL, filePattern, rawDir, processedDir string) *OutputManager {
	return &OutputManager{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		FilePattern:  filePattern,
		RawDir:       rawDir,
		ProcessedDir: processedDir,
	}
}

// FileName renders the file name of item id, e.g. 7 -> 007.png
func (om *OutputManager) FileName(id int) string {
	return fmt.Sprintf(om.FilePattern, id)
}

// SourceURL is the remote locator of item id
func (om *OutputManager) SourceURL(id int) string {
	return om.BaseURL + "/" + om.FileName(id)
}

// RawPath is where the fetched bytes of item id are stored
func (om *OutputManager) RawPath(id int) string {
	return filepath.Join(om.RawDir, om.FileName(id))
}

// ProcessedPath is where the transformed image of item id is written
func (om *OutputManager) ProcessedPath(id int) string {
	return filepath.Join(om.ProcessedDir, om.FileName(id))
}

// GetFileType determines the image type based on extension
func (om *OutputManager) GetFileType(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".png":
		return "png"
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".gif":
		return "gif"
	case ".bmp":
		return "bmp"
	case ".tif", ".tiff":
		return "tiff"
	default:
		return "unknown"
	}
}

// Validate checks that the pattern renders distinct names for distinct ids
func (om *OutputManager) Validate() error {
	if om.BaseURL == "" {
		return fmt.Errorf("source base url is required")
	}
	if !strings.Contains(om.FilePattern, "%") {
		return fmt.Errorf("file pattern %q has no id verb", om.FilePattern)
	}
	if om.FileName(1) == om.FileName(2) {
		return fmt.Errorf("file pattern %q does not vary with the item id", om.FilePattern)
	}
	if om.GetFileType(om.FileName(1)) == "unknown" {
		return fmt.Errorf("file pattern %q has no supported image extension", om.FilePattern)
	}
	if om.RawDir == "" || om.ProcessedDir == "" {
		return fmt.Errorf("raw and processed directories are required")
	}
	if filepath.Clean(om.RawDir) == filepath.Clean(om.ProcessedDir) {
		return fmt.Errorf("raw and processed directories must differ")
	}
	return nil
}

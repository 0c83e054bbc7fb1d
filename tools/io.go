package tools

import (
	"os"
	"path/filepath"
	"strings"
)

func CreateDirectoryIfDoesNotExist(directory string) error {
	if _, err := os.Stat(directory); os.IsNotExist(err) {
		err := os.MkdirAll(directory, 0777)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetFilenameWithoutExtension returns the base name of filePath without its extension
func GetFilenameWithoutExtension(filePath string) string {
	nameWext := filepath.Base(filePath)
	extension := filepath.Ext(nameWext)
	return nameWext[0 : len(nameWext)-len(extension)]
}

// GetOutputStem names the outputs of filePath. Files found under a folder are named after
// their path relative to root so that equal base names in subfolders do not collide.
func GetOutputStem(root, filePath string, folder bool) string {
	if !folder {
		return GetFilenameWithoutExtension(filePath)
	}
	rel, err := filepath.Rel(root, filePath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return GetFilenameWithoutExtension(filePath)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return strings.ReplaceAll(rel, string(filepath.Separator), "_")
}

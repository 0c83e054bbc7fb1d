package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ecopia-map/als_raster/internal/pipeline"
)

type FileFinder interface {
	GetLasFilesToProcess(opts *pipeline.Options) ([]string, error)
}

type StandardFileFinder struct{}

func NewStandardFileFinder() FileFinder {
	return &StandardFileFinder{}
}

func (f *StandardFileFinder) GetLasFilesToProcess(opts *pipeline.Options) ([]string, error) {
	// If folder processing is not enabled then las file is given by the input flag, otherwise look for las in input folder
	// eventually excluding nested folders if Recursive flag is disabled
	if !opts.FolderProcessing {
		if _, err := os.Stat(opts.Input); err != nil {
			return nil, err
		}
		return []string{opts.Input}, nil
	}

	return f.getLasFilesFromInputFolder(opts)
}

func (f *StandardFileFinder) getLasFilesFromInputFolder(opts *pipeline.Options) ([]string, error) {
	var lasFiles = make([]string, 0)

	baseInfo, err := os.Stat(opts.Input)
	if err != nil {
		return nil, err
	}
	if !baseInfo.IsDir() {
		return nil, fmt.Errorf("%s is not a folder", opts.Input)
	}
	err = filepath.Walk(
		opts.Input,
		func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() && !opts.Recursive && !os.SameFile(info, baseInfo) {
				return filepath.SkipDir
			}
			if !info.IsDir() && strings.ToLower(filepath.Ext(info.Name())) == ".las" {
				lasFiles = append(lasFiles, path)
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	sort.Strings(lasFiles)
	return lasFiles, nil
}

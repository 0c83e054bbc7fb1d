package pkg

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecopia-map/als_raster/internal/las"
	"github.com/ecopia-map/als_raster/internal/pipeline"
	"github.com/ecopia-map/als_raster/internal/pointstore"
	"github.com/ecopia-map/als_raster/tools"
)

// ClipResult counts the points read and written by ClipFile
type ClipResult struct {
	Total   int
	Written int
}

// ClipFile writes the points of opts.Input falling in opts.ClipOptions.Bounds to a new
// LAS file, keeping the CRS of the input.
func ClipFile(ctx context.Context, opts *pipeline.Options) (*ClipResult, error) {
	clipOpts := opts.ClipOptions
	if clipOpts == nil {
		return nil, errors.New("clip options are missing")
	}
	if clipOpts.Bounds.IsEmpty() {
		return nil, fmt.Errorf("empty clip rectangle %+v", clipOpts.Bounds)
	}

	cloud, err := pointstore.LoadFile(ctx, opts.Input, pointstore.LoadOptions{CRS: opts.CRS})
	if err != nil {
		return nil, err
	}
	clipped := pointstore.Clip(cloud, clipOpts.Bounds)
	tools.LogOutput(fmt.Sprintf("> clip keeps %d of %d points", clipped.Len(), cloud.Len()))

	err = las.WriteFile(clipOpts.Output, clipped.Points(), las.WriterOptions{
		PointFormat: clipOpts.PointFormat,
		EPSG:        clipped.CRS().EPSG,
	})
	if err != nil {
		return nil, err
	}
	return &ClipResult{Total: cloud.Len(), Written: clipped.Len()}, nil
}

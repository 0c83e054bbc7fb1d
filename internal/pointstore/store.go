// Package pointstore ingests point records, exposes filtered views of them and indexes
// them for neighbour queries.
package pointstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"

	"github.com/ecopia-map/als_raster/internal/converters"
	"github.com/ecopia-map/als_raster/internal/data"
	"github.com/ecopia-map/als_raster/internal/filter"
	"github.com/ecopia-map/als_raster/internal/las"
)

// LoadOptions tunes ingestion
type LoadOptions struct {
	// CRS is assigned to the cloud. When the source declares another CRS the assignment
	// wins and a warning is logged. Coordinates are not transformed.
	CRS data.CRS
	// TargetCRS, when defined and different from the cloud CRS, reprojects the points
	// through Converter.
	TargetCRS data.CRS
	Converter converters.CoordinateConverter
	// ElevationCorrector, when set, is applied to every point after reprojection
	ElevationCorrector converters.ElevationCorrector
}

// LoadFile reads the LAS file at path
func LoadFile(ctx context.Context, path string, opts LoadOptions) (*data.PointCloud, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	return Load(ctx, file, path, opts)
}

// Load decodes a LAS stream. source names the stream in errors and provenance.
func Load(ctx context.Context, r io.Reader, source string, opts LoadOptions) (*data.PointCloud, error) {
	lasFile, err := las.Decode(ctx, r)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		return nil, &FormatError{Source: source, Err: err}
	}

	crs, err := resolveCRS(source, lasFile.EPSG, opts.CRS)
	if err != nil {
		return nil, err
	}

	points := lasFile.Points
	if opts.TargetCRS.IsDefined() && !opts.TargetCRS.Equal(crs) {
		if opts.Converter == nil {
			return nil, fmt.Errorf("reprojecting %s from %s to %s: no coordinate converter configured", source, crs, opts.TargetCRS)
		}
		if err := reproject(points, crs, opts.TargetCRS, opts.Converter); err != nil {
			return nil, fmt.Errorf("reprojecting %s from %s to %s: %w", source, crs, opts.TargetCRS, err)
		}
		crs = opts.TargetCRS
	}

	if opts.ElevationCorrector != nil {
		for i := range points {
			points[i].Z = opts.ElevationCorrector.CorrectElevation(points[i].X, points[i].Y, points[i].Z)
		}
	}

	glog.V(2).Infof("loaded %d points from %s (%s)", len(points), source, crs)
	return data.NewPointCloud(points, crs, source), nil
}

func resolveCRS(source string, fileEPSG int, assigned data.CRS) (data.CRS, error) {
	declared := data.EPSGCode(fileEPSG)
	switch {
	case assigned.IsDefined():
		if fileEPSG > 0 && !assigned.Equal(declared) {
			glog.Warningf("%s declares %s, overriding with assigned %s without reprojection", source, declared, assigned)
		}
		return assigned, nil
	case fileEPSG > 0:
		return declared, nil
	}
	return data.CRS{}, &CRSUndefinedError{Source: source}
}

func reproject(points []data.Point, source, target data.CRS, converter converters.CoordinateConverter) error {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	zs := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i], zs[i] = p.X, p.Y, p.Z
	}
	if err := converter.ConvertCoordinates(source, target, xs, ys, zs); err != nil {
		return err
	}
	for i := range points {
		points[i].X, points[i].Y, points[i].Z = xs[i], ys[i], zs[i]
	}
	return nil
}

// Filter returns the subset of the cloud matching the predicate, in original order.
// The input cloud is not modified.
func Filter(cloud *data.PointCloud, predicate filter.Predicate) *data.PointCloud {
	indices := make([]int32, 0, cloud.Len())
	for i := 0; i < cloud.Len(); i++ {
		if predicate.Match(cloud.At(i)) {
			indices = append(indices, int32(i))
		}
	}
	return cloud.Subset(indices, predicate.String())
}

// BoundingBox returns the planar extent of the cloud. It fails on an empty cloud.
func BoundingBox(cloud *data.PointCloud) (xmin, ymin, xmax, ymax float64, err error) {
	if cloud.Len() == 0 {
		return 0, 0, 0, 0, errors.New("bounding box of an empty point cloud")
	}
	b := cloud.Bounds()
	return b.XMin, b.YMin, b.XMax, b.YMax, nil
}

// Clip keeps the points inside the rectangle, edges included
func Clip(cloud *data.PointCloud, rect data.Bounds) *data.PointCloud {
	return Filter(cloud, filter.Within(rect))
}

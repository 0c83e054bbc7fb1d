package pipeline

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ecopia-map/als_raster/internal/data"
	"github.com/ecopia-map/als_raster/internal/grid"
	"github.com/ecopia-map/als_raster/internal/interpolate"
	"github.com/ecopia-map/als_raster/internal/parallel"
	"github.com/ecopia-map/als_raster/internal/raster"
)

type Interpolation string

const (
	// Inverse distance weighting of the k nearest points within a search radius
	InterpolationIDW Interpolation = "IDW"

	// Linear interpolation on the Delaunay triangulation of the points. Cells outside the convex hull stay empty.
	InterpolationTIN Interpolation = "TIN"

	// No gap filling
	InterpolationNone Interpolation = "NONE"
)

func (e Interpolation) String() string {
	return string(e)
}

func ParseInterpolation(value string) Interpolation {
	normalizedValue := strings.Trim(strings.ToUpper(value), " ")
	switch normalizedValue {
	case "IDW":
		return InterpolationIDW
	case "TIN":
		return InterpolationTIN
	case "NONE", "":
		return InterpolationNone
	}
	return ""
}

// Parameters of a gap filling interpolation
type InterpolationOptions struct {
	Method Interpolation
	K      int     // IDW number of neighbours
	Power  float64 // IDW distance power
	RMax   float64 // IDW search radius, 0 for unbounded
}

// Method builds the interpolation variant, nil when Method is NONE
func (o InterpolationOptions) ToMethod() (interpolate.Method, error) {
	var method interpolate.Method
	switch o.Method {
	case InterpolationNone:
		return nil, nil
	case InterpolationIDW:
		method = interpolate.IDW{K: o.K, Power: o.Power, RMax: o.RMax}
	case InterpolationTIN:
		method = interpolate.TIN{}
	default:
		return nil, fmt.Errorf("unrecognized interpolation method %q", o.Method)
	}
	if err := method.Validate(); err != nil {
		return nil, err
	}
	return method, nil
}

type DTMOptions struct {
	Aggregation   grid.Aggregation
	Interpolation InterpolationOptions
}

type DSMOptions struct {
	Aggregation grid.Aggregation // MAX or FIRST-RETURN-MAX
	Fill        InterpolationOptions
}

// Optional products derived next to DTM, DSM and CHM
type ProductOptions struct {
	Slope     bool
	Aspect    bool
	Density   bool
	AngleUnit raster.AngleUnit
}

// Options of the clip command
type ClipOptions struct {
	Bounds      data.Bounds
	Output      string // output LAS file
	PointFormat uint8
}

// Contains the options needed by the raster pipeline
type Options struct {
	Input            string   // Input LAS file/folder
	Output           string   // Output folder of the rasters
	Catalog          string   // Run catalog database, empty to disable
	FolderProcessing bool     // Enables the processing of all LAS files in folder
	Recursive        bool     // Recursive lookup of LAS files in subfolders
	CRS              data.CRS // CRS assigned to the input points, overrides the one declared in the files
	TargetCRS        data.CRS // CRS the points are reprojected to at load, undefined to keep the source CRS
	ZOffset          float64  // Z Offset in meters to apply to points at load
	Resolution       float64  // Cell size of every raster, in CRS units
	GroundClass      uint8    // Classification code of ground points
	ExcludedClasses  []uint8  // Classification codes dropped from every product, e.g. overlap points
	OutlierThreshold float64  // Points above this elevation are dropped from the canopy, +Inf disables
	DTM              DTMOptions
	DSM              DSMOptions
	Products         ProductOptions
	Engine           parallel.Engine

	Command     string
	ClipOptions *ClipOptions
}

// DefaultOptions returns the options used when neither a config file nor a flag sets a value
func DefaultOptions() *Options {
	return &Options{
		Output:           ".",
		Resolution:       1,
		GroundClass:      2,
		OutlierThreshold: math.Inf(1),
		DTM: DTMOptions{
			Aggregation: grid.AggregationMax,
			Interpolation: InterpolationOptions{
				Method: InterpolationIDW,
				K:      interpolate.DefaultIDW().K,
				Power:  interpolate.DefaultIDW().Power,
				RMax:   interpolate.DefaultIDW().RMax,
			},
		},
		DSM: DSMOptions{
			Aggregation: grid.AggregationMax,
			Fill: InterpolationOptions{
				Method: InterpolationNone,
				K:      interpolate.DefaultIDW().K,
				Power:  interpolate.DefaultIDW().Power,
			},
		},
		Products: ProductOptions{AngleUnit: raster.Degrees},
		Engine:   parallel.DefaultEngine(),
	}
}

func (opt *Options) Validate() error {
	var errs []error
	if !(opt.Resolution > 0) || math.IsInf(opt.Resolution, 1) {
		errs = append(errs, fmt.Errorf("resolution must be positive, got %g", opt.Resolution))
	}
	if math.IsNaN(opt.OutlierThreshold) {
		errs = append(errs, errors.New("outlier threshold must be a number"))
	}
	for _, c := range opt.ExcludedClasses {
		if c == opt.GroundClass {
			errs = append(errs, fmt.Errorf("ground class %d is also excluded", c))
		}
	}
	switch opt.DTM.Aggregation {
	case grid.AggregationMax, grid.AggregationMin, grid.AggregationMean:
	default:
		errs = append(errs, fmt.Errorf("dtm aggregation must be MAX, MIN or MEAN, got %q", opt.DTM.Aggregation))
	}
	switch opt.DSM.Aggregation {
	case grid.AggregationMax, grid.AggregationFirstReturnMax:
	default:
		errs = append(errs, fmt.Errorf("dsm aggregation must be MAX or FIRST-RETURN-MAX, got %q", opt.DSM.Aggregation))
	}
	if opt.DTM.Interpolation.Method == InterpolationNone {
		errs = append(errs, errors.New("dtm requires an interpolation method"))
	}
	if _, err := opt.DTM.Interpolation.ToMethod(); err != nil {
		errs = append(errs, fmt.Errorf("dtm: %w", err))
	}
	if _, err := opt.DSM.Fill.ToMethod(); err != nil {
		errs = append(errs, fmt.Errorf("dsm fill: %w", err))
	}
	if opt.Products.AngleUnit != raster.Degrees && opt.Products.AngleUnit != raster.Radians {
		errs = append(errs, fmt.Errorf("unrecognized angle unit %q", opt.Products.AngleUnit))
	}
	if err := opt.Engine.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ExcludedCodes returns the excluded classes as a set description for logs
func (opt *Options) ExcludedCodes() string {
	if len(opt.ExcludedClasses) == 0 {
		return "none"
	}
	parts := make([]string, len(opt.ExcludedClasses))
	for i, c := range opt.ExcludedClasses {
		parts[i] = fmt.Sprint(c)
	}
	return strings.Join(parts, ",")
}

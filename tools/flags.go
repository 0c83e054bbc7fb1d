package tools

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/ecopia-map/als_raster/internal/data"
	"github.com/ecopia-map/als_raster/internal/grid"
	"github.com/ecopia-map/als_raster/internal/pipeline"
	"github.com/ecopia-map/als_raster/internal/raster"
)

const (
	CommandRun     = "run"
	CommandBatch   = "batch"
	CommandInfo    = "info"
	CommandClip    = "clip"
	CommandRuns    = "runs"
	CommandVersion = "version"
)

// PipelineFlags holds the flags shared by the run and batch commands. Only flags set on
// the command line override the configuration.
type PipelineFlags struct {
	Config           *string  `json:"config"`
	Input            *string  `json:"input"`
	Output           *string  `json:"output"`
	Catalog          *string  `json:"catalog"`
	CRS              *string  `json:"crs"`
	TargetCRS        *string  `json:"target_crs"`
	ZOffset          *float64 `json:"zoffset"`
	Resolution       *float64 `json:"resolution"`
	GroundClass      *uint8   `json:"ground_class"`
	ExcludedClasses  *[]uint  `json:"excluded_classes"`
	OutlierThreshold *float64 `json:"outlier_threshold"`
	DTMMethod        *string  `json:"dtm_method"`
	DTMAggregation   *string  `json:"dtm_aggregation"`
	K                *int     `json:"k"`
	Power            *float64 `json:"power"`
	RMax             *float64 `json:"rmax"`
	DSMAggregation   *string  `json:"dsm_aggregation"`
	DSMFill          *string  `json:"dsm_fill"`
	Slope            *bool    `json:"slope"`
	Aspect           *bool    `json:"aspect"`
	Density          *bool    `json:"density"`
	AngleUnit        *string  `json:"angle_unit"`
	Workers          *int     `json:"workers"`
	MaxFraction      *float64 `json:"max_fraction"`
	Recursive        *bool    `json:"recursive"`
	Silent           *bool    `json:"silent"`

	flags *pflag.FlagSet
}

func DefinePipelineFlags(flags *pflag.FlagSet) *PipelineFlags {
	defaults := pipeline.DefaultOptions()
	return &PipelineFlags{
		Config:           flags.StringP("config", "c", "", "TOML configuration file. Flags override its values."),
		Input:            flags.StringP("input", "i", "", "Specifies the input las file/folder."),
		Output:           flags.StringP("output", "o", defaults.Output, "Specifies the output folder where to write the rasters."),
		Catalog:          flags.String("catalog", "", "SQLite run catalog. Runs are not recorded when empty."),
		CRS:              flags.StringP("crs", "e", "", "CRS of the input points, e.g. EPSG:2056. Overrides the CRS declared in the files."),
		TargetCRS:        flags.String("target-crs", "", "Reprojects the points to this CRS at load."),
		ZOffset:          flags.Float64P("zoffset", "z", 0, "Vertical offset to apply to points, in meters."),
		Resolution:       flags.Float64("resolution", defaults.Resolution, "Cell size of the rasters, in CRS units."),
		GroundClass:      flags.Uint8("ground-class", defaults.GroundClass, "Classification code of ground points."),
		ExcludedClasses:  flags.UintSlice("exclude-classes", nil, "Classification codes dropped from every raster, e.g. 22,23."),
		OutlierThreshold: flags.Float64("outlier-threshold", defaults.OutlierThreshold, "Points above this elevation are dropped from the DSM."),
		DTMMethod:        flags.String("dtm-method", defaults.DTM.Interpolation.Method.String(), "DTM gap interpolation, 'IDW' or 'TIN'."),
		DTMAggregation:   flags.String("dtm-aggregation", defaults.DTM.Aggregation.String(), "Ground points cell aggregation, 'MAX', 'MIN' or 'MEAN'."),
		K:                flags.Int("k", defaults.DTM.Interpolation.K, "IDW number of neighbours."),
		Power:            flags.Float64("power", defaults.DTM.Interpolation.Power, "IDW distance power."),
		RMax:             flags.Float64("rmax", defaults.DTM.Interpolation.RMax, "IDW search radius, 0 for unbounded."),
		DSMAggregation:   flags.String("dsm-aggregation", defaults.DSM.Aggregation.String(), "Canopy cell aggregation, 'MAX' or 'FIRST-RETURN-MAX'."),
		DSMFill:          flags.String("dsm-fill", defaults.DSM.Fill.Method.String(), "DSM gap interpolation, 'NONE', 'IDW' or 'TIN'. IDW uses the k, power and rmax flags."),
		Slope:            flags.Bool("slope", false, "Also writes the slope of the DTM."),
		Aspect:           flags.Bool("aspect", false, "Also writes the aspect of the DTM."),
		Density:          flags.Bool("density", false, "Also writes the point density grid."),
		AngleUnit:        flags.String("angle-unit", string(defaults.Products.AngleUnit), "Unit of slope and aspect, 'DEGREES' or 'RADIANS'."),
		Workers:          flags.Int("workers", defaults.Engine.Workers, "Number of workers, 0 for a fraction of the CPUs."),
		MaxFraction:      flags.Float64("max-fraction", defaults.Engine.MaxFraction, "Fraction of the CPUs used when workers is 0."),
		Recursive:        flags.BoolP("recursive", "r", false, "Enables recursive lookup for all .las files inside the subfolders."),
		Silent:           flags.BoolP("silent", "s", false, "Use to suppress all the non-error messages."),
		flags:            flags,
	}
}

func (f *PipelineFlags) changed(name string) bool {
	return f.flags.Changed(name)
}

// Apply overrides opts with the flags set on the command line
func (f *PipelineFlags) Apply(opts *pipeline.Options) error {
	if f.changed("input") {
		opts.Input = *f.Input
	}
	if f.changed("output") {
		opts.Output = *f.Output
	}
	if f.changed("catalog") {
		opts.Catalog = *f.Catalog
	}
	if f.changed("crs") {
		crs, err := data.ParseCRS(*f.CRS)
		if err != nil {
			return err
		}
		opts.CRS = crs
	}
	if f.changed("target-crs") {
		crs, err := data.ParseCRS(*f.TargetCRS)
		if err != nil {
			return err
		}
		opts.TargetCRS = crs
	}
	if f.changed("zoffset") {
		opts.ZOffset = *f.ZOffset
	}
	if f.changed("resolution") {
		opts.Resolution = *f.Resolution
	}
	if f.changed("ground-class") {
		opts.GroundClass = *f.GroundClass
	}
	if f.changed("exclude-classes") {
		opts.ExcludedClasses = make([]uint8, 0, len(*f.ExcludedClasses))
		for _, c := range *f.ExcludedClasses {
			if c > 255 {
				return fmt.Errorf("classification code %d out of range", c)
			}
			opts.ExcludedClasses = append(opts.ExcludedClasses, uint8(c))
		}
	}
	if f.changed("outlier-threshold") {
		opts.OutlierThreshold = *f.OutlierThreshold
	}
	if f.changed("dtm-method") {
		method := pipeline.ParseInterpolation(*f.DTMMethod)
		if method == "" {
			return fmt.Errorf("unrecognized dtm method %q", *f.DTMMethod)
		}
		opts.DTM.Interpolation.Method = method
	}
	if f.changed("dtm-aggregation") {
		aggregation, err := grid.ParseAggregation(*f.DTMAggregation)
		if err != nil {
			return err
		}
		opts.DTM.Aggregation = aggregation
	}
	if f.changed("dsm-aggregation") {
		aggregation, err := grid.ParseAggregation(*f.DSMAggregation)
		if err != nil {
			return err
		}
		opts.DSM.Aggregation = aggregation
	}
	if f.changed("dsm-fill") {
		method := pipeline.ParseInterpolation(*f.DSMFill)
		if method == "" {
			return fmt.Errorf("unrecognized dsm fill %q", *f.DSMFill)
		}
		opts.DSM.Fill.Method = method
	}
	// IDW parameters apply to both interpolations
	for _, target := range []*pipeline.InterpolationOptions{&opts.DTM.Interpolation, &opts.DSM.Fill} {
		if f.changed("k") {
			target.K = *f.K
		}
		if f.changed("power") {
			target.Power = *f.Power
		}
		if f.changed("rmax") {
			target.RMax = *f.RMax
		}
	}
	if f.changed("slope") {
		opts.Products.Slope = *f.Slope
	}
	if f.changed("aspect") {
		opts.Products.Aspect = *f.Aspect
	}
	if f.changed("density") {
		opts.Products.Density = *f.Density
	}
	if f.changed("angle-unit") {
		unit, err := raster.ParseAngleUnit(*f.AngleUnit)
		if err != nil {
			return err
		}
		opts.Products.AngleUnit = unit
	}
	if f.changed("workers") {
		opts.Engine.Workers = *f.Workers
	}
	if f.changed("max-fraction") {
		opts.Engine.MaxFraction = *f.MaxFraction
	}
	if f.changed("recursive") {
		opts.Recursive = *f.Recursive
	}
	return nil
}

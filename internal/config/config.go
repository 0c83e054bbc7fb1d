// Package config reads pipeline options from a TOML file.
//
// Example:
//
//	resolution = 0.5
//	ground_class = 2
//	excluded_classes = [22, 23]
//	outlier_threshold = 80.0
//	crs = "EPSG:2056"
//
//	[dtm]
//	method = "idw"
//	k = 10
//	power = 2.0
//	rmax = 50.0
//
//	[dsm]
//	aggregation = "first-return-max"
//	fill = "tin"
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/ecopia-map/als_raster/internal/data"
	"github.com/ecopia-map/als_raster/internal/grid"
	"github.com/ecopia-map/als_raster/internal/pipeline"
	"github.com/ecopia-map/als_raster/internal/raster"
)

// File mirrors the TOML layout. Pointer fields distinguish unset keys from zero values.
type File struct {
	Resolution       *float64 `toml:"resolution"`
	GroundClass      *int     `toml:"ground_class"`
	ExcludedClasses  []int    `toml:"excluded_classes"`
	OutlierThreshold *float64 `toml:"outlier_threshold"`
	CRS              string   `toml:"crs"`
	TargetCRS        string   `toml:"target_crs"`
	ZOffset          *float64 `toml:"z_offset"`

	DTM struct {
		Method      string   `toml:"method"`
		Aggregation string   `toml:"aggregation"`
		K           *int     `toml:"k"`
		Power       *float64 `toml:"power"`
		RMax        *float64 `toml:"rmax"`
	} `toml:"dtm"`

	DSM struct {
		Aggregation string   `toml:"aggregation"`
		Fill        string   `toml:"fill"`
		K           *int     `toml:"k"`
		Power       *float64 `toml:"power"`
		RMax        *float64 `toml:"rmax"`
	} `toml:"dsm"`

	Products struct {
		Slope     *bool  `toml:"slope"`
		Aspect    *bool  `toml:"aspect"`
		Density   *bool  `toml:"density"`
		AngleUnit string `toml:"angle_unit"`
	} `toml:"products"`

	Engine struct {
		Workers     *int     `toml:"workers"`
		MaxFraction *float64 `toml:"max_fraction"`
	} `toml:"engine"`

	Output struct {
		Dir     string `toml:"dir"`
		Catalog string `toml:"catalog"`
	} `toml:"output"`
}

// Load reads and decodes the TOML file at path. Unknown keys are rejected.
func Load(path string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(content)
}

func Decode(content []byte) (*File, error) {
	f := &File{}
	decoder := toml.NewDecoder(bytes.NewReader(content))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(f); err != nil {
		var strictErr *toml.StrictMissingError
		if errors.As(err, &strictErr) {
			return nil, fmt.Errorf("config: %s", strictErr.String())
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	return f, nil
}

// Apply overrides opts with every value set in the file
func (f *File) Apply(opts *pipeline.Options) error {
	if f.Resolution != nil {
		opts.Resolution = *f.Resolution
	}
	if f.GroundClass != nil {
		code, err := classCode(*f.GroundClass)
		if err != nil {
			return fmt.Errorf("ground_class: %w", err)
		}
		opts.GroundClass = code
	}
	if f.ExcludedClasses != nil {
		opts.ExcludedClasses = make([]uint8, 0, len(f.ExcludedClasses))
		for _, c := range f.ExcludedClasses {
			code, err := classCode(c)
			if err != nil {
				return fmt.Errorf("excluded_classes: %w", err)
			}
			opts.ExcludedClasses = append(opts.ExcludedClasses, code)
		}
	}
	if f.OutlierThreshold != nil {
		opts.OutlierThreshold = *f.OutlierThreshold
	}
	if f.ZOffset != nil {
		opts.ZOffset = *f.ZOffset
	}
	if err := applyCRS(&opts.CRS, f.CRS, "crs"); err != nil {
		return err
	}
	if err := applyCRS(&opts.TargetCRS, f.TargetCRS, "target_crs"); err != nil {
		return err
	}

	if f.DTM.Method != "" {
		method := pipeline.ParseInterpolation(f.DTM.Method)
		if method == "" {
			return fmt.Errorf("dtm.method: unrecognized value %q", f.DTM.Method)
		}
		opts.DTM.Interpolation.Method = method
	}
	if err := applyAggregation(&opts.DTM.Aggregation, f.DTM.Aggregation, "dtm.aggregation"); err != nil {
		return err
	}
	applyIDW(&opts.DTM.Interpolation, f.DTM.K, f.DTM.Power, f.DTM.RMax)

	if f.DSM.Fill != "" {
		method := pipeline.ParseInterpolation(f.DSM.Fill)
		if method == "" {
			return fmt.Errorf("dsm.fill: unrecognized value %q", f.DSM.Fill)
		}
		opts.DSM.Fill.Method = method
	}
	if err := applyAggregation(&opts.DSM.Aggregation, f.DSM.Aggregation, "dsm.aggregation"); err != nil {
		return err
	}
	applyIDW(&opts.DSM.Fill, f.DSM.K, f.DSM.Power, f.DSM.RMax)

	if f.Products.Slope != nil {
		opts.Products.Slope = *f.Products.Slope
	}
	if f.Products.Aspect != nil {
		opts.Products.Aspect = *f.Products.Aspect
	}
	if f.Products.Density != nil {
		opts.Products.Density = *f.Products.Density
	}
	if f.Products.AngleUnit != "" {
		unit, err := raster.ParseAngleUnit(f.Products.AngleUnit)
		if err != nil {
			return fmt.Errorf("products.angle_unit: %w", err)
		}
		opts.Products.AngleUnit = unit
	}

	if f.Engine.Workers != nil {
		opts.Engine.Workers = *f.Engine.Workers
	}
	if f.Engine.MaxFraction != nil {
		opts.Engine.MaxFraction = *f.Engine.MaxFraction
	}
	if f.Output.Dir != "" {
		opts.Output = f.Output.Dir
	}
	if f.Output.Catalog != "" {
		opts.Catalog = f.Output.Catalog
	}
	return nil
}

// LoadOptions returns the defaults overridden by the file at path, when path is not empty
func LoadOptions(path string) (*pipeline.Options, error) {
	opts := pipeline.DefaultOptions()
	if path == "" {
		return opts, nil
	}
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := f.Apply(opts); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return opts, nil
}

func classCode(value int) (uint8, error) {
	if value < 0 || value > 255 {
		return 0, fmt.Errorf("classification code %d out of range", value)
	}
	return uint8(value), nil
}

func applyCRS(target *data.CRS, value, key string) error {
	if value == "" {
		return nil
	}
	crs, err := data.ParseCRS(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*target = crs
	return nil
}

func applyAggregation(target *grid.Aggregation, value, key string) error {
	if value == "" {
		return nil
	}
	aggregation, err := grid.ParseAggregation(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*target = aggregation
	return nil
}

func applyIDW(target *pipeline.InterpolationOptions, k *int, power, rmax *float64) {
	if k != nil {
		target.K = *k
	}
	if power != nil {
		target.Power = *power
	}
	if rmax != nil {
		target.RMax = *rmax
	}
}

package pkg

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/ecopia-map/als_raster/internal/data"
	"github.com/ecopia-map/als_raster/internal/filter"
	"github.com/ecopia-map/als_raster/internal/grid"
	"github.com/ecopia-map/als_raster/internal/interpolate"
	"github.com/ecopia-map/als_raster/internal/parallel"
	"github.com/ecopia-map/als_raster/internal/pointstore"
	"github.com/ecopia-map/als_raster/internal/raster"
)

// Stage names reported in StageError and gap warnings
const (
	StageParams  = "params"
	StageExtent  = "extent"
	StageDTM     = "dtm"
	StageDSM     = "dsm"
	StageCHM     = "chm"
	StageSlope   = "slope"
	StageAspect  = "aspect"
	StageDensity = "density"
)

// StageError is a fatal error raised by a pipeline stage
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

type DTMAlgorithm struct {
	Aggregation grid.Aggregation // MAX, MIN or MEAN
	Method      interpolate.Method
}

type DSMAlgorithm struct {
	Aggregation grid.Aggregation // MAX or FIRST-RETURN-MAX
	Fill        interpolate.Method
}

// Params drive one RunDSMPipeline call
type Params struct {
	RunID            string // generated when empty
	Resolution       float64
	DTM              DTMAlgorithm
	DSM              DSMAlgorithm
	GroundClass      uint8
	ExcludedClasses  []uint8
	OutlierThreshold float64 // +Inf keeps every elevation

	Slope     bool
	Aspect    bool
	Density   bool
	AngleUnit raster.AngleUnit

	Engine parallel.Engine
}

func (p Params) Validate() error {
	var errs []error
	if !(p.Resolution > 0) || math.IsInf(p.Resolution, 1) {
		errs = append(errs, fmt.Errorf("resolution must be positive, got %g", p.Resolution))
	}
	switch p.DTM.Aggregation {
	case grid.AggregationMax, grid.AggregationMin, grid.AggregationMean:
	default:
		errs = append(errs, fmt.Errorf("dtm aggregation %q is not an elevation", p.DTM.Aggregation))
	}
	if p.DTM.Method == nil {
		errs = append(errs, errors.New("dtm interpolation method is required"))
	} else if err := p.DTM.Method.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("dtm: %w", err))
	}
	switch p.DSM.Aggregation {
	case grid.AggregationMax, grid.AggregationFirstReturnMax:
	default:
		errs = append(errs, fmt.Errorf("dsm aggregation %q is not a surface maximum", p.DSM.Aggregation))
	}
	if p.DSM.Fill != nil {
		if err := p.DSM.Fill.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("dsm fill: %w", err))
		}
	}
	if math.IsNaN(p.OutlierThreshold) {
		errs = append(errs, errors.New("outlier threshold must be a number"))
	}
	if err := p.Engine.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Products are the co-registered grids of a run
type Products struct {
	RunID string
	DTM   *grid.Derived
	DSM   *grid.Derived
	CHM   *grid.Derived

	// optional, nil unless requested
	Slope   *grid.Derived
	Aspect  *grid.Derived
	Density *grid.Derived

	// Gaps lists the cells interpolation could not fill, one warning per stage
	Gaps []*interpolate.UnresolvedGapWarning
}

// All returns the products that were computed in a stable order
func (p *Products) All() []*grid.Derived {
	var all []*grid.Derived
	for _, d := range []*grid.Derived{p.DTM, p.DSM, p.CHM, p.Slope, p.Aspect, p.Density} {
		if d != nil {
			all = append(all, d)
		}
	}
	return all
}

// GapsFor returns the unresolved cells of the stage that produced product, if any
func (p *Products) GapsFor(product grid.Product) *interpolate.UnresolvedGapWarning {
	var stage string
	switch product {
	case grid.ProductDTM:
		stage = StageDTM
	case grid.ProductDSM:
		stage = StageDSM
	default:
		return nil
	}
	for _, g := range p.Gaps {
		if g.Stage == stage {
			return g
		}
	}
	return nil
}

// RunDSMPipeline derives DTM, DSM and CHM from cloud. All grids share the extent of the
// full cloud. Unresolved interpolation gaps do not fail the run, they are returned in
// Products.Gaps.
func RunDSMPipeline(ctx context.Context, cloud *data.PointCloud, params Params) (*Products, error) {
	if err := params.Validate(); err != nil {
		return nil, &StageError{Stage: StageParams, Err: err}
	}
	runID := params.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	r := &runner{params: params, cloud: cloud, products: &Products{RunID: runID}}

	steps := []struct {
		stage string
		run   func(ctx context.Context) error
	}{
		{StageExtent, r.computeExtent},
		{StageDTM, r.dtm},
		{StageDSM, r.dsm},
		{StageCHM, r.chm},
		{StageSlope, r.slope},
		{StageAspect, r.aspect},
		{StageDensity, r.density},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, &StageError{Stage: step.stage, Err: context.Cause(ctx)}
		}
		if err := step.run(ctx); err != nil {
			return nil, &StageError{Stage: step.stage, Err: err}
		}
	}
	return r.products, nil
}

type runner struct {
	params   Params
	cloud    *data.PointCloud
	extent   grid.Extent
	products *Products
}

func (r *runner) computeExtent(_ context.Context) error {
	extent, err := grid.NewExtent(r.cloud.Bounds(), r.params.Resolution)
	if err != nil {
		return err
	}
	r.extent = extent
	glog.V(2).Infof("%s: %d points on %s", r.cloud.Source(), r.cloud.Len(), extent)
	return nil
}

func (r *runner) dtm(ctx context.Context) error {
	ground := pointstore.Filter(r.cloud, filter.And(
		filter.ClassificationIn(r.params.GroundClass),
		filter.ClassificationNotIn(r.params.ExcludedClasses...),
	))
	glog.V(2).Infof("dtm: %d ground points", ground.Len())

	method := r.params.DTM.Method
	sparse, err := grid.RasterizeOnto(ctx, ground, r.extent, r.params.DTM.Aggregation, grid.DefaultNoData, r.params.Engine)
	if err != nil {
		return err
	}
	filled, err := r.fill(ctx, StageDTM, sparse, ground, method)
	if err != nil {
		return err
	}

	r.products.DTM = grid.NewDerived(filled, grid.Provenance{
		Product:    grid.ProductDTM,
		Source:     r.cloud.Source(),
		Filters:    ground.Filters(),
		Algorithm:  method.Name(),
		Parameters: withAggregation(method.Parameters(), r.params.DTM.Aggregation),
	})
	return nil
}

func (r *runner) dsm(ctx context.Context) error {
	canopy := pointstore.Filter(r.cloud, r.canopyPredicate())
	glog.V(2).Infof("dsm: %d canopy points", canopy.Len())

	surface, err := grid.RasterizeOnto(ctx, canopy, r.extent, r.params.DSM.Aggregation, grid.DefaultNoData, r.params.Engine)
	if err != nil {
		return err
	}

	algorithm := string(r.params.DSM.Aggregation)
	parameters := map[string]string{}
	if fill := r.params.DSM.Fill; fill != nil {
		surface, err = r.fill(ctx, StageDSM, surface, canopy, fill)
		if err != nil {
			return err
		}
		algorithm = fill.Name()
		parameters = fill.Parameters()
	}

	r.products.DSM = grid.NewDerived(surface, grid.Provenance{
		Product:    grid.ProductDSM,
		Source:     r.cloud.Source(),
		Filters:    canopy.Filters(),
		Algorithm:  algorithm,
		Parameters: withAggregation(parameters, r.params.DSM.Aggregation),
	})
	return nil
}

func (r *runner) canopyPredicate() filter.Predicate {
	predicates := []filter.Predicate{filter.ClassificationNotIn(r.params.ExcludedClasses...)}
	if !math.IsInf(r.params.OutlierThreshold, 1) {
		predicates = append([]filter.Predicate{filter.ZAtMost(r.params.OutlierThreshold)}, predicates...)
	}
	return filter.And(predicates...)
}

// fill interpolates the empty cells of g from the points that produced it
func (r *runner) fill(ctx context.Context, stage string, g *grid.Grid, sources *data.PointCloud, method interpolate.Method) (*grid.Grid, error) {
	result, err := interpolate.Interpolate(ctx, stage, g, sources.Points(), method, r.params.Engine)
	if err != nil {
		return nil, err
	}
	if result.Gaps != nil {
		r.products.Gaps = append(r.products.Gaps, result.Gaps)
	}
	return result.Grid, nil
}

func (r *runner) chm(ctx context.Context) error {
	chm, err := raster.Apply(ctx, r.products.DSM.Grid, r.products.DTM.Grid, raster.Subtract, r.params.Engine)
	if err != nil {
		return err
	}
	r.products.CHM = grid.NewDerived(chm, grid.Provenance{
		Product:   grid.ProductCHM,
		Source:    r.cloud.Source(),
		Algorithm: raster.Subtract.String(),
		Inputs:    []grid.Product{grid.ProductDSM, grid.ProductDTM},
	})
	return nil
}

func (r *runner) slope(ctx context.Context) error {
	if !r.params.Slope {
		return nil
	}
	g, err := raster.Slope(ctx, r.products.DTM.Grid, r.params.AngleUnit, r.params.Engine)
	if err != nil {
		return err
	}
	r.products.Slope = r.terrainDerived(g, grid.ProductSlope, "HORN-SLOPE")
	return nil
}

func (r *runner) aspect(ctx context.Context) error {
	if !r.params.Aspect {
		return nil
	}
	g, err := raster.Aspect(ctx, r.products.DTM.Grid, r.params.AngleUnit, r.params.Engine)
	if err != nil {
		return err
	}
	r.products.Aspect = r.terrainDerived(g, grid.ProductAspect, "HORN-ASPECT")
	return nil
}

func (r *runner) terrainDerived(g *grid.Grid, product grid.Product, algorithm string) *grid.Derived {
	return grid.NewDerived(g, grid.Provenance{
		Product:    product,
		Source:     r.cloud.Source(),
		Algorithm:  algorithm,
		Parameters: map[string]string{"unit": string(r.params.AngleUnit)},
		Inputs:     []grid.Product{grid.ProductDTM},
	})
}

func (r *runner) density(ctx context.Context) error {
	if !r.params.Density {
		return nil
	}
	kept := pointstore.Filter(r.cloud, filter.ClassificationNotIn(r.params.ExcludedClasses...))
	g, err := grid.RasterizeOnto(ctx, kept, r.extent, grid.AggregationCount, grid.DefaultNoData, r.params.Engine)
	if err != nil {
		return err
	}
	r.products.Density = grid.NewDerived(g, grid.Provenance{
		Product:   grid.ProductDensity,
		Source:    r.cloud.Source(),
		Filters:   kept.Filters(),
		Algorithm: string(grid.AggregationCount),
	})
	return nil
}

func withAggregation(parameters map[string]string, aggregation grid.Aggregation) map[string]string {
	out := make(map[string]string, len(parameters)+1)
	for k, v := range parameters {
		out[k] = v
	}
	out["aggregation"] = string(aggregation)
	return out
}

// Parameters flattens the params for the run catalog
func (p Params) Parameters() map[string]string {
	params := map[string]string{
		"resolution":        strconv.FormatFloat(p.Resolution, 'g', -1, 64),
		"dtm.aggregation":   string(p.DTM.Aggregation),
		"dsm.aggregation":   string(p.DSM.Aggregation),
		"ground_class":      strconv.Itoa(int(p.GroundClass)),
		"outlier_threshold": strconv.FormatFloat(p.OutlierThreshold, 'g', -1, 64),
	}
	if p.DTM.Method != nil {
		params["dtm"] = p.DTM.Method.Name()
		for k, v := range p.DTM.Method.Parameters() {
			params["dtm."+k] = v
		}
	}
	if p.DSM.Fill != nil {
		params["dsm.fill"] = p.DSM.Fill.Name()
		for k, v := range p.DSM.Fill.Parameters() {
			params["dsm."+k] = v
		}
	}
	if len(p.ExcludedClasses) > 0 {
		codes := make([]string, len(p.ExcludedClasses))
		for i, c := range p.ExcludedClasses {
			codes[i] = strconv.Itoa(int(c))
		}
		params["excluded_classes"] = strings.Join(codes, ",")
	}
	return params
}

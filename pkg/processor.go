package pkg

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/ecopia-map/als_raster/internal/data"
	"github.com/ecopia-map/als_raster/internal/grid"
	"github.com/ecopia-map/als_raster/internal/interpolate"
	"github.com/ecopia-map/als_raster/internal/pipeline"
	"github.com/ecopia-map/als_raster/internal/pointstore"
	"github.com/ecopia-map/als_raster/internal/rasterio"
	"github.com/ecopia-map/als_raster/internal/runstore"
	"github.com/ecopia-map/als_raster/pkg/algorithm_manager"
	"github.com/ecopia-map/als_raster/tools"
)

type IProcessor interface {
	Run(ctx context.Context, opts *pipeline.Options) ([]*FileResult, error)
}

// FileResult reports what a run wrote for one input file
type FileResult struct {
	Input string
	RunID string
	Paths map[grid.Product]string
	Gaps  []*interpolate.UnresolvedGapWarning
	Err   error
}

type Processor struct {
	fileFinder       tools.FileFinder
	algorithmManager algorithm_manager.AlgorithmManager
	catalog          *runstore.Store
}

// NewProcessor wires a processor. catalog may be nil, runs are then not recorded.
func NewProcessor(fileFinder tools.FileFinder, algorithmManager algorithm_manager.AlgorithmManager, catalog *runstore.Store) IProcessor {
	return &Processor{
		fileFinder:       fileFinder,
		algorithmManager: algorithmManager,
		catalog:          catalog,
	}
}

// NewParams maps the options and the configured algorithms onto pipeline params
func NewParams(opts *pipeline.Options, algorithmManager algorithm_manager.AlgorithmManager) Params {
	return Params{
		Resolution: opts.Resolution,
		DTM: DTMAlgorithm{
			Aggregation: opts.DTM.Aggregation,
			Method:      algorithmManager.GetDTMAlgorithm(),
		},
		DSM: DSMAlgorithm{
			Aggregation: opts.DSM.Aggregation,
			Fill:        algorithmManager.GetDSMFillAlgorithm(),
		},
		GroundClass:      opts.GroundClass,
		ExcludedClasses:  append([]uint8(nil), opts.ExcludedClasses...),
		OutlierThreshold: opts.OutlierThreshold,
		Slope:            opts.Products.Slope,
		Aspect:           opts.Products.Aspect,
		Density:          opts.Products.Density,
		AngleUnit:        opts.Products.AngleUnit,
		Engine:           opts.Engine,
	}
}

// Run processes every input file in turn. A failing file does not stop the others, the
// returned error joins the failures.
func (p *Processor) Run(ctx context.Context, opts *pipeline.Options) ([]*FileResult, error) {
	tools.LogOutput("Preparing list of files to process...")
	glog.V(1).Infof("ground class %d, excluded classes %s", opts.GroundClass, opts.ExcludedCodes())

	lasFiles, err := p.fileFinder.GetLasFilesToProcess(opts)
	if err != nil {
		return nil, err
	}
	if len(lasFiles) == 0 {
		return nil, fmt.Errorf("no las file found in %s", opts.Input)
	}
	if err := tools.CreateDirectoryIfDoesNotExist(opts.Output); err != nil {
		return nil, err
	}
	if converter := p.algorithmManager.GetCoordinateConverterAlgorithm(); converter != nil {
		defer converter.Cleanup()
	}

	var results []*FileResult
	var errs []error
	for i, filePath := range lasFiles {
		if ctx.Err() != nil {
			errs = append(errs, context.Cause(ctx))
			break
		}
		tools.LogOutput(fmt.Sprintf("Processing file %d/%d", i+1, len(lasFiles)))
		result := p.processLasFile(ctx, filePath, opts)
		results = append(results, result)
		if result.Err != nil {
			glog.Errorf("%s: %v", filePath, result.Err)
			errs = append(errs, fmt.Errorf("%s: %w", filePath, result.Err))
			continue
		}
		tools.LogOutput("> done processing", filepath.Base(filePath))
	}
	return results, errors.Join(errs...)
}

func (p *Processor) processLasFile(ctx context.Context, filePath string, opts *pipeline.Options) *FileResult {
	result := &FileResult{Input: filePath, Paths: map[grid.Product]string{}}
	params := NewParams(opts, p.algorithmManager)

	tools.LogOutput("> reading data from las file...", filepath.Base(filePath))
	cloud, loadErr := pointstore.LoadFile(ctx, filePath, pointstore.LoadOptions{
		CRS:                opts.CRS,
		TargetCRS:          opts.TargetCRS,
		Converter:          p.algorithmManager.GetCoordinateConverterAlgorithm(),
		ElevationCorrector: p.algorithmManager.GetElevationCorrectionAlgorithm(),
	})

	if p.catalog != nil {
		crs := opts.CRS
		if cloud != nil {
			crs = cloud.CRS()
		}
		run, err := p.catalog.BeginRun(ctx, filePath, crs.String(), opts.Resolution, params.Parameters())
		if err != nil {
			result.Err = errors.Join(loadErr, err)
			return result
		}
		params.RunID = run.ID
	}

	result.RunID = params.RunID
	err := loadErr
	if err == nil {
		err = p.exportProducts(ctx, cloud, params, opts, result)
	}

	if p.catalog != nil {
		// the run is closed even when ctx was cancelled
		if finishErr := p.catalog.FinishRun(context.WithoutCancel(ctx), params.RunID, err); finishErr != nil {
			err = errors.Join(err, finishErr)
		}
	}
	result.Err = err
	return result
}

func (p *Processor) exportProducts(ctx context.Context, cloud *data.PointCloud, params Params, opts *pipeline.Options, result *FileResult) error {
	tools.LogOutput("> building rasters...")
	products, err := RunDSMPipeline(ctx, cloud, params)
	if err != nil {
		return err
	}
	result.RunID = products.RunID
	result.Gaps = products.Gaps

	tools.LogOutput("> exporting rasters...")
	stem := tools.GetOutputStem(opts.Input, cloud.Source(), opts.FolderProcessing)
	all := products.All()
	paths, err := writeProducts(ctx, opts.Output, stem, products, all, params.Engine.NumWorkers())
	if err != nil {
		return err
	}

	for i, d := range all {
		result.Paths[d.Provenance.Product] = paths[i]
		stats := grid.ComputeStats(d.Grid)
		glog.Infof("%s: %s (%d valid cells, min %.3f, max %.3f, mean %.3f)",
			d.Provenance.Product, paths[i], stats.ValidCells, stats.Min, stats.Max, stats.Mean)
		glog.V(2).Infoln(d.Provenance.Describe())

		if p.catalog == nil {
			continue
		}
		unresolved := 0
		if gaps := products.GapsFor(d.Provenance.Product); gaps != nil {
			unresolved = gaps.Count()
		}
		err := p.catalog.RecordProduct(ctx, runstore.Product{
			RunID:          products.RunID,
			Product:        d.Provenance.Product,
			Path:           paths[i],
			Cols:           d.Cols(),
			Rows:           d.Rows(),
			ValidCells:     stats.ValidCells,
			UnresolvedGaps: unresolved,
			Provenance:     d.Provenance,
		})
		if err != nil {
			return fmt.Errorf("recording %s: %w", d.Provenance.Product, err)
		}
	}
	return nil
}

// writeProducts writes the rasters concurrently and returns their paths in the order of all
func writeProducts(ctx context.Context, dir, stem string, products *Products, all []*grid.Derived, workers int) ([]string, error) {
	paths := make([]string, len(all))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, d := range all {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path, err := rasterio.WriteProduct(dir, stem, products.RunID, d, products.GapsFor(d.Provenance.Product))
			if err != nil {
				return fmt.Errorf("writing %s: %w", d.Provenance.Product, err)
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

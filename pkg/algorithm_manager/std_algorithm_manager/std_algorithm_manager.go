package std_algorithm_manager

import (
	"fmt"

	"github.com/ecopia-map/als_raster/internal/converters"
	"github.com/ecopia-map/als_raster/internal/converters/elevation/offset_elevation_corrector"
	"github.com/ecopia-map/als_raster/internal/interpolate"
	"github.com/ecopia-map/als_raster/internal/pipeline"
	"github.com/ecopia-map/als_raster/pkg/algorithm_manager"
)

type StandardAlgorithmManager struct {
	coordinateConverter converters.CoordinateConverter
	elevationCorrector  converters.ElevationCorrector
	dtmMethod           interpolate.Method
	dsmFill             interpolate.Method
}

// NewAlgorithmManager builds the algorithms selected by opts. The options must be valid.
func NewAlgorithmManager(opts *pipeline.Options) (algorithm_manager.AlgorithmManager, error) {
	dtmMethod, err := opts.DTM.Interpolation.ToMethod()
	if err != nil {
		return nil, fmt.Errorf("dtm: %w", err)
	}
	if dtmMethod == nil {
		return nil, fmt.Errorf("dtm: interpolation method %s fills nothing", opts.DTM.Interpolation.Method)
	}
	dsmFill, err := opts.DSM.Fill.ToMethod()
	if err != nil {
		return nil, fmt.Errorf("dsm fill: %w", err)
	}

	var converter converters.CoordinateConverter
	if opts.TargetCRS.IsDefined() {
		converter = converters.NewProj4CoordinateConverter()
	}

	var corrector converters.ElevationCorrector
	if opts.ZOffset != 0 {
		corrector = offset_elevation_corrector.NewOffsetElevationCorrector(opts.ZOffset)
	}

	return &StandardAlgorithmManager{
		coordinateConverter: converter,
		elevationCorrector:  corrector,
		dtmMethod:           dtmMethod,
		dsmFill:             dsmFill,
	}, nil
}

func (am *StandardAlgorithmManager) GetElevationCorrectionAlgorithm() converters.ElevationCorrector {
	return am.elevationCorrector
}

func (am *StandardAlgorithmManager) GetCoordinateConverterAlgorithm() converters.CoordinateConverter {
	return am.coordinateConverter
}

func (am *StandardAlgorithmManager) GetDTMAlgorithm() interpolate.Method {
	return am.dtmMethod
}

func (am *StandardAlgorithmManager) GetDSMFillAlgorithm() interpolate.Method {
	return am.dsmFill
}

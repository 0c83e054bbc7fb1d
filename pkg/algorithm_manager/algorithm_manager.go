package algorithm_manager

import (
	"github.com/ecopia-map/als_raster/internal/converters"
	"github.com/ecopia-map/als_raster/internal/interpolate"
)

// AlgorithmManager hands out the algorithms a run is configured with
type AlgorithmManager interface {
	GetElevationCorrectionAlgorithm() converters.ElevationCorrector
	GetCoordinateConverterAlgorithm() converters.CoordinateConverter
	GetDTMAlgorithm() interpolate.Method
	// nil when DSM gaps are left empty
	GetDSMFillAlgorithm() interpolate.Method
}

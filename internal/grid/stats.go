package grid

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes the valid cells of a grid
type Stats struct {
	ValidCells  int     `json:"valid_cells"`
	NoDataCells int     `json:"nodata_cells"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Mean        float64 `json:"mean"`
	StdDev      float64 `json:"stddev"`
}

// ComputeStats gathers statistics over the valid cells. Value fields stay zero when the
// grid has no valid cell.
func ComputeStats(g *Grid) Stats {
	valid := make([]float64, 0, len(g.values))
	for _, v := range g.values {
		if !g.IsNoData(v) {
			valid = append(valid, v)
		}
	}
	s := Stats{ValidCells: len(valid), NoDataCells: len(g.values) - len(valid)}
	if len(valid) == 0 {
		return s
	}
	s.Min = floats.Min(valid)
	s.Max = floats.Max(valid)
	if len(valid) == 1 {
		s.Mean = valid[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(valid, nil)
	return s
}

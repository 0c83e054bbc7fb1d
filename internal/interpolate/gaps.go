package interpolate

import (
	"fmt"

	"github.com/ecopia-map/als_raster/internal/grid"
)

// UnresolvedGapWarning reports cells an interpolation could not fill. It is not fatal:
// it is returned next to a usable grid.
type UnresolvedGapWarning struct {
	Stage  string
	Method string
	Cells  []grid.CellIndex // row-major order
	Total  int              // number of cells of the grid
}

func (w *UnresolvedGapWarning) Error() string {
	return fmt.Sprintf("%s: %s left %d of %d cells without data (%.2f%%)",
		w.Stage, w.Method, len(w.Cells), w.Total, 100*w.Fraction())
}

func (w *UnresolvedGapWarning) Count() int {
	return len(w.Cells)
}

// Fraction of the grid cells left unresolved
func (w *UnresolvedGapWarning) Fraction() float64 {
	if w.Total == 0 {
		return 0
	}
	return float64(len(w.Cells)) / float64(w.Total)
}

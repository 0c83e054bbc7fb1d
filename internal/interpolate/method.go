package interpolate

import (
	"fmt"
	"math"
	"strconv"
)

// Method selects a gap filling algorithm. The set of methods is closed: IDW and TIN.
type Method interface {
	// Name is the short algorithm name used in provenance
	Name() string
	// Parameters lists the tuning values for provenance, formatted for display
	Parameters() map[string]string
	Validate() error
	sealed()
}

// IDW is inverse distance weighting over the K nearest source points within RMax.
// An RMax of 0 or +Inf means unbounded.
type IDW struct {
	K     int
	Power float64
	RMax  float64
}

func (IDW) Name() string { return "IDW" }

func (m IDW) Parameters() map[string]string {
	return map[string]string{
		"k":     strconv.Itoa(m.K),
		"power": strconv.FormatFloat(m.Power, 'g', -1, 64),
		"rmax":  strconv.FormatFloat(m.RMax, 'g', -1, 64),
	}
}

func (m IDW) Validate() error {
	if m.K < 1 {
		return fmt.Errorf("idw: k must be at least 1, got %d", m.K)
	}
	if !(m.Power > 0) || math.IsInf(m.Power, 0) {
		return fmt.Errorf("idw: power must be positive and finite, got %g", m.Power)
	}
	if m.RMax < 0 || math.IsNaN(m.RMax) {
		return fmt.Errorf("idw: rmax must not be negative, got %g", m.RMax)
	}
	return nil
}

func (IDW) sealed() {}

// TIN is linear interpolation on the Delaunay triangulation of the source points
type TIN struct{}

func (TIN) Name() string { return "TIN" }

func (TIN) Parameters() map[string]string { return map[string]string{} }

func (TIN) Validate() error { return nil }

func (TIN) sealed() {}

// DefaultIDW is the inverse distance weighting used when only the method name is given
func DefaultIDW() IDW {
	return IDW{K: 12, Power: 2, RMax: 0}
}

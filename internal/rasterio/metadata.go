package rasterio

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/ecopia-map/als_raster/internal/grid"
	"github.com/ecopia-map/als_raster/internal/interpolate"
)

// maximum number of unresolved cells listed in a sidecar, the count is always complete
const maxListedGaps = 1000

// Metadata is the JSON sidecar written next to every raster
type Metadata struct {
	RunID      string          `json:"run_id,omitempty"`
	CRS        string          `json:"crs"`
	EPSG       int             `json:"epsg,omitempty"`
	Extent     ExtentMetadata  `json:"extent"`
	NoData     float64         `json:"nodata"`
	Provenance grid.Provenance `json:"provenance"`
	Stats      grid.Stats      `json:"stats"`
	Gaps       *GapMetadata    `json:"unresolved_gaps,omitempty"`
}

type ExtentMetadata struct {
	XMin       float64 `json:"xmin"`
	YMin       float64 `json:"ymin"`
	XMax       float64 `json:"xmax"`
	YMax       float64 `json:"ymax"`
	Resolution float64 `json:"resolution"`
	Cols       int     `json:"cols"`
	Rows       int     `json:"rows"`
}

type GapMetadata struct {
	Stage     string           `json:"stage"`
	Method    string           `json:"method"`
	Count     int              `json:"count"`
	Fraction  float64          `json:"fraction"`
	Cells     []grid.CellIndex `json:"cells"`
	Truncated bool             `json:"truncated,omitempty"`
}

// NewMetadata describes a derived grid. gaps may be nil.
func NewMetadata(runID string, d *grid.Derived, gaps *interpolate.UnresolvedGapWarning) Metadata {
	e := d.Extent()
	md := Metadata{
		RunID: runID,
		CRS:   d.CRS().String(),
		EPSG:  d.CRS().EPSG,
		Extent: ExtentMetadata{
			XMin: e.XMin, YMin: e.YMin, XMax: e.XMax(), YMax: e.YMax(),
			Resolution: e.Resolution, Cols: e.Cols, Rows: e.Rows,
		},
		NoData:     d.NoData(),
		Provenance: d.Provenance,
		Stats:      grid.ComputeStats(d.Grid),
	}
	if gaps != nil && gaps.Count() > 0 {
		cells := gaps.Cells
		truncated := len(cells) > maxListedGaps
		if truncated {
			cells = cells[:maxListedGaps]
		}
		md.Gaps = &GapMetadata{
			Stage:     gaps.Stage,
			Method:    gaps.Method,
			Count:     gaps.Count(),
			Fraction:  gaps.Fraction(),
			Cells:     cells,
			Truncated: truncated,
		}
	}
	return md
}

func WriteMetadata(path string, md Metadata) error {
	content, err := json.MarshalIndent(md, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(path, content, 0666)
}

func ReadMetadata(path string) (*Metadata, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	md := &Metadata{}
	if err := json.Unmarshal(content, md); err != nil {
		return nil, err
	}
	return md, nil
}

// ProductPaths returns the raster and sidecar paths of a product written under dir
func ProductPaths(dir, stem string, product grid.Product) (raster, sidecar string) {
	base := filepath.Join(dir, stem+"_"+strings.ToLower(string(product)))
	return base + ".asc", base + ".json"
}

// WriteProduct writes the raster and its sidecar under dir and returns the raster path
func WriteProduct(dir, stem, runID string, d *grid.Derived, gaps *interpolate.UnresolvedGapWarning) (string, error) {
	rasterPath, sidecarPath := ProductPaths(dir, stem, d.Provenance.Product)
	if err := WriteASCII(rasterPath, d.Grid); err != nil {
		return "", err
	}
	if err := WriteMetadata(sidecarPath, NewMetadata(runID, d, gaps)); err != nil {
		return "", err
	}
	return rasterPath, nil
}

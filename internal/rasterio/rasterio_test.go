package rasterio

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/als_raster/internal/data"
	"github.com/ecopia-map/als_raster/internal/grid"
	"github.com/ecopia-map/als_raster/internal/interpolate"
)

var crs = data.EPSGCode(2056)

func sampleGrid(t *testing.T) *grid.Grid {
	t.Helper()
	extent := grid.Extent{XMin: 2600000, YMin: 1200000.5, Resolution: 0.5, Cols: 3, Rows: 2}
	// row 0 is the southern row
	g, err := grid.FromValues(extent, crs, grid.DefaultNoData, []float64{1, 2.25, grid.DefaultNoData, 4, 5.125, 0.1})
	require.NoError(t, err)
	return g
}

func TestEncodeASCII_NorthUp(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeASCII(&buf, sampleGrid(t)))

	want := strings.Join([]string{
		"ncols 3",
		"nrows 2",
		"xllcorner 2600000",
		"yllcorner 1200000.5",
		"cellsize 0.5",
		"NODATA_value -9999",
		"4 5.125 0.1",
		"1 2.25 -9999",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestASCIIRoundTrip(t *testing.T) {
	for _, name := range []string{"dtm.asc", "dtm.asc.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			original := sampleGrid(t)
			require.NoError(t, WriteASCII(path, original))

			decoded, err := ReadASCII(path, crs)
			require.NoError(t, err)
			assert.Equal(t, original.Extent(), decoded.Extent())
			assert.Equal(t, original.NoData(), decoded.NoData())
			assert.Equal(t, crs, decoded.CRS())
			if diff := cmp.Diff(original.Values(), decoded.Values()); diff != "" {
				t.Errorf("values differ (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeASCII_CenterRegistration(t *testing.T) {
	input := "NCOLS 2\nNROWS 1\nXLLCENTER 10.5\nYLLCENTER 20.5\nCELLSIZE 1\n7 8\n"

	g, err := DecodeASCII(strings.NewReader(input), data.CRS{})
	require.NoError(t, err)
	assert.Equal(t, grid.Extent{XMin: 10, YMin: 20, Resolution: 1, Cols: 2, Rows: 1}, g.Extent())
	assert.Equal(t, []float64{7, 8}, g.Values())
	assert.Equal(t, grid.DefaultNoData, g.NoData())
}

func TestDecodeASCII_Errors(t *testing.T) {
	_, err := DecodeASCII(strings.NewReader("ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2 3\n"), crs)
	assert.Error(t, err, "missing values")

	_, err = DecodeASCII(strings.NewReader("ncols 2\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2\n"), crs)
	assert.Error(t, err, "missing nrows")

	_, err = DecodeASCII(strings.NewReader("ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\nabc\n"), crs)
	assert.Error(t, err)
}

func TestWriteProduct(t *testing.T) {
	dir := t.TempDir()
	derived := grid.NewDerived(sampleGrid(t), grid.Provenance{
		Product:    grid.ProductDTM,
		Source:     "tile.las",
		Algorithm:  "IDW",
		Parameters: map[string]string{"k": "10"},
	})
	gaps := &interpolate.UnresolvedGapWarning{
		Stage:  "dtm",
		Method: "IDW",
		Cells:  []grid.CellIndex{{Col: 2, Row: 0}},
		Total:  6,
	}

	rasterPath, err := WriteProduct(dir, "tile", "run-1", derived, gaps)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tile_dtm.asc"), rasterPath)

	_, sidecar := ProductPaths(dir, "tile", grid.ProductDTM)
	md, err := ReadMetadata(sidecar)
	require.NoError(t, err)
	assert.Equal(t, "run-1", md.RunID)
	assert.Equal(t, "EPSG:2056", md.CRS)
	assert.Equal(t, 2056, md.EPSG)
	assert.Equal(t, 3, md.Extent.Cols)
	assert.Equal(t, 2600001.5, md.Extent.XMax)
	assert.Equal(t, grid.ProductDTM, md.Provenance.Product)
	assert.Equal(t, 5, md.Stats.ValidCells)
	require.NotNil(t, md.Gaps)
	assert.Equal(t, 1, md.Gaps.Count)
	assert.Equal(t, []grid.CellIndex{{Col: 2, Row: 0}}, md.Gaps.Cells)
	assert.False(t, md.Gaps.Truncated)
}

func TestNewMetadata_TruncatesGapList(t *testing.T) {
	derived := grid.NewDerived(sampleGrid(t), grid.Provenance{Product: grid.ProductDSM})
	gaps := &interpolate.UnresolvedGapWarning{Cells: make([]grid.CellIndex, maxListedGaps+5), Total: 10000}

	md := NewMetadata("", derived, gaps)
	require.NotNil(t, md.Gaps)
	assert.Equal(t, maxListedGaps+5, md.Gaps.Count)
	assert.Len(t, md.Gaps.Cells, maxListedGaps)
	assert.True(t, md.Gaps.Truncated)

	assert.Nil(t, NewMetadata("", derived, nil).Gaps)
}

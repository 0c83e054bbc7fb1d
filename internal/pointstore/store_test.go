package pointstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/als_raster/internal/data"
	"github.com/ecopia-map/als_raster/internal/filter"
	"github.com/ecopia-map/als_raster/internal/las"
)

func encode(t *testing.T, points []data.Point, epsg int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, las.Encode(&buf, points, las.WriterOptions{EPSG: epsg}))
	return buf.Bytes()
}

func sampleCloudPoints() []data.Point {
	return []data.Point{
		data.NewPoint(0, 0, 10, 2, 1, 1),
		data.NewPoint(1, 0, 12, 2, 1, 1),
		data.NewPoint(0, 1, 25, 5, 1, 2),
		data.NewPoint(1, 1, 11, 2, 2, 2),
		data.NewPoint(2, 2, 400, 7, 1, 1),
		data.NewPoint(2, 0, 13, 22, 1, 1),
	}
}

// shiftConverter adds a fixed offset, standing in for a real reprojection
type shiftConverter struct{ dx, dy float64 }

func (c shiftConverter) ConvertCoordinates(_, _ data.CRS, xs, ys, _ []float64) error {
	for i := range xs {
		xs[i] += c.dx
		ys[i] += c.dy
	}
	return nil
}

func (c shiftConverter) Cleanup() {}

type plusOne struct{}

func (plusOne) CorrectElevation(_, _, z float64) float64 { return z + 1 }

func TestLoad_UsesDeclaredCRS(t *testing.T) {
	raw := encode(t, sampleCloudPoints(), 2056)

	cloud, err := Load(context.Background(), bytes.NewReader(raw), "tile.las", LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, data.EPSGCode(2056), cloud.CRS())
	assert.Equal(t, 6, cloud.Len())
	assert.Equal(t, "tile.las", cloud.Source())
	assert.InDelta(t, 25.0, cloud.At(2).Z, 1e-3)
}

func TestLoad_AssignedCRSWins(t *testing.T) {
	raw := encode(t, sampleCloudPoints(), 2056)

	cloud, err := Load(context.Background(), bytes.NewReader(raw), "tile.las", LoadOptions{CRS: data.EPSGCode(2154)})
	require.NoError(t, err)
	assert.Equal(t, data.EPSGCode(2154), cloud.CRS())
	assert.InDelta(t, 1.0, cloud.At(1).X, 1e-3, "assignment never moves coordinates")
}

func TestLoad_MissingCRS(t *testing.T) {
	raw := encode(t, sampleCloudPoints(), 0)

	_, err := Load(context.Background(), bytes.NewReader(raw), "nocrs.las", LoadOptions{})
	var crsErr *CRSUndefinedError
	require.ErrorAs(t, err, &crsErr)
	assert.Equal(t, "nocrs.las", crsErr.Source)

	cloud, err := Load(context.Background(), bytes.NewReader(raw), "nocrs.las", LoadOptions{CRS: data.EPSGCode(2056)})
	require.NoError(t, err)
	assert.Equal(t, 2056, cloud.CRS().EPSG)
}

func TestLoad_FormatError(t *testing.T) {
	_, err := Load(context.Background(), strings.NewReader(strings.Repeat("x", 400)), "bad.las", LoadOptions{})

	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.ErrorIs(t, err, las.ErrNotLAS)
	assert.Equal(t, "bad.las", formatErr.Source)

	_, err = Load(context.Background(), strings.NewReader("LASF"), "short.las", LoadOptions{})
	require.ErrorAs(t, err, &formatErr)
	assert.ErrorIs(t, err, las.ErrTruncated)
}

func TestLoad_CorruptHeaderIsFormatError(t *testing.T) {
	raw := encode(t, sampleCloudPoints(), 2056)
	binary.LittleEndian.PutUint64(raw[131:139], math.Float64bits(math.NaN()))

	_, err := Load(context.Background(), bytes.NewReader(raw), "nan.las", LoadOptions{})
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.ErrorIs(t, err, las.ErrUnsupportedFormat)
}

func TestLoad_ReprojectsAndCorrects(t *testing.T) {
	raw := encode(t, sampleCloudPoints(), 2056)

	cloud, err := Load(context.Background(), bytes.NewReader(raw), "tile.las", LoadOptions{
		TargetCRS:          data.EPSGCode(4326),
		Converter:          shiftConverter{dx: 100, dy: -50},
		ElevationCorrector: plusOne{},
	})
	require.NoError(t, err)

	assert.Equal(t, data.EPSGCode(4326), cloud.CRS())
	assert.InDelta(t, 101.0, cloud.At(1).X, 1e-3)
	assert.InDelta(t, -50.0, cloud.At(1).Y, 1e-3)
	assert.InDelta(t, 13.0, cloud.At(1).Z, 1e-3)

	_, err = Load(context.Background(), bytes.NewReader(raw), "tile.las", LoadOptions{TargetCRS: data.EPSGCode(4326)})
	assert.Error(t, err, "reprojection needs a converter")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tile.las")
	require.NoError(t, las.WriteFile(path, sampleCloudPoints(), las.WriterOptions{EPSG: 2056}))

	cloud, err := LoadFile(context.Background(), path, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 6, cloud.Len())
	assert.Equal(t, path, cloud.Source())

	_, err = LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.las"), LoadOptions{})
	assert.Error(t, err)
}

func TestFilter_DoesNotMutate(t *testing.T) {
	cloud := data.NewPointCloud(sampleCloudPoints(), data.EPSGCode(2056), "mem")

	ground := Filter(cloud, filter.ClassificationIn(2))
	require.Equal(t, 3, ground.Len())
	assert.Equal(t, 6, cloud.Len())
	assert.Equal(t, []string{"class in {2}"}, ground.Filters())
	assert.Equal(t, cloud.CRS(), ground.CRS())

	firstOfGround := Filter(ground, filter.FirstReturn())
	require.Equal(t, 2, firstOfGround.Len())
	assert.Equal(t, 12.0, firstOfGround.At(1).Z)
	assert.Len(t, firstOfGround.Filters(), 2)
}

func TestBoundingBoxAndClip(t *testing.T) {
	cloud := data.NewPointCloud(sampleCloudPoints(), data.EPSGCode(2056), "mem")

	xmin, ymin, xmax, ymax, err := BoundingBox(cloud)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 2, 2}, []float64{xmin, ymin, xmax, ymax})

	clipped := Clip(cloud, data.Bounds{XMin: 0, YMin: 0, XMax: 1, YMax: 1})
	assert.Equal(t, 4, clipped.Len())

	_, _, _, _, err = BoundingBox(Clip(cloud, data.Bounds{XMin: 10, YMin: 10, XMax: 11, YMax: 11}))
	assert.Error(t, err)
}

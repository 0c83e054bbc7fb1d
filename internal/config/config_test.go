package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/als_raster/internal/data"
	"github.com/ecopia-map/als_raster/internal/grid"
	"github.com/ecopia-map/als_raster/internal/pipeline"
	"github.com/ecopia-map/als_raster/internal/raster"
)

const sample = `
resolution = 0.5
ground_class = 2
excluded_classes = [22, 23]
outlier_threshold = 80.0
crs = "EPSG:2056"
z_offset = -1.5

[dtm]
method = "idw"
k = 10
power = 2.0
rmax = 50.0

[dsm]
aggregation = "first-return-max"
fill = "tin"

[products]
slope = true
angle_unit = "radians"

[engine]
workers = 3

[output]
dir = "out"
catalog = "runs.db"
`

func TestLoadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))

	opts, err := LoadOptions(path)
	require.NoError(t, err)
	require.NoError(t, opts.Validate())

	assert.Equal(t, 0.5, opts.Resolution)
	assert.Equal(t, []uint8{22, 23}, opts.ExcludedClasses)
	assert.Equal(t, 80.0, opts.OutlierThreshold)
	assert.Equal(t, data.EPSGCode(2056), opts.CRS)
	assert.Equal(t, -1.5, opts.ZOffset)
	assert.Equal(t, pipeline.InterpolationOptions{Method: pipeline.InterpolationIDW, K: 10, Power: 2, RMax: 50}, opts.DTM.Interpolation)
	assert.Equal(t, grid.AggregationMax, opts.DTM.Aggregation)
	assert.Equal(t, grid.AggregationFirstReturnMax, opts.DSM.Aggregation)
	assert.Equal(t, pipeline.InterpolationTIN, opts.DSM.Fill.Method)
	assert.True(t, opts.Products.Slope)
	assert.False(t, opts.Products.Aspect)
	assert.Equal(t, raster.Radians, opts.Products.AngleUnit)
	assert.Equal(t, 3, opts.Engine.Workers)
	assert.Equal(t, "out", opts.Output)
	assert.Equal(t, "runs.db", opts.Catalog)
}

func TestLoadOptions_Defaults(t *testing.T) {
	opts, err := LoadOptions("")
	require.NoError(t, err)
	assert.Equal(t, pipeline.DefaultOptions(), opts)
	assert.True(t, math.IsInf(opts.OutlierThreshold, 1))
}

func TestDecode_RejectsUnknownKeys(t *testing.T) {
	_, err := Decode([]byte("resolutoin = 1.0\n"))
	assert.Error(t, err)
}

func TestApply_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"class range":   "ground_class = 300\n",
		"method":        "[dtm]\nmethod = \"kriging\"\n",
		"aggregation":   "[dsm]\naggregation = \"median\"\n",
		"crs":           "crs = \"EPSG:abc\"\n",
		"angle unit":    "[products]\nangle_unit = \"grad\"\n",
		"excluded code": "excluded_classes = [-1]\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			f, err := Decode([]byte(content))
			require.NoError(t, err)
			assert.Error(t, f.Apply(pipeline.DefaultOptions()))
		})
	}
}

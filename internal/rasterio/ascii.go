// Package rasterio writes and reads grids as ESRI ASCII rasters with a JSON metadata sidecar.
package rasterio

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ecopia-map/als_raster/internal/data"
	"github.com/ecopia-map/als_raster/internal/grid"
)

// EncodeASCII writes the grid as an ESRI ASCII raster, northern-most row first
func EncodeASCII(w io.Writer, g *grid.Grid) error {
	bw := bufio.NewWriter(w)
	extent := g.Extent()

	fmt.Fprintf(bw, "ncols %d\n", extent.Cols)
	fmt.Fprintf(bw, "nrows %d\n", extent.Rows)
	fmt.Fprintf(bw, "xllcorner %s\n", formatFloat(extent.XMin))
	fmt.Fprintf(bw, "yllcorner %s\n", formatFloat(extent.YMin))
	fmt.Fprintf(bw, "cellsize %s\n", formatFloat(extent.Resolution))
	fmt.Fprintf(bw, "NODATA_value %s\n", formatFloat(g.NoData()))

	for row := extent.Rows - 1; row >= 0; row-- {
		for col := 0; col < extent.Cols; col++ {
			if col > 0 {
				bw.WriteByte(' ')
			}
			v := g.At(col, row)
			if g.IsNoData(v) {
				v = g.NoData()
			}
			bw.WriteString(formatFloat(v))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// DecodeASCII parses an ESRI ASCII raster. Files using xllcenter/yllcenter are shifted to
// corner registration. The CRS is not part of the format and is left to the caller.
func DecodeASCII(r io.Reader, crs data.CRS) (*grid.Grid, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1<<20), 1<<30)
	scanner.Split(bufio.ScanWords)

	header := map[string]string{}
	var firstValue string
	for scanner.Scan() {
		key := strings.ToLower(scanner.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			firstValue = scanner.Text()
			break
		}
		if !scanner.Scan() {
			return nil, fmt.Errorf("ascii grid header: missing value for %s", key)
		}
		header[key] = scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	intField := func(name string) (int, error) {
		v, ok := header[name]
		if !ok {
			return 0, fmt.Errorf("ascii grid header: missing %s", name)
		}
		return strconv.Atoi(v)
	}
	floatField := func(names ...string) (float64, string, error) {
		for _, name := range names {
			if v, ok := header[name]; ok {
				f, err := strconv.ParseFloat(v, 64)
				return f, name, err
			}
		}
		return 0, "", fmt.Errorf("ascii grid header: missing %s", names[0])
	}

	cols, err := intField("ncols")
	if err != nil {
		return nil, err
	}
	rows, err := intField("nrows")
	if err != nil {
		return nil, err
	}
	cellSize, _, err := floatField("cellsize")
	if err != nil {
		return nil, err
	}
	xll, xName, err := floatField("xllcorner", "xllcenter")
	if err != nil {
		return nil, err
	}
	yll, yName, err := floatField("yllcorner", "yllcenter")
	if err != nil {
		return nil, err
	}
	if xName == "xllcenter" {
		xll -= cellSize / 2
	}
	if yName == "yllcenter" {
		yll -= cellSize / 2
	}
	noData := grid.DefaultNoData
	if _, ok := header["nodata_value"]; ok {
		if noData, _, err = floatField("nodata_value"); err != nil {
			return nil, err
		}
	}
	if cols <= 0 || rows <= 0 || !(cellSize > 0) {
		return nil, fmt.Errorf("ascii grid header: invalid dimensions %dx%d at cell size %g", cols, rows, cellSize)
	}

	extent := grid.Extent{XMin: xll, YMin: yll, Resolution: cellSize, Cols: cols, Rows: rows}
	values := make([]float64, extent.Len())
	for i := 0; i < len(values); i++ {
		var token string
		if i == 0 && firstValue != "" {
			token = firstValue
		} else if scanner.Scan() {
			token = scanner.Text()
		} else {
			if err := scanner.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("ascii grid: expected %d values, found %d", len(values), i)
		}
		v, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return nil, fmt.Errorf("ascii grid value %d: %w", i, err)
		}
		// file rows run north to south
		row := rows - 1 - i/cols
		values[row*cols+i%cols] = v
	}
	return grid.FromValues(extent, crs, noData, values)
}

// WriteASCII writes the grid to path, gzip compressed when the path ends in .gz
func WriteASCII(path string, g *grid.Grid) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	var w io.Writer = file
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(file)
		w = gz
	}
	if err := EncodeASCII(w, g); err != nil {
		_ = file.Close()
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			_ = file.Close()
			return err
		}
	}
	return file.Close()
}

// ReadASCII reads an ESRI ASCII raster, gzip compressed when the path ends in .gz
func ReadASCII(path string, crs data.CRS) (*grid.Grid, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var r io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, err
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}
	return DecodeASCII(r, crs)
}

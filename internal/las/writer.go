package las

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/ecopia-map/als_raster/internal/data"
)

const generatingSoftware = "als_raster"

// WriterOptions controls the layout of written LAS files
type WriterOptions struct {
	PointFormat uint8   // 0 (LAS 1.2) or 6 (LAS 1.4)
	Scale       float64 // coordinate resolution, defaults to 0.001
	EPSG        int     // written as a GeoKey directory VLR when > 0
}

// WriteFile writes the points to a new LAS file at filePath, replacing any existing file
func WriteFile(filePath string, points []data.Point, opts WriterOptions) error {
	file, err := os.Create(filePath)
	if err != nil {
		return err
	}
	if err := Encode(file, points, opts); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// Encode writes a LAS stream containing the given points
func Encode(w io.Writer, points []data.Point, opts WriterOptions) error {
	if opts.PointFormat != 0 && opts.PointFormat != 6 {
		return fmt.Errorf("writer supports formats 0 and 6, got %d: %w", opts.PointFormat, ErrUnsupportedFormat)
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = 0.001
	}

	bounds := struct{ minX, minY, minZ, maxX, maxY, maxZ float64 }{
		math.Inf(1), math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1), math.Inf(-1),
	}
	for _, p := range points {
		bounds.minX, bounds.maxX = math.Min(bounds.minX, p.X), math.Max(bounds.maxX, p.X)
		bounds.minY, bounds.maxY = math.Min(bounds.minY, p.Y), math.Max(bounds.maxY, p.Y)
		bounds.minZ, bounds.maxZ = math.Min(bounds.minZ, p.Z), math.Max(bounds.maxZ, p.Z)
	}
	if len(points) == 0 {
		bounds.minX, bounds.minY, bounds.minZ, bounds.maxX, bounds.maxY, bounds.maxZ = 0, 0, 0, 0, 0, 0
	}
	offsetX := math.Floor(bounds.minX)
	offsetY := math.Floor(bounds.minY)
	offsetZ := math.Floor(bounds.minZ)

	var vlrs []byte
	numberOfVLRs := uint32(0)
	if opts.EPSG > math.MaxUint16 {
		return fmt.Errorf("epsg code %d does not fit a geokey", opts.EPSG)
	}
	if opts.EPSG > 0 {
		vlrs = geoKeyVLR(opts.EPSG)
		numberOfVLRs = 1
	}

	headerSize := headerSize12
	versionMinor := uint8(2)
	if opts.PointFormat >= 6 {
		headerSize = headerSize14
		versionMinor = 4
	}
	recordLength := pointFormatLengths[opts.PointFormat]

	le := binary.LittleEndian
	header := make([]byte, headerSize)
	copy(header[0:4], "LASF")
	header[24] = 1
	header[25] = versionMinor
	copy(header[26:58], "OTHER")
	copy(header[58:90], generatingSoftware)
	le.PutUint16(header[94:96], uint16(headerSize))
	le.PutUint32(header[96:100], uint32(headerSize+len(vlrs)))
	le.PutUint32(header[100:104], numberOfVLRs)
	header[104] = opts.PointFormat
	le.PutUint16(header[105:107], recordLength)
	if opts.PointFormat < 6 {
		if uint64(len(points)) > math.MaxUint32 {
			return errors.New("too many points for a LAS 1.2 file")
		}
		le.PutUint32(header[107:111], uint32(len(points)))
	}
	putF64 := func(offset int, v float64) { le.PutUint64(header[offset:offset+8], math.Float64bits(v)) }
	putF64(131, scale)
	putF64(139, scale)
	putF64(147, scale)
	putF64(155, offsetX)
	putF64(163, offsetY)
	putF64(171, offsetZ)
	putF64(179, bounds.maxX)
	putF64(187, bounds.minX)
	putF64(195, bounds.maxY)
	putF64(203, bounds.minY)
	putF64(211, bounds.maxZ)
	putF64(219, bounds.minZ)
	if opts.PointFormat >= 6 {
		le.PutUint64(header[247:255], uint64(len(points)))
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(header); err != nil {
		return err
	}
	if _, err := bw.Write(vlrs); err != nil {
		return err
	}

	record := make([]byte, recordLength)
	quantize := func(v, offset float64) uint32 {
		return uint32(int32(math.Round((v - offset) / scale)))
	}
	for _, p := range points {
		for i := range record {
			record[i] = 0
		}
		le.PutUint32(record[0:4], quantize(p.X, offsetX))
		le.PutUint32(record[4:8], quantize(p.Y, offsetY))
		le.PutUint32(record[8:12], quantize(p.Z, offsetZ))
		le.PutUint16(record[12:14], p.Intensity)
		if opts.PointFormat >= 6 {
			record[14] = (p.ReturnNumber & 0x0F) | (p.NumberOfReturns&0x0F)<<4
			record[16] = p.Classification
		} else {
			record[14] = (p.ReturnNumber & 0x07) | (p.NumberOfReturns&0x07)<<3
			record[15] = p.Classification & 0x1F
		}
		if _, err := bw.Write(record); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func geoKeyVLR(epsg int) []byte {
	le := binary.LittleEndian
	keyKind := uint16(projectedCSTypeKey)
	modelType := uint16(1) // projected
	if epsg == 4326 || epsg == 4258 || epsg == 4269 {
		keyKind = geographicTypeKey
		modelType = 2
	}

	// directory header + GTModelTypeGeoKey + the CRS key
	keys := []uint16{
		1, 1, 0, 2,
		1024, 0, 1, modelType,
		keyKind, 0, 1, uint16(epsg),
	}
	payload := make([]byte, len(keys)*2)
	for i, v := range keys {
		le.PutUint16(payload[i*2:], v)
	}

	head := make([]byte, vlrHeaderLen)
	copy(head[2:18], projectionUserID)
	le.PutUint16(head[18:20], geoKeyDirectoryID)
	le.PutUint16(head[20:22], uint16(len(payload)))
	copy(head[22:54], "GeoKeyDirectoryTag")
	return append(head, payload...)
}

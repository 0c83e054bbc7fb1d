package las

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/ecopia-map/als_raster/internal/data"
)

// points decoded between two context checks
const cancelCheckInterval = 1 << 16

// File is a decoded LAS file
type File struct {
	Header Header
	VLRs   []VLR
	EPSG   int // EPSG code found in the GeoKey directory or WKT VLR, 0 if none
	Points []data.Point
}

// ReadFile opens and decodes the LAS file at the given path
func ReadFile(ctx context.Context, filePath string) (*File, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	return Decode(ctx, file)
}

// Decode reads a complete LAS stream: public header, variable length records and every
// point record. Extended VLRs placed after the point data are ignored.
func Decode(ctx context.Context, r io.Reader) (*File, error) {
	br := bufio.NewReaderSize(r, 1<<20)

	header, err := readHeader(br)
	if err != nil {
		return nil, err
	}

	vlrs, vlrBytes, err := readVLRs(br, header.NumberOfVLRs)
	if err != nil {
		return nil, err
	}

	consumed := int64(header.HeaderSize) + vlrBytes
	if int64(header.OffsetToPoints) < consumed {
		return nil, fmt.Errorf("offset to point data %d overlaps header and vlrs (%d bytes): %w",
			header.OffsetToPoints, consumed, ErrUnsupportedFormat)
	}
	if _, err := br.Discard(int(int64(header.OffsetToPoints) - consumed)); err != nil {
		return nil, fmt.Errorf("seeking point data: %w", ErrTruncated)
	}

	points, err := decodePoints(ctx, br, header)
	if err != nil {
		return nil, err
	}

	return &File{
		Header: *header,
		VLRs:   vlrs,
		EPSG:   epsgFromVLRs(vlrs),
		Points: points,
	}, nil
}

func decodePoints(ctx context.Context, r io.Reader, h *Header) ([]data.Point, error) {
	points := make([]data.Point, 0, min(h.NumberOfPoints, maxPrealloc))
	record := make([]byte, h.PointRecordLength)
	extended := h.PointFormat >= 6
	le := binary.LittleEndian

	for i := uint64(0); i < h.NumberOfPoints; i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if _, err := io.ReadFull(r, record); err != nil {
			return nil, fmt.Errorf("reading point %d of %d: %w", i, h.NumberOfPoints, ErrTruncated)
		}

		x := float64(int32(le.Uint32(record[0:4])))*h.ScaleX + h.OffsetX
		y := float64(int32(le.Uint32(record[4:8])))*h.ScaleY + h.OffsetY
		z := float64(int32(le.Uint32(record[8:12])))*h.ScaleZ + h.OffsetZ
		intensity := le.Uint16(record[12:14])

		var returnNumber, numberOfReturns, classification uint8
		if extended {
			returnNumber = record[14] & 0x0F
			numberOfReturns = record[14] >> 4
			classification = record[16]
		} else {
			returnNumber = record[14] & 0x07
			numberOfReturns = (record[14] >> 3) & 0x07
			classification = record[15] & 0x1F
		}

		points = append(points, data.NewPoint(x, y, z, classification, returnNumber, numberOfReturns).WithIntensity(intensity))
	}

	return points, nil
}

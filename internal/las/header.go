package las

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	ErrNotLAS            = errors.New("missing LASF file signature")
	ErrCompressed        = errors.New("compressed (LAZ) point data is not supported, decompress the file first")
	ErrUnsupportedFormat = errors.New("unsupported point data record format")
	ErrTruncated         = errors.New("truncated file")
)

const (
	headerSize12 = 227
	headerSize13 = 235
	headerSize14 = 375
	vlrHeaderLen = 54

	// upper bound of slice preallocation driven by header counts
	maxPrealloc = 1 << 20
)

// minimal record length per point data record format
var pointFormatLengths = map[uint8]uint16{
	0: 20, 1: 28, 2: 26, 3: 34, 4: 57, 5: 63,
	6: 30, 7: 36, 8: 38, 9: 59, 10: 67,
}

// Header holds the fields of the LAS public header block needed to decode points
type Header struct {
	VersionMajor       uint8
	VersionMinor       uint8
	SystemIdentifier   string
	GeneratingSoftware string
	HeaderSize         uint16
	OffsetToPoints     uint32
	NumberOfVLRs       uint32
	PointFormat        uint8
	PointRecordLength  uint16
	NumberOfPoints     uint64
	ScaleX             float64
	ScaleY             float64
	ScaleZ             float64
	OffsetX            float64
	OffsetY            float64
	OffsetZ            float64
	MaxX               float64
	MinX               float64
	MaxY               float64
	MinY               float64
	MaxZ               float64
	MinZ               float64
	GlobalEncoding     uint16
}

// VLR is a variable length record following the public header
type VLR struct {
	UserID      string
	RecordID    uint16
	Description string
	Data        []byte
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func readHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, headerSize12)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("reading public header: %w", ErrTruncated)
		}
		return nil, err
	}
	if string(buf[0:4]) != "LASF" {
		return nil, ErrNotLAS
	}

	le := binary.LittleEndian
	f64 := func(offset int) float64 {
		return math.Float64frombits(le.Uint64(buf[offset : offset+8]))
	}

	h := &Header{
		GlobalEncoding:     le.Uint16(buf[6:8]),
		VersionMajor:       buf[24],
		VersionMinor:       buf[25],
		SystemIdentifier:   cString(buf[26:58]),
		GeneratingSoftware: cString(buf[58:90]),
		HeaderSize:         le.Uint16(buf[94:96]),
		OffsetToPoints:     le.Uint32(buf[96:100]),
		NumberOfVLRs:       le.Uint32(buf[100:104]),
		PointFormat:        buf[104],
		PointRecordLength:  le.Uint16(buf[105:107]),
		NumberOfPoints:     uint64(le.Uint32(buf[107:111])),
		ScaleX:             f64(131),
		ScaleY:             f64(139),
		ScaleZ:             f64(147),
		OffsetX:            f64(155),
		OffsetY:            f64(163),
		OffsetZ:            f64(171),
		MaxX:               f64(179),
		MinX:               f64(187),
		MaxY:               f64(195),
		MinY:               f64(203),
		MaxZ:               f64(211),
		MinZ:               f64(219),
	}

	if h.HeaderSize < headerSize12 {
		return nil, fmt.Errorf("header size %d smaller than %d bytes: %w", h.HeaderSize, headerSize12, ErrTruncated)
	}

	// the rest of the header (LAS 1.3 waveform offset, LAS 1.4 extended counts and any
	// user defined bytes) is read to keep the reader positioned at the first VLR
	rest := make([]byte, int(h.HeaderSize)-headerSize12)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, fmt.Errorf("reading extended header: %w", ErrTruncated)
	}
	if h.VersionMajor == 1 && h.VersionMinor >= 4 && int(h.HeaderSize) >= headerSize14 {
		// start of first EVLR (8) + number of EVLRs (4) precede the 64 bit point count
		extended := le.Uint64(rest[headerSize13-headerSize12+12 : headerSize13-headerSize12+20])
		if extended > 0 {
			h.NumberOfPoints = extended
		}
	}

	if h.PointFormat&0xC0 != 0 {
		return nil, ErrCompressed
	}
	minLength, ok := pointFormatLengths[h.PointFormat]
	if !ok {
		return nil, fmt.Errorf("format %d: %w", h.PointFormat, ErrUnsupportedFormat)
	}
	if h.PointRecordLength < minLength {
		return nil, fmt.Errorf("record length %d shorter than %d bytes required by format %d: %w",
			h.PointRecordLength, minLength, h.PointFormat, ErrUnsupportedFormat)
	}
	if h.ScaleX == 0 || h.ScaleY == 0 || h.ScaleZ == 0 {
		return nil, fmt.Errorf("zero coordinate scale factor: %w", ErrUnsupportedFormat)
	}
	for _, v := range []float64{h.ScaleX, h.ScaleY, h.ScaleZ, h.OffsetX, h.OffsetY, h.OffsetZ} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite coordinate scale or offset %g: %w", v, ErrUnsupportedFormat)
		}
	}

	return h, nil
}

func readVLRs(r io.Reader, count uint32) ([]VLR, int64, error) {
	vlrs := make([]VLR, 0, min(count, maxPrealloc))
	var consumed int64
	head := make([]byte, vlrHeaderLen)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, head); err != nil {
			return nil, consumed, fmt.Errorf("reading vlr %d header: %w", i, ErrTruncated)
		}
		length := binary.LittleEndian.Uint16(head[20:22])
		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, consumed, fmt.Errorf("reading vlr %d payload: %w", i, ErrTruncated)
		}
		consumed += int64(vlrHeaderLen) + int64(length)
		vlrs = append(vlrs, VLR{
			UserID:      cString(head[2:18]),
			RecordID:    binary.LittleEndian.Uint16(head[18:20]),
			Description: cString(head[22:54]),
			Data:        payload,
		})
	}
	return vlrs, consumed, nil
}

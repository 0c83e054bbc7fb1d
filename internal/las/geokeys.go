package las

import (
	"encoding/binary"
	"regexp"
	"strconv"
)

const (
	projectionUserID    = "LASF_Projection"
	geoKeyDirectoryID   = 34735
	ogcWKTRecordID      = 2112
	geographicTypeKey   = 2048
	projectedCSTypeKey  = 3072
	userDefinedGeoKey   = 32767
	geoKeyEntryByteSize = 8
)

var wktAuthority = regexp.MustCompile(`AUTHORITY\s*\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]`)

// epsgFromVLRs returns the horizontal EPSG code declared by the projection VLRs.
// A projected CRS wins over a geographic one; 0 means no usable declaration.
func epsgFromVLRs(vlrs []VLR) int {
	for _, vlr := range vlrs {
		if vlr.UserID != projectionUserID {
			continue
		}
		switch vlr.RecordID {
		case geoKeyDirectoryID:
			if code := epsgFromGeoKeys(vlr.Data); code > 0 {
				return code
			}
		case ogcWKTRecordID:
			if code := epsgFromWKT(string(vlr.Data)); code > 0 {
				return code
			}
		}
	}
	return 0
}

func epsgFromGeoKeys(payload []byte) int {
	if len(payload) < geoKeyEntryByteSize {
		return 0
	}
	le := binary.LittleEndian
	numberOfKeys := int(le.Uint16(payload[6:8]))

	geographic := 0
	for i := 1; i <= numberOfKeys; i++ {
		offset := i * geoKeyEntryByteSize
		if offset+geoKeyEntryByteSize > len(payload) {
			break
		}
		keyID := le.Uint16(payload[offset : offset+2])
		location := le.Uint16(payload[offset+2 : offset+4])
		value := le.Uint16(payload[offset+6 : offset+8])
		if location != 0 || value == 0 || value == userDefinedGeoKey {
			continue
		}
		switch keyID {
		case projectedCSTypeKey:
			return int(value)
		case geographicTypeKey:
			geographic = int(value)
		}
	}
	return geographic
}

// WKT1 nests the authority of every component; the outermost one comes last
func epsgFromWKT(wkt string) int {
	matches := wktAuthority.FindAllStringSubmatch(wkt, -1)
	if len(matches) == 0 {
		return 0
	}
	code, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return 0
	}
	return code
}

package data

import (
	"fmt"
	"strconv"
	"strings"
)

// CRS identifies the coordinate reference system of a point cloud or grid.
// The zero value is the undefined CRS.
type CRS struct {
	EPSG  int    // EPSG code, 0 when unknown
	Proj4 string // optional proj4 definition overriding the built-in EPSG table
}

// EPSGCode builds a CRS from an EPSG code
func EPSGCode(code int) CRS {
	return CRS{EPSG: code}
}

// IsDefined reports whether the CRS carries any identifier
func (c CRS) IsDefined() bool {
	return c.EPSG > 0 || strings.TrimSpace(c.Proj4) != ""
}

// Equal compares two CRS identifiers. Definitions are compared verbatim, no
// attempt is made to detect equivalent proj4 strings.
func (c CRS) Equal(other CRS) bool {
	return c.EPSG == other.EPSG && strings.TrimSpace(c.Proj4) == strings.TrimSpace(other.Proj4)
}

func (c CRS) String() string {
	switch {
	case c.EPSG > 0:
		return "EPSG:" + strconv.Itoa(c.EPSG)
	case c.Proj4 != "":
		return c.Proj4
	}
	return "undefined"
}

// ParseCRS parses identifiers of the form "EPSG:2056", "epsg:2056", "2056" or a
// proj4 definition starting with "+proj". An empty string yields the undefined CRS.
func ParseCRS(value string) (CRS, error) {
	normalized := strings.TrimSpace(value)
	if normalized == "" {
		return CRS{}, nil
	}
	if strings.HasPrefix(normalized, "+") {
		return CRS{Proj4: normalized}, nil
	}
	normalized = strings.TrimPrefix(strings.ToUpper(normalized), "EPSG:")
	code, err := strconv.Atoi(normalized)
	if err != nil || code <= 0 {
		return CRS{}, fmt.Errorf("invalid crs identifier %q", value)
	}
	return EPSGCode(code), nil
}

package data

// Contains data of a point cloud return, namely X,Y,Z coords in projected units,
// Intensity, Classification and the return numbering of the pulse
type Point struct {
	X               float64
	Y               float64
	Z               float64
	Intensity       uint16
	HasIntensity    bool
	Classification  uint8
	ReturnNumber    uint8
	NumberOfReturns uint8
}

// Builds a new Point from the given coordinates, classification and return values
func NewPoint(X, Y, Z float64, Classification, ReturnNumber, NumberOfReturns uint8) Point {
	return Point{
		X:               X,
		Y:               Y,
		Z:               Z,
		Classification:  Classification,
		ReturnNumber:    ReturnNumber,
		NumberOfReturns: NumberOfReturns,
	}
}

// WithIntensity returns a copy of the point carrying the given intensity value
func (p Point) WithIntensity(intensity uint16) Point {
	p.Intensity = intensity
	p.HasIntensity = true
	return p
}

// IsFirstReturn reports whether the point is the first return of its pulse.
// Return number 0 is produced by some writers for single return sensors and counts as first.
func (p Point) IsFirstReturn() bool {
	return p.ReturnNumber <= 1
}

// IsLastReturn reports whether the point is the last return of its pulse
func (p Point) IsLastReturn() bool {
	return p.NumberOfReturns == 0 || p.ReturnNumber >= p.NumberOfReturns
}

package parallel

// WorkUnit is a half open range [Start, End) of rows, cells or points
type WorkUnit struct {
	Start int
	End   int
}

func (w WorkUnit) Len() int {
	return w.End - w.Start
}

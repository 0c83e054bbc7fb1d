package grid

import (
	"sort"
	"strings"
)

// Product names a derived raster
type Product string

const (
	ProductDTM     Product = "DTM"
	ProductDSM     Product = "DSM"
	ProductCHM     Product = "CHM"
	ProductSlope   Product = "SLOPE"
	ProductAspect  Product = "ASPECT"
	ProductDensity Product = "DENSITY"
)

// Provenance records how a grid was produced. It is metadata only.
type Provenance struct {
	Product    Product           `json:"product"`
	Source     string            `json:"source"`
	Filters    []string          `json:"filters,omitempty"`
	Algorithm  string            `json:"algorithm"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Inputs     []Product         `json:"inputs,omitempty"`
}

// Describe renders the provenance on one line with parameters in key order
func (p Provenance) Describe() string {
	var sb strings.Builder
	sb.WriteString(string(p.Product))
	sb.WriteString(" from ")
	sb.WriteString(p.Source)
	sb.WriteString(" by ")
	sb.WriteString(p.Algorithm)
	if len(p.Parameters) > 0 {
		keys := make([]string, 0, len(p.Parameters))
		for k := range p.Parameters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(k + "=" + p.Parameters[k])
		}
		sb.WriteString("]")
	}
	if len(p.Filters) > 0 {
		sb.WriteString(" filtered by ")
		sb.WriteString(strings.Join(p.Filters, " then "))
	}
	return sb.String()
}

// Derived is a grid together with its provenance
type Derived struct {
	*Grid
	Provenance Provenance
}

func NewDerived(g *Grid, provenance Provenance) *Derived {
	return &Derived{Grid: g, Provenance: provenance}
}

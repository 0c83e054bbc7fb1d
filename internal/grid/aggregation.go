package grid

import (
	"fmt"
	"strings"
)

// Aggregation reduces the points falling in one cell to a value
type Aggregation string

const (
	AggregationCount          Aggregation = "COUNT"
	AggregationMax            Aggregation = "MAX"
	AggregationMin            Aggregation = "MIN"
	AggregationMean           Aggregation = "MEAN"
	AggregationFirstReturnMax Aggregation = "FIRST-RETURN-MAX"
)

var aggregations = []Aggregation{
	AggregationCount,
	AggregationMax,
	AggregationMin,
	AggregationMean,
	AggregationFirstReturnMax,
}

func (a Aggregation) String() string {
	return string(a)
}

func (a Aggregation) IsValid() bool {
	for _, known := range aggregations {
		if a == known {
			return true
		}
	}
	return false
}

// ParseAggregation accepts the aggregation names case insensitively, with '-' or '_'
func ParseAggregation(value string) (Aggregation, error) {
	normalized := Aggregation(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(value)), "_", "-"))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("unrecognized aggregation %q", value)
}

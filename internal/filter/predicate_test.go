package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ecopia-map/als_raster/internal/data"
)

func TestClassificationPredicates(t *testing.T) {
	ground := data.NewPoint(0, 0, 1, 2, 1, 1)
	overlap := data.NewPoint(0, 0, 1, 22, 1, 1)

	assert.True(t, ClassificationIn(2).Match(ground))
	assert.False(t, ClassificationIn(2).Match(overlap))
	assert.True(t, ClassificationNotIn(22, 23).Match(ground))
	assert.False(t, ClassificationNotIn(23, 22).Match(overlap))
	assert.Equal(t, "class not in {22,23}", ClassificationNotIn(23, 22).String())
	assert.True(t, ClassificationNotIn().Match(overlap), "empty exclusion set keeps everything")
}

func TestReturnAndElevationPredicates(t *testing.T) {
	first := data.NewPoint(0, 0, 80, 5, 1, 3)
	last := data.NewPoint(0, 0, 81, 5, 3, 3)

	assert.True(t, FirstReturn().Match(first))
	assert.False(t, FirstReturn().Match(last))
	assert.True(t, LastReturn().Match(last))
	assert.True(t, ReturnNumber(3).Match(last))

	assert.True(t, ZAtMost(80).Match(first))
	assert.False(t, ZBelow(80).Match(first))
	assert.False(t, ZAtMost(80).Match(last))
}

func TestComposition(t *testing.T) {
	p := data.NewPoint(5, 5, 10, 2, 1, 1)
	q := data.NewPoint(50, 5, 10, 5, 2, 2)
	area := Within(data.Bounds{XMin: 0, YMin: 0, XMax: 10, YMax: 10})

	groundInArea := And(ClassificationIn(2), area)
	assert.True(t, groundInArea.Match(p))
	assert.False(t, groundInArea.Match(q))

	either := Or(ClassificationIn(2), ReturnNumber(2))
	assert.True(t, either.Match(p))
	assert.True(t, either.Match(q))

	assert.False(t, Not(area).Match(p))
	assert.True(t, Not(area).Match(q))

	assert.False(t, Or().Match(p))
	assert.True(t, And().Match(p))
	assert.True(t, Or(All(), ClassificationIn(9)).Match(q))
	assert.Equal(t, "class in {2}", And(All(), ClassificationIn(2)).String())
	assert.Equal(t, "NOT (class in {2})", And(Not(ClassificationIn(2)), All()).String())
	assert.Equal(t, "(class in {2}) OR (return == 2)", either.String())
}

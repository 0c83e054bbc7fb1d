package offset_elevation_corrector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrectElevation(t *testing.T) {
	corrector := NewOffsetElevationCorrector(-47.5)
	assert.Equal(t, 352.5, corrector.CorrectElevation(2600000, 1200000, 400))

	identity := NewOffsetElevationCorrector(0)
	assert.Equal(t, 12.25, identity.CorrectElevation(0, 0, 12.25))
}

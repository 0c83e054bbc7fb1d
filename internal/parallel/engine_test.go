package parallel

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumWorkers(t *testing.T) {
	assert.Equal(t, 3, Engine{Workers: 3}.NumWorkers())

	expected := int(0.8 * float64(runtime.NumCPU()))
	if expected < 1 {
		expected = 1
	}
	assert.Equal(t, expected, Engine{}.NumWorkers())
	assert.Equal(t, expected, DefaultEngine().NumWorkers())
	assert.GreaterOrEqual(t, Engine{MaxFraction: 0.01}.NumWorkers(), 1)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultEngine().Validate())
	assert.Error(t, Engine{Workers: -1}.Validate())
	assert.Error(t, Engine{MaxFraction: 1.5}.Validate())
}

func TestForEachVisitsEveryIndexOnce(t *testing.T) {
	const total = 10007
	visits := make([]int32, total)

	err := Engine{Workers: 4}.ForEach(context.Background(), total, 97, func(unit WorkUnit) error {
		for i := unit.Start; i < unit.End; i++ {
			atomic.AddInt32(&visits[i], 1)
		}
		return nil
	})

	require.NoError(t, err)
	for i, v := range visits {
		require.EqualValues(t, 1, v, "index %d", i)
	}
}

func TestForEachReturnsConsumerError(t *testing.T) {
	boom := errors.New("boom")
	var processed int32

	err := Engine{Workers: 2}.ForEach(context.Background(), 1000, 1, func(unit WorkUnit) error {
		atomic.AddInt32(&processed, 1)
		if unit.Start == 10 {
			return boom
		}
		return nil
	})

	require.ErrorIs(t, err, boom)
	assert.Less(t, atomic.LoadInt32(&processed), int32(1000))
}

func TestForEachHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := DefaultEngine().ForEach(ctx, 100, 10, func(WorkUnit) error {
		called = true
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestForEachRowEmpty(t *testing.T) {
	err := DefaultEngine().ForEachRow(context.Background(), 0, func(WorkUnit) error {
		t.Fatal("no rows expected")
		return nil
	})
	assert.NoError(t, err)
}

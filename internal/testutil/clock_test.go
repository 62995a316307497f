package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWallClock_Frozen(t *testing.T) {
	clock := MustWallClock("2026-02-03T09:00:00")

	first := clock.Now()
	time.Sleep(2 * time.Millisecond)
	assert.Equal(t, first, clock.Now())
	assert.Equal(t, 9, first.Hour())
}

func TestWallClock_Advance(t *testing.T) {
	clock := MustWallClock("2026-02-03T09:00:00")

	clock.Advance(4 * time.Hour)
	assert.Equal(t, 13, clock.Now().Hour())

	clock.Advance(12 * time.Hour)
	assert.Equal(t, 4, clock.Now().Day())
}

func TestWallClock_Set(t *testing.T) {
	clock := MustWallClock("2026-02-03T09:00:00")
	clock.Set(MustLocalTime("2026-01-01T00:00:00"))

	assert.Equal(t, time.January, clock.Now().Month())
}

func TestWallClock_ThreadSafe(t *testing.T) {
	clock := MustWallClock("2026-02-03T00:00:00")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Advance(time.Minute)
			_ = clock.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, clock.Now().Minute())
}

func TestMustLocalTime_Panics(t *testing.T) {
	assert.Panics(t, func() { MustLocalTime("not a time") })
}

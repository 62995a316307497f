package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stepsync/internal/dates"
	"github.com/roach88/stepsync/internal/model"
)

func TestKeyedLocks_ExclusivePerKey(t *testing.T) {
	k := newKeyedLocks()
	key := model.EntryKey{Owner: 1, Date: dates.MustParse("2026-02-03")}

	unlock, err := k.lock(context.Background(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.lock(ctx, key)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := k.lock(context.Background(), model.EntryKey{Owner: 1, Date: dates.MustParse("2026-02-02")})
	require.NoError(t, err)
	other()

	unlock()
	again, err := k.lock(context.Background(), key)
	require.NoError(t, err)
	again()

	assert.Zero(t, k.size(), "idle locks are dropped")
}

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReal_NowIsUTC(t *testing.T) {
	now := Real{}.Now()
	require.Equal(t, time.UTC, now.Location())
}

func TestFake_AdvanceAndSet(t *testing.T) {
	base := time.Date(2025, 11, 5, 15, 0, 0, 0, time.UTC)
	clk := NewFake(base)

	require.Equal(t, base, clk.Now())

	clk.Advance(90 * time.Second)
	require.Equal(t, base.Add(90*time.Second), clk.Now())

	later := base.Add(time.Hour)
	clk.Set(later)
	require.Equal(t, later, clk.Now())
}

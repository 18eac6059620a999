package parallel

import (
	"sync/atomic"
	"testing"
)

func TestFor_CoversAllIndices(t *testing.T) {
	for _, cfg := range []Config{
		{Enabled: false},
		{Enabled: true, NumWorkers: 4, MinPerCall: 2},
		DefaultConfig(),
	} {
		var sum atomic.Int64
		For(100, func(i int) {
			sum.Add(int64(i))
		}, cfg)
		if got := sum.Load(); got != 4950 {
			t.Errorf("cfg %+v: sum = %d, want 4950", cfg, got)
		}
	}
}

func TestFor_Empty(t *testing.T) {
	called := false
	For(0, func(int) { called = true }, DefaultConfig())
	if called {
		t.Error("f called for n=0")
	}
}

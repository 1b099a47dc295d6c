package memory_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/tempuscache/expirekv/memory"
	"github.com/tempuscache/expirekv/mutation"
	"github.com/tempuscache/expirekv/value"
)

func BenchmarkSet(b *testing.B) {
	ctx := context.Background()
	back := memory.New()
	defer back.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = back.Set(ctx, "bench", strconv.Itoa(i), value.Number(int64(i)))
	}
}

func BenchmarkGetHit(b *testing.B) {
	ctx := context.Background()
	back := memory.New()
	defer back.Close()
	_ = back.Set(ctx, "bench", "k", value.Number(1))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = back.Get(ctx, "bench", "k")
	}
}

func BenchmarkMutateIncr(b *testing.B) {
	ctx := context.Background()
	back := memory.New()
	defer back.Close()

	prog := mutation.Program{mutation.Incr(1)}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = back.Mutate(ctx, "bench", "counter", prog)
	}
}

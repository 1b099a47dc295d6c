package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tempuscache/expirekv"
	"github.com/tempuscache/expirekv/boltkv"
	"github.com/tempuscache/expirekv/memory"
	"github.com/tempuscache/expirekv/mutation"
	"github.com/tempuscache/expirekv/value"
)

func main() {
	ctx := context.Background()

	fmt.Println("== in-memory backend ==")
	runMemoryDemo(ctx)

	fmt.Println("== persistent (bbolt) backend ==")
	if err := runBoltDemo(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "bolt demo failed:", err)
		os.Exit(1)
	}
}

func runMemoryDemo(ctx context.Context) {
	back := memory.New(memory.WithShardCount(4))
	defer back.Close()

	f := expirekv.New(back).Scope("sessions")

	_ = f.SetExpiring(ctx, "token-1", value.String("alice"), 2*time.Second)
	if s, found, _ := expirekv.GetAs[string](ctx, f, "token-1"); found {
		fmt.Printf("token-1 belongs to %q\n", s)
	}

	counters := expirekv.New(back).Scope("counters")
	result, _ := counters.Mutate(ctx, "visits", mutation.Program{mutation.Incr(1)})
	fmt.Println("visits after first increment:", result)
	result, _ = counters.Mutate(ctx, "visits", mutation.Program{mutation.Incr(1)})
	fmt.Println("visits after second increment:", result)

	time.Sleep(3 * time.Second)
	if _, found, _ := f.Get(ctx, "token-1"); !found {
		fmt.Println("token-1 expired as expected")
	}
}

func runBoltDemo(ctx context.Context) error {
	dir, err := os.MkdirTemp("", "expirekv-demo")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	back, err := boltkv.NewWithConfig(boltkv.Config{
		Path:            filepath.Join(dir, "demo.db"),
		PerformDeletion: true,
		ScanDBOnStart:   true,
	})
	if err != nil {
		return err
	}
	defer back.Close()

	f := expirekv.New(back).Scope("jobs")
	if err := f.PushMultiple(ctx, "queue", []value.Value{
		value.String("build"), value.String("test"), value.String("deploy"),
	}); err != nil {
		return err
	}

	items, err := expirekv.GetRangeAs[string](ctx, f, "queue", 0, -1)
	if err != nil {
		return err
	}
	fmt.Println("queued jobs:", items)

	next, found, err := expirekv.PopAs[string](ctx, f, "queue")
	if err != nil {
		return err
	}
	if found {
		fmt.Println("popped job:", next)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	promadapter "github.com/luckysori/xtra/adapters/prometheus"
	"github.com/luckysori/xtra/core/actor"
)

// === Config ===

var (
	logLevel   = slog.LevelInfo
	N          = getEnvInt("N", 200_000) // messages per producer
	producers  = getEnvInt("P", 4)
	batchSize  = getEnvInt("B", 50_000)
	mode       = getEnv("MODE", "request") // notify | request | async
	concurrent = getEnvBool("ASYNC_CONCURRENT", false)
	maxTasks   = getEnvInt("MAX_TASKS", 32)
	promAddr   = getEnv("PROM_ADDR", "") // e.g. :2121
)

func getEnvBool(key string, fallback bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	if v == "1" || strings.ToLower(v) == "true" {
		return true
	}
	return false
}

func getEnv(key, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, fmt.Sprintf("%d", fallback)))
	if err != nil {
		return fallback
	}
	return v
}

// === Actor ===

type Sink struct {
	received int
	sum      int64
}

type (
	Put      struct{ V int64 }
	AsyncPut struct{ V int64 }
	Stats    struct{}

	StatsResult struct {
		Received int
		Sum      int64
	}
)

func (m Put) Handle(_ *actor.Context[*Sink], s *Sink) int {
	s.received++
	s.sum += m.V
	return s.received
}

// HandleAsync records the message on the loop and echoes it from the task.
func (m AsyncPut) HandleAsync(_ *actor.Context[*Sink], s *Sink) actor.Async[int64] {
	s.received++
	s.sum += m.V
	return func(context.Context) int64 { return m.V }
}

func (Stats) Handle(_ *actor.Context[*Sink], s *Sink) StatsResult {
	return StatsResult{Received: s.received, Sum: s.sum}
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	fmt.Printf("     Mode: %s\n", mode)
	fmt.Printf("Producers: %d x %d messages\n", producers, N)
	fmt.Printf("    Async: concurrent=%s\n", strconv.FormatBool(concurrent))

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	reg := prometheus.NewRegistry()
	metrics := promadapter.NewActorMetrics(reg)
	if promAddr != "" {
		srv := &http.Server{Addr: promAddr, Handler: promadapter.Handler(reg)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("prometheus server error", slog.Any("error", err))
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	asyncMode := actor.AsyncSequential
	if concurrent {
		asyncMode = actor.AsyncConcurrent
	}
	loop := actor.Start(&Sink{}, actor.Options{
		ID:                 "sink",
		Context:            ctx,
		Logger:             log,
		Metrics:            metrics,
		AsyncMode:          asyncMode,
		MaxConcurrentTasks: maxTasks,
	})
	addr := loop.Address()

	// === START ===

	log.Info("==================================")
	log.Info("Starting ...")

	var (
		sent     atomic.Int64
		printMu  sync.Mutex
		lastTime = time.Now()
		startAt  = time.Now()
		total    = int64(N * producers)
	)

	progress := func() {
		n := sent.Add(1)
		if n%int64(batchSize) != 0 {
			return
		}
		printMu.Lock()
		defer printMu.Unlock()
		mu := getMemUsage()
		now := time.Now()
		took := now.Sub(lastTime)
		fmt.Printf(" | %8d msgs | %6d ms | %9d msgs/s | (%d / %d) MiB mem (sys) |\n", n, took.Milliseconds(), int(float64(batchSize)/took.Seconds()), mu.Alloc/1024/1024, mu.Sys/1024/1024)
		lastTime = now
	}

	g, gctx := errgroup.WithContext(ctx)
	for p := range producers {
		g.Go(func() error {
			a := addr.Clone()
			defer a.Release()
			for i := range N {
				v := int64(p*N + i)
				if err := send(gctx, a, v); err != nil {
					return fmt.Errorf("producer %d: %w", p, err)
				}
				progress()
			}
			return nil
		})
	}
	checkErr(g.Wait())

	stats, err := actor.Ask(ctx, addr, Stats{})
	checkErr(err)

	addr.Release()
	<-loop.Done()

	// === stats ===
	println("")
	println("==========================================")

	took := time.Since(startAt)
	runtime.GC()

	fmt.Printf("total runtime: %.3f seconds\n", took.Seconds())
	fmt.Printf("     received: %d / %d\n", stats.Received, total)
	fmt.Printf("          sum: %d (want %d)\n", stats.Sum, total*(total-1)/2)
	fmt.Printf("  avg. msgs/s: %d\n", int(float64(total)/took.Seconds()))

	if int64(stats.Received) != total {
		os.Exit(1)
	}
}

func send(ctx context.Context, a *actor.Address[*Sink], v int64) error {
	switch mode {
	case "notify":
		return actor.DoSend(a, Put{V: v})
	case "async":
		got, err := actor.AskAsync(ctx, a, AsyncPut{V: v})
		if err == nil && got != v {
			err = fmt.Errorf("got %d, want %d", got, v)
		}
		return err
	default:
		_, err := actor.Ask(ctx, a, Put{V: v})
		return err
	}
}

// === stats helpers ===

type MemUsage struct {
	Alloc      uint64 // bytes allocated and not yet freed (heap)
	TotalAlloc uint64 // cumulative bytes allocated
	Sys        uint64 // total bytes obtained from OS
	NumGC      uint32 // gc cycles
}

func getMemUsage() MemUsage {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemUsage{
		Alloc:      m.Alloc,
		TotalAlloc: m.TotalAlloc,
		Sys:        m.Sys,
		NumGC:      m.NumGC,
	}
}

// === Helpers ===

func checkErr(err error) {
	if err != nil {
		panic(err)
	}
}

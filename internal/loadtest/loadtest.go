// Package loadtest drives a running logmon hub with many concurrent
// subscribers and measures delivery latency.
//
// Each subscriber reads hub messages for the configured duration. The
// latency of a message is the time between its timestamp and its arrival.
// An optional writer appends lines to a log file inside a watched root so
// the whole pipeline, from change detection to fan-out, is exercised.
package loadtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agentlogs/logmon/internal/dashboard"
	"github.com/agentlogs/logmon/internal/logging"
)

// Config describes a load test run.
type Config struct {
	// URL is the hub endpoint, e.g. ws://localhost:3001/ws
	URL string

	// Clients is the number of concurrent subscribers (default: 10)
	Clients int

	// Duration bounds the run (default: 10s)
	Duration time.Duration

	// WriteFile, when set, receives one appended line every WriteInterval
	WriteFile     string
	WriteInterval time.Duration

	// Logger for run activity
	Logger *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.Clients <= 0 {
		c.Clients = 10
	}
	if c.Duration <= 0 {
		c.Duration = 10 * time.Second
	}
	if c.WriteInterval <= 0 {
		c.WriteInterval = 50 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = logging.L().Named("loadtest")
	}
	return c
}

// LatencyStats captures delivery latency across all subscribers.
type LatencyStats struct {
	Min           time.Duration
	Max           time.Duration
	Mean          time.Duration
	P50           time.Duration // Median
	P95           time.Duration
	P99           time.Duration
	TotalMessages int
	Errors        int
	Durations     []time.Duration
}

// Result is the outcome of a run.
type Result struct {
	Connected    int
	LinesWritten int
	ByType       map[dashboard.MessageType]int
	Stats        *LatencyStats
}

// Run connects cfg.Clients subscribers and reads until cfg.Duration elapses
// or ctx is cancelled.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	if cfg.URL == "" {
		return nil, errors.New("loadtest: hub URL is required")
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var (
		mu        sync.Mutex
		durations []time.Duration
		byType    = make(map[dashboard.MessageType]int)
		connected int
		errCount  int
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Clients; i++ {
		clientID := i
		g.Go(func() error {
			conn, _, err := websocket.Dial(gctx, cfg.URL, nil)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("client %d failed to connect: %w", clientID, err)
			}
			defer conn.Close(websocket.StatusNormalClosure, "")
			conn.SetReadLimit(-1)

			mu.Lock()
			connected++
			mu.Unlock()

			local := make([]time.Duration, 0, 64)
			localTypes := make(map[dashboard.MessageType]int)
			localErrs := 0
			defer func() {
				mu.Lock()
				durations = append(durations, local...)
				for typ, n := range localTypes {
					byType[typ] += n
				}
				errCount += localErrs
				mu.Unlock()
			}()

			for {
				_, data, err := conn.Read(gctx)
				if err != nil {
					if gctx.Err() != nil {
						return nil
					}
					cfg.Logger.Warn("Subscriber read failed", zap.Int("client", clientID), zap.Error(err))
					localErrs++
					return nil
				}
				received := time.Now()

				var msg dashboard.Message
				if err := json.Unmarshal(data, &msg); err != nil {
					localErrs++
					continue
				}
				localTypes[msg.Type]++
				switch msg.Type {
				case dashboard.MessageTypeLogNew, dashboard.MessageTypeLogUpdate, dashboard.MessageTypeLogDelete:
					if !msg.Timestamp.IsZero() {
						local = append(local, received.Sub(msg.Timestamp))
					}
				}
			}
		})
	}

	written := 0
	if cfg.WriteFile != "" {
		g.Go(func() error {
			n, err := appendLines(gctx, cfg.WriteFile, cfg.WriteInterval)
			written = n
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{
		Connected:    connected,
		LinesWritten: written,
		ByType:       byType,
		Stats:        computeLatencyStats(durations),
	}
	result.Stats.Errors = errCount
	cfg.Logger.Info("Load test complete",
		zap.Int("clients", connected),
		zap.Int("messages", result.Stats.TotalMessages),
		zap.Int("lines_written", written))
	return result, nil
}

// appendLines writes a numbered line to path every interval until ctx ends.
func appendLines(ctx context.Context, path string, interval time.Duration) (int, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	n := 0
	for {
		select {
		case <-ctx.Done():
			return n, nil
		case t := <-ticker.C:
			if _, err := fmt.Fprintf(f, "{\"seq\":%d,\"at\":%q}\n", n, t.UTC().Format(time.RFC3339Nano)); err != nil {
				return n, fmt.Errorf("failed to append to %s: %w", path, err)
			}
			n++
		}
	}
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return &LatencyStats{
		Min:           sorted[0],
		Max:           sorted[len(sorted)-1],
		Mean:          sum / time.Duration(len(durations)),
		P50:           sorted[len(sorted)*50/100],
		P95:           sorted[len(sorted)*95/100],
		P99:           sorted[len(sorted)*99/100],
		TotalMessages: len(durations),
		Durations:     sorted,
	}
}

// PrintStats formats latency statistics to w.
func (s *LatencyStats) PrintStats(w io.Writer) {
	fmt.Fprintf(w, "Latency Statistics:\n")
	fmt.Fprintf(w, "  Total Messages: %d\n", s.TotalMessages)
	fmt.Fprintf(w, "  Errors:         %d\n", s.Errors)
	fmt.Fprintf(w, "  Min:            %v\n", s.Min)
	fmt.Fprintf(w, "  P50 (Median):   %v\n", s.P50)
	fmt.Fprintf(w, "  Mean:           %v\n", s.Mean)
	fmt.Fprintf(w, "  P95:            %v\n", s.P95)
	fmt.Fprintf(w, "  P99:            %v\n", s.P99)
	fmt.Fprintf(w, "  Max:            %v\n", s.Max)
}

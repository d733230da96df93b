package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/session"
)

// streamResult captures one request's outcome for the report.
type streamResult struct {
	Feature   string
	Status    string // done | error | timeout | failed
	Frames    int
	TTFB      time.Duration
	Streaming time.Duration
	Total     time.Duration
	Err       error
}

// NewBenchCommand constructs the `bench` subcommand: a load harness that
// opens many concurrent session streams and reports latency percentiles.
//
// Each worker requests a unique chat so every stream starts a fresh session;
// features are round-robined over --features distinct identifiers. With
// --duration each worker keeps re-requesting until the clock runs out,
// otherwise every worker runs exactly once.
func NewBenchCommand(baseURL BaseURLFunc) *cobra.Command {
	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "Open concurrent session streams and report latencies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			streams, _ := cmd.Flags().GetInt("streams")
			features, _ := cmd.Flags().GetInt("features")
			duration, _ := cmd.Flags().GetDuration("duration")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			if streams <= 0 {
				return fmt.Errorf("--streams must be positive")
			}
			if features <= 0 {
				features = 1
			}

			base := baseURL()
			httpc := &http.Client{}
			pctx, pcancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			err := checkHealth(pctx, httpc, base)
			pcancel()
			if err != nil {
				return err
			}

			runID := uuid.NewString()[:8]
			var (
				mu      sync.Mutex
				results []streamResult
				seq     atomic.Int64
			)
			deadline := time.Now().Add(duration)
			startAll := time.Now()

			g, gctx := errgroup.WithContext(cmd.Context())
			for w := 0; w < streams; w++ {
				g.Go(func() error {
					for {
						n := seq.Add(1)
						feature := fmt.Sprintf("feature-%d", int(n-1)%features)
						chat := fmt.Sprintf("chat-%s-%d", runID, n)
						res := runOneStream(gctx, httpc, base, feature, chat, timeout)
						mu.Lock()
						results = append(results, res)
						mu.Unlock()
						if duration <= 0 || !time.Now().Before(deadline) || gctx.Err() != nil {
							return nil
						}
					}
				})
			}
			// Workers tally failures into results rather than returning them,
			// so one bad stream never cancels the round.
			_ = g.Wait()

			writeBenchReport(cmd.OutOrStdout(), results, time.Since(startAll))
			return nil
		},
	}
	benchCmd.Flags().Int("streams", 20, "Concurrent streams")
	benchCmd.Flags().Int("features", 4, "Distinct feature identifiers to round-robin over")
	benchCmd.Flags().Duration("duration", 0, "Keep re-requesting until this much time has passed (0 = one round)")
	benchCmd.Flags().Duration("timeout", 90*time.Second, "Per-stream ceiling")
	return benchCmd
}

// runOneStream opens a single session stream and consumes it to its end.
func runOneStream(ctx context.Context, httpc *http.Client, base, feature, chat string, timeout time.Duration) streamResult {
	res := streamResult{Feature: feature}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := openStream(ctx, httpc, base, feature, chat)
	if err != nil {
		res.Status, res.Err = "failed", err
		res.Total = time.Since(start)
		return res
	}
	defer func() { _ = resp.Body.Close() }()

	var (
		firstAt, lastAt time.Time
		terminal        frameClass
		rec             session.ErrorRecord
		ended           bool
	)
	err = readEvents(resp.Body, func(payload []byte) (bool, error) {
		now := time.Now()
		if res.Frames == 0 {
			firstAt = now
		}
		lastAt = now
		res.Frames++
		class, r := classifyFrame(payload)
		if class == frameMessage {
			return false, nil
		}
		terminal, rec, ended = class, r, true
		return true, nil
	})
	res.Total = time.Since(start)
	if res.Frames > 0 {
		res.TTFB = firstAt.Sub(start)
		res.Streaming = lastAt.Sub(firstAt)
	}
	switch {
	case err != nil:
		res.Status, res.Err = "failed", err
	case !ended:
		res.Status, res.Err = "failed", errors.New("stream ended without a terminal frame")
	case terminal == frameDone:
		res.Status = "done"
	case strings.Contains(rec.Error, "timeout"):
		res.Status = "timeout"
	default:
		res.Status, res.Err = "error", errors.New(rec.Error)
	}
	return res
}

// writeBenchReport prints counts, latency percentiles over completed
// streams, and a per-feature breakdown.
func writeBenchReport(w io.Writer, results []streamResult, elapsed time.Duration) {
	counts := map[string]int{}
	perFeature := map[string][]streamResult{}
	frames := 0
	var ttfbs, streamings, totals []time.Duration
	for _, r := range results {
		counts[r.Status]++
		perFeature[r.Feature] = append(perFeature[r.Feature], r)
		frames += r.Frames
		if r.Status == "done" {
			ttfbs = append(ttfbs, r.TTFB)
			streamings = append(streamings, r.Streaming)
			totals = append(totals, r.Total)
		}
	}

	fmt.Fprintf(w, "requests: %d  done: %d  error: %d  timeout: %d  failed: %d\n",
		len(results), counts["done"], counts["error"], counts["timeout"], counts["failed"])
	fmt.Fprintf(w, "elapsed: %s  frames: %d\n", elapsed.Round(time.Millisecond), frames)
	writeLatencyLine(w, "ttfb", ttfbs)
	writeLatencyLine(w, "streaming", streamings)
	writeLatencyLine(w, "total", totals)

	features := make([]string, 0, len(perFeature))
	for f := range perFeature {
		features = append(features, f)
	}
	sort.Strings(features)
	fmt.Fprintln(w, "per-feature:")
	for _, f := range features {
		rs := perFeature[f]
		done, sum := 0, time.Duration(0)
		for _, r := range rs {
			if r.Status == "done" {
				done++
				sum += r.Total
			}
		}
		avg := time.Duration(0)
		if done > 0 {
			avg = sum / time.Duration(done)
		}
		fmt.Fprintf(w, "  %-12s requests %-4d done %-4d avg_total %s\n",
			f, len(rs), done, avg.Round(time.Millisecond))
	}
}

func writeLatencyLine(w io.Writer, name string, ds []time.Duration) {
	if len(ds) == 0 {
		fmt.Fprintf(w, "%-9s (no completed streams)\n", name)
		return
	}
	sort.Slice(ds, func(i, j int) bool { return ds[i] < ds[j] })
	var sum time.Duration
	for _, d := range ds {
		sum += d
	}
	avg := sum / time.Duration(len(ds))
	r := func(d time.Duration) time.Duration { return d.Round(time.Millisecond) }
	fmt.Fprintf(w, "%-9s min %-8s avg %-8s max %-8s p50 %-8s p95 %-8s p99 %s\n",
		name, r(ds[0]), r(avg), r(ds[len(ds)-1]),
		r(percentile(ds, 50)), r(percentile(ds, 95)), r(percentile(ds, 99)))
}

// percentile reads from an already sorted slice using nearest-rank.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1)*p/100.0 + 0.5)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

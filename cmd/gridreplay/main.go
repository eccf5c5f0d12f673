package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Conceptual-Machines/beatgrid-api/internal/analysis"
	"github.com/Conceptual-Machines/beatgrid-api/internal/beatgrid"
	"github.com/Conceptual-Machines/beatgrid-api/internal/playback"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"

	speed         float64
	interval      time.Duration
	seekValues    []string
	defaultBPM    float64
	timeSignature int
	summaryOnly   bool
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gridreplay <result.json>",
	Short: "Replay a beat and chord analysis through the live grid follower",
	Long: `gridreplay builds the beat grid for an analysis result and plays it back
on a simulated clock, printing every highlighted cell change.

Examples:
  gridreplay result.json
  gridreplay result.json --speed 4 --interval 20ms
  gridreplay result.json --seek 12@1.5 --seek 3@4s
  gridreplay result.json --summary`,
	Version: version,
	Args:    cobra.ExactArgs(1),
	RunE:    runReplay,
}

func init() {
	rootCmd.Flags().Float64Var(&speed, "speed", 1.0, "Playback rate relative to real time")
	rootCmd.Flags().DurationVar(&interval, "interval", playback.DefaultPollInterval, "Polling interval of the follower")
	rootCmd.Flags().StringArrayVar(&seekValues, "seek", nil, "Jump to a cell during replay, as index@wall-seconds (repeatable)")
	rootCmd.Flags().Float64Var(&defaultBPM, "bpm", beatgrid.DefaultBPM, "Tempo used when the result has none")
	rootCmd.Flags().IntVar(&timeSignature, "time-signature", beatgrid.DefaultTimeSignature, "Beats per measure used when the result has none")
	rootCmd.Flags().BoolVar(&summaryOnly, "summary", false, "Print the grid layout and exit without replaying")
}

// scheduledSeek is a cell jump applied after a wall-clock delay
type scheduledSeek struct {
	After time.Duration
	Index int
}

func runReplay(cmd *cobra.Command, args []string) error {
	result, err := loadResult(args[0])
	if err != nil {
		return err
	}

	seeks, err := parseSeeks(seekValues)
	if err != nil {
		return err
	}

	grid := analysis.BuildGrid(result, analysis.Defaults{BPM: defaultBPM, TimeSignature: timeSignature})
	out := cmd.OutOrStdout()
	printSummary(out, grid)
	if summaryOnly || grid.Len() == 0 {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return replay(ctx, out, grid, seeks)
}

func loadResult(path string) (*analysis.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var result analysis.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &result, nil
}

// parseSeeks reads "index@delay" values. A bare number delay is in seconds.
func parseSeeks(values []string) ([]scheduledSeek, error) {
	seeks := make([]scheduledSeek, 0, len(values))
	for _, raw := range values {
		indexStr, afterStr, ok := strings.Cut(raw, "@")
		if !ok {
			return nil, fmt.Errorf("seek %q: expected index@delay", raw)
		}
		index, err := strconv.Atoi(strings.TrimSpace(indexStr))
		if err != nil || index < 0 {
			return nil, fmt.Errorf("seek %q: invalid cell index", raw)
		}
		after, err := parseDelay(strings.TrimSpace(afterStr))
		if err != nil {
			return nil, fmt.Errorf("seek %q: %w", raw, err)
		}
		seeks = append(seeks, scheduledSeek{After: after, Index: index})
	}
	sort.SliceStable(seeks, func(i, j int) bool { return seeks[i].After < seeks[j].After })
	return seeks, nil
}

func parseDelay(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative delay")
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid delay %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative delay")
	}
	return d, nil
}

func printSummary(w io.Writer, grid *beatgrid.Grid) {
	a := grid.Alignment
	fmt.Fprintf(w, "%d cells, %.1f BPM, %d beats per measure, first beat at %.3fs\n",
		grid.Len(), grid.BPM, grid.TimeSignature, grid.FirstDetectedBeatTime)
	fmt.Fprintf(w, "shift %d, padding %d, chord anchored %t\n", a.ShiftCount, a.PaddingCount, a.ChordAnchored)
	if summaryOnly {
		for i, cell := range grid.Cells {
			fmt.Fprintln(w, formatCell(grid, i, cell))
		}
	}
}

// replayEnd is the playback time after the last cell has had its beat
func replayEnd(grid *beatgrid.Grid) float64 {
	end := 0.0
	for _, cell := range grid.Cells {
		if cell.Timestamp != nil && *cell.Timestamp > end {
			end = *cell.Timestamp
		}
	}
	return end + grid.BeatDuration()
}

// lockedWriter serializes output from the follower and the seek scheduler
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func replay(ctx context.Context, out io.Writer, grid *beatgrid.Grid, seeks []scheduledSeek) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := &lockedWriter{w: out}

	tracker := playback.NewTracker(grid)
	clock := playback.NewSimulatedClock(speed)
	follower := playback.NewFollower(tracker, clock, interval)

	done := make(chan error, 1)
	clock.Play()
	go func() {
		done <- follower.Run(ctx, func(index int) {
			if index < 0 {
				fmt.Fprintf(w, "[%7.2fs] -\n", clock.CurrentTime())
				return
			}
			fmt.Fprintf(w, "[%7.2fs] %s\n", clock.CurrentTime(), formatCell(grid, index, grid.Cells[index]))
		})
	}()

	poll := interval
	if poll <= 0 {
		poll = playback.DefaultPollInterval
	}
	start := time.Now()
	end := replayEnd(grid)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case <-ticker.C:
			for len(seeks) > 0 && time.Since(start) >= seeks[0].After {
				applySeek(w, tracker, clock, seeks[0].Index)
				seeks = seeks[1:]
			}
			if clock.CurrentTime() >= end {
				cancel()
			}
		}
	}
}

func applySeek(w io.Writer, tracker *playback.Tracker, clock *playback.SimulatedClock, index int) {
	seekTime, ok := tracker.SeekToIndex(index)
	if !ok {
		fmt.Fprintf(w, "seek to cell %d ignored: cell cannot be highlighted\n", index)
		return
	}
	clock.Seek(seekTime)
	fmt.Fprintf(w, "seek to cell %d at %.2fs\n", index, seekTime)
}

func formatCell(grid *beatgrid.Grid, index int, cell beatgrid.GridCell) string {
	label := cell.Chord
	if cell.IsShift() {
		label = "·"
	}
	ts := "     -"
	if t, ok := grid.Timestamp(index); ok {
		ts = fmt.Sprintf("%6.2fs", t)
	}
	return fmt.Sprintf("cell %3d  %s  beat %d  %s", index, ts, cell.BeatNumber, label)
}

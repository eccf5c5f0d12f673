package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Conceptual-Machines/beatgrid-api/internal/analysis"
	"github.com/Conceptual-Machines/beatgrid-api/internal/beatgrid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAnalysisStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryAnalysisStore()
	key := analysis.Key{VideoID: "abc123", BeatModel: "beat-transformer", ChordModel: "chord-cnn-lstm"}

	_, err := store.Get(ctx, key)
	assert.True(t, errors.Is(err, ErrAnalysisNotFound))

	result := &analysis.Result{Beats: analysis.Beats{{Time: 0.5}}}
	saved, err := store.Save(ctx, key, result)
	require.NoError(t, err)
	assert.Equal(t, key, saved.Key)

	loaded, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, result, loaded.Result)

	// other model combinations are separate entries
	_, err = store.Get(ctx, analysis.Key{VideoID: "abc123", BeatModel: "madmom"})
	assert.ErrorIs(t, err, ErrAnalysisNotFound)

	require.NoError(t, store.Delete(ctx, key))
	assert.ErrorIs(t, store.Delete(ctx, key), ErrAnalysisNotFound)
}

func testGrid() *beatgrid.Grid {
	return beatgrid.BuildGrid(beatgrid.Analysis{
		Chords: []beatgrid.ChordSpan{{Chord: "C", BeatIndex: 0}, {Chord: "G", BeatIndex: 1}},
		Beats:  []beatgrid.BeatEvent{{Time: 0.5}, {Time: 1.0}},
		BPM:    120,
	})
}

func TestSessionRegistry_Lifecycle(t *testing.T) {
	registry := NewSessionRegistry(time.Minute)

	session := registry.Create(testGrid(), analysis.Key{VideoID: "abc123"}, "42")
	require.NotEmpty(t, session.ID)
	assert.Equal(t, 1, registry.Len())

	got, err := registry.Get(session.ID)
	require.NoError(t, err)
	assert.Same(t, session, got)
	assert.Equal(t, -1, got.Tracker.Current())
	assert.Equal(t, "42", got.UserID)
	assert.True(t, got.OwnedBy("42"))
	assert.False(t, got.OwnedBy("7"))

	require.NoError(t, registry.Delete(session.ID))
	_, err = registry.Get(session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, registry.Delete(session.ID), ErrSessionNotFound)
}

func TestSessionRegistry_Expiry(t *testing.T) {
	now := time.Unix(1700000000, 0)
	registry := NewSessionRegistry(time.Minute)
	registry.now = func() time.Time { return now }

	idle := registry.Create(testGrid(), analysis.Key{}, "")
	active := registry.Create(testGrid(), analysis.Key{}, "")

	now = now.Add(45 * time.Second)
	_, err := registry.Get(active.ID)
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, registry.Sweep())
	assert.Equal(t, 1, registry.Len())

	_, err = registry.Get(idle.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	now = now.Add(2 * time.Minute)
	_, err = registry.Get(active.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0, registry.Len())
}

func TestSessionRegistry_RunStopsOnCancel(t *testing.T) {
	registry := NewSessionRegistry(time.Nanosecond)
	registry.Create(testGrid(), analysis.Key{}, "")

	ctx, cancel := context.WithCancel(context.Background())
	swept := make(chan int, 16)
	done := make(chan struct{})
	go func() {
		registry.Run(ctx, time.Millisecond, func(live int) { swept <- live })
		close(done)
	}()

	select {
	case live := <-swept:
		assert.Equal(t, 0, live)
	case <-time.After(5 * time.Second):
		t.Fatal("janitor never swept")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("janitor did not stop")
	}
}

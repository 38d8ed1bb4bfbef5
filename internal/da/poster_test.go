package da_test

import (
	"context"
	"testing"
	"time"

	"github.com/fontana-rollup/fontana/internal/da"
	"github.com/fontana-rollup/fontana/internal/da/mockda"
	"github.com/fontana-rollup/fontana/internal/ledgertypes"
	"github.com/fontana-rollup/fontana/internal/storage"
)

func insertBlock(t *testing.T, s *storage.Store, height uint64) *ledgertypes.BlockRecord {
	t.Helper()
	rec := &ledgertypes.BlockRecord{Header: ledgertypes.BlockHeader{Height: height, Timestamp: int64(height)}, LocalCommitted: true}
	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tx.InsertBlock(rec); err != nil {
		t.Fatalf("InsertBlock: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return rec
}

func TestPosterMarksBlocksDACommittedInOrder(t *testing.T) {
	s, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	insertBlock(t, s, 1)
	insertBlock(t, s, 2)

	client := mockda.New()
	base, err := da.ParseBaseNamespace("0123456789abcdef")
	if err != nil {
		t.Fatalf("ParseBaseNamespace: %v", err)
	}
	poster := da.NewPoster(client, s, da.PosterConfig{BaseNamespace: base, PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	go poster.Run(ctx)

	deadline := time.Now().Add(400 * time.Millisecond)
	for time.Now().Before(deadline) {
		uncommitted, err := s.FetchUncommittedBlocks()
		if err != nil {
			t.Fatalf("FetchUncommittedBlocks: %v", err)
		}
		if len(uncommitted) == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	uncommitted, err := s.FetchUncommittedBlocks()
	if err != nil {
		t.Fatalf("FetchUncommittedBlocks: %v", err)
	}
	if len(uncommitted) != 0 {
		t.Fatalf("expected both blocks to be da-committed, %d remain", len(uncommitted))
	}

	h1, err := s.GetBlockHeader(1)
	if err != nil {
		t.Fatalf("GetBlockHeader: %v", err)
	}
	_ = h1
}

func TestPosterStopsAtFirstFailurePreservingOrder(t *testing.T) {
	s, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	insertBlock(t, s, 1)
	insertBlock(t, s, 2)

	client := mockda.New()
	client.FailNextN = 1
	base, err := da.ParseBaseNamespace("0123456789abcdef")
	if err != nil {
		t.Fatalf("ParseBaseNamespace: %v", err)
	}
	poster := da.NewPoster(client, s, da.PosterConfig{BaseNamespace: base, PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	poster.Run(ctx)

	uncommitted, err := s.FetchUncommittedBlocks()
	if err != nil {
		t.Fatalf("FetchUncommittedBlocks: %v", err)
	}
	if len(uncommitted) == 0 {
		t.Fatalf("expected at least the failed block to remain uncommitted this soon")
	}
	if uncommitted[0].Header.Height != 1 {
		t.Fatalf("expected height 1 to be the oldest remaining uncommitted block, got %d", uncommitted[0].Header.Height)
	}
}

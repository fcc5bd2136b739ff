package app_test

import (
	"context"
	"testing"
	"time"

	"quizmaster-service/internal/app"
)

func TestLeaderboardHubSubscribeAndRefresh(t *testing.T) {
	ctx := context.Background()
	f := newStatsFixture(t)
	hub := app.NewLeaderboardHub(f.stats)

	f.attempt(t, f.userIDs[0], f.mathID, 5)

	updates, cancel, err := hub.Subscribe(ctx, f.mathID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	snapshot := <-updates
	if len(snapshot.Entries) != 1 || snapshot.Entries[0].Score != 5 {
		t.Fatalf("expected primed snapshot, got %+v", snapshot.Entries)
	}

	f.attempt(t, f.userIDs[1], f.mathID, 8)
	if err := hub.Refresh(ctx, f.mathID); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	select {
	case update := <-updates:
		if len(update.Entries) != 2 || update.Entries[0].Score != 8 {
			t.Fatalf("expected refreshed leaderboard, got %+v", update.Entries)
		}
	case <-time.After(time.Second):
		t.Fatalf("no update received")
	}
}

func TestLeaderboardHubDropsStaleForSlowSubscriber(t *testing.T) {
	ctx := context.Background()
	f := newStatsFixture(t)
	hub := app.NewLeaderboardHub(f.stats)

	updates, cancel, err := hub.Subscribe(ctx, f.mathID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	// Never read the initial snapshot; pile up refreshes past the buffer.
	for i := 0; i < 20; i++ {
		f.attempt(t, f.userIDs[i%3], f.mathID, float64(i))
		if err := hub.Refresh(ctx, f.mathID); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}

	// The channel still delivers; stale snapshots were dropped, not the
	// broadcaster blocked.
	select {
	case <-updates:
	case <-time.After(time.Second):
		t.Fatalf("subscriber starved")
	}
}

func TestLeaderboardHubRefreshWithoutSubscribers(t *testing.T) {
	f := newStatsFixture(t)
	hub := app.NewLeaderboardHub(f.stats)
	if err := hub.Refresh(context.Background(), f.mathID); err != nil {
		t.Fatalf("refresh with no subscribers should be a no-op, got %v", err)
	}
}

package app

import (
	"context"
	"sync"

	"quizmaster-service/internal/domain"
)

// LeaderboardHub fans quiz leaderboard snapshots out to websocket
// subscribers. Channels are buffered; a slow subscriber has its stale
// snapshot dropped so broadcasts never block.
type LeaderboardHub struct {
	stats *StatsService

	mu   sync.Mutex
	subs map[int64]map[chan domain.Leaderboard]struct{}
}

func NewLeaderboardHub(stats *StatsService) *LeaderboardHub {
	return &LeaderboardHub{
		stats: stats,
		subs:  make(map[int64]map[chan domain.Leaderboard]struct{}),
	}
}

// Subscribe returns a channel carrying leaderboard updates for a quiz,
// primed with the current snapshot. The caller must invoke cancel to
// avoid leaks.
func (h *LeaderboardHub) Subscribe(ctx context.Context, quizID int64) (<-chan domain.Leaderboard, func(), error) {
	initial, err := h.stats.QuizLeaderboard(ctx, quizID)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan domain.Leaderboard, 8)
	h.mu.Lock()
	if h.subs[quizID] == nil {
		h.subs[quizID] = make(map[chan domain.Leaderboard]struct{})
	}
	h.subs[quizID][ch] = struct{}{}
	h.mu.Unlock()

	ch <- initial

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[quizID]; ok {
			if _, subscribed := set[ch]; subscribed {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, quizID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel, nil
}

// Refresh recomputes the quiz leaderboard and pushes it to subscribers.
// Called after each successful submit; errors are the caller's to log.
func (h *LeaderboardHub) Refresh(ctx context.Context, quizID int64) error {
	h.mu.Lock()
	empty := len(h.subs[quizID]) == 0
	h.mu.Unlock()
	if empty {
		return nil
	}

	lb, err := h.stats.QuizLeaderboard(ctx, quizID)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[quizID] {
		select {
		case ch <- lb:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
	return nil
}

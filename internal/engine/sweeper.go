package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/QHanh/ChatbotHM/internal/domain"
	"github.com/QHanh/ChatbotHM/internal/store"
)

// sweeperNote is the system-authored log entry appended when an expired
// hand-off is reset.
const sweeperNote = "Dạ, phiên hỗ trợ với nhân viên đã kết thúc. Anh/chị cần em tư vấn thêm gì cứ nhắn cho em nha."

// Sweeper is the background daemon that expires stale hand-offs: any
// session stuck in human_calling or human_chatting past its deadline is
// reset to idle with its negativity counter cleared. This is the only
// mutation of session state not triggered by a request; it uses the same
// store discipline as a turn and never holds the lock across the sleep.
type Sweeper struct {
	store    *store.Store
	interval time.Duration
}

// NewSweeper creates a sweeper ticking every interval.
func NewSweeper(st *store.Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{store: st, interval: interval}
}

// Run blocks until ctx is cancelled, sweeping once per tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(time.Now())
		}
	}
}

// Sweep resets every session whose hand-off expired before now.
func (s *Sweeper) Sweep(now time.Time) {
	type target struct{ id string }
	var expired []target
	s.store.Range(func(id string, sess domain.Session) bool {
		if handOffExpired(sess, now) {
			expired = append(expired, target{id: id})
		}
		return true
	})

	for _, t := range expired {
		// Re-read under the store's discipline; the session may have moved
		// on since the snapshot.
		sess := s.store.Get(t.id)
		if !handOffExpired(sess, now) {
			continue
		}
		sess.Mode = domain.ModeIdle
		sess.NegativityCount = 0
		sess.HandoverDeadline = time.Time{}
		sess.Append("", sweeperNote)
		s.store.Commit(t.id, sess)
		sweeperResetsTotal.Inc()
		log.Info().Str("session_id", t.id).Msg("expired hand-off reset to idle")
	}
}

func handOffExpired(sess domain.Session, now time.Time) bool {
	if sess.Mode != domain.ModeHumanCalling && sess.Mode != domain.ModeHumanChatting {
		return false
	}
	return !sess.HandoverDeadline.IsZero() && now.After(sess.HandoverDeadline)
}

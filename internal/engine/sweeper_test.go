package engine

import (
	"testing"
	"time"

	"github.com/QHanh/ChatbotHM/internal/domain"
	"github.com/QHanh/ChatbotHM/internal/store"
)

func TestSweepResetsExpiredHandoffs(t *testing.T) {
	st := store.New(time.Hour, time.Hour)
	now := time.Now()

	expired := st.Get("expired")
	expired.Mode = domain.ModeHumanCalling
	expired.NegativityCount = 2
	expired.HandoverDeadline = now.Add(-time.Minute)
	st.Commit("expired", expired)

	active := st.Get("active")
	active.Mode = domain.ModeHumanChatting
	active.HandoverDeadline = now.Add(time.Hour)
	st.Commit("active", active)

	idle := st.Get("idle")
	idle.Append("hi", "hello")
	st.Commit("idle", idle)

	NewSweeper(st, time.Minute).Sweep(now)

	got := st.Get("expired")
	if got.Mode != domain.ModeIdle {
		t.Errorf("expired session mode = %q; want idle", got.Mode)
	}
	if got.NegativityCount != 0 {
		t.Errorf("negativity = %d; want 0", got.NegativityCount)
	}
	if !got.HandoverDeadline.IsZero() {
		t.Error("deadline not cleared")
	}
	if len(got.Messages) != 1 || got.Messages[0].Bot != sweeperNote {
		t.Errorf("system note missing: %+v", got.Messages)
	}

	if st.Get("active").Mode != domain.ModeHumanChatting {
		t.Error("unexpired hand-off must be untouched")
	}
	if len(st.Get("idle").Messages) != 1 {
		t.Error("idle session must be untouched")
	}
}

func TestSweepIgnoresZeroDeadline(t *testing.T) {
	st := store.New(time.Hour, time.Hour)
	sess := st.Get("s1")
	sess.Mode = domain.ModeHumanCalling
	st.Commit("s1", sess)

	NewSweeper(st, time.Minute).Sweep(time.Now().Add(48 * time.Hour))
	if st.Get("s1").Mode != domain.ModeHumanCalling {
		t.Error("zero deadline must never expire")
	}
}

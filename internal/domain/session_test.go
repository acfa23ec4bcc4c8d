package domain

import (
	"testing"
	"time"
)

func TestModeValid(t *testing.T) {
	valid := []Mode{ModeIdle, ModeAwaitingPurchaseConfirmation, ModeAwaitingCustomerInfo,
		ModeHumanCalling, ModeHumanChatting, ModeStopBot}
	for _, m := range valid {
		if !m.Valid() {
			t.Errorf("Mode(%q).Valid() = false; want true", m)
		}
	}
	if Mode("half_open").Valid() {
		t.Error("unknown mode reported valid")
	}
}

func TestModeSilenced(t *testing.T) {
	if !ModeStopBot.Silenced() || !ModeHumanChatting.Silenced() {
		t.Error("stop_bot and human_chatting must be silenced")
	}
	if ModeIdle.Silenced() || ModeHumanCalling.Silenced() {
		t.Error("idle and human_calling must not be silenced")
	}
}

func TestCustomerInfoMerge_NeverBlanks(t *testing.T) {
	c := CustomerInfo{Name: "Nguyen Van A", Phone: "0901234567"}
	c.Merge(CustomerInfo{Address: "12 Le Loi"})
	c.Merge(CustomerInfo{}) // empty merge must not clear anything

	if c.Name != "Nguyen Van A" || c.Phone != "0901234567" || c.Address != "12 Le Loi" {
		t.Fatalf("merge lost fields: %+v", c)
	}
	if !c.Complete() {
		t.Fatal("record with all three fields should be complete")
	}
}

func TestCustomerInfoMissing(t *testing.T) {
	c := CustomerInfo{Phone: "0901234567"}
	got := c.Missing()
	if len(got) != 2 {
		t.Fatalf("Missing() = %v; want 2 entries", got)
	}
}

func TestSessionClone_IsDeep(t *testing.T) {
	s := NewSession()
	s.Append("hi", "hello")
	s.SetTopic(SearchParams{ProductName: "máy khò"})
	s.ShownItemKeys["a::b"] = struct{}{}
	s.PendingOrder = []OrderLine{{
		ProductName: "máy khò", Quantity: 1, Status: LinePending,
		Matched: &Product{ProductCode: "P1"},
	}}

	c := s.Clone()
	c.Messages[0].User = "changed"
	c.ShownItemKeys["x::y"] = struct{}{}
	c.LastQuery.ProductName = "changed"
	c.PendingOrder[0].Status = LineFailed
	c.PendingOrder[0].Matched.ProductCode = "P2"

	if s.Messages[0].User != "hi" {
		t.Error("clone shares message log")
	}
	if _, ok := s.ShownItemKeys["x::y"]; ok {
		t.Error("clone shares shown-key set")
	}
	if s.LastQuery.ProductName != "máy khò" {
		t.Error("clone shares last query")
	}
	if s.PendingOrder[0].Status != LinePending || s.PendingOrder[0].Matched.ProductCode != "P1" {
		t.Error("clone shares order lines")
	}
}

func TestSessionHistory_Bounded(t *testing.T) {
	s := NewSession()
	for i := 0; i < 20; i++ {
		s.Append("u", "b")
	}
	if got := len(s.History(14)); got != 14 {
		t.Fatalf("History(14) returned %d pairs", got)
	}
	if got := len(s.History(0)); got != 20 {
		t.Fatalf("History(0) returned %d pairs; want all", got)
	}
}

func TestSetTopic_ResetsPagination(t *testing.T) {
	s := NewSession()
	s.SetTopic(SearchParams{ProductName: "kìm"})
	s.PaginationOffset = 16
	s.ShownItemKeys["k::"] = struct{}{}

	s.SetTopic(SearchParams{ProductName: "tô vít"})
	if s.PaginationOffset != 0 {
		t.Error("offset not reset on topic change")
	}
	if len(s.ShownItemKeys) != 0 {
		t.Error("shown keys not reset on topic change")
	}
}

func TestOrderLineFullName(t *testing.T) {
	cases := []struct {
		line OrderLine
		want string
	}{
		{OrderLine{ProductName: "máy khò", Properties: "8512P"}, "máy khò (8512P)"},
		{OrderLine{ProductName: "máy khò", Properties: "0"}, "máy khò"},
		{OrderLine{ProductName: "máy khò"}, "máy khò"},
	}
	for _, tc := range cases {
		if got := tc.line.FullName(); got != tc.want {
			t.Errorf("FullName() = %q; want %q", got, tc.want)
		}
	}
}

func TestProductPrimaryImage(t *testing.T) {
	p := Product{AvatarImages: []string{"", "https://cdn/a.jpg"}}
	if got := p.PrimaryImage(); got != "https://cdn/a.jpg" {
		t.Fatalf("PrimaryImage() = %q", got)
	}
	if (Product{}).PrimaryImage() != "" {
		t.Fatal("empty product should have no primary image")
	}
}

func TestSessionAppend_Timestamps(t *testing.T) {
	s := NewSession()
	before := time.Now().UTC().Add(-time.Second)
	s.Append("u", "b")
	if s.UpdatedAt.Before(before) {
		t.Fatal("Append did not refresh UpdatedAt")
	}
}

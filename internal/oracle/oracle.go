// Package oracle defines the intent-classification and reply-generation
// contract the conversation engine depends on, together with two
// implementations: Gemini (LLM-backed) and Fallback (deterministic keyword
// rules, also used whenever the LLM call fails or returns unparseable
// output).
//
// The oracle is non-deterministic, latency-bearing and fallible by nature;
// the engine never lets an oracle error cross the turn boundary.
package oracle

import (
	"context"
	"errors"

	"github.com/QHanh/ChatbotHM/internal/domain"
)

// ErrUnavailable is returned when a backend cannot serve a request at all
// (missing credentials, closed client). Callers degrade to Fallback.
var ErrUnavailable = errors.New("oracle backend unavailable")

// IntentRecord is the structured interpretation of one customer turn.
type IntentRecord struct {
	NeedsSearch        bool `json:"needs_search"`
	IsPurchaseIntent   bool `json:"is_purchase_intent"`
	IsAddToOrderIntent bool `json:"is_add_to_order_intent"`
	WantsImages        bool `json:"wants_images"`
	WantsSpecs         bool `json:"wants_specs"`
	WantsHumanAgent    bool `json:"wants_human_agent"`
	WantsStoreInfo     bool `json:"wants_store_info"`
	IsNegative         bool `json:"is_negative"`
	IsBankTransfer     bool `json:"is_bank_transfer"`
	IsWarrantyClaim    bool `json:"is_warranty_claim"`

	// SearchParams holds one entry per candidate product mentioned in the
	// turn (a purchase message may name several).
	SearchParams []domain.SearchParams `json:"search_params"`
}

// FirstParams returns the first extracted candidate, or a zero value.
func (r IntentRecord) FirstParams() domain.SearchParams {
	if len(r.SearchParams) > 0 {
		return r.SearchParams[0]
	}
	return domain.SearchParams{}
}

// MatchType classifies how well a candidate set answers the customer.
type MatchType string

const (
	MatchNone     MatchType = "NONE"
	MatchGeneral  MatchType = "GENERAL"
	MatchSpecific MatchType = "SPECIFIC"
	MatchPerfect  MatchType = "PERFECT_MATCH"
	MatchClose    MatchType = "CLOSE_MATCH"
)

// Evaluation is the oracle's verdict on a page of catalog candidates.
type Evaluation struct {
	Type    MatchType       `json:"type"`
	Product *domain.Product `json:"product,omitempty"`
	Score   float64         `json:"score,omitempty"`
}

// ReplyRequest carries everything needed to compose a descriptive reply.
type ReplyRequest struct {
	Message      string
	History      []domain.MessagePair
	Products     []domain.Product
	IncludeSpecs bool
	WantsImages  bool
	// Continuation marks a "show more" page so the reply does not greet
	// the customer again.
	Continuation bool
}

// Reply is generated reply text plus, when images were requested, the
// identity keys (product full names) the customer wants pictures of.
type Reply struct {
	Text         string
	ImageTargets []string
}

// Oracle is the external intent/NLG collaborator contract.
//
// Implementations must be safe for concurrent use and honor ctx deadlines.
// Every method may fail; callers fall back to deterministic behavior.
type Oracle interface {
	// ClassifyIntent interprets one message given bounded history.
	ClassifyIntent(ctx context.Context, message string, history []domain.MessagePair) (IntentRecord, error)

	// ExtractContact pulls name/phone/address fragments from free text.
	ExtractContact(ctx context.Context, message string) (domain.CustomerInfo, error)

	// EvaluateCandidates judges one page of catalog results against the
	// customer's request (used by the purchase resolution loop).
	EvaluateCandidates(ctx context.Context, message string, history []domain.MessagePair, candidates []domain.Product) (Evaluation, error)

	// GenerateReply composes the descriptive reply for a search turn.
	GenerateReply(ctx context.Context, req ReplyRequest) (Reply, error)

	// EmbedImage converts an image into the catalog's embedding space for
	// nearest-neighbor lookup.
	EmbedImage(ctx context.Context, image []byte) ([]float32, error)
}

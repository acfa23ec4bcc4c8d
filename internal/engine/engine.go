// Package engine implements the per-session conversation state machine:
// the component that decides, turn by turn, whether the bot searches the
// catalog, asks for purchase confirmation, collects a shipping address,
// hands off to a human, or stays silent.
//
// A turn reads a deep copy of the session from the store, consults the
// catalog gateway and the intent oracle as needed, mutates the copy and
// commits it back. No collaborator error ever crosses the turn boundary:
// oracle failures degrade to the deterministic fallback and catalog
// failures to an empty result set, so every turn completes and commits.
package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/QHanh/ChatbotHM/internal/catalog"
	"github.com/QHanh/ChatbotHM/internal/config"
	"github.com/QHanh/ChatbotHM/internal/domain"
	"github.com/QHanh/ChatbotHM/internal/oracle"
	"github.com/QHanh/ChatbotHM/internal/store"
)

// OrderSink receives finalized orders for persistence. A nil sink is valid;
// the order then lives only in the turn response.
type OrderSink interface {
	SaveOrder(ctx context.Context, sessionID string, rec domain.CustomerRecord) error
}

// Switch is the bot-wide kill switch, toggled by the admin surface
// independently of any session state.
type Switch struct {
	mu  sync.RWMutex
	off bool
}

// Enabled reports whether the bot answers at all.
func (s *Switch) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.off
}

// Set turns the bot on or off globally.
func (s *Switch) Set(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.off = !on
}

// TurnInput is one inbound customer message.
type TurnInput struct {
	SessionID string
	Message   string
	// Image is the decoded attached photo, if any. An image bypasses all
	// text-intent routing and goes straight to the vector search path.
	Image []byte
	// Model is an advisory backend selector; logged, not acted on.
	Model string
}

// TurnResult is the reply plus its structured side-payloads.
type TurnResult struct {
	Reply   string
	History []domain.MessagePair
	Images  []domain.ImageInfo

	// HasPurchase and Customer are set on the turn that finalizes an order.
	HasPurchase bool
	Customer    *domain.CustomerRecord

	HumanHandover bool
	Negativity    bool

	// Redirect carries the product page URL when exactly one unambiguous
	// product was shown.
	Redirect string
}

// Engine is the conversation state machine. Safe for concurrent use; all
// mutable state lives in the store.
type Engine struct {
	cfg      config.EngineConfig
	store    *store.Store
	catalog  catalog.Gateway
	oracle   oracle.Oracle
	fallback oracle.Fallback
	orders   OrderSink
	bot      Switch
	tracer   trace.Tracer
}

// New wires the engine. orders may be nil.
func New(cfg config.EngineConfig, st *store.Store, gw catalog.Gateway, orc oracle.Oracle, orders OrderSink) *Engine {
	if orc == nil {
		orc = oracle.Fallback{}
	}
	return &Engine{
		cfg:     cfg,
		store:   st,
		catalog: gw,
		oracle:  orc,
		orders:  orders,
		tracer:  otel.Tracer("github.com/QHanh/ChatbotHM/internal/engine"),
	}
}

// Bot exposes the global kill switch to the admin surface.
func (e *Engine) Bot() *Switch { return &e.bot }

// StartSession re-enables the bot for one session and lifts any silencing
// mode an operator left behind.
func (e *Engine) StartSession(id string) {
	e.store.SetBotEnabled(id, true)
	e.store.SetMode(id, domain.ModeIdle)
}

// StopSession silences the bot for one session.
func (e *Engine) StopSession(id string) {
	e.store.SetBotEnabled(id, false)
}

// MarkHumanHandling flags a session as handled by an operator. The bot
// stays mute until the hand-off deadline expires or the session is started
// again.
func (e *Engine) MarkHumanHandling(id string) {
	sess := e.store.Get(id)
	sess.Mode = domain.ModeHumanChatting
	sess.HandoverDeadline = time.Now().Add(e.cfg.HandoverTimeout)
	e.store.Commit(id, sess)
}

// Turn processes one customer message and returns the reply. Transitions
// are evaluated in strict priority order; the first match wins.
func (e *Engine) Turn(ctx context.Context, in TurnInput) TurnResult {
	ctx, span := e.tracer.Start(ctx, "engine.turn")
	defer span.End()

	var res TurnResult
	if !e.bot.Enabled() {
		turnsTotal.WithLabelValues(outcomeDisabled).Inc()
		return res
	}

	msg := strings.TrimSpace(in.Message)
	sess := e.store.Get(in.SessionID)

	var outcome string
	switch {
	case msg == ResetCommand:
		sess.Mode = domain.ModeIdle
		sess.NegativityCount = 0
		res.Reply = replyGreeting
		outcome = outcomeReset

	case !sess.BotEnabled || sess.Mode.Silenced():
		outcome = outcomeSilenced

	case sess.Mode == domain.ModeHumanCalling:
		res.Reply = replyPleaseWait
		res.HumanHandover = true
		outcome = outcomeWaitingHuman

	case len(in.Image) > 0:
		outcome = e.imageTurn(ctx, msg, in.Image, &sess, &res)

	case sess.Mode == domain.ModeAwaitingPurchaseConfirmation:
		outcome = e.confirmationTurn(ctx, in.SessionID, msg, &sess, &res)

	case sess.Mode == domain.ModeAwaitingCustomerInfo:
		outcome = e.customerInfoTurn(ctx, in.SessionID, msg, &sess, &res)

	default:
		rec := e.classify(ctx, msg, sess.History(e.cfg.OracleHistory))
		outcome = e.normalTurn(ctx, in.SessionID, msg, rec, &sess, &res)
	}

	sess.Append(msg, res.Reply)
	e.store.Commit(in.SessionID, sess)
	res.History = sess.History(e.cfg.HistoryWindow)
	turnsTotal.WithLabelValues(outcome).Inc()

	log.Debug().
		Str("session_id", in.SessionID).
		Str("outcome", outcome).
		Str("mode", string(sess.Mode)).
		Str("model", in.Model).
		Msg("turn completed")
	return res
}

// ----------------------------------------------------------------------------
// State-specific turns

func (e *Engine) imageTurn(ctx context.Context, msg string, image []byte, sess *domain.Session, res *TurnResult) string {
	vec, err := e.oracle.EmbedImage(ctx, image)
	if err != nil {
		log.Warn().Err(err).Msg("image embedding failed")
		res.Reply = replyImageNoMatch
		return outcomeImage
	}
	matches, err := e.catalog.SearchByImage(ctx, vec, 3, e.cfg.MinImageSimilarity)
	if err != nil {
		log.Warn().Err(err).Msg("image search failed")
		matches = nil
	}
	if len(matches) == 0 {
		res.Reply = replyImageNoMatch
		return outcomeImage
	}

	prompt := msg
	if prompt == "" {
		prompt = "Sản phẩm trong ảnh này là gì?"
	}
	reply := e.generateReply(ctx, oracle.ReplyRequest{
		Message:  prompt,
		History:  sess.History(e.cfg.OracleHistory),
		Products: matches,
	})
	res.Reply = reply.Text
	for _, p := range matches {
		if u := p.PrimaryImage(); u != "" {
			res.Images = append(res.Images, domain.ImageInfo{
				ProductName: p.FullName(),
				ImageURL:    u,
				ProductLink: p.LinkProduct,
			})
		}
	}
	if len(res.Images) > 0 {
		res.Reply = replyImagesPrefix + "\n" + res.Reply
	}
	return outcomeImage
}

func (e *Engine) confirmationTurn(ctx context.Context, id, msg string, sess *domain.Session, res *TurnResult) string {
	switch classifyConfirmation(msg) {
	case verdictConfirm:
		if sess.Customer.Complete() {
			res.Reply = e.finalize(ctx, id, sess, res)
		} else {
			sess.Mode = domain.ModeAwaitingCustomerInfo
			res.Reply = e.askContactReply(sess.Customer)
		}
		return outcomeConfirmation

	case verdictCancel:
		sess.PendingOrder = nil
		sess.PendingConfirmation = nil
		sess.Mode = domain.ModeIdle
		res.Reply = replyCancelAck
		return outcomeConfirmation

	default:
		// Ambiguous answer: drop the pending batch and re-interpret the
		// message as a fresh query.
		sess.PendingOrder = nil
		sess.PendingConfirmation = nil
		sess.Mode = domain.ModeIdle
		rec := e.classify(ctx, msg, sess.History(e.cfg.OracleHistory))
		return e.normalTurn(ctx, id, msg, rec, sess, res)
	}
}

func (e *Engine) customerInfoTurn(ctx context.Context, id, msg string, sess *domain.Session, res *TurnResult) string {
	if classifyConfirmation(msg) == verdictCancel {
		sess.PendingOrder = nil
		sess.PendingConfirmation = nil
		sess.Customer = domain.CustomerInfo{}
		sess.Mode = domain.ModeIdle
		res.Reply = replyCancelAck
		return outcomeCustomerInfo
	}

	rec := e.classify(ctx, msg, sess.History(e.cfg.OracleHistory))
	if rec.IsPurchaseIntent || rec.IsAddToOrderIntent {
		// The customer changed their mind mid-form; treat the message as a
		// new order turn.
		sess.Mode = domain.ModeIdle
		return e.normalTurn(ctx, id, msg, rec, sess, res)
	}

	info, err := e.oracle.ExtractContact(ctx, msg)
	if err != nil {
		oracleFallbacksTotal.Inc()
		info, _ = e.fallback.ExtractContact(ctx, msg)
	}
	sess.Customer.Merge(info)

	if sess.Customer.Complete() {
		res.Reply = e.finalize(ctx, id, sess, res)
	} else {
		res.Reply = e.askContactReply(sess.Customer)
	}
	return outcomeCustomerInfo
}

// normalTurn routes an idle-mode message (or one that fell through from a
// state-specific branch) by its classified intent.
func (e *Engine) normalTurn(ctx context.Context, id, msg string, rec oracle.IntentRecord, sess *domain.Session, res *TurnResult) string {
	res.Negativity = rec.IsNegative
	if rec.IsNegative {
		sess.NegativityCount++
		if sess.NegativityCount >= e.cfg.NegativityThreshold {
			sess.NegativityCount = 0
			e.handOff(sess)
			res.Reply = replyHandoffApology
			res.HumanHandover = true
			negativityTripsTotal.Inc()
			return outcomeNegativity
		}
	}

	if rec.WantsStoreInfo {
		res.Reply = e.storeInfoReply()
		if e.cfg.StoreMapURL != "" {
			res.Images = append(res.Images, domain.ImageInfo{
				ProductName: "Bản đồ cửa hàng",
				ImageURL:    e.cfg.StoreMapURL,
			})
		}
		return outcomeStoreInfo
	}

	if rec.WantsHumanAgent || rec.IsBankTransfer || (rec.IsWarrantyClaim && sess.HasPurchased) {
		e.handOff(sess)
		res.Reply = replyPleaseWait
		res.HumanHandover = true
		return outcomeHandover
	}

	if rec.IsAddToOrderIntent && !hasNamedParams(rec) {
		sess.ResetTopic()
		res.Reply = replyAskAddition
		return outcomeAddition
	}

	if rec.IsPurchaseIntent || rec.IsAddToOrderIntent {
		return e.purchaseTurn(ctx, msg, rec, sess, res)
	}

	if wantsMore(msg) && sess.LastQuery != nil {
		return e.showMoreTurn(ctx, msg, rec, sess, res)
	}

	return e.searchTurn(ctx, msg, rec, sess, res)
}

func (e *Engine) purchaseTurn(ctx context.Context, msg string, rec oracle.IntentRecord, sess *domain.Session, res *TurnResult) string {
	mergeLines(sess, rec.SearchParams, msg)

	history := sess.History(e.cfg.OracleHistory)
	for i := range sess.PendingOrder {
		if sess.PendingOrder[i].Status == domain.LinePending {
			e.resolveLine(ctx, history, &sess.PendingOrder[i])
		}
	}

	all := allConfirmed(sess.PendingOrder)
	res.Reply = e.batchReply(sess.PendingOrder, all)

	if all {
		sess.PendingConfirmation = append([]domain.OrderLine(nil), sess.PendingOrder...)
		sess.Mode = domain.ModeAwaitingPurchaseConfirmation
	} else {
		// Failed lines are reported once and dropped; the customer restates
		// them corrected in the next turn. Confirmed lines stay.
		kept := sess.PendingOrder[:0]
		for _, l := range sess.PendingOrder {
			if l.Status != domain.LineFailed {
				kept = append(kept, l)
			}
		}
		sess.PendingOrder = kept
	}
	return outcomePurchase
}

// resolveLine runs the iterative resolution loop for one pending line:
// catalog pages in strictly increasing order until a PERFECT_MATCH, a
// CLOSE_MATCH at or above the acceptance threshold, or the page ceiling.
func (e *Engine) resolveLine(ctx context.Context, history []domain.MessagePair, line *domain.OrderLine) {
	request := strings.TrimSpace(line.ProductName + " " + line.Properties)
	var suggestion *domain.Product

	for page := 0; page < e.cfg.ResolveMaxPages; page++ {
		candidates, err := e.catalog.Search(ctx, catalog.Query{
			Name:       line.ProductName,
			Category:   line.Category,
			Properties: line.Properties,
			Offset:     page * e.cfg.PageSize,
			PageSize:   e.cfg.PageSize,
		})
		if err != nil {
			log.Warn().Err(err).Str("product", line.ProductName).Msg("catalog search failed")
			candidates = nil
		}
		if len(candidates) == 0 {
			break
		}

		ev, err := e.oracle.EvaluateCandidates(ctx, request, history, candidates)
		if err != nil {
			oracleFallbacksTotal.Inc()
			ev, _ = e.fallback.EvaluateCandidates(ctx, request, history, candidates)
		}

		switch {
		case ev.Type == oracle.MatchPerfect && ev.Product != nil:
			settleMatch(line, ev.Product)
			return
		case ev.Type == oracle.MatchClose && ev.Product != nil:
			if suggestion == nil {
				p := *ev.Product
				suggestion = &p
			}
			if ev.Score >= e.cfg.CloseMatchThreshold {
				line.Status = domain.LineFailed
				line.Reason = domain.FailNotFound
				line.Suggestion = suggestion
				return
			}
		}
	}

	line.Status = domain.LineFailed
	line.Reason = domain.FailNotFound
	line.Suggestion = suggestion
}

func (e *Engine) showMoreTurn(ctx context.Context, msg string, rec oracle.IntentRecord, sess *domain.Session, res *TurnResult) string {
	q := *sess.LastQuery
	offset := sess.PaginationOffset + e.cfg.PageSize

	results, err := e.catalog.Search(ctx, catalog.Query{
		Name:             q.ProductName,
		Category:         q.Category,
		Properties:       q.Properties,
		Offset:           offset,
		PageSize:         e.cfg.PageSize,
		StrictCategory:   e.cfg.StrictPagination && q.Category != "",
		StrictProperties: e.cfg.StrictPagination && q.Properties != "",
	})
	if err != nil {
		log.Warn().Err(err).Msg("catalog search failed")
		results = nil
	}

	fresh := results[:0:0]
	for _, p := range results {
		if _, seen := sess.ShownItemKeys[p.Key()]; !seen {
			fresh = append(fresh, p)
		}
	}
	if len(fresh) == 0 {
		res.Reply = replyExhausted
		return outcomeShowMore
	}

	sess.PaginationOffset = offset
	for _, p := range fresh {
		sess.ShownItemKeys[p.Key()] = struct{}{}
	}

	reply := e.generateReply(ctx, oracle.ReplyRequest{
		Message:      msg,
		History:      sess.History(e.cfg.OracleHistory),
		Products:     fresh,
		IncludeSpecs: rec.WantsSpecs,
		WantsImages:  rec.WantsImages,
		Continuation: true,
	})
	res.Reply = reply.Text
	e.attachImages(rec.WantsImages, reply.ImageTargets, fresh, res)
	return outcomeShowMore
}

func (e *Engine) searchTurn(ctx context.Context, msg string, rec oracle.IntentRecord, sess *domain.Session, res *TurnResult) string {
	if !rec.NeedsSearch {
		reply := e.generateReply(ctx, oracle.ReplyRequest{
			Message: msg,
			History: sess.History(e.cfg.OracleHistory),
		})
		res.Reply = reply.Text
		return outcomeSearch
	}

	params := rec.FirstParams()
	if strings.TrimSpace(params.ProductName) == "" {
		params.ProductName = msg
	}

	results, err := e.catalog.Search(ctx, catalog.Query{
		Name:       params.ProductName,
		Category:   params.Category,
		Properties: params.Properties,
		PageSize:   e.cfg.PageSize,
	})
	if err != nil {
		log.Warn().Err(err).Msg("catalog search failed")
		results = nil
	}

	sess.SetTopic(params)
	for _, p := range results {
		sess.ShownItemKeys[p.Key()] = struct{}{}
	}

	reply := e.generateReply(ctx, oracle.ReplyRequest{
		Message:      msg,
		History:      sess.History(e.cfg.OracleHistory),
		Products:     results,
		IncludeSpecs: rec.WantsSpecs,
		WantsImages:  rec.WantsImages,
	})
	res.Reply = reply.Text
	e.attachImages(rec.WantsImages, reply.ImageTargets, results, res)

	if len(results) == 1 && results[0].LinkProduct != "" {
		res.Redirect = results[0].LinkProduct
	}
	return outcomeSearch
}

// ----------------------------------------------------------------------------
// Shared pieces

func (e *Engine) classify(ctx context.Context, msg string, history []domain.MessagePair) oracle.IntentRecord {
	rec, err := e.oracle.ClassifyIntent(ctx, msg, history)
	if err != nil {
		oracleFallbacksTotal.Inc()
		log.Warn().Err(err).Msg("intent classification failed, using fallback")
		rec, _ = e.fallback.ClassifyIntent(ctx, msg, history)
	}
	return rec
}

func (e *Engine) generateReply(ctx context.Context, req oracle.ReplyRequest) oracle.Reply {
	reply, err := e.oracle.GenerateReply(ctx, req)
	if err != nil {
		oracleFallbacksTotal.Inc()
		log.Warn().Err(err).Msg("reply generation failed, using fallback")
		reply, _ = e.fallback.GenerateReply(ctx, req)
	}
	return reply
}

func (e *Engine) handOff(sess *domain.Session) {
	sess.Mode = domain.ModeHumanCalling
	sess.HandoverDeadline = time.Now().Add(e.cfg.HandoverTimeout)
	handoffsTotal.Inc()
}

func (e *Engine) finalize(ctx context.Context, id string, sess *domain.Session, res *TurnResult) string {
	rec := domain.CustomerRecord{
		Name:    sess.Customer.Name,
		Phone:   sess.Customer.Phone,
		Address: sess.Customer.Address,
		Items:   append([]domain.OrderLine(nil), sess.PendingConfirmation...),
	}
	if e.orders != nil {
		if err := e.orders.SaveOrder(ctx, id, rec); err != nil {
			log.Warn().Err(err).Str("session_id", id).Msg("order persistence failed")
		}
	}

	sess.PendingOrder = nil
	sess.PendingConfirmation = nil
	sess.Customer = domain.CustomerInfo{}
	sess.Mode = domain.ModeIdle
	sess.HasPurchased = true

	res.HasPurchase = true
	res.Customer = &rec
	ordersFinalizedTotal.Inc()
	return finalizeReply(rec)
}

// attachImages resolves the oracle-named targets (or, absent naming, the
// shown products themselves) to catalog records with images and prepends
// the fixed photo phrase when any image was attached.
func (e *Engine) attachImages(wants bool, targets []string, shown []domain.Product, res *TurnResult) {
	if !wants || len(shown) == 0 {
		return
	}
	picked := matchTargets(targets, shown)
	for _, p := range picked {
		if u := p.PrimaryImage(); u != "" {
			res.Images = append(res.Images, domain.ImageInfo{
				ProductName: p.FullName(),
				ImageURL:    u,
				ProductLink: p.LinkProduct,
			})
		}
	}
	if len(res.Images) > 0 {
		res.Reply = replyImagesPrefix + "\n" + res.Reply
	}
}

const maxDefaultImages = 5

func matchTargets(targets []string, shown []domain.Product) []domain.Product {
	if len(targets) == 0 {
		if len(shown) > maxDefaultImages {
			return shown[:maxDefaultImages]
		}
		return shown
	}
	var out []domain.Product
	for _, t := range targets {
		ft := catalog.Fold(t)
		for _, p := range shown {
			fn := catalog.Fold(p.FullName())
			if strings.Contains(fn, ft) || strings.Contains(ft, fn) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

func hasNamedParams(rec oracle.IntentRecord) bool {
	return anyNamed(rec.SearchParams)
}

// anyNamed reports whether at least one candidate carries a product name.
func anyNamed(params []domain.SearchParams) bool {
	for _, p := range params {
		if strings.TrimSpace(p.ProductName) != "" {
			return true
		}
	}
	return false
}

// mergeLines folds the extracted candidates into the pending order,
// deduping by identity. Confirmed lines are never touched.
func mergeLines(sess *domain.Session, params []domain.SearchParams, msg string) {
	if len(params) == 0 || !anyNamed(params) {
		params = []domain.SearchParams{{ProductName: msg, Quantity: 1}}
	}
	for _, p := range params {
		name := strings.TrimSpace(p.ProductName)
		if name == "" {
			continue
		}
		qty := p.Quantity
		if qty < 1 {
			qty = 1
		}
		line := domain.OrderLine{
			ProductName: name,
			Properties:  strings.TrimSpace(p.Properties),
			Category:    strings.TrimSpace(p.Category),
			Quantity:    qty,
			Status:      domain.LinePending,
		}

		merged := false
		for i := range sess.PendingOrder {
			if sess.PendingOrder[i].Key() != line.Key() {
				continue
			}
			if sess.PendingOrder[i].Status == domain.LinePending {
				sess.PendingOrder[i].Quantity = qty
			}
			merged = true
			break
		}
		if !merged {
			sess.PendingOrder = append(sess.PendingOrder, line)
		}
	}
}

func settleMatch(line *domain.OrderLine, p *domain.Product) {
	match := *p
	line.Matched = &match
	switch {
	case match.Inventory == 0:
		line.Status = domain.LineFailed
		line.Reason = domain.FailOutOfStock
	case match.Inventory < line.Quantity:
		line.Status = domain.LineFailed
		line.Reason = domain.FailInsufficientStock
	default:
		line.Status = domain.LineConfirmed
	}
}

func allConfirmed(lines []domain.OrderLine) bool {
	if len(lines) == 0 {
		return false
	}
	for _, l := range lines {
		if l.Status != domain.LineConfirmed {
			return false
		}
	}
	return true
}

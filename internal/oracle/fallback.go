package oracle

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/QHanh/ChatbotHM/internal/catalog"
	"github.com/QHanh/ChatbotHM/internal/domain"
)

// Fallback is the deterministic oracle used when no LLM is configured and
// as the recovery path for every failed or unparseable LLM call. It is
// intentionally conservative: assume a search is wanted, infer the few
// flags that plain substring checks can carry, and never guess at
// negativity or hand-off intents.
type Fallback struct{}

var _ Oracle = Fallback{}

var (
	imageWords = []string{"ảnh", "hình"}
	specWords  = []string{"thông số", "chi tiết", "cấu hình"}
	phoneRE    = regexp.MustCompile(`0\d{9,10}`)
)

// ClassifyIntent returns the conservative default interpretation.
func (Fallback) ClassifyIntent(_ context.Context, message string, _ []domain.MessagePair) (IntentRecord, error) {
	lower := strings.ToLower(message)
	rec := IntentRecord{
		NeedsSearch: true,
		SearchParams: []domain.SearchParams{{
			ProductName: message,
			Category:    message,
			Quantity:    1,
		}},
	}
	rec.WantsImages = containsAny(lower, imageWords)
	rec.WantsSpecs = containsAny(lower, specWords)
	return rec, nil
}

// ExtractContact splits a comma-separated message into name/phone/address.
// Customers answering the contact prompt overwhelmingly reply in the form
// "Nguyễn Văn A, 0901234567, 12 Lê Lợi"; anything that matches a phone
// pattern is the phone, the first remaining part the name, the rest the
// address.
func (Fallback) ExtractContact(_ context.Context, message string) (domain.CustomerInfo, error) {
	var info domain.CustomerInfo

	rest := message
	if m := phoneRE.FindString(message); m != "" {
		info.Phone = m
		rest = strings.Replace(rest, m, "", 1)
	}

	parts := strings.FieldsFunc(rest, func(r rune) bool {
		return r == ',' || r == '-' || r == '–'
	})
	var fields []string
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			fields = append(fields, t)
		}
	}
	if len(fields) > 0 {
		info.Name = fields[0]
	}
	if len(fields) > 1 {
		info.Address = strings.Join(fields[1:], ", ")
	}
	return info, nil
}

// EvaluateCandidates ranks candidates by folded-name containment. A
// candidate whose name contains the requested name (and whose properties
// agree when the request has any) is a PERFECT_MATCH; a name-only hit is a
// CLOSE_MATCH scored by word overlap.
func (Fallback) EvaluateCandidates(_ context.Context, message string, _ []domain.MessagePair, candidates []domain.Product) (Evaluation, error) {
	if len(candidates) == 0 {
		return Evaluation{Type: MatchNone}, nil
	}
	want := catalog.Fold(message)

	var best *domain.Product
	bestScore := 0.0
	for i := range candidates {
		c := candidates[i]
		name := catalog.Fold(c.ProductName)
		if name == "" {
			continue
		}
		score := wordOverlap(want, name)
		if strings.Contains(want, name) || strings.Contains(name, want) {
			score += 0.5
		}
		if c.Properties != "" && c.Properties != "0" &&
			strings.Contains(want, catalog.Fold(c.Properties)) {
			p := c
			return Evaluation{Type: MatchPerfect, Product: &p, Score: 1}, nil
		}
		if score > bestScore {
			bestScore = score
			best = &candidates[i]
		}
	}
	if best == nil || bestScore == 0 {
		return Evaluation{Type: MatchNone}, nil
	}
	if bestScore >= 0.99 {
		return Evaluation{Type: MatchPerfect, Product: best, Score: bestScore}, nil
	}
	return Evaluation{Type: MatchClose, Product: best, Score: bestScore}, nil
}

// GenerateReply renders a plain templated listing of the products found.
func (Fallback) GenerateReply(_ context.Context, req ReplyRequest) (Reply, error) {
	if len(req.Products) == 0 {
		return Reply{Text: "Dạ, em xin lỗi, cửa hàng em chưa kinh doanh sản phẩm này ạ."}, nil
	}

	var b strings.Builder
	b.WriteString("Dạ, bên em hiện có các sản phẩm sau ạ:\n")
	targets := make([]string, 0, len(req.Products))
	for _, p := range req.Products {
		b.WriteString("- ")
		b.WriteString(p.FullName())
		if p.LifecarePrice > 0 {
			fmt.Fprintf(&b, ", giá %s", formatPrice(p.LifecarePrice))
		} else {
			b.WriteString(", giá Liên hệ")
		}
		if req.IncludeSpecs && p.Specifications != "" {
			b.WriteString(". ")
			b.WriteString(clip(p.Specifications, 160))
		}
		b.WriteString("\n")
		targets = append(targets, p.FullName())
	}
	b.WriteString("Anh/chị muốn tìm hiểu thêm về sản phẩm nào không ạ?")

	reply := Reply{Text: strings.TrimSpace(b.String())}
	if req.WantsImages {
		reply.ImageTargets = targets
	}
	return reply, nil
}

// EmbedImage is not supported without an LLM backend.
func (Fallback) EmbedImage(context.Context, []byte) ([]float32, error) {
	return nil, ErrUnavailable
}

// ----------------------------------------------------------------------------

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// wordOverlap is the fraction of b's words present in a.
func wordOverlap(a, b string) float64 {
	bw := strings.Fields(b)
	if len(bw) == 0 {
		return 0
	}
	hit := 0
	for _, w := range bw {
		if strings.Contains(a, w) {
			hit++
		}
	}
	return float64(hit) / float64(len(bw))
}

// formatPrice renders a VND amount for prompt and reply text.
func formatPrice(v float64) string { return domain.FormatPrice(v) }

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

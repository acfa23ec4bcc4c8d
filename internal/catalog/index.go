package catalog

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/QHanh/ChatbotHM/internal/domain"
)

// Index is a deterministic, concurrency-safe in-memory implementation of
// Gateway. It is immutable after construction: build it once from the
// persisted catalog and share it between requests.
//
// Ranking combines per-field Jaccard similarity between the diacritic-folded
// query tokens and each product's token sets, with field boosts mirroring
// the storefront's search profile: product name weighs double, category
// full, properties 0.8, trademark and specifications act as weak tie
// breakers. Ties are broken by name for a stable order.
type Index struct {
	cfg  config
	docs []indexedProduct
}

type indexedProduct struct {
	product    domain.Product
	nameToks   map[string]struct{}
	catToks    map[string]struct{}
	propToks   map[string]struct{}
	brandToks  map[string]struct{}
	specToks   map[string]struct{}
	foldedName string
	foldedCat  string
	foldedProp string
}

// ----------------------------------------------------------------------------
// Options

// Option customizes index construction.
type Option func(*config)

type config struct {
	stopwords map[string]struct{}
	maxDocs   int
}

func defaultConfig() config {
	return config{stopwords: nil, maxDocs: 0}
}

// WithStopwords drops the given (folded) words from all token sets.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = Fold(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithMaxDocs caps the number of indexed products (0 = unlimited).
func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// ----------------------------------------------------------------------------

// NewIndex builds an Index over the given products.
func NewIndex(products []domain.Product, opts ...Option) *Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	docs := make([]indexedProduct, 0, len(products))
	for _, p := range products {
		if strings.TrimSpace(p.ProductName) == "" {
			continue
		}
		docs = append(docs, indexedProduct{
			product:    p,
			nameToks:   tokenize(p.ProductName, cfg.stopwords),
			catToks:    tokenize(p.Category, cfg.stopwords),
			propToks:   tokenize(p.Properties, cfg.stopwords),
			brandToks:  tokenize(p.Trademark, cfg.stopwords),
			specToks:   tokenize(p.Specifications, cfg.stopwords),
			foldedName: Fold(p.ProductName),
			foldedCat:  Fold(p.Category),
			foldedProp: Fold(p.Properties),
		})
		if cfg.maxDocs > 0 && len(docs) >= cfg.maxDocs {
			break
		}
	}
	return &Index{cfg: cfg, docs: docs}
}

// Search implements Gateway. It never returns an error; the signature keeps
// the contract shared with remote gateway implementations.
func (i *Index) Search(_ context.Context, q Query) ([]domain.Product, error) {
	if strings.TrimSpace(q.Name) == "" {
		return nil, nil
	}
	if q.PageSize <= 0 {
		q.PageSize = 8
	}
	if q.Category == "" {
		q.Category = q.Name
	}

	nameToks := tokenize(q.Name, i.cfg.stopwords)
	catToks := tokenize(q.Category, i.cfg.stopwords)
	propToks := tokenize(q.Properties, i.cfg.stopwords)
	if len(nameToks) == 0 {
		return nil, nil
	}

	type scored struct {
		product domain.Product
		score   float64
	}
	buf := make([]scored, 0, len(i.docs))
	for _, d := range i.docs {
		if q.StrictCategory && !matches(catToks, d.catToks, Fold(q.Category), d.foldedCat) {
			continue
		}
		if q.StrictProperties && q.Properties != "" &&
			!matches(propToks, d.propToks, Fold(q.Properties), d.foldedProp) {
			continue
		}

		score := 2.0 * jaccard(nameToks, d.nameToks)
		score += jaccard(catToks, d.catToks)
		if len(propToks) > 0 {
			score += 0.8 * jaccard(propToks, d.propToks)
		}
		score += 0.3 * jaccard(nameToks, d.brandToks)
		score += 0.2 * jaccard(nameToks, d.specToks)
		// Exact name containment outranks token overlap.
		if strings.Contains(d.foldedName, Fold(q.Name)) {
			score += 1.0
		}
		if score <= 0 {
			continue
		}
		buf = append(buf, scored{product: d.product, score: score})
	}
	if len(buf) == 0 {
		return nil, nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].score != buf[b].score {
			return buf[a].score > buf[b].score
		}
		return buf[a].product.ProductName < buf[b].product.ProductName
	})

	if q.Offset >= len(buf) {
		return nil, nil
	}
	end := q.Offset + q.PageSize
	if end > len(buf) {
		end = len(buf)
	}
	out := make([]domain.Product, 0, end-q.Offset)
	for _, s := range buf[q.Offset:end] {
		out = append(out, s.product)
	}
	return out, nil
}

// SearchByImage implements Gateway using cosine similarity over the stored
// image embeddings. Products without an embedding are skipped.
func (i *Index) SearchByImage(_ context.Context, vec []float32, topK int, minSim float64) ([]domain.Product, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = 3
	}
	type scored struct {
		product domain.Product
		sim     float64
	}
	buf := make([]scored, 0, 16)
	for _, d := range i.docs {
		sim := cosine(vec, d.product.ImageEmbedding)
		if sim < minSim {
			continue
		}
		buf = append(buf, scored{product: d.product, sim: sim})
	}
	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].sim != buf[b].sim {
			return buf[a].sim > buf[b].sim
		}
		return buf[a].product.ProductName < buf[b].product.ProductName
	})
	if topK > len(buf) {
		topK = len(buf)
	}
	out := make([]domain.Product, 0, topK)
	for _, s := range buf[:topK] {
		out = append(out, s.product)
	}
	return out, nil
}

// Len returns the number of indexed products.
func (i *Index) Len() int { return len(i.docs) }

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*|\p{N}+`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(Fold(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if stop != nil {
			if _, skip := stop[w]; skip {
				continue
			}
		}
		out[w] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	over := 0
	small, big := a, b
	if len(small) > len(big) {
		small, big = big, small
	}
	for k := range small {
		if _, ok := big[k]; ok {
			over++
		}
	}
	if over == 0 {
		return 0
	}
	return float64(over) / float64(len(a)+len(b)-over)
}

// matches reports a strict-filter hit: any token overlap, or raw substring
// containment either way (catalog properties are often compounds like
// "MODEL:8512P").
func matches(qToks, dToks map[string]struct{}, qFolded, dFolded string) bool {
	for k := range qToks {
		if _, ok := dToks[k]; ok {
			return true
		}
	}
	if qFolded == "" || dFolded == "" {
		return false
	}
	return strings.Contains(dFolded, qFolded) || strings.Contains(qFolded, dFolded)
}

func cosine(a []float32, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return -1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return -1
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

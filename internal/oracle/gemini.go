package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/QHanh/ChatbotHM/internal/domain"
)

// Gemini implements Oracle on top of Google's Generative AI API. All methods
// are safe for concurrent use; the underlying genai client multiplexes over
// a shared gRPC connection.
//
// Gemini returns plain text and the prompts instruct it to answer with a
// single JSON object. The parsers below extract the first {...} block and
// treat anything unparseable as an error, which callers handle by degrading
// to Fallback.
type Gemini struct {
	client     *genai.Client
	model      *genai.GenerativeModel
	embedder   *genai.EmbeddingModel
	embedModel string
}

var _ Oracle = (*Gemini)(nil)

// NewGemini dials the Generative AI API with the given key. modelName is
// the generation model (e.g. "gemini-2.0-flash"); the embedding model is
// fixed to the multimodal embedder the catalog vectors were produced with.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini: %w", ErrUnavailable)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	const embedModel = "multimodalembedding@001"
	g := &Gemini{
		client:     client,
		model:      client.GenerativeModel(modelName),
		embedder:   client.EmbeddingModel(embedModel),
		embedModel: embedModel,
	}
	g.model.SetTemperature(0.2)
	return g, nil
}

// Close releases the underlying API connection.
func (g *Gemini) Close() error { return g.client.Close() }

// ClassifyIntent implements Oracle.
func (g *Gemini) ClassifyIntent(ctx context.Context, message string, history []domain.MessagePair) (IntentRecord, error) {
	raw, err := g.generate(ctx, buildIntentPrompt(message, history))
	if err != nil {
		return IntentRecord{}, err
	}
	var rec IntentRecord
	if err := unmarshalJSONBlock(raw, &rec); err != nil {
		return IntentRecord{}, fmt.Errorf("gemini: parse intent: %w", err)
	}
	for i := range rec.SearchParams {
		if rec.SearchParams[i].Quantity <= 0 {
			rec.SearchParams[i].Quantity = 1
		}
	}
	return rec, nil
}

// ExtractContact implements Oracle.
func (g *Gemini) ExtractContact(ctx context.Context, message string) (domain.CustomerInfo, error) {
	raw, err := g.generate(ctx, buildContactPrompt(message))
	if err != nil {
		return domain.CustomerInfo{}, err
	}
	var payload struct {
		Name    string `json:"name"`
		Phone   string `json:"phone"`
		Address string `json:"address"`
	}
	if err := unmarshalJSONBlock(raw, &payload); err != nil {
		return domain.CustomerInfo{}, fmt.Errorf("gemini: parse contact: %w", err)
	}
	return domain.CustomerInfo{
		Name:    strings.TrimSpace(payload.Name),
		Phone:   strings.TrimSpace(payload.Phone),
		Address: strings.TrimSpace(payload.Address),
	}, nil
}

// EvaluateCandidates implements Oracle.
func (g *Gemini) EvaluateCandidates(ctx context.Context, message string, _ []domain.MessagePair, candidates []domain.Product) (Evaluation, error) {
	if len(candidates) == 0 {
		return Evaluation{Type: MatchNone}, nil
	}
	raw, err := g.generate(ctx, buildEvaluatePrompt(message, candidates))
	if err != nil {
		return Evaluation{}, err
	}
	var payload struct {
		Type  string  `json:"type"`
		Index int     `json:"index"`
		Score float64 `json:"score"`
	}
	if err := unmarshalJSONBlock(raw, &payload); err != nil {
		return Evaluation{}, fmt.Errorf("gemini: parse evaluation: %w", err)
	}

	ev := Evaluation{Type: MatchType(strings.ToUpper(strings.TrimSpace(payload.Type))), Score: payload.Score}
	switch ev.Type {
	case MatchPerfect, MatchClose:
	default:
		return Evaluation{Type: MatchNone}, nil
	}
	if payload.Index < 0 || payload.Index >= len(candidates) {
		return Evaluation{Type: MatchNone}, nil
	}
	p := candidates[payload.Index]
	ev.Product = &p
	return ev, nil
}

// GenerateReply implements Oracle. When the customer asked for pictures the
// prompt instructs the model to append a final "IMAGES: [...]" line naming
// the products to illustrate; that line is stripped from the visible text.
func (g *Gemini) GenerateReply(ctx context.Context, req ReplyRequest) (Reply, error) {
	raw, err := g.generate(ctx, buildReplyPrompt(req))
	if err != nil {
		return Reply{}, err
	}
	text, targets := splitImagesLine(raw)
	if text == "" {
		return Reply{}, fmt.Errorf("gemini: empty reply")
	}
	reply := Reply{Text: text}
	if req.WantsImages {
		reply.ImageTargets = targets
	}
	return reply, nil
}

// EmbedImage implements Oracle, projecting the image into the same vector
// space as the catalog's stored embeddings.
func (g *Gemini) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("gemini: empty image")
	}
	res, err := g.embedder.EmbedContent(ctx, genai.ImageData("jpeg", image))
	if err != nil {
		return nil, fmt.Errorf("gemini: embed image: %w", err)
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini: empty embedding")
	}
	return res.Embedding.Values, nil
}

// ----------------------------------------------------------------------------

func (g *Gemini) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini: generate: %w", err)
	}
	text := collectText(resp)
	if strings.TrimSpace(text) == "" {
		log.Warn().Ctx(ctx).Msg("gemini returned an empty candidate")
		return "", fmt.Errorf("gemini: empty response")
	}
	return text, nil
}

func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	return b.String()
}

var jsonBlockRE = regexp.MustCompile(`(?s)\{.*\}`)

// unmarshalJSONBlock decodes the first {...} block in s, tolerating the
// markdown fences and prose the model sometimes wraps around it.
func unmarshalJSONBlock(s string, v any) error {
	block := jsonBlockRE.FindString(s)
	if block == "" {
		return fmt.Errorf("no JSON object in %q", clip(s, 120))
	}
	return json.Unmarshal([]byte(block), v)
}

var imagesLineRE = regexp.MustCompile(`(?m)^\s*IMAGES:\s*(\[.*\])\s*$`)

// splitImagesLine strips a trailing IMAGES: [...] directive from reply text
// and returns the listed product names.
func splitImagesLine(raw string) (text string, targets []string) {
	m := imagesLineRE.FindStringSubmatchIndex(raw)
	if m == nil {
		return strings.TrimSpace(raw), nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw[m[2]:m[3]]), &names); err == nil {
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				targets = append(targets, n)
			}
		}
	}
	return strings.TrimSpace(raw[:m[0]] + raw[m[1]:]), targets
}

// Chat HTTP handlers.
//
// This file exposes the conversational REST endpoints:
//   - POST /chat/{session_id}          (one conversation turn)
//   - GET  /chat/{session_id}/history  (readable transcript)
//
// Handlers are transport-thin: they validate input, decode the optional image
// payload, call the conversation engine, and translate results into HTTP
// responses. All conversation policy lives in the engine.
package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/QHanh/ChatbotHM/internal/domain"
	"github.com/QHanh/ChatbotHM/internal/engine"
	"github.com/QHanh/ChatbotHM/internal/store"
)

// maxImageBytes caps decoded or downloaded image payloads.
const maxImageBytes = 8 << 20

// Conversation is the engine surface the HTTP layer depends on.
type Conversation interface {
	Turn(ctx context.Context, in engine.TurnInput) engine.TurnResult
	StartSession(id string)
	StopSession(id string)
	MarkHumanHandling(id string)
	Bot() *engine.Switch
}

// Handlers bundles the HTTP endpoints with their dependencies.
type Handlers struct {
	conv          Conversation
	sessions      *store.Store
	historyWindow int
	client        *http.Client
}

// New constructs the handler set. historyWindow bounds the transcript
// returned by GetHistory and mirrors the engine's reply history.
func New(conv Conversation, sessions *store.Store, historyWindow int) *Handlers {
	return &Handlers{
		conv:          conv,
		sessions:      sessions,
		historyWindow: historyWindow,
		client:        &http.Client{Timeout: 15 * time.Second},
	}
}

// ChatRequest is the body of POST /chat/{session_id}.
//
// Image is optional and accepts a base64 string, a data URL, or an
// http(s) URL that the server downloads. Model is an advisory backend
// hint and is logged, not enforced.
type ChatRequest struct {
	Message string `json:"message" example:"còn máy khò kaisi không shop"`
	Image   string `json:"image,omitempty"`
	Model   string `json:"model,omitempty" example:"gemini-2.0-flash"`
}

// ChatResponse is the reply for one conversation turn.
type ChatResponse struct {
	Reply                 string                 `json:"reply"`
	History               []domain.MessagePair   `json:"history"`
	Images                []domain.ImageInfo     `json:"images,omitempty"`
	HasImages             bool                   `json:"has_images"`
	HasPurchase           bool                   `json:"has_purchase"`
	CustomerInfo          *domain.CustomerRecord `json:"customer_info,omitempty"`
	HumanHandoverRequired bool                   `json:"human_handover_required"`
	HasNegativity         bool                   `json:"has_negativity"`
	Redirect              string                 `json:"redirect,omitempty"`
}

// HistoryResponse is the body of GET /chat/{session_id}/history.
type HistoryResponse struct {
	SessionID string               `json:"session_id"`
	History   []domain.MessagePair `json:"history"`
}

// PostChat handles one conversation turn.
//
// @Summary      Send a message
// @Description  Runs one turn of the sales conversation for the session and returns the bot reply with its side-payloads.
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        session_id  path      string       true  "Conversation session ID"
// @Param        request     body      ChatRequest  true  "Message and optional image"
// @Success      200         {object}  ChatResponse
// @Failure      400         {object}  ErrorResponse
// @Failure      429         {object}  ErrorResponse
// @Failure      500         {object}  ErrorResponse
// @Router       /chat/{session_id} [post]
func (h *Handlers) PostChat(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session_id is required")
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" && strings.TrimSpace(req.Image) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message or image is required")
		return
	}

	image, err := h.imageBytes(c.Request.Context(), req.Image)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadImage, err.Error())
		return
	}

	res := h.conv.Turn(c.Request.Context(), engine.TurnInput{
		SessionID: sessionID,
		Message:   req.Message,
		Image:     image,
		Model:     req.Model,
	})

	ok(c, http.StatusOK, ChatResponse{
		Reply:                 res.Reply,
		History:               res.History,
		Images:                res.Images,
		HasImages:             len(res.Images) > 0,
		HasPurchase:           res.HasPurchase,
		CustomerInfo:          res.Customer,
		HumanHandoverRequired: res.HumanHandover,
		HasNegativity:         res.Negativity,
		Redirect:              res.Redirect,
	})
}

// GetHistory returns the readable transcript of a session.
//
// @Summary      Get conversation history
// @Tags         chat
// @Produce      json
// @Param        session_id  path      string  true  "Conversation session ID"
// @Success      200         {object}  HistoryResponse
// @Failure      400         {object}  ErrorResponse
// @Router       /chat/{session_id}/history [get]
func (h *Handlers) GetHistory(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session_id is required")
		return
	}
	sess := h.sessions.Get(sessionID)
	history := sess.History(h.historyWindow)
	if history == nil {
		history = []domain.MessagePair{}
	}
	ok(c, http.StatusOK, HistoryResponse{SessionID: sessionID, History: history})
}

// imageBytes resolves the request's image field to raw bytes. It accepts an
// http(s) URL, a data URL, or plain base64; empty input yields nil.
func (h *Handlers) imageBytes(ctx context.Context, image string) ([]byte, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return nil, nil
	}
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return h.downloadImage(ctx, image)
	}
	// Data URLs carry "data:image/jpeg;base64," before the payload.
	if strings.HasPrefix(image, "data:") {
		_, payload, found := strings.Cut(image, ",")
		if !found {
			return nil, errors.New("malformed data URL")
		}
		image = payload
	}
	raw, err := base64.StdEncoding.DecodeString(image)
	if err != nil {
		if raw, err = base64.RawStdEncoding.DecodeString(image); err != nil {
			return nil, errors.New("image is not valid base64")
		}
	}
	if len(raw) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	return raw, nil
}

// downloadImage fetches a client-supplied image URL with a hard size cap.
func (h *Handlers) downloadImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.New("invalid image URL")
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download failed: status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("image download failed: %w", err)
	}
	if len(raw) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	return raw, nil
}

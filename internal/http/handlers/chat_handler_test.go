package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/QHanh/ChatbotHM/internal/domain"
	"github.com/QHanh/ChatbotHM/internal/engine"
	"github.com/QHanh/ChatbotHM/internal/store"
)

type fakeConv struct {
	bot     engine.Switch
	turns   []engine.TurnInput
	result  engine.TurnResult
	started []string
	stopped []string
	human   []string
}

func (f *fakeConv) Turn(_ context.Context, in engine.TurnInput) engine.TurnResult {
	f.turns = append(f.turns, in)
	return f.result
}
func (f *fakeConv) StartSession(id string)      { f.started = append(f.started, id) }
func (f *fakeConv) StopSession(id string)       { f.stopped = append(f.stopped, id) }
func (f *fakeConv) MarkHumanHandling(id string) { f.human = append(f.human, id) }
func (f *fakeConv) Bot() *engine.Switch         { return &f.bot }

func newTestRouter(conv Conversation, sessions *store.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(conv, sessions, 14)
	r := gin.New()
	api := r.Group("/api/v1")
	api.POST("/chat/:session_id", h.PostChat)
	api.GET("/chat/:session_id/history", h.GetHistory)
	api.POST("/admin/bot", h.PostBot)
	api.POST("/admin/sessions/:session_id/bot", h.PostSessionBot)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPostChatReturnsTurnResult(t *testing.T) {
	conv := &fakeConv{result: engine.TurnResult{
		Reply:   "Dạ có ạ",
		History: []domain.MessagePair{{User: "còn hàng không", Bot: "Dạ có ạ"}},
		Images:  []domain.ImageInfo{{ProductName: "Máy khò", ImageURL: "https://img/k1.jpg"}},
	}}
	r := newTestRouter(conv, store.New(time.Hour, time.Hour))

	w := doJSON(t, r, http.MethodPost, "/api/v1/chat/s1", `{"message":"còn hàng không"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Reply != "Dạ có ạ" || !resp.HasImages || len(resp.History) != 1 {
		t.Errorf("resp = %+v", resp)
	}
	if len(conv.turns) != 1 || conv.turns[0].SessionID != "s1" {
		t.Errorf("turn input = %+v", conv.turns)
	}
}

func TestPostChatRequiresMessageOrImage(t *testing.T) {
	r := newTestRouter(&fakeConv{}, store.New(time.Hour, time.Hour))

	w := doJSON(t, r, http.MethodPost, "/api/v1/chat/s1", `{"message":"  "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var e ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Code != ErrCodeBadRequest {
		t.Errorf("code = %q", e.Code)
	}
}

func TestPostChatRejectsMalformedJSON(t *testing.T) {
	r := newTestRouter(&fakeConv{}, store.New(time.Hour, time.Hour))
	if w := doJSON(t, r, http.MethodPost, "/api/v1/chat/s1", `{"message":`); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestPostChatDecodesImagePayloads(t *testing.T) {
	cases := []struct {
		name  string
		image string
		want  string
	}{
		{"plain base64", "aGVsbG8=", "hello"},
		{"data URL", "data:image/jpeg;base64,aGVsbG8=", "hello"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conv := &fakeConv{}
			r := newTestRouter(conv, store.New(time.Hour, time.Hour))
			w := doJSON(t, r, http.MethodPost, "/api/v1/chat/s1",
				`{"image":"`+tc.image+`"}`)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			if len(conv.turns) != 1 || string(conv.turns[0].Image) != tc.want {
				t.Errorf("decoded image = %+v", conv.turns)
			}
		})
	}
}

func TestPostChatRejectsBadImage(t *testing.T) {
	r := newTestRouter(&fakeConv{}, store.New(time.Hour, time.Hour))
	w := doJSON(t, r, http.MethodPost, "/api/v1/chat/s1", `{"image":"???not-base64???"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var e ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &e)
	if e.Code != ErrCodeBadImage {
		t.Errorf("code = %q", e.Code)
	}
}

func TestPostChatDownloadsImageURL(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte{0xFF, 0xD8, 0xFF})
	}))
	defer upstream.Close()

	conv := &fakeConv{}
	r := newTestRouter(conv, store.New(time.Hour, time.Hour))
	w := doJSON(t, r, http.MethodPost, "/api/v1/chat/s1", `{"image":"`+upstream.URL+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(conv.turns) != 1 || len(conv.turns[0].Image) != 3 {
		t.Errorf("downloaded image = %+v", conv.turns)
	}
}

func TestGetHistoryReturnsTranscript(t *testing.T) {
	sessions := store.New(time.Hour, time.Hour)
	sess := sessions.Get("s9")
	sess.Append("xin chào", "Dạ em chào anh/chị ạ")
	sessions.Commit("s9", sess)

	r := newTestRouter(&fakeConv{}, sessions)
	w := doJSON(t, r, http.MethodGet, "/api/v1/chat/s9/history", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp HistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.SessionID != "s9" || len(resp.History) != 1 || resp.History[0].User != "xin chào" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestGetHistoryEmptySessionIsEmptyList(t *testing.T) {
	r := newTestRouter(&fakeConv{}, store.New(time.Hour, time.Hour))
	w := doJSON(t, r, http.MethodGet, "/api/v1/chat/fresh/history", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"history":[]`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

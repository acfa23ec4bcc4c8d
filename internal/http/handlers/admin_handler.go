// Admin HTTP handlers.
//
// Operators use these endpoints to pause the bot globally, to silence or
// re-enable it for a single session, and to mark a session as taken over by
// a human agent. Both endpoints share the small action-verb request body and
// reject anything outside the accepted vocabulary with a 400 naming it.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/QHanh/ChatbotHM/internal/http/middleware"
)

// Accepted action verbs.
const (
	ActionStart = "start"
	ActionStop  = "stop"
	ActionHuman = "human"
)

// AdminRequest is the body of the admin bot-control endpoints.
type AdminRequest struct {
	Action string `json:"action" example:"stop"`
}

// AdminResponse acknowledges an applied admin action.
type AdminResponse struct {
	Status string `json:"status" example:"ok"`
	Action string `json:"action" example:"stop"`
}

// PostBot flips the global kill switch.
//
// @Summary      Start or stop the bot globally
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        request  body      AdminRequest  true  "Action: start or stop"
// @Success      200      {object}  AdminResponse
// @Failure      400      {object}  ErrorResponse
// @Router       /admin/bot [post]
func (h *Handlers) PostBot(c *gin.Context) {
	action, okAction := bindAction(c, ActionStart, ActionStop)
	if !okAction {
		return
	}
	h.conv.Bot().Set(action == ActionStart)
	middleware.LoggerFrom(c).Info().Str("action", action).Msg("global bot switch")
	ok(c, http.StatusOK, AdminResponse{Status: "ok", Action: action})
}

// PostSessionBot controls the bot for one session.
//
// @Summary      Start or stop the bot for one session, or hand it to a human
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        session_id  path      string        true  "Conversation session ID"
// @Param        request     body      AdminRequest  true  "Action: start, stop or human"
// @Success      200         {object}  AdminResponse
// @Failure      400         {object}  ErrorResponse
// @Router       /admin/sessions/{session_id}/bot [post]
func (h *Handlers) PostSessionBot(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session_id is required")
		return
	}
	action, okAction := bindAction(c, ActionStart, ActionStop, ActionHuman)
	if !okAction {
		return
	}
	switch action {
	case ActionStart:
		h.conv.StartSession(sessionID)
	case ActionStop:
		h.conv.StopSession(sessionID)
	case ActionHuman:
		h.conv.MarkHumanHandling(sessionID)
	}
	middleware.LoggerFrom(c).Info().
		Str("session_id", sessionID).
		Str("action", action).
		Msg("session bot switch")
	ok(c, http.StatusOK, AdminResponse{Status: "ok", Action: action})
}

// bindAction parses the action body and validates it against the accepted
// verbs, failing the request with the vocabulary spelled out otherwise.
func bindAction(c *gin.Context, accepted ...string) (string, bool) {
	var req AdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return "", false
	}
	action := strings.ToLower(strings.TrimSpace(req.Action))
	for _, a := range accepted {
		if action == a {
			return action, true
		}
	}
	fail(c, http.StatusBadRequest, ErrCodeBadAction,
		"action must be one of: "+strings.Join(accepted, ", "))
	return "", false
}

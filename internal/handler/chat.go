// Package handler provides HTTP handlers for the API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/portalize/portal-platform/internal/chat"
	"github.com/portalize/portal-platform/internal/middleware"
	"github.com/portalize/portal-platform/internal/model"
	"github.com/portalize/portal-platform/pkg/logger"
)

// ChatHandler handles visitor chat endpoints.
type ChatHandler struct {
	manager        *chat.Manager
	logger         *logger.Logger
	startTimeout   time.Duration
	messageTimeout time.Duration
}

// NewChatHandler creates a chat handler with per-operation timeout
// budgets (session start and message send).
func NewChatHandler(manager *chat.Manager, log *logger.Logger, startTimeout, messageTimeout time.Duration) *ChatHandler {
	return &ChatHandler{
		manager:        manager,
		logger:         log,
		startTimeout:   startTimeout,
		messageTimeout: messageTimeout,
	}
}

type startChatRequest struct {
	InitialMessage string             `json:"initialMessage,omitempty"`
	VisitorContext visitorContextBody `json:"visitorContext"`
	Preferences    sessionPrefsBody   `json:"preferences"`
}

// visitorContextBody and sessionPrefsBody are the wire shapes of the
// start request; the API speaks camelCase while the persisted model
// types keep their storage tags.
type visitorContextBody struct {
	VisitorID string `json:"visitorId,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

type sessionPrefsBody struct {
	Language      string `json:"language,omitempty"`
	ResponseStyle string `json:"responseStyle,omitempty"`
}

type aiResponsePayload struct {
	Message   string                `json:"message"`
	MessageID string                `json:"messageId"`
	Timestamp time.Time             `json:"timestamp"`
	Context   aiResponseContextBody `json:"context"`
}

type aiResponseContextBody struct {
	Sources            []string `json:"sources"`
	Confidence         float64  `json:"confidence"`
	SuggestedFollowUps []string `json:"suggestedFollowUps"`
}

type startChatResponse struct {
	SessionID       string             `json:"sessionId"`
	WelcomeMessage  string             `json:"welcomeMessage"`
	RAGEnabled      bool               `json:"ragEnabled"`
	AvailableTopics []string           `json:"availableTopics"`
	SessionExpiry   string             `json:"sessionExpiry"`
	InitialResponse *aiResponsePayload `json:"initialResponse,omitempty"`
}

type sendMessageRequest struct {
	Message     string          `json:"message"`
	MessageType string          `json:"messageType,omitempty"`
	Context     json.RawMessage `json:"context,omitempty"`
}

type sendMessageResponse struct {
	MessageID     string            `json:"messageId"`
	AIResponse    aiResponsePayload `json:"aiResponse"`
	SessionStatus string            `json:"sessionStatus"`
}

// Start handles POST /portal/{portalId}/chat/start
func (h *ChatHandler) Start(w http.ResponseWriter, r *http.Request) {
	portalID := chi.URLParam(r, "portalId")
	if portalID == "" {
		writeError(w, http.StatusBadRequest, "missing portal ID")
		return
	}

	var req startChatRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	visitor := model.VisitorContext{
		VisitorID: req.VisitorContext.VisitorID,
		Referrer:  req.VisitorContext.Referrer,
		UserAgent: req.VisitorContext.UserAgent,
	}
	prefs := model.SessionContext{
		Language:      req.Preferences.Language,
		ResponseStyle: req.Preferences.ResponseStyle,
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.startTimeout)
	defer cancel()

	result, err := h.manager.StartSession(ctx, portalID, visitor, prefs)
	if err != nil {
		h.writeChatError(w, err, "failed to start session")
		return
	}

	resp := startChatResponse{
		SessionID:       result.SessionID,
		WelcomeMessage:  result.WelcomeMessage,
		RAGEnabled:      result.RAGEnabled,
		AvailableTopics: result.AvailableTopics,
		SessionExpiry:   result.ExpiresAt.UTC().Format(time.RFC3339),
	}

	// An optional first question rides along with session creation. It
	// is a message send, so it gets the send budget, not the remainder
	// of the start budget.
	if strings.TrimSpace(req.InitialMessage) != "" {
		msgCtx, cancelMsg := context.WithTimeout(r.Context(), h.messageTimeout)
		defer cancelMsg()
		exchange, err := h.manager.PostMessage(msgCtx, portalID, result.SessionID, strings.TrimSpace(req.InitialMessage))
		if err != nil {
			h.logger.Warn("initial message failed after session start",
				zap.String("session_id", result.SessionID), zap.Error(err))
		} else {
			payload := aiPayload(exchange.AI)
			resp.InitialResponse = &payload
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Send handles POST /portal/{portalId}/chat/{sessionId}/message
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	portalID := chi.URLParam(r, "portalId")
	sessionID := chi.URLParam(r, "sessionId")
	if portalID == "" || sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing portal or session ID")
		return
	}
	if err := middleware.ValidateSessionID(sessionID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.messageTimeout)
	defer cancel()

	exchange, err := h.manager.PostMessage(ctx, portalID, sessionID, strings.TrimSpace(req.Message))
	if err != nil {
		h.writeChatError(w, err, "failed to send message")
		return
	}

	writeJSON(w, http.StatusOK, sendMessageResponse{
		MessageID:     exchange.User.ID,
		AIResponse:    aiPayload(exchange.AI),
		SessionStatus: string(exchange.SessionStatus),
	})
}

func aiPayload(msg model.Message) aiResponsePayload {
	payload := aiResponsePayload{
		Message:   msg.Content,
		MessageID: msg.ID,
		Timestamp: msg.CreatedAt,
	}
	if msg.Context != nil {
		payload.Context = aiResponseContextBody{
			Sources:            msg.Context.Sources,
			Confidence:         msg.Context.Confidence,
			SuggestedFollowUps: msg.Context.FollowUps,
		}
	}
	return payload
}

func (h *ChatHandler) writeChatError(w http.ResponseWriter, err error, internalMsg string) {
	switch {
	case errors.Is(err, chat.ErrPortalNotFound):
		writeError(w, http.StatusNotFound, "portal not found")
	case errors.Is(err, chat.ErrPortalNotReady):
		writeError(w, http.StatusBadRequest, "portal is not ready for chat")
	case errors.Is(err, chat.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, chat.ErrPortalMismatch):
		writeError(w, http.StatusBadRequest, "session does not belong to this portal")
	case errors.Is(err, chat.ErrSessionExpired):
		writeError(w, http.StatusGone, "session expired")
	case errors.Is(err, chat.ErrRateLimited):
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "too many messages, slow down")
	default:
		h.logger.Error(internalMsg, zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

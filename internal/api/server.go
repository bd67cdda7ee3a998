package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/line/line-bot-sdk-go/v7/linebot"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"famibot/internal/metrics"
	"famibot/internal/models"
	"famibot/internal/service"
)

// WebhookParser verifies and decodes a LINE webhook delivery. The LINE
// client implements it; tests substitute fakes.
type WebhookParser interface {
	ParseRequest(r *http.Request) ([]*linebot.Event, error)
}

// Core is the service surface the HTTP layer consumes.
type Core interface {
	HandleInboundMessage(ctx context.Context, msg service.InboundMessage) error
	HandleFollow(ctx context.Context, lineUserID, replyToken string) error
	BroadcastTopics(ctx context.Context) (service.BroadcastSummary, error)
	GachaTopic(ctx context.Context, lineUserID string) (string, error)
	RecentHistory(ctx context.Context, familyID int64, limit int) ([]*models.ConversationEntry, error)
}

// Server provides the webhook endpoint and the HTTP API.
type Server struct {
	core   Core
	parser WebhookParser
	logger *logrus.Logger
	mux    *http.ServeMux
}

// NewServer creates a Server, registers all routes, and returns it.
func NewServer(core Core, parser WebhookParser, logger *logrus.Logger) *Server {
	s := &Server{core: core, parser: parser, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /webhook", s.handleWebhook)

	s.mux.HandleFunc("POST /api/broadcast", s.handleBroadcast)
	s.mux.HandleFunc("POST /api/gacha", s.handleGacha)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)

	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

// ---------------------------------------------------------------------------
// Webhook
// ---------------------------------------------------------------------------

// handleWebhook ingests one LINE delivery. Signature failures and malformed
// bodies are acknowledged with 200 and dropped: a non-success here would
// only trigger platform redelivery of a request that will never verify.
// Internal per-event failures likewise never surface; duplicate-delivery
// suppression takes priority over error transparency.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	events, err := s.parser.ParseRequest(r)
	if err != nil {
		if errors.Is(err, linebot.ErrInvalidSignature) {
			s.logger.Warn("Webhook signature verification failed")
			metrics.WebhookEvents.WithLabelValues("bad_signature").Inc()
		} else {
			s.logger.WithError(err).Warn("Failed to parse webhook delivery")
			metrics.WebhookEvents.WithLabelValues("parse_error").Inc()
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	// Strictly sequential: later events in one delivery may depend on
	// state (profile, family) created by earlier ones.
	for _, event := range events {
		s.handleEvent(r.Context(), event)
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleEvent(ctx context.Context, event *linebot.Event) {
	switch event.Type {
	case linebot.EventTypeMessage:
		text, ok := event.Message.(*linebot.TextMessage)
		if !ok {
			metrics.WebhookEvents.WithLabelValues("ignored").Inc()
			return
		}
		userID := sourceUserID(event.Source)
		if userID == "" {
			metrics.WebhookEvents.WithLabelValues("ignored").Inc()
			return
		}

		msg := service.InboundMessage{
			LineUserID: userID,
			GroupID:    sourceChannelID(event.Source),
			ReplyToken: event.ReplyToken,
			Text:       text.Text,
		}
		if err := s.core.HandleInboundMessage(ctx, msg); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"line_user_id": msg.LineUserID,
				"group_id":     msg.GroupID,
			}).Error("Failed to process message event")
			metrics.WebhookEvents.WithLabelValues("failed").Inc()
			return
		}
		metrics.WebhookEvents.WithLabelValues("processed").Inc()

	case linebot.EventTypeFollow:
		userID := sourceUserID(event.Source)
		if userID == "" {
			metrics.WebhookEvents.WithLabelValues("ignored").Inc()
			return
		}
		if err := s.core.HandleFollow(ctx, userID, event.ReplyToken); err != nil {
			s.logger.WithError(err).Errorf("Failed to process follow event for %s", userID)
			metrics.WebhookEvents.WithLabelValues("failed").Inc()
			return
		}
		metrics.WebhookEvents.WithLabelValues("processed").Inc()

	default:
		metrics.WebhookEvents.WithLabelValues("ignored").Inc()
	}
}

func sourceUserID(src *linebot.EventSource) string {
	if src == nil {
		return ""
	}
	return src.UserID
}

// sourceChannelID returns the group channel the event came from, treating
// rooms the same as groups. Empty for 1:1 chats.
func sourceChannelID(src *linebot.EventSource) string {
	if src == nil {
		return ""
	}
	if src.GroupID != "" {
		return src.GroupID
	}
	return src.RoomID
}

// ---------------------------------------------------------------------------
// Broadcast API
// ---------------------------------------------------------------------------

// handleBroadcast triggers a scheduled-mode broadcast run. Per-family
// failures are part of the summary, not of the response status.
func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	summary, err := s.core.BroadcastTopics(r.Context())
	if err != nil {
		s.logger.WithError(err).Warn("Broadcast run finished with errors")
	}
	s.respondJSON(w, http.StatusOK, summary)
}

type gachaRequest struct {
	LineUserID string `json:"line_user_id"`
}

func (s *Server) handleGacha(w http.ResponseWriter, r *http.Request) {
	var req gachaRequest
	if ok, errMsg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, errMsg)
		return
	}
	if req.LineUserID == "" {
		s.respondError(w, http.StatusBadRequest, "line_user_id is required")
		return
	}

	topic, err := s.core.GachaTopic(r.Context(), req.LineUserID)
	if err != nil {
		if errors.Is(err, service.ErrProfileNotFound) {
			s.respondError(w, http.StatusNotFound, "unknown line user")
			return
		}
		s.logger.WithError(err).Error("On-demand topic failed")
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"topic": topic})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	familyID, ok := s.requireQueryInt(w, r, "family_id")
	if !ok {
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.core.RecentHistory(r.Context(), familyID, limit)
	if err != nil {
		s.logger.WithError(err).Error("Failed to read history")
		s.respondError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	if entries == nil {
		entries = []*models.ConversationEntry{}
	}
	s.respondJSON(w, http.StatusOK, entries)
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads the request body into dst and returns an error message on
// failure. The caller should return immediately when ok == false.
func (s *Server) decodeJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil {
		return false, "request body is empty"
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

// requireQueryInt reads an integer query parameter, writing an error
// response when it is absent or invalid.
func (s *Server) requireQueryInt(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		s.respondError(w, http.StatusBadRequest, name+" query parameter is required")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, name+" must be an integer")
		return 0, false
	}
	return id, true
}

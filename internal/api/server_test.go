package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"famibot/internal/line"
	"famibot/internal/metrics"
	"famibot/internal/models"
	"famibot/internal/service"
	"famibot/pkg/logger"
)

const testChannelSecret = "test-channel-secret"

type fakeCore struct {
	messages  []service.InboundMessage
	follows   []string
	gachaErr  error
	gacha     string
	summary   service.BroadcastSummary
	history   []*models.ConversationEntry
	handleErr error
}

func (f *fakeCore) HandleInboundMessage(ctx context.Context, msg service.InboundMessage) error {
	f.messages = append(f.messages, msg)
	return f.handleErr
}

func (f *fakeCore) HandleFollow(ctx context.Context, lineUserID, replyToken string) error {
	f.follows = append(f.follows, lineUserID)
	return nil
}

func (f *fakeCore) BroadcastTopics(ctx context.Context) (service.BroadcastSummary, error) {
	return f.summary, nil
}

func (f *fakeCore) GachaTopic(ctx context.Context, lineUserID string) (string, error) {
	if f.gachaErr != nil {
		return "", f.gachaErr
	}
	return f.gacha, nil
}

func (f *fakeCore) RecentHistory(ctx context.Context, familyID int64, limit int) ([]*models.ConversationEntry, error) {
	return f.history, nil
}

func newTestServer(t *testing.T, core *fakeCore) *Server {
	t.Helper()
	l := logger.New("error")
	client, err := line.New(testChannelSecret, "test-channel-token", l)
	if err != nil {
		t.Fatalf("line.New err: %v", err)
	}
	return NewServer(core, client, l)
}

// sign computes the X-Line-Signature value the platform would send.
func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testChannelSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func webhookBody() []byte {
	return []byte(`{
		"destination": "Ubot",
		"events": [
			{
				"type": "message",
				"replyToken": "rt-1",
				"source": {"type": "group", "groupId": "G1", "userId": "U1"},
				"message": {"type": "text", "id": "100001", "text": "hello"}
			},
			{
				"type": "message",
				"replyToken": "rt-2",
				"source": {"type": "user", "userId": "U2"},
				"message": {"type": "sticker", "id": "100002", "packageId": "1", "stickerId": "2"}
			}
		]
	}`)
}

func TestWebhookValidSignature(t *testing.T) {
	core := &fakeCore{}
	srv := newTestServer(t, core)

	body := webhookBody()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Line-Signature", sign(body))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	// Only the text message event is handed to the core; the sticker
	// event is ignored.
	if len(core.messages) != 1 {
		t.Fatalf("expected 1 processed message, got %d", len(core.messages))
	}
	msg := core.messages[0]
	if msg.LineUserID != "U1" || msg.GroupID != "G1" || msg.Text != "hello" {
		t.Fatalf("unexpected inbound message: %+v", msg)
	}
}

func TestWebhookInvalidSignatureAcknowledgedWithoutProcessing(t *testing.T) {
	core := &fakeCore{}
	srv := newTestServer(t, core)

	rejected := testutil.ToFloat64(metrics.WebhookEvents.WithLabelValues("bad_signature"))

	body := webhookBody()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Line-Signature", "not-a-valid-signature")
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	// Success-shaped response prevents platform redelivery storms.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for bad signature, got %d", rec.Code)
	}
	if len(core.messages) != 0 || len(core.follows) != 0 {
		t.Fatal("no event may be processed on signature failure")
	}
	if got := testutil.ToFloat64(metrics.WebhookEvents.WithLabelValues("bad_signature")); got != rejected+1 {
		t.Fatalf("bad_signature counter: want %v, got %v", rejected+1, got)
	}
}

func TestWebhookInternalFailureStillReturns200(t *testing.T) {
	core := &fakeCore{handleErr: fmt.Errorf("storage down")}
	srv := newTestServer(t, core)

	body := webhookBody()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Line-Signature", sign(body))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 despite internal failure, got %d", rec.Code)
	}
}

func TestGachaUnknownUserIs404(t *testing.T) {
	core := &fakeCore{gachaErr: fmt.Errorf("line user U404: %w", service.ErrProfileNotFound)}
	srv := newTestServer(t, core)

	req := httptest.NewRequest(http.MethodPost, "/api/gacha",
		strings.NewReader(`{"line_user_id": "U404"}`))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGachaReturnsTopic(t *testing.T) {
	core := &fakeCore{gacha: "What was the best part of today?"}
	srv := newTestServer(t, core)

	req := httptest.NewRequest(http.MethodPost, "/api/gacha",
		strings.NewReader(`{"line_user_id": "U1"}`))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["topic"] != core.gacha {
		t.Fatalf("unexpected topic: %q", resp["topic"])
	}
}

func TestGachaRequiresUserID(t *testing.T) {
	srv := newTestServer(t, &fakeCore{})

	req := httptest.NewRequest(http.MethodPost, "/api/gacha", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestBroadcastReturnsSummary(t *testing.T) {
	core := &fakeCore{summary: service.BroadcastSummary{Processed: 3, Succeeded: 2, Failed: 1}}
	srv := newTestServer(t, core)

	req := httptest.NewRequest(http.MethodPost, "/api/broadcast", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var summary service.BroadcastSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary != core.summary {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestHistoryRequiresFamilyID(t *testing.T) {
	srv := newTestServer(t, &fakeCore{})

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

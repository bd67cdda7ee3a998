package service

import (
	"context"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"famibot/internal/ai"
	"famibot/internal/metrics"
	"famibot/internal/repository"
)

// Messenger is the outbound messaging boundary. The LINE client implements
// it; tests substitute fakes.
type Messenger interface {
	Push(ctx context.Context, to, text string) error
	Reply(ctx context.Context, replyToken, text string) error
	DisplayName(ctx context.Context, lineUserID string) (string, error)
}

// Config holds the tunables of the conversation core.
type Config struct {
	// ParticipationRate is the per-message probability of an AI reply.
	ParticipationRate float64
	// HistoryLimit is how many recent entries feed the reply context.
	HistoryLimit int
	// AITimeout bounds each text-generation call.
	AITimeout time.Duration
}

// Service is the central business logic layer: identity and family
// resolution, conversation logging, AI co-participation, and topic
// broadcasting.
type Service struct {
	logger *logrus.Logger
	cfg    Config

	Profiles      repository.ProfileRepository
	Families      repository.FamilyRepository
	Conversations repository.ConversationRepository
	Topics        repository.TopicRepository

	messenger Messenger
	generator ai.TextGenerator

	// Injected for deterministic tests.
	rand func() float64
	now  func() time.Time
}

// New creates a new Service with all required dependencies.
func New(logger *logrus.Logger, cfg Config,
	profiles repository.ProfileRepository,
	families repository.FamilyRepository,
	conversations repository.ConversationRepository,
	topics repository.TopicRepository,
	messenger Messenger,
	generator ai.TextGenerator,
) *Service {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 5
	}
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = 30 * time.Second
	}
	return &Service{
		logger:        logger,
		cfg:           cfg,
		Profiles:      profiles,
		Families:      families,
		Conversations: conversations,
		Topics:        topics,
		messenger:     messenger,
		generator:     generator,
		rand:          rand.Float64,
		now:           time.Now,
	}
}

// InboundMessage is one text message event delivered by the webhook.
// GroupID is empty for 1:1 chats; for group and room sources it carries
// whichever channel ID the platform sent.
type InboundMessage struct {
	LineUserID string
	GroupID    string
	ReplyToken string
	Text       string
}

// HandleInboundMessage resolves the sender and their family, logs the
// message, and then runs the AI co-participation trial. A returned error
// means the message could not be recorded; AI-side failures are absorbed
// here because they must never bubble into the webhook response.
func (s *Service) HandleInboundMessage(ctx context.Context, msg InboundMessage) error {
	profile, err := s.ResolveProfile(ctx, msg.LineUserID)
	if err != nil {
		return err
	}

	// Family linkage is best effort: a nil family degrades to logging the
	// message without a family rather than discarding it.
	family := s.ResolveFamily(ctx, profile, msg.GroupID)
	var familyID *int64
	if family != nil {
		familyID = &family.ID
	}

	if err := s.LogMessage(ctx, profile.ID, familyID, msg.Text, false); err != nil {
		// No AI participation when the human message was not recorded.
		return err
	}

	// The reply target follows the participation scope, not the message
	// origin: when family resolution failed the degraded sender-scoped
	// reply goes to the sender's direct channel, never into the group chat.
	replyTarget := msg.LineUserID
	if familyID != nil && msg.GroupID != "" {
		replyTarget = msg.GroupID
	}

	result, err := s.MaybeParticipate(ctx, profile.ID, familyID, replyTarget)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"profile_id": profile.ID,
			"result":     string(result),
		}).Warn("AI co-participation did not complete")
	}
	metrics.AIReplies.WithLabelValues(string(result)).Inc()

	return nil
}

// HandleFollow greets a user who just added the bot and makes sure a
// profile exists for them.
func (s *Service) HandleFollow(ctx context.Context, lineUserID, replyToken string) error {
	profile, err := s.ResolveProfile(ctx, lineUserID)
	if err != nil {
		return err
	}

	greeting := "Hi " + profile.Name() + "! I'll keep your family chat company from now on."
	if err := s.messenger.Reply(ctx, replyToken, greeting); err != nil {
		s.logger.WithError(err).Warnf("Failed to greet new follower %s", lineUserID)
	}
	return nil
}

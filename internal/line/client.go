package line

import (
	"context"
	"fmt"
	"net/http"

	"github.com/line/line-bot-sdk-go/v7/linebot"
	"github.com/sirupsen/logrus"
)

// Client wraps the LINE Messaging API
type Client struct {
	bot    *linebot.Client
	logger *logrus.Logger
}

// New creates a new LINE messaging client
func New(channelSecret, channelToken string, logger *logrus.Logger) (*Client, error) {
	bot, err := linebot.New(channelSecret, channelToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create LINE client: %w", err)
	}

	return &Client{
		bot:    bot,
		logger: logger,
	}, nil
}

// ParseRequest verifies the webhook signature over the raw request body and
// decodes the delivered events. Returns linebot.ErrInvalidSignature when the
// signature check fails; callers must treat that as "acknowledge and drop".
func (c *Client) ParseRequest(r *http.Request) ([]*linebot.Event, error) {
	return c.bot.ParseRequest(r)
}

// Push sends a text message to a user, group, or room ID. A push can fail
// for reasons outside our control (target blocked the bot, invalid ID,
// transient network error); callers decide whether to fall back.
func (c *Client) Push(ctx context.Context, to, text string) error {
	if _, err := c.bot.PushMessage(to, linebot.NewTextMessage(text)).WithContext(ctx).Do(); err != nil {
		c.logger.WithError(err).Debugf("Push to %s failed", to)
		return fmt.Errorf("failed to push message to %s: %w", to, err)
	}
	return nil
}

// Reply sends a text message using a webhook reply token.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	if _, err := c.bot.ReplyMessage(replyToken, linebot.NewTextMessage(text)).WithContext(ctx).Do(); err != nil {
		c.logger.WithError(err).Debug("Reply failed")
		return fmt.Errorf("failed to reply: %w", err)
	}
	return nil
}

// DisplayName fetches the user's profile display name from the platform.
func (c *Client) DisplayName(ctx context.Context, lineUserID string) (string, error) {
	res, err := c.bot.GetProfile(lineUserID).WithContext(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get LINE profile for %s: %w", lineUserID, err)
	}
	return res.DisplayName, nil
}

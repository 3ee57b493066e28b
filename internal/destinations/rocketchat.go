package destinations

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"herald/internal/types"
)

type rocketChatAttachment struct {
	Title     string `json:"title,omitempty"`
	TitleLink string `json:"title_link,omitempty"`
	Text      string `json:"text,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	Color     string `json:"color,omitempty"`
}

type rocketChatPayload struct {
	Alias       string                 `json:"alias,omitempty"`
	Avatar      string                 `json:"avatar,omitempty"`
	Text        string                 `json:"text,omitempty"`
	Attachments []rocketChatAttachment `json:"attachments,omitempty"`
}

// RocketChatWebhook posts one message per post to a Rocket.Chat incoming
// webhook.
type RocketChatWebhook struct {
	name   string
	config WebhookConfig
	client *http.Client
	logger *slog.Logger
}

func NewRocketChatWebhook(name string, config WebhookConfig, logger *slog.Logger) (*RocketChatWebhook, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("destination %s: webhook_url is required", name)
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RocketChatWebhook{
		name:   name,
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With("destination", name),
	}, nil
}

func (r *RocketChatWebhook) Name() string {
	return r.name
}

func (r *RocketChatWebhook) Share(ctx context.Context, posts []*types.ExtractedPost) error {
	for _, post := range posts {
		r.logger.Info("Posting to Rocket.Chat", "permalink", post.Permalink)
		if err := postJSON(ctx, r.client, r.config.URL, buildRocketChatPayload(post)); err != nil {
			return fmt.Errorf("failed to post %s: %w", post.Permalink, err)
		}
	}
	return nil
}

func buildRocketChatPayload(post *types.ExtractedPost) rocketChatPayload {
	text := post.Summary
	if text == "" {
		text = post.Body
	}
	if text == "" {
		text = post.Permalink
	} else if post.Permalink != "" {
		text = fmt.Sprintf("%s [Permalink](%s)", text, post.Permalink)
	}

	payload := rocketChatPayload{
		Alias:  post.Author,
		Avatar: post.Avatar,
		Text:   text,
	}

	images := post.Media
	if post.Thumbnail != "" {
		images = []string{post.Thumbnail}
	}
	for _, image := range images {
		payload.Attachments = append(payload.Attachments, rocketChatAttachment{ImageURL: image})
	}

	return payload
}

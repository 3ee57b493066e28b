// Package destinations delivers enriched posts.
package destinations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"herald/internal/types"
	"herald/internal/utils"
)

// Discord webhook limits.
const (
	discordUsernameLimit    = 80
	discordTitleLimit       = 256
	discordDescriptionLimit = 4096
	discordEmbedLimit       = 10
)

type WebhookConfig struct {
	URL     string
	Timeout time.Duration
}

// DiscordWebhook posts one message per post to a Discord webhook.
type DiscordWebhook struct {
	name   string
	config WebhookConfig
	client *http.Client
	logger *slog.Logger
}

func NewDiscordWebhook(name string, config WebhookConfig, logger *slog.Logger) (*DiscordWebhook, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("destination %s: webhook_url is required", name)
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &DiscordWebhook{
		name:   name,
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With("destination", name),
	}, nil
}

func (d *DiscordWebhook) Name() string {
	return d.name
}

func (d *DiscordWebhook) Share(ctx context.Context, posts []*types.ExtractedPost) error {
	for _, post := range posts {
		d.logger.Info("Posting to Discord", "permalink", post.Permalink)
		if err := postJSON(ctx, d.client, d.config.URL, buildWebhookParams(post)); err != nil {
			return fmt.Errorf("failed to post %s: %w", post.Permalink, err)
		}
	}
	return nil
}

func buildWebhookParams(post *types.ExtractedPost) *discordgo.WebhookParams {
	params := &discordgo.WebhookParams{
		Username:  utils.Truncate(post.Author, discordUsernameLimit),
		AvatarURL: post.Avatar,
	}

	description := post.Summary
	if description == "" {
		description = utils.StripHTML(post.Body, 0)
	}

	if post.Title != "" || description != "" || post.Permalink != "" || !post.Published.IsZero() {
		embed := &discordgo.MessageEmbed{
			Title:       utils.Truncate(post.Title, discordTitleLimit),
			Description: utils.Truncate(description, discordDescriptionLimit),
			URL:         post.Permalink,
		}
		if !post.Published.IsZero() {
			embed.Timestamp = post.Published.UTC().Format(time.RFC3339)
		}
		params.Embeds = append(params.Embeds, embed)
	}

	images := post.Media
	if post.Thumbnail != "" {
		images = []string{post.Thumbnail}
	}
	for _, image := range images {
		if len(params.Embeds) >= discordEmbedLimit {
			break
		}
		params.Embeds = append(params.Embeds, &discordgo.MessageEmbed{
			Image: &discordgo.MessageEmbedImage{URL: image},
		})
	}

	return params
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if !utils.IsSuccess(resp.StatusCode) {
		detail, _ := utils.ReadLimited(io.LimitReader(resp.Body, 512), 0)
		return fmt.Errorf("webhook returned %s: %s", resp.Status, bytes.TrimSpace(detail))
	}
	return nil
}

package alerting

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"time26/models"
)

const colorCritical = 0xE74C3C

type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordAlerter posts critical inconsistencies to a Discord webhook
type DiscordAlerter struct {
	session webhookExecutor
	id      string
	token   string
}

// NewDiscordAlerter creates an alerter for a webhook URL of the form
// https://discord.com/api/webhooks/<id>/<token>
func NewDiscordAlerter(webhookURL string) (*DiscordAlerter, error) {
	id, token, err := ParseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return &DiscordAlerter{session: session, id: id, token: token}, nil
}

// ParseWebhookURL extracts the webhook id and token
func ParseWebhookURL(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("not a discord webhook url: %s", u.Redacted())
}

// Critical posts the inconsistency as an embed
func (a *DiscordAlerter) Critical(ctx context.Context, inc *models.LedgerInconsistency) error {
	params := &discordgo.WebhookParams{
		Username: "TIME26 ledger",
		Embeds:   []*discordgo.MessageEmbed{InconsistencyEmbed(inc)},
	}
	if _, err := a.session.WebhookExecute(a.id, a.token, false, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to execute webhook: %w", err)
	}
	return nil
}

// InconsistencyEmbed renders an inconsistency for operators
func InconsistencyEmbed(inc *models.LedgerInconsistency) *discordgo.MessageEmbed {
	created := inc.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return &discordgo.MessageEmbed{
		Title:       "Ledger inconsistency: manual reconciliation required",
		Description: fmt.Sprintf("A %s could not be completed after %d attempts. The amount is stuck in pending burn.", inc.Operation, inc.Attempts),
		Color:       colorCritical,
		Timestamp:   created.UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: inc.UserID, Inline: true},
			{Name: "Amount (wei)", Value: inc.Amount.String(), Inline: true},
			{Name: "Reason", Value: inc.Reason},
			{Name: "Last error", Value: truncate(inc.Error, 1000)},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Inconsistency ID: %d", inc.ID),
		},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}

// LogAlerter is used when no webhook is configured
type LogAlerter struct{}

func (LogAlerter) Critical(_ context.Context, inc *models.LedgerInconsistency) error {
	log.WithFields(log.Fields{
		"critical":        true,
		"inconsistencyId": inc.ID,
		"userId":          inc.UserID,
		"amount":          inc.Amount.String(),
	}).Error("No alert webhook configured for ledger inconsistency")
	return nil
}

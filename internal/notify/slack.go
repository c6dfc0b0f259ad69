package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/adwatch/internal/models"
	"github.com/slack-go/slack"
)

// SlackMessenger mirrors fired alert notifications to an ops channel.
type SlackMessenger struct {
	client  *slack.Client
	channel string
}

func NewSlackMessenger(token, channel string) *SlackMessenger {
	return &SlackMessenger{
		client:  slack.New(token),
		channel: channel,
	}
}

func (s *SlackMessenger) Post(ctx context.Context, n *models.AlertNotification) error {
	attachment := slack.Attachment{
		Color: "#ff9900",
		Title: fmt.Sprintf("Adwatch alert: %s", n.RuleName),
		Text:  n.Message,
		Fields: []slack.AttachmentField{
			{Title: "Account", Value: n.AccountName, Short: true},
			{Title: "Entity", Value: fmt.Sprintf("%s %s", n.EntityType, n.EntityName), Short: true},
			{Title: "Current Value", Value: fmt.Sprintf("%.2f", n.MetricValue), Short: true},
			{Title: "Threshold", Value: fmt.Sprintf("%.2f", n.Threshold), Short: true},
		},
		Footer: "Adwatch Alert Engine",
		Ts:     jsonTs(n.TriggeredAt),
	}

	_, _, err := s.client.PostMessageContext(
		ctx,
		s.channel,
		slack.MsgOptionAttachments(attachment),
	)
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	return nil
}

func jsonTs(t time.Time) json.Number {
	return json.Number(strconv.FormatInt(t.Unix(), 10))
}

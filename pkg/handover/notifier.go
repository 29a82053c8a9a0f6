package handover

import (
	"context"
	"fmt"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/omnichat/relay/pkg/domain"
)

// SlackNotifier posts urgent ticket alerts to a configured channel, adapted
// from the teacher's pkg/slack.Client — the fingerprint/threading lookup
// doesn't apply here (tickets aren't deduplicated against Slack history),
// so only the thin PostMessage wrapper is kept.
type SlackNotifier struct {
	api       *goslack.Client
	channelID string
	timeout   time.Duration
}

// NewSlackNotifier builds a SlackNotifier posting to channelID with token.
func NewSlackNotifier(token, channelID string) *SlackNotifier {
	return &SlackNotifier{api: goslack.New(token), channelID: channelID, timeout: 5 * time.Second}
}

// NotifyUrgent posts an alert for a priority-4 ticket (complaint/escalation).
func (n *SlackNotifier) NotifyUrgent(ctx context.Context, t domain.HandoverTicket) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType,
				fmt.Sprintf(":rotating_light: *Urgent handover* — conversation `%s`\nReason: *%s*", t.ConversationID, t.Reason),
				false, false),
			nil, nil,
		),
	}

	_, _, err := n.api.PostMessageContext(ctx, n.channelID, goslack.MsgOptionBlocks(blocks...))
	if err != nil {
		return fmt.Errorf("chat.postMessage failed: %w", err)
	}
	return nil
}

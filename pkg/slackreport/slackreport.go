// Package slackreport posts attendance reconciliation summaries to Slack.
package slackreport

import (
	"context"
	"fmt"
	"time"

	"github.com/slack-go/slack"
)

type Reporter struct {
	client    *slack.Client
	channelID string
	loc       *time.Location
}

// New returns a reporter posting to channelID. Extra options (for example
// slack.OptionAPIURL) are passed to the Slack client.
func New(token, channelID string, loc *time.Location, opts ...slack.Option) *Reporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Reporter{client: slack.New(token, opts...), channelID: channelID, loc: loc}
}

func (r *Reporter) ReportReconciliation(ctx context.Context, kind string, fixed, failed int, at time.Time) error {
	text := fmt.Sprintf("Attendance %s reconciliation at %s: %d record(s) closed", kind, at.In(r.loc).Format("2006-01-02 15:04"), fixed)
	if failed > 0 {
		text += fmt.Sprintf(", %d failed (see service logs)", failed)
	}
	_, _, err := r.client.PostMessageContext(ctx, r.channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionAsUser(true),
	)
	if err != nil {
		return fmt.Errorf("failed to post message to Slack: %w", err)
	}
	return nil
}

package channelfilter

import (
	"github.com/alertgate/gateway/internal/models"
)

// Decision is one channel's outcome after policy filtering.
type Decision struct {
	ChannelID string
	Send      bool
	Reason    string
}

// Apply evaluates alert against every candidate channel in
// channels[candidateIDs] and drops any that the channel's own policy
// excludes: disabled channels, send_resolved=false for a resolved
// alert. Text fallback for a missing image is always allowed, so image
// availability never drops a channel here (per the distilled spec's
// "never, by default" refusal policy).
func Apply(alert *models.Alert, candidateIDs []string, channels map[string]models.Channel) []Decision {
	decisions := make([]Decision, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		ch, ok := channels[id]
		if !ok {
			decisions = append(decisions, Decision{ChannelID: id, Send: false, Reason: "unknown_channel"})
			continue
		}
		if !ch.Enabled {
			decisions = append(decisions, Decision{ChannelID: id, Send: false, Reason: "disabled"})
			continue
		}
		if alert.Status == models.StatusResolved && !ch.SendResolved {
			decisions = append(decisions, Decision{ChannelID: id, Send: false, Reason: "send_resolved=false"})
			continue
		}
		decisions = append(decisions, Decision{ChannelID: id, Send: true})
	}
	return decisions
}

// Allowed returns just the channel ids that Apply decided to deliver to,
// preserving order.
func Allowed(decisions []Decision) []string {
	out := make([]string, 0, len(decisions))
	for _, d := range decisions {
		if d.Send {
			out = append(out, d.ChannelID)
		}
	}
	return out
}

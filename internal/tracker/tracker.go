package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/RobinLiu69/MentionDodger/internal/domain"
	"github.com/RobinLiu69/MentionDodger/internal/metrics"
)

// Tracker is the per-message orchestrator: it turns qualifying mentions into
// tracked obligations with armed timeouts, and qualifying replies into
// closed obligations with disarmed timeouts. Creation and resolution within
// a single message touch disjoint mentions, so their relative order does not
// matter.
type Tracker struct {
	mentions  domain.MentionRepository
	roster    domain.RosterRepository
	dedup     domain.Deduper
	scheduler *Scheduler
	evaluator Evaluator
	settings  *SettingsCache
	publisher domain.EventPublisher
	clock     clockwork.Clock
}

// NewTracker wires the orchestrator.
func NewTracker(
	mentions domain.MentionRepository,
	roster domain.RosterRepository,
	dedup domain.Deduper,
	scheduler *Scheduler,
	settings *SettingsCache,
	publisher domain.EventPublisher,
	clock clockwork.Clock,
) *Tracker {
	return &Tracker{
		mentions:  mentions,
		roster:    roster,
		dedup:     dedup,
		scheduler: scheduler,
		settings:  settings,
		publisher: publisher,
		clock:     clock,
	}
}

// HandleMessage processes one inbound message. Store failures propagate to
// the caller and are not retried here; an unresolved mention stays open and
// is recovered at the next start.
func (t *Tracker) HandleMessage(ctx context.Context, msg *domain.Message) error {
	if msg.AuthorIsBot {
		return nil
	}
	if strings.HasPrefix(msg.Content, "/") {
		// Slash commands are handled elsewhere and never count as replies.
		return nil
	}

	first, err := t.dedup.FirstSeen(ctx, msg.DeliveryID)
	if err != nil {
		// Fail open: a broken deduper must not drop real messages.
		slog.WarnContext(ctx, "Dedup check failed, processing anyway", "delivery_id", msg.DeliveryID, "error", err)
	} else if !first {
		metrics.DedupDroppedTotal.Inc()
		slog.DebugContext(ctx, "Dropping redelivered message", "delivery_id", msg.DeliveryID)
		return nil
	}

	settings := t.settings.Current(ctx)

	if err := t.trackMentions(ctx, msg, settings); err != nil {
		return err
	}
	return t.resolveReplies(ctx, msg, settings)
}

// trackMentions creates one obligation per eligible addressee and arms its
// timeout.
func (t *Tracker) trackMentions(ctx context.Context, msg *domain.Message, settings domain.Settings) error {
	for _, mentioned := range msg.Mentions {
		if mentioned.IsBot || mentioned.ID == msg.AuthorID {
			continue
		}

		tracked, err := t.roster.IsTracked(ctx, mentioned.ID, msg.GuildID)
		if err != nil {
			return fmt.Errorf("failed to check roster for %s: %w", mentioned.ID, err)
		}
		if !tracked {
			continue
		}

		m := &domain.Mention{
			GuildID:         msg.GuildID,
			ChannelID:       msg.ChannelID,
			MessageID:       msg.MessageID,
			MentionedUserID: mentioned.ID,
			MentionerUserID: msg.AuthorID,
			MentionTime:     t.clock.Now(),
		}

		id, err := t.mentions.CreateMention(ctx, m)
		if err != nil {
			return fmt.Errorf("failed to create mention: %w", err)
		}
		m.ID = id

		t.scheduler.Schedule(m, settings.Window())
		metrics.MentionsCreatedTotal.Inc()

		slog.InfoContext(ctx, "Tracking mention",
			"mention_id", id, "mentioned_user_id", mentioned.ID,
			"mentioner_user_id", msg.AuthorID, "guild_id", msg.GuildID)

		t.publisher.PublishMentionEvent(domain.MentionEvent{
			Type:            domain.EventMentionCreated,
			MentionID:       id,
			GuildID:         m.GuildID,
			ChannelID:       m.ChannelID,
			MentionedUserID: m.MentionedUserID,
			At:              m.MentionTime,
		})
	}
	return nil
}

// resolveReplies closes every open mention this message qualifies as a reply
// to, then disarms the timers. The ledger's close-iff-open guard makes a
// concurrent timeout firing harmless in either order.
func (t *Tracker) resolveReplies(ctx context.Context, msg *domain.Message, settings domain.Settings) error {
	open, err := t.mentions.ListOpenForUser(ctx, msg.AuthorID, msg.ChannelID)
	if err != nil {
		return fmt.Errorf("failed to list open mentions: %w", err)
	}

	for i := range open {
		m := &open[i]
		if !t.evaluator.IsValidResponse(msg, m, settings.MinResponseLength) {
			continue
		}

		now := t.clock.Now()
		won, err := t.mentions.CloseAsResponded(ctx, m.ID, now)
		if err != nil {
			return fmt.Errorf("failed to close mention as responded: %w", err)
		}
		if !won {
			continue
		}

		t.scheduler.Cancel(m.ID)
		metrics.MentionsRespondedTotal.Inc()

		slog.InfoContext(ctx, "Mention answered in time",
			"mention_id", m.ID, "user_id", msg.AuthorID, "guild_id", m.GuildID)

		t.publisher.PublishMentionEvent(domain.MentionEvent{
			Type:            domain.EventMentionResponded,
			MentionID:       m.ID,
			GuildID:         m.GuildID,
			ChannelID:       m.ChannelID,
			MentionedUserID: m.MentionedUserID,
			At:              now,
		})
	}
	return nil
}

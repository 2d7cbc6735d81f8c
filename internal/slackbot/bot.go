// Package slackbot connects the conversation handler to Slack. It filters and
// deduplicates inbound events, answers each question in its own goroutine and
// posts the reply as Block Kit in the thread of the triggering message.
package slackbot

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/salesbot/salesbot/internal/conversation"
	"github.com/salesbot/salesbot/internal/observability"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"golang.org/x/time/rate"
)

const (
	defaultDedupTTL      = time.Hour
	defaultHealthCommand = "/salesbot-health"
	limiterIdleTTL       = 10 * time.Minute
)

var mentionPattern = regexp.MustCompile(`<@([A-Z0-9]+)(?:\|[^>]+)?>`)

// Poster is the subset of the Slack Web API the bot needs.
type Poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Answerer answers one question. conversation.Handler implements it.
type Answerer interface {
	Handle(ctx context.Context, question string) conversation.Reply
	Health(ctx context.Context) string
}

type Options struct {
	BotUserID          string
	HealthCommand      string
	RateLimitPerMinute int
	DedupTTL           time.Duration
	Logger             *slog.Logger
}

// Message is a question extracted from an inbound event.
type Message struct {
	Channel  string
	User     string
	Text     string
	TS       string
	ThreadTS string
	EventID  string
}

// ReplyThread is the thread the reply belongs in.
func (m Message) ReplyThread() string {
	if m.ThreadTS != "" {
		return m.ThreadTS
	}
	return m.TS
}

type Bot struct {
	poster        Poster
	answerer      Answerer
	botUserID     string
	healthCommand string
	log           *slog.Logger

	seen     *ttlcache.Cache[string, struct{}]
	limiters *ttlcache.Cache[string, *rate.Limiter]
	perMin   int

	baseCtx  context.Context
	mu       sync.RWMutex
	stopping bool
	inFlight sync.WaitGroup
}

func New(poster Poster, answerer Answerer, opts Options) *Bot {
	if opts.DedupTTL <= 0 {
		opts.DedupTTL = defaultDedupTTL
	}
	if opts.HealthCommand == "" {
		opts.HealthCommand = defaultHealthCommand
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Bot{
		poster:        poster,
		answerer:      answerer,
		botUserID:     opts.BotUserID,
		healthCommand: opts.HealthCommand,
		log:           opts.Logger,
		seen: ttlcache.New(
			ttlcache.WithTTL[string, struct{}](opts.DedupTTL),
			ttlcache.WithDisableTouchOnHit[string, struct{}](),
		),
		limiters: ttlcache.New(
			ttlcache.WithTTL[string, *rate.Limiter](limiterIdleTTL),
		),
		perMin:  opts.RateLimitPerMinute,
		baseCtx: context.Background(),
	}
}

// Start runs cache expiry until ctx is done. Questions dispatched by the
// HTTP transport run under ctx rather than the request context.
func (b *Bot) Start(ctx context.Context) {
	b.mu.Lock()
	b.baseCtx = ctx
	b.mu.Unlock()

	go b.seen.Start()
	go b.limiters.Start()
	go func() {
		<-ctx.Done()
		b.seen.Stop()
		b.limiters.Stop()
	}()
}

// Shutdown stops accepting new events and waits for in-flight questions
// until ctx expires.
func (b *Bot) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.stopping = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
		b.log.Info("all in-flight questions completed")
		return nil
	case <-ctx.Done():
		b.log.Warn("timeout waiting for in-flight questions")
		return ctx.Err()
	}
}

// HandleEvent filters and deduplicates an Events API event and dispatches the
// question it carries. It reports whether a question was dispatched.
func (b *Bot) HandleEvent(event slackevents.EventsAPIEvent, eventID string) bool {
	EventsReceivedTotal.WithLabelValues(event.Type, event.InnerEvent.Type).Inc()
	if event.Type != slackevents.CallbackEvent {
		return false
	}

	msg, reason := b.extract(event.InnerEvent)
	if reason != "" {
		MessagesIgnoredTotal.WithLabelValues(reason).Inc()
		return false
	}
	if eventID == "" {
		eventID = msg.Channel + ":" + msg.TS
	}
	msg.EventID = eventID
	if b.isDuplicate(eventID) {
		EventsDuplicateTotal.Inc()
		b.log.Info("skipping duplicate event", "event_id", eventID)
		return false
	}
	return b.dispatch(msg)
}

// extract returns the question carried by an inner event, or the reason the
// event is ignored.
func (b *Bot) extract(inner slackevents.EventsAPIInnerEvent) (Message, string) {
	switch ev := inner.Data.(type) {
	case *slackevents.AppMentionEvent:
		if ev.BotID != "" || (b.botUserID != "" && ev.User == b.botUserID) {
			return Message{}, "bot_message"
		}
		text := StripMentions(ev.Text)
		if text == "" {
			return Message{}, "empty"
		}
		return Message{Channel: ev.Channel, User: ev.User, Text: text, TS: ev.TimeStamp, ThreadTS: ev.ThreadTimeStamp}, ""
	case *slackevents.MessageEvent:
		if ev.ChannelType != "im" {
			return Message{}, "not_dm"
		}
		if ev.SubType != "" {
			return Message{}, "subtype"
		}
		if ev.BotID != "" || (b.botUserID != "" && ev.User == b.botUserID) {
			return Message{}, "bot_message"
		}
		if ev.ThreadTimeStamp != "" && ev.ThreadTimeStamp != ev.TimeStamp {
			return Message{}, "thread_reply"
		}
		text := StripMentions(ev.Text)
		if text == "" {
			return Message{}, "empty"
		}
		return Message{Channel: ev.Channel, User: ev.User, Text: text, TS: ev.TimeStamp}, ""
	default:
		return Message{}, "unsupported_event"
	}
}

func (b *Bot) isDuplicate(eventID string) bool {
	_, found := b.seen.GetOrSet(eventID, struct{}{})
	return found
}

func (b *Bot) dispatch(msg Message) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopping {
		MessagesIgnoredTotal.WithLabelValues("shutting_down").Inc()
		return false
	}
	b.inFlight.Add(1)
	ctx := b.baseCtx
	go func() {
		defer b.inFlight.Done()
		b.Process(ctx, msg)
	}()
	return true
}

// Process answers msg and posts the reply. It blocks until the reply is
// posted.
func (b *Bot) Process(ctx context.Context, msg Message) {
	start := time.Now()
	InFlightMessages.Inc()
	defer func() {
		InFlightMessages.Dec()
		MessageProcessingDuration.Observe(time.Since(start).Seconds())
	}()

	traceID := observability.NewTraceID()
	ctx = observability.ContextWithTraceID(ctx, traceID)
	log := b.log.With("trace_id", traceID, "channel", msg.Channel, "user", msg.User, "event_id", msg.EventID)

	if !b.allow(msg.User) {
		MessagesIgnoredTotal.WithLabelValues("rate_limited").Inc()
		log.Info("user rate limited")
		b.post(ctx, log, msg, "⏳ "+SanitizeErrorMessage("rate limit"), nil)
		return
	}

	log.Info("question received", "text", msg.Text)
	reply := b.answerer.Handle(ctx, msg.Text)
	log.Info("question answered", "kind", reply.Kind, "duration", reply.Duration)
	b.post(ctx, log, msg, reply.Text, BuildBlocks(reply, log))
}

func (b *Bot) allow(user string) bool {
	if b.perMin <= 0 || user == "" {
		return true
	}
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(b.perMin)), b.perMin)
	item, _ := b.limiters.GetOrSet(user, limiter)
	return item.Value().Allow()
}

func (b *Bot) post(ctx context.Context, log *slog.Logger, msg Message, text string, blocks []slack.Block) {
	options := []slack.MsgOption{
		slack.MsgOptionText(text, false),
		slack.MsgOptionTS(msg.ReplyThread()),
	}
	if len(blocks) > 0 {
		options = append(options, slack.MsgOptionBlocks(blocks...))
	}
	_, _, err := b.poster.PostMessageContext(ctx, msg.Channel, options...)
	if err == nil {
		MessagesPostedTotal.WithLabelValues("success").Inc()
		return
	}
	SlackAPIErrorsTotal.WithLabelValues("post_message").Inc()
	log.Error("failed to post reply", "error", err)
	if len(blocks) == 0 {
		MessagesPostedTotal.WithLabelValues("error").Inc()
		return
	}

	// Retry once as plain text in case the blocks were rejected.
	fallback := text + "\n\n_" + SanitizeErrorMessage(err.Error()) + "_"
	if _, _, err := b.poster.PostMessageContext(ctx, msg.Channel,
		slack.MsgOptionText(fallback, false),
		slack.MsgOptionTS(msg.ReplyThread()),
	); err != nil {
		SlackAPIErrorsTotal.WithLabelValues("post_message_fallback").Inc()
		MessagesPostedTotal.WithLabelValues("error").Inc()
		log.Error("failed to post fallback reply", "error", err)
		return
	}
	MessagesPostedTotal.WithLabelValues("fallback").Inc()
}

// HandleSlashCommand answers the admin health command. It reports false for
// any other command.
func (b *Bot) HandleSlashCommand(ctx context.Context, cmd slack.SlashCommand) (string, bool) {
	EventsReceivedTotal.WithLabelValues("slash_command", cmd.Command).Inc()
	if cmd.Command != b.healthCommand {
		MessagesIgnoredTotal.WithLabelValues("unknown_command").Inc()
		return "", false
	}
	return b.answerer.Health(ctx), true
}

// StripMentions removes user mention tokens and surrounding whitespace.
func StripMentions(text string) string {
	return strings.Join(strings.Fields(mentionPattern.ReplaceAllString(text, " ")), " ")
}

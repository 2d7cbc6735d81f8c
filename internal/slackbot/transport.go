package slackbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

const maxEventBodyBytes = 1 << 20

// RunSocketMode consumes Socket Mode events until ctx is cancelled. Every
// request is acked before the question is answered.
func (b *Bot) RunSocketMode(ctx context.Context, client *socketmode.Client) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-client.Events:
				if !ok {
					return
				}
				b.handleSocketEvent(ctx, client, evt)
			}
		}
	}()

	b.log.Info("bot running in socket mode")
	if err := client.RunContext(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("slack socket mode client: %w", err)
	}
	return ctx.Err()
}

func (b *Bot) handleSocketEvent(ctx context.Context, client *socketmode.Client, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		b.log.Info("socketmode: connecting")
	case socketmode.EventTypeConnected:
		b.log.Info("socketmode: connected")
	case socketmode.EventTypeConnectionError:
		b.log.Error("socketmode: connection error", "error", evt.Data)
	case socketmode.EventTypeEventsAPI:
		event, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok || evt.Request == nil {
			return
		}
		client.Ack(*evt.Request)
		if evt.Request.RetryAttempt > 0 {
			b.log.Info("received retried event", "envelope_id", evt.Request.EnvelopeID, "retry_attempt", evt.Request.RetryAttempt)
		}
		b.HandleEvent(event, eventIDOf(event, evt.Request.EnvelopeID))
	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok || evt.Request == nil {
			return
		}
		text, handled := b.HandleSlashCommand(ctx, cmd)
		if !handled {
			client.Ack(*evt.Request)
			return
		}
		client.Ack(*evt.Request, map[string]any{"response_type": "ephemeral", "text": text})
	}
}

// HTTPHandler serves the Events API and slash commands on one endpoint.
// Requests must carry a valid signature for signingSecret.
func (b *Bot) HTTPHandler(signingSecret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBodyBytes))
		if err != nil {
			b.log.Error("failed to read request body", "error", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := verifySignature(r.Header, body, signingSecret); err != nil {
			b.log.Warn("invalid Slack signature", "error", err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "application/x-www-form-urlencoded" {
			r.Body = io.NopCloser(bytes.NewReader(body))
			b.serveSlashCommand(w, r)
			return
		}
		b.serveEvent(w, body)
	})
}

func (b *Bot) serveEvent(w http.ResponseWriter, body []byte) {
	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		b.log.Error("failed to parse event", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if event.Type == slackevents.URLVerification {
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.log.Info("responding to URL verification challenge")
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge.Challenge))
		return
	}

	// Slack expects an answer within three seconds; the question is answered
	// asynchronously.
	w.WriteHeader(http.StatusOK)
	b.HandleEvent(event, eventIDOf(event, ""))
}

func (b *Bot) serveSlashCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		b.log.Error("failed to parse slash command", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	text, handled := b.HandleSlashCommand(r.Context(), cmd)
	if !handled {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(slack.Msg{ResponseType: slack.ResponseTypeEphemeral, Text: text})
}

func verifySignature(header http.Header, body []byte, signingSecret string) error {
	verifier, err := slack.NewSecretsVerifier(header, signingSecret)
	if err != nil {
		return err
	}
	if _, err := verifier.Write(body); err != nil {
		return err
	}
	return verifier.Ensure()
}

// eventIDOf prefers the Events API event id and falls back to the Socket
// Mode envelope id.
func eventIDOf(event slackevents.EventsAPIEvent, envelopeID string) string {
	if callback, ok := event.Data.(*slackevents.EventsAPICallbackEvent); ok && callback.EventID != "" {
		return callback.EventID
	}
	return envelopeID
}

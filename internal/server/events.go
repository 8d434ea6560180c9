package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"sambot/internal/domain"
)

const messageEventType = "message"

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With("request_id", middleware.GetReqID(r.Context()))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("event body too large", "limit", tooLarge.Limit)
			http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
			return
		}
		logger.Error("read event body", "err", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if err := s.verify(r.Header, body); err != nil {
		logger.Warn("rejected unsigned event", "err", err)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	if n := r.Header.Get("X-Slack-Retry-Num"); n != "" {
		logger.Info("slack redelivery", "retry_num", n, "reason", r.Header.Get("X-Slack-Retry-Reason"))
	}

	outer, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		// Inner event types slackevents does not know fail to parse.
		var envelope struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Type == slackevents.CallbackEvent {
			logger.Debug("ignoring unsupported callback event", "type", outer.Type, "err", err)
			w.WriteHeader(http.StatusOK)
			return
		}
		logger.Error("parse event", "err", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	switch outer.Type {
	case slackevents.URLVerification:
		challenge, ok := outer.Data.(*slackevents.EventsAPIURLVerificationEvent)
		if !ok {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(challenge.Challenge))

	case slackevents.CallbackEvent:
		cb, ok := outer.Data.(*slackevents.EventsAPICallbackEvent)
		if !ok || cb.InnerEvent == nil {
			logger.Error("callback without inner event")
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		var ev domain.Event
		if err := json.Unmarshal(*cb.InnerEvent, &ev); err != nil {
			logger.Error("decode message event", "err", err)
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		if ev.Type != messageEventType {
			logger.Debug("ignoring callback event", "type", ev.Type)
			w.WriteHeader(http.StatusOK)
			return
		}

		ack := s.dispatcher.Dispatch(r.Context(), ev)
		logger.Debug("message event acknowledged", "event_id", cb.EventID, "channel", ev.Channel, "ack", ack.String())
		writeAck(w, ack)

	default:
		logger.Debug("ignoring event envelope", "type", outer.Type)
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) verify(header http.Header, body []byte) error {
	sv, err := slack.NewSecretsVerifier(header, s.secret)
	if err != nil {
		return err
	}
	if _, err := sv.Write(body); err != nil {
		return err
	}
	return sv.Ensure()
}

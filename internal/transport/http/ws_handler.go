package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"daily-reflection-service/internal/app"
	"daily-reflection-service/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	tracker  *app.Tracker
	upgrader websocket.Upgrader
}

func NewWSHandler(tracker *app.Tracker) *WSHandler {
	return &WSHandler{
		tracker: tracker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectCategoryPayload struct {
	CategoryID string `json:"categoryId"`
}

type answerPayload struct {
	Text string `json:"text"`
}

type historyPayload struct {
	Date string `json:"date"`
}

type historyResult struct {
	Date     string `json:"date"`
	Answered bool   `json:"answered"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// tracker use cases. The client receives the catalog and a state snapshot
// on connect, then a fresh snapshot after every mutation.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.tracker.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "catalog", Payload: h.tracker.Catalog()}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "selectCategory":
			var payload selectCategoryPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid selectCategory payload"}}
				continue
			}
			if _, err := h.tracker.SelectCategory(r.Context(), payload.CategoryID); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			// The tracker stores whatever it is given; rejecting blank
			// answers is this layer's job.
			if strings.TrimSpace(payload.Text) == "" {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "answer text must not be empty"}}
				continue
			}
			if _, err := h.tracker.SubmitAnswer(r.Context(), payload.Text); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "history":
			var payload historyPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid history payload"}}
				continue
			}
			date, err := time.ParseInLocation(domain.DayKeyLayout, payload.Date, time.Local)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "date must be YYYY-MM-DD"}}
				continue
			}
			send <- outboundMessage[any]{Type: "history", Payload: historyResult{
				Date:     payload.Date,
				Answered: h.tracker.HasAnsweredOn(date),
			}}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

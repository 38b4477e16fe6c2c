package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"pathkey-service/internal/app"
	"pathkey-service/internal/domain"
	"pathkey-service/internal/pathkey"
)

type WSHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewWSHandler(service *app.GameService, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
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

type answerPayload struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type playerResult struct {
	PlayerID   string   `json:"playerId"`
	Placement  int      `json:"placement"`
	Tokens     int      `json:"tokens"`
	PathkeyIDs []string `json:"pathkeyIds,omitempty"`
}

type gameEndedPayload struct {
	GameID  string         `json:"gameId"`
	Players []playerResult `json:"players,omitempty"`
}

func endedPayload(gameID string, summary pathkey.Summary) gameEndedPayload {
	out := gameEndedPayload{GameID: gameID}
	for _, p := range summary.Players {
		out.Players = append(out.Players, playerResult{
			PlayerID:   p.PlayerID,
			Placement:  p.Placement,
			Tokens:     p.Tokens,
			PathkeyIDs: p.PathkeyIDs,
		})
	}
	return out
}

// ServeWS upgrades HTTP requests to websockets and wires them into the game use cases.
// Players join with gameId, playerId and name (studentId optional, guests omit it).
// The host connects with playerId set to its host id and host=1; it watches the
// leaderboard without joining and may send start and end.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	gameID := query.Get("gameId")
	playerID := query.Get("playerId")
	displayName := query.Get("name")
	studentID := query.Get("studentId")
	isHost := query.Get("host") == "1"
	if gameID == "" || playerID == "" || (!isHost && displayName == "") {
		http.Error(w, "missing gameId, playerId, or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	var joined domain.Leaderboard
	if !isHost {
		joined, err = h.service.Join(ctx, gameID, playerID, studentID, displayName)
		if err != nil {
			_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return
		}
		defer h.service.Leave(ctx, gameID, playerID)
	}

	updates, cancel, err := h.service.Subscribe(ctx, gameID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", "game", gameID, "player", playerID, "error", err)
				return
			}
		}
	}()

	if !isHost {
		send <- outboundMessage[any]{Type: "joined", Payload: joined}
	}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					// The host learns about the end from its own end request.
					if !isHost {
						select {
						case send <- outboundMessage[any]{Type: "gameEnded", Payload: gameEndedPayload{GameID: gameID}}:
						case <-closeSignals:
						}
					}
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch {
		case inbound.Type == "answer" && !isHost:
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			lb, result, err := h.service.SubmitAnswer(ctx, gameID, playerID, domain.AnswerSubmission{
				QuestionID: payload.QuestionID,
				OptionID:   payload.OptionID,
			})
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: result}
			send <- outboundMessage[any]{Type: "leaderboard", Payload: lb}
		case inbound.Type == "start" && isHost:
			if err := h.service.StartGame(ctx, gameID, playerID); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "started", Payload: map[string]string{"gameId": gameID}}
		case inbound.Type == "end" && isHost:
			summary, err := h.service.EndGame(ctx, gameID, playerID)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "gameEnded", Payload: endedPayload(gameID, summary)}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

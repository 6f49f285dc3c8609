package http

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// RateLimiter guards connection attempts per source address.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type WSHandler struct {
	service  *app.GameService
	hub      *Hub
	limiter  RateLimiter
	validate *validator.Validate
	upgrader websocket.Upgrader
	timeout  time.Duration
}

func NewWSHandler(service *app.GameService, hub *Hub, limiter RateLimiter) *WSHandler {
	return &WSHandler{
		service:  service,
		hub:      hub,
		limiter:  limiter,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		timeout: 5 * time.Second,
	}
}

// ServeWS upgrades HTTP requests to websockets and routes client commands to the game service.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil {
		ok, err := h.limiter.Allow(r.Context(), remoteIP(r))
		if err != nil {
			log.Printf("rate limiter: %v", err)
		} else if !ok {
			http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	c := newClient(h.hub, conn, uuid.NewString())
	h.hub.register(c)
	go c.writePump()

	c.readPump(func(msg inboundMessage) { h.handle(c, msg) })

	h.hub.unregister(c)
	h.disconnected(c)
}

func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *WSHandler) disconnected(c *Client) {
	gameID, playerID, r := c.binding()
	if gameID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	var err error
	switch r {
	case roleHost:
		err = h.service.HostDisconnected(ctx, gameID, c.id)
	case rolePlayer:
		if playerID != "" {
			err = h.service.PlayerDisconnected(ctx, gameID, playerID, c.id)
		}
	}
	if err != nil && domain.KindOf(err) != domain.KindNotFound {
		log.Printf("disconnect conn=%s game=%s: %v", c.id, gameID, err)
	}
}

func (h *WSHandler) handle(c *Client, msg inboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	data, err := h.dispatch(ctx, c, msg)
	var ack ackPayload
	if err != nil {
		if domain.KindOf(err) == domain.KindInternal {
			log.Printf("ws %s conn=%s: %v", msg.Type, c.id, err)
		}
		ack = errAck(err)
	} else {
		ack = okAck(data)
	}
	c.sendJSON(outboundMessage[ackPayload]{Type: typeAck, ID: msg.ID, Payload: ack})
}

// decode unmarshals and validates a command payload. An absent payload decodes as empty.
func (h *WSHandler) decode(raw json.RawMessage, v any) error {
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, v); err != nil {
			return domain.ErrInvalidPayload
		}
	}
	if err := h.validate.Struct(v); err != nil {
		return &domain.Error{Kind: domain.KindValidation, Message: "Invalid payload", Err: err}
	}
	return nil
}

func (h *WSHandler) dispatch(ctx context.Context, c *Client, msg inboundMessage) (map[string]any, error) {
	switch msg.Type {
	case CmdJoinGame:
		return h.joinGame(ctx, c, msg.Payload)
	case CmdSetPlayerName:
		return h.setPlayerName(ctx, c, msg.Payload)
	case CmdSubmitAnswer:
		return h.submitAnswer(ctx, c, msg.Payload)
	case CmdCreateGame:
		return h.createGame(ctx, c, msg.Payload)
	case CmdStartGame, CmdShowResults, CmdEndGame, CmdPauseGame, CmdResumeGame:
		return h.hostCommand(ctx, c, msg)
	case CmdNextQuestion:
		return h.nextQuestion(ctx, c, msg.Payload)
	case CmdKickPlayer:
		return h.kickPlayer(ctx, c, msg.Payload)
	case CmdLeaveGame:
		return h.leaveGame(ctx, c)
	case CmdPlayerReady:
		return h.playerReady(ctx, c, msg.Payload)
	case CmdReconnectHost:
		return h.reconnectHost(ctx, c, msg.Payload)
	case CmdRejoinGame:
		return h.rejoinGame(ctx, c, msg.Payload)
	case CmdGetGameInfo:
		return h.gameInfo(ctx, c)
	default:
		return nil, domain.ErrUnsupportedCommand
	}
}

func (h *WSHandler) joinGame(ctx context.Context, c *Client, raw json.RawMessage) (map[string]any, error) {
	var p joinGamePayload
	if err := h.decode(raw, &p); err != nil {
		if !domain.ValidPin(p.GamePin) {
			return nil, domain.ErrInvalidPin
		}
		return nil, err
	}
	boundGame, boundPlayer, r := c.binding()
	if r == roleHost {
		return nil, domain.ErrAlreadyInGame
	}
	view, err := h.service.JoinGame(ctx, p.GamePin)
	if err != nil {
		return nil, err
	}
	switch {
	case boundPlayer == "":
		h.hub.bind(c, view.ID, rolePlayer, "")
	case boundGame != view.ID:
		return nil, domain.ErrAlreadyInGame
	}
	return map[string]any{
		"gameId":         view.ID,
		"quizTitle":      view.QuizTitle,
		"quizBackground": view.QuizBackground,
		"gameMode":       view.Mode,
		"players":        view.Players,
		"status":         view.Status,
	}, nil
}

// gameInfo returns the public view of the game the connection is bound to.
func (h *WSHandler) gameInfo(ctx context.Context, c *Client) (map[string]any, error) {
	gameID, _, _ := c.binding()
	if gameID == "" {
		return nil, domain.ErrNotInGame
	}
	view, err := h.service.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": view}, nil
}

func (h *WSHandler) setPlayerName(ctx context.Context, c *Client, raw json.RawMessage) (map[string]any, error) {
	var p setNamePayload
	if err := h.decode(raw, &p); err != nil {
		return nil, domain.ErrInvalidName
	}
	gameID, playerID, r := c.binding()
	if gameID == "" || r == roleHost {
		return nil, domain.ErrNotInGame
	}
	joined, err := h.service.SetPlayerName(ctx, gameID, playerID, c.id, p.Name)
	if err != nil {
		return nil, err
	}
	h.hub.bind(c, gameID, rolePlayer, joined.PlayerID)
	return map[string]any{
		"playerId":     joined.PlayerID,
		"playerName":   joined.PlayerName,
		"totalPlayers": joined.TotalPlayers,
	}, nil
}

func (h *WSHandler) submitAnswer(ctx context.Context, c *Client, raw json.RawMessage) (map[string]any, error) {
	var p submitAnswerPayload
	if err := h.decode(raw, &p); err != nil {
		return nil, domain.ErrInvalidAnswer
	}
	gameID, playerID, _ := c.binding()
	if gameID == "" || playerID == "" {
		return nil, domain.ErrNotInGame
	}
	res, err := h.service.SubmitAnswer(ctx, gameID, playerID, answerInput(p.AnswerIndex, p.AnswerIndices, p.ResponseTime))
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"questionIndex": res.QuestionIndex,
		"isCorrect":     res.IsCorrect,
		"points":        res.Points,
		"totalScore":    res.TotalScore,
		"streak":        res.Streak,
	}, nil
}

// answerInput accepts a single index or a list; responseTime is in seconds.
func answerInput(index *int, indices []int, responseTime *float64) app.AnswerInput {
	in := app.AnswerInput{Selected: indices}
	if len(indices) == 0 && index != nil {
		in.Selected = []int{*index}
	}
	if responseTime != nil {
		rt := time.Duration(*responseTime * float64(time.Second))
		in.ResponseTime = &rt
	}
	return in
}

func (h *WSHandler) createGame(ctx context.Context, c *Client, raw json.RawMessage) (map[string]any, error) {
	var p createGamePayload
	if err := h.decode(raw, &p); err != nil {
		switch {
		case p.QuizID == "":
			return nil, domain.ErrQuizIDRequired
		case p.MaxPlayers < 0:
			return nil, domain.ErrInvalidMaxPlayers
		case p.GameMode != "" && !domain.GameMode(p.GameMode).Valid():
			return nil, domain.ErrInvalidGameMode
		}
		return nil, err
	}
	created, err := h.service.CreateGame(ctx, app.CreateGameInput{
		QuizID:      p.QuizID,
		Mode:        domain.GameMode(p.GameMode),
		MaxPlayers:  p.MaxPlayers,
		AutoAdvance: p.AutoAdvance,
	}, c.id)
	if err != nil {
		return nil, err
	}
	h.hub.bind(c, created.Game.ID, roleHost, "")
	return map[string]any{
		"gameId":         created.Game.ID,
		"gamePin":        created.Game.Pin,
		"quizTitle":      created.Game.QuizTitle,
		"totalQuestions": created.Game.TotalQuestions,
		"gameMode":       created.Game.Mode,
		"maxPlayers":     created.Game.MaxPlayers,
		"autoAdvance":    created.Game.AutoAdvance,
		"hostToken":      created.HostToken,
	}, nil
}

// hostTarget resolves the game a host command addresses: the one named in the
// payload, or else the game the connection is bound to. The service checks
// the connection id or host token.
func hostTarget(c *Client, p hostPayload) (string, app.Host, error) {
	gameID := p.GameID
	if gameID == "" {
		gameID, _, _ = c.binding()
	}
	if gameID == "" {
		return "", app.Host{}, domain.ErrNotInGame
	}
	return gameID, app.Host{ConnID: c.id, Token: p.HostToken}, nil
}

func (h *WSHandler) hostCommand(ctx context.Context, c *Client, msg inboundMessage) (map[string]any, error) {
	var p hostPayload
	if err := h.decode(msg.Payload, &p); err != nil {
		return nil, err
	}
	gameID, host, err := hostTarget(c, p)
	if err != nil {
		return nil, err
	}
	switch msg.Type {
	case CmdStartGame:
		view, err := h.service.StartGame(ctx, gameID, host)
		if err != nil {
			return nil, err
		}
		return map[string]any{"gameId": view.ID, "totalQuestions": view.TotalQuestions, "totalPlayers": view.TotalPlayers}, nil
	case CmdShowResults:
		res, err := h.service.ShowResults(ctx, gameID, host)
		if err != nil {
			return nil, err
		}
		return map[string]any{"results": res}, nil
	case CmdEndGame:
		final, err := h.service.EndGame(ctx, gameID, host)
		if err != nil {
			return nil, err
		}
		return map[string]any{"finalResults": final}, nil
	case CmdPauseGame:
		return nil, h.service.PauseGame(ctx, gameID, host)
	case CmdResumeGame:
		return nil, h.service.ResumeGame(ctx, gameID, host)
	}
	return nil, domain.ErrUnsupportedCommand
}

func (h *WSHandler) nextQuestion(ctx context.Context, c *Client, raw json.RawMessage) (map[string]any, error) {
	var p nextQuestionPayload
	if err := h.decode(raw, &p); err != nil {
		return nil, err
	}
	gameID, host, err := hostTarget(c, p.hostPayload)
	if err != nil {
		return nil, err
	}
	adv, err := h.service.NextQuestion(ctx, gameID, host, p.FromIndex)
	if err != nil {
		return nil, err
	}
	out := map[string]any{"questionIndex": adv.QuestionIndex, "ended": adv.Ended}
	if adv.Final != nil {
		out["finalResults"] = adv.Final
	}
	return out, nil
}

func (h *WSHandler) kickPlayer(ctx context.Context, c *Client, raw json.RawMessage) (map[string]any, error) {
	var p kickPayload
	if err := h.decode(raw, &p); err != nil {
		if p.PlayerID == "" {
			return nil, domain.ErrPlayerIDRequired
		}
		return nil, err
	}
	gameID, host, err := hostTarget(c, p.hostPayload)
	if err != nil {
		return nil, err
	}
	connID, err := h.service.KickPlayer(ctx, gameID, host, p.PlayerID)
	if err != nil {
		return nil, err
	}
	h.hub.CloseAfter(gameID, connID)
	return map[string]any{"playerId": p.PlayerID}, nil
}

func (h *WSHandler) leaveGame(ctx context.Context, c *Client) (map[string]any, error) {
	gameID, playerID, _ := c.binding()
	if gameID == "" || playerID == "" {
		return nil, domain.ErrNotInGame
	}
	if err := h.service.LeaveGame(ctx, gameID, playerID); err != nil {
		return nil, err
	}
	h.hub.bind(c, gameID, roleNone, "")
	return nil, nil
}

func (h *WSHandler) playerReady(ctx context.Context, c *Client, raw json.RawMessage) (map[string]any, error) {
	var p readyPayload
	if err := h.decode(raw, &p); err != nil {
		return nil, err
	}
	gameID, playerID, _ := c.binding()
	if gameID == "" || playerID == "" {
		return nil, domain.ErrNotInGame
	}
	if err := h.service.PlayerReady(ctx, gameID, playerID, p.IsReady); err != nil {
		return nil, err
	}
	return map[string]any{"isReady": p.IsReady}, nil
}

func (h *WSHandler) reconnectHost(ctx context.Context, c *Client, raw json.RawMessage) (map[string]any, error) {
	var p reconnectHostPayload
	if err := h.decode(raw, &p); err != nil {
		return nil, err
	}
	resume, err := h.service.ReconnectHost(ctx, p.GameID, p.HostToken, c.id)
	if err != nil {
		return nil, err
	}
	h.hub.bind(c, p.GameID, roleHost, "")
	out := map[string]any{"game": resume.Game, "secondsRemaining": resume.SecondsRemaining}
	if resume.Question != nil {
		out["question"] = resume.Question
	}
	return out, nil
}

func (h *WSHandler) rejoinGame(ctx context.Context, c *Client, raw json.RawMessage) (map[string]any, error) {
	var p rejoinPayload
	if err := h.decode(raw, &p); err != nil {
		return nil, err
	}
	rejoin, err := h.service.RejoinPlayer(ctx, p.GameID, p.PlayerID, c.id)
	if err != nil {
		return nil, err
	}
	h.hub.bind(c, p.GameID, rolePlayer, p.PlayerID)
	out := map[string]any{
		"game":             rejoin.Game,
		"playerId":         rejoin.Player.ID,
		"playerName":       rejoin.Player.Nickname,
		"score":            rejoin.Player.Score,
		"streak":           rejoin.Player.CurrentStreak,
		"secondsRemaining": rejoin.SecondsRemaining,
	}
	if rejoin.Question != nil {
		out["question"] = rejoin.Question
	}
	return out, nil
}

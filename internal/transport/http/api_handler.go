package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// ReadinessCheck reports whether a backing store is reachable.
type ReadinessCheck func(ctx context.Context) error

// APIHandler serves the request/response surface next to the websocket gateway.
type APIHandler struct {
	service *app.GameService
	checks  map[string]ReadinessCheck
}

func NewAPIHandler(service *app.GameService, checks map[string]ReadinessCheck) *APIHandler {
	return &APIHandler{service: service, checks: checks}
}

// Register mounts the routes on r.
func (h *APIHandler) Register(r gin.IRouter) {
	r.GET("/healthz", h.health)
	r.GET("/ready", h.ready)

	api := r.Group("/api")
	api.GET("/metrics", h.metrics)

	games := api.Group("/games")
	games.POST("", h.createGame)
	games.POST("/join", h.joinGame)
	games.GET("/pin/:pin", h.gameByPin)
	games.GET("/:gameId", h.game)
	games.GET("/:gameId/leaderboard", h.leaderboard)
	games.POST("/:gameId/answers", h.submitAnswer)
	games.POST("/:gameId/end", h.endGame)

	players := api.Group("/players")
	players.GET("/:playerId", h.player)
	players.PUT("/:playerId", h.updatePlayer)
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, err error) {
	status := statusOf(err)
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   http.StatusText(status),
		"message": domain.MessageOf(err),
	})
}

func statusOf(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuthorization:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// bindJSON decodes the body with gin binding tags; any failure is a bad request.
func bindJSON(c *gin.Context, v any, invalid error) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		fail(c, &domain.Error{Kind: domain.KindValidation, Message: domain.MessageOf(invalid), Err: err})
		return false
	}
	return true
}

func (h *APIHandler) health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *APIHandler) ready(c *gin.Context) {
	status := gin.H{}
	healthy := true
	for name, check := range h.checks {
		if err := check(c.Request.Context()); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"ready": healthy, "checks": status})
}

func (h *APIHandler) metrics(c *gin.Context) {
	snap, err := h.service.Metrics(c.Request.Context())
	if err != nil {
		fail(c, domain.Unavailable("metrics", err))
		return
	}
	respond(c, http.StatusOK, snap)
}

type createGameRequest struct {
	QuizID      string `json:"quizId" binding:"required"`
	GameMode    string `json:"gameMode" binding:"omitempty,oneof=normal dual_screen"`
	MaxPlayers  int    `json:"maxPlayers" binding:"gte=0"`
	AutoAdvance bool   `json:"autoAdvance"`
}

// createGame registers a game without a live host connection; the host
// attaches later with reconnect-host and the returned token.
func (h *APIHandler) createGame(c *gin.Context) {
	var req createGameRequest
	if !bindJSON(c, &req, domain.ErrQuizIDRequired) {
		return
	}
	created, err := h.service.CreateGame(c.Request.Context(), app.CreateGameInput{
		QuizID:      req.QuizID,
		Mode:        domain.GameMode(req.GameMode),
		MaxPlayers:  req.MaxPlayers,
		AutoAdvance: req.AutoAdvance,
	}, "")
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{
		"game":      created.Game,
		"hostToken": created.HostToken,
	})
}

type joinGameRequest struct {
	Pin        string `json:"pin" binding:"required"`
	PlayerName string `json:"playerName" binding:"required"`
}

func (h *APIHandler) joinGame(c *gin.Context) {
	var req joinGameRequest
	if !bindJSON(c, &req, domain.ErrInvalidPayload) {
		return
	}
	ctx := c.Request.Context()
	view, err := h.service.JoinGame(ctx, req.Pin)
	if err != nil {
		fail(c, err)
		return
	}
	joined, err := h.service.SetPlayerName(ctx, view.ID, "", "", req.PlayerName)
	if err != nil {
		fail(c, err)
		return
	}
	player, _, err := h.service.GetPlayer(ctx, joined.PlayerID)
	if err != nil {
		fail(c, err)
		return
	}
	view, err = h.service.GetGame(ctx, view.ID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"player": player.Summary(), "game": view})
}

func (h *APIHandler) gameByPin(c *gin.Context) {
	view, err := h.service.GetGameByPin(c.Request.Context(), c.Param("pin"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, view)
}

func (h *APIHandler) game(c *gin.Context) {
	view, err := h.service.GetGame(c.Request.Context(), c.Param("gameId"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, view)
}

func (h *APIHandler) leaderboard(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			fail(c, &domain.Error{Kind: domain.KindValidation, Message: "limit must be between 1 and 100"})
			return
		}
		limit = n
	}
	entries, err := h.service.Leaderboard(c.Request.Context(), c.Param("gameId"), limit)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, entries)
}

type submitAnswerRequest struct {
	PlayerID      string   `json:"playerId" binding:"required"`
	AnswerIndex   *int     `json:"answerIndex" binding:"omitempty,gte=0"`
	AnswerIndices []int    `json:"answerIndices" binding:"omitempty,dive,gte=0"`
	ResponseTime  *float64 `json:"responseTime" binding:"omitempty,gte=0"`
}

func (h *APIHandler) submitAnswer(c *gin.Context) {
	var req submitAnswerRequest
	if !bindJSON(c, &req, domain.ErrInvalidAnswer) {
		return
	}
	res, err := h.service.SubmitAnswer(c.Request.Context(), c.Param("gameId"), req.PlayerID,
		answerInput(req.AnswerIndex, req.AnswerIndices, req.ResponseTime))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, res)
}

func (h *APIHandler) endGame(c *gin.Context) {
	token := c.GetHeader("X-Host-Token")
	if token == "" {
		fail(c, domain.ErrNotHost)
		return
	}
	final, err := h.service.EndGame(c.Request.Context(), c.Param("gameId"), app.Host{Token: token})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, final)
}

func (h *APIHandler) player(c *gin.Context) {
	p, gameID, err := h.service.GetPlayer(c.Request.Context(), c.Param("playerId"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"player": p.Summary(), "gameId": gameID})
}

type updatePlayerRequest struct {
	Nickname string `json:"nickname" binding:"required"`
}

func (h *APIHandler) updatePlayer(c *gin.Context) {
	var req updatePlayerRequest
	if !bindJSON(c, &req, domain.ErrInvalidName) {
		return
	}
	p, err := h.service.UpdatePlayer(c.Request.Context(), c.Param("playerId"), req.Nickname)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, p.Summary())
}

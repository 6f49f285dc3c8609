package http

import (
	"encoding/json"

	"live-quiz-service/internal/domain"
)

// Inbound command names.
const (
	CmdJoinGame      = "join-game"
	CmdSetPlayerName = "set-player-name"
	CmdSubmitAnswer  = "submit-answer"
	CmdCreateGame    = "create-game"
	CmdStartGame     = "start-game"
	CmdNextQuestion  = "next-question"
	CmdShowResults   = "show-results"
	CmdEndGame       = "end-game"
	CmdPauseGame     = "pause-game"
	CmdResumeGame    = "resume-game"
	CmdKickPlayer    = "kick-player"
	CmdLeaveGame     = "leave-game"
	CmdPlayerReady   = "player-ready"
	CmdReconnectHost = "reconnect-host"
	CmdRejoinGame    = "rejoin-game"
	CmdGetGameInfo   = "get-game-info"
)

const (
	typeAck   = "ack"
	typeError = "error"
)

// inboundMessage is a client command. ID is echoed on the ack.
type inboundMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ackPayload is flattened into {success, message?, code?, ...data}.
type ackPayload map[string]any

func okAck(data map[string]any) ackPayload {
	out := ackPayload{"success": true}
	for k, v := range data {
		out[k] = v
	}
	return out
}

func errAck(err error) ackPayload {
	return ackPayload{
		"success": false,
		"message": domain.MessageOf(err),
		"code":    domain.KindOf(err).String(),
	}
}

type hostPayload struct {
	GameID    string `json:"gameId"`
	HostToken string `json:"hostToken"`
}

type joinGamePayload struct {
	GamePin string `json:"gamePin" validate:"required,len=6,numeric"`
}

type setNamePayload struct {
	Name string `json:"name" validate:"required"`
}

type submitAnswerPayload struct {
	AnswerIndex   *int     `json:"answerIndex" validate:"omitempty,gte=0"`
	AnswerIndices []int    `json:"answerIndices" validate:"omitempty,dive,gte=0"`
	ResponseTime  *float64 `json:"responseTime" validate:"omitempty,gte=0"`
}

type createGamePayload struct {
	QuizID      string `json:"quizId" validate:"required"`
	GameMode    string `json:"gameMode" validate:"omitempty,oneof=normal dual_screen"`
	MaxPlayers  int    `json:"maxPlayers" validate:"gte=0"`
	AutoAdvance bool   `json:"autoAdvance"`
}

type nextQuestionPayload struct {
	hostPayload
	FromIndex *int `json:"fromIndex"`
}

type kickPayload struct {
	hostPayload
	PlayerID string `json:"playerId" validate:"required"`
}

type readyPayload struct {
	IsReady bool `json:"isReady"`
}

type reconnectHostPayload struct {
	GameID    string `json:"gameId" validate:"required"`
	HostToken string `json:"hostToken" validate:"required"`
}

type rejoinPayload struct {
	GameID   string `json:"gameId" validate:"required"`
	PlayerID string `json:"playerId" validate:"required"`
}

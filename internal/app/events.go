package app

import "live-quiz-service/internal/domain"

// Outbound event names.
const (
	EventPlayerJoined      = "player-joined"
	EventPlayerLeft        = "player-left"
	EventPlayerReconnected = "player-reconnected"
	EventPlayerReady       = "player-ready-status"
	EventPlayerAnswered    = "player-answered"
	EventAnswerSubmitted   = "answer-submitted"
	EventGameStarted       = "game-started"
	EventQuestionData      = "question-data"
	EventQuestionDataHost  = "question-data-host"
	EventAnswerOptionsOnly = "answer-options-only"
	EventTimerUpdate       = "timer-update"
	EventTimerEnded        = "timer-ended"
	EventQuestionResults   = "question-results"
	EventGameEnded         = "game-ended"
	EventGamePaused        = "game-paused"
	EventGameResumed       = "game-resumed"
	EventHostDisconnected  = "host-disconnected"
	EventHostReconnected   = "host-reconnected"
	EventPlayerKicked      = "player-kicked"
)

// Reasons carried by player-left and timer-ended.
const (
	ReasonKicked       = "kicked"
	ReasonLeft         = "left"
	ReasonDisconnected = "disconnected"
	ReasonTimeout      = "timeout"
	ReasonAllAnswered  = "all_answered"
	ReasonHost         = "host"
)

type PlayerJoinedEvent struct {
	PlayerID     string                 `json:"playerId"`
	PlayerName   string                 `json:"playerName"`
	TotalPlayers int                    `json:"totalPlayers"`
	Players      []domain.PlayerSummary `json:"players"`
}

type PlayerLeftEvent struct {
	PlayerID     string `json:"playerId"`
	PlayerName   string `json:"playerName"`
	Reason       string `json:"reason"`
	TotalPlayers int    `json:"totalPlayers"`
}

type PlayerReadyEvent struct {
	PlayerID     string `json:"playerId"`
	PlayerName   string `json:"playerName"`
	IsReady      bool   `json:"isReady"`
	ReadyCount   int    `json:"readyCount"`
	TotalPlayers int    `json:"totalPlayers"`
}

type PlayerAnsweredEvent struct {
	PlayerID       string `json:"playerId"`
	PlayerName     string `json:"playerName"`
	AnswerIndex    []int  `json:"answerIndex"`
	IsCorrect      bool   `json:"isCorrect"`
	Points         int    `json:"points"`
	ResponseTimeMs int64  `json:"responseTimeMs"`
	TotalAnswered  int    `json:"totalAnswered"`
	TotalPlayers   int    `json:"totalPlayers"`
}

type GameStartedEvent struct {
	GameID         string          `json:"gameId"`
	TotalQuestions int             `json:"totalQuestions"`
	GameMode       domain.GameMode `json:"gameMode"`
}

type QuestionEvent struct {
	QuestionIndex  int                 `json:"questionIndex"`
	Question       domain.QuestionView `json:"question"`
	TotalQuestions int                 `json:"totalQuestions"`
}

type AnswerOptionsEvent struct {
	QuestionIndex  int                 `json:"questionIndex"`
	QuestionType   domain.QuestionType `json:"questionType,omitempty"`
	ItemType       domain.ItemType     `json:"itemType"`
	Options        []domain.OptionView `json:"options"`
	TimeLimit      int                 `json:"timeLimit"`
	IsDoublePoints bool                `json:"isDoublePoints"`
	TotalQuestions int                 `json:"totalQuestions"`
}

type TimerUpdateEvent struct {
	QuestionIndex    int `json:"questionIndex"`
	SecondsRemaining int `json:"secondsRemaining"`
}

type TimerEndedEvent struct {
	QuestionIndex int    `json:"questionIndex"`
	Reason        string `json:"reason"`
}

type GameEndedEvent struct {
	GameID       string                    `json:"gameId"`
	Reason       string                    `json:"reason"`
	FinalResults domain.FinalResults       `json:"finalResults"`
	Leaderboard  []domain.LeaderboardEntry `json:"leaderboard"`
}

type NoticeEvent struct {
	Message          string `json:"message"`
	SecondsRemaining int    `json:"secondsRemaining,omitempty"`
}

package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transports (ack payloads, HTTP status codes).
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthorization
	KindNotFound
	KindConflict
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error is a classified, user-presentable failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// KindOf reports the kind of err; unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the short human-readable reason for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// Unavailable wraps a backing store failure. The live operation fails closed.
func Unavailable(op string, err error) error {
	return &Error{Kind: KindUnavailable, Message: "service temporarily unavailable", Err: fmt.Errorf("%s: %w", op, err)}
}

var (
	// ErrGameNotFound is returned for unknown or expired game ids and PINs.
	ErrGameNotFound = newError(KindNotFound, "Game not found or has ended")
	// ErrPlayerNotFound is returned when a player id is not part of the game.
	ErrPlayerNotFound = newError(KindNotFound, "Player not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = newError(KindNotFound, "Quiz not found")

	ErrInvalidPin         = newError(KindValidation, "Invalid game PIN")
	ErrQuizIDRequired     = newError(KindValidation, "Quiz ID is required")
	ErrQuizEmpty          = newError(KindValidation, "Quiz has no items")
	ErrInvalidGameMode    = newError(KindValidation, "Invalid game mode")
	ErrInvalidMaxPlayers  = newError(KindValidation, "Invalid max players")
	ErrInvalidName        = newError(KindValidation, "Invalid name")
	ErrNameTooLong        = newError(KindValidation, "Name too long (max 20 characters)")
	ErrInvalidAnswer      = newError(KindValidation, "Invalid answer index")
	ErrGameFull           = newError(KindValidation, "Game is full")
	ErrGameNotJoinable    = newError(KindValidation, "Game is not accepting new players")
	ErrNotInGame          = newError(KindValidation, "Not in a game")
	ErrNoPlayers          = newError(KindValidation, "No players in game")
	ErrNoActiveQuestion   = newError(KindValidation, "No active question")
	ErrGameNotActive      = newError(KindValidation, "Game not active")
	ErrGamePaused         = newError(KindValidation, "Game is paused")
	ErrGameNotPaused      = newError(KindValidation, "Game is not paused")
	ErrPlayerIDRequired   = newError(KindValidation, "Player ID required")
	ErrUnsupportedCommand = newError(KindValidation, "Unsupported message type")
	ErrInvalidPayload     = newError(KindValidation, "Invalid payload")

	// ErrNotHost rejects host-only actions from any other connection.
	ErrNotHost = newError(KindAuthorization, "Not authorized")
	// ErrPlayerRemoved rejects actions from a kicked or departed player.
	ErrPlayerRemoved = newError(KindAuthorization, "Player was removed from the game")

	// ErrAlreadyAnswered is returned for a second submission on the same question.
	ErrAlreadyAnswered = newError(KindConflict, "Already answered this question")
	ErrNameTaken       = newError(KindConflict, "Name already taken")
	ErrQuestionClosed  = newError(KindConflict, "Question is closed")
	ErrStaleAdvance    = newError(KindConflict, "Question already advanced")
	ErrGameStarted     = newError(KindConflict, "Game already started or ended")
	ErrGameEnded       = newError(KindConflict, "Game has ended")
	ErrAlreadyInGame   = newError(KindConflict, "Already in a game")
	// ErrPinExhausted is returned when no free PIN was found within the retry budget.
	ErrPinExhausted = newError(KindConflict, "Failed to generate unique game PIN")
	// ErrIllegalTransition rejects a lifecycle move the state machine does not allow.
	ErrIllegalTransition = newError(KindConflict, "Action not allowed in the current question state")
)

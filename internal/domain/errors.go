package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a game session has not been initialized.
	ErrSessionNotFound = errors.New("game session not found")
	// ErrParticipantNotFound is returned when a player tries to act before joining.
	ErrParticipantNotFound = errors.New("participant not found in game")
	// ErrQuestionSetNotFound indicates the question set could not be loaded.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option ID is invalid.
	ErrOptionNotFound = errors.New("option not found")
	// ErrInvalidTransition is returned for a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid game status transition")
	// ErrSessionCompleted is returned when a finished game is ended again.
	ErrSessionCompleted = errors.New("game session already completed")
	// ErrAlreadyAnswered rejects a second answer to the same question by one player.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrGameNotInProgress rejects answers outside the in_progress state.
	ErrGameNotInProgress = errors.New("game is not in progress")
	// ErrAlreadyFinalized is returned when placement and rewards were already written for a player.
	ErrAlreadyFinalized = errors.New("player already finalized")
	// ErrVersionConflict signals that a versioned row changed since it was read.
	ErrVersionConflict = errors.New("record version conflict")
	// ErrGatingViolation rejects a pathkey record with a later section unlocked before Section 1.
	ErrGatingViolation = errors.New("pathkey section unlocked without career mastery")
	// ErrUnknownDriver rejects a driver tag outside the fixed six.
	ErrUnknownDriver = errors.New("unknown business driver")
	// ErrGameClosed rejects joins to completed or cancelled games.
	ErrGameClosed = errors.New("game is closed")
	// ErrInvalidGameMode is returned when a question set cannot back the requested mode.
	ErrInvalidGameMode = errors.New("question set does not match game mode")
	// ErrNotHost is returned when a non-host tries a host-only action.
	ErrNotHost = errors.New("only the host can do that")
)

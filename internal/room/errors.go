package room

// ErrorKind classifies a domain error for callers that map errors onto
// transport-level responses (HTTP status, websocket error events).
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindNotFound       ErrorKind = "not_found"
	KindStateConflict  ErrorKind = "state_conflict"
	KindAuthorization  ErrorKind = "authorization"
	KindInfrastructure ErrorKind = "infrastructure"
)

// Error is a typed domain error with a stable code and a human-readable
// message. Room operations fail fast with one of these and perform no
// partial mutation.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrRoomNotAcceptingJoins = &Error{Kind: KindStateConflict, Code: "room_not_accepting_joins", Message: "room is not accepting new participants"}
	ErrRoomFull              = &Error{Kind: KindStateConflict, Code: "room_full", Message: "room is full"}
	ErrInvalidTransition     = &Error{Kind: KindStateConflict, Code: "invalid_state_transition", Message: "operation is not valid in the current room state"}
	ErrNotYourTurn           = &Error{Kind: KindStateConflict, Code: "not_your_turn", Message: "it is not your turn"}
	ErrItemUnavailable       = &Error{Kind: KindStateConflict, Code: "item_unavailable", Message: "item is not available"}
	ErrQuotaExceeded         = &Error{Kind: KindStateConflict, Code: "quota_exceeded", Message: "participant already holds the maximum number of items"}
	ErrNoItemsAvailable      = &Error{Kind: KindStateConflict, Code: "no_items_available", Message: "no items left in the pool"}
	ErrParticipantNotFound   = &Error{Kind: KindNotFound, Code: "participant_not_found", Message: "participant not found in room"}
)

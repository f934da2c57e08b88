package signaling

import "errors"

// Текст ошибки совпадает с кодом в поле error ответа.
var (
	ErrAlreadyRegistered    = errors.New("AlreadyRegistered")
	ErrNotRegistered        = errors.New("NotRegistered")
	ErrTokenMismatch        = errors.New("TokenMismatch")
	ErrCapacityExceeded     = errors.New("CapacityExceeded")
	ErrConferenceNotFound   = errors.New("ConferenceNotFound")
	ErrParticipantNotFound  = errors.New("ParticipantNotFound")
	ErrInviteNotFound       = errors.New("InviteNotFound")
	ErrInviteAlreadyPending = errors.New("InviteAlreadyPending")
	ErrUnauthorized         = errors.New("Unauthorized")
	ErrMalformedMessage     = errors.New("MalformedMessage")

	ErrClientQueueFull    = errors.New("client message queue is full")
	ErrConnectionDisposed = errors.New("connection is disposed")
)

package room

import "errors"

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is full")
	ErrNotAParticipant  = errors.New("not a participant of this room")
	ErrPollNotFound     = errors.New("poll not found")
	ErrPollClosed       = errors.New("poll is closed")
	ErrMessageNotFound  = errors.New("message not found")
	ErrInvalidCapacity  = errors.New("room capacity must be positive")
	ErrPermissionDenied = errors.New("permission denied")
)

package services

import "errors"

// Domain errors surfaced by the chat service. Controllers map these onto
// HTTP statuses; anything else is a 500 after the one retry.
var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrMemberNotFound = errors.New("member not found")
	ErrNotMember      = errors.New("not an active member of this room")
	ErrNotAuthorized  = errors.New("requester is not an active member of this room")
	ErrAlreadyMember  = errors.New("member already in this room")
)

func isDomainError(err error) bool {
	return errors.Is(err, ErrRoomNotFound) ||
		errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrNotMember) ||
		errors.Is(err, ErrNotAuthorized) ||
		errors.Is(err, ErrAlreadyMember)
}

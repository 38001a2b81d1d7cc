package game

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrBadHostToken    = errors.New("invalid host token")
	ErrRoomNotEditable = errors.New("room can no longer be edited")
	ErrInvalidAsset    = errors.New("asset needs a reference and a matchable answer")
	ErrInvalidSettings = errors.New("invalid room settings")
)

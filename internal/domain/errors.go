package domain

import "errors"

var (
	ErrInvalidID          = errors.New("invalid id")
	ErrInvalidName        = errors.New("invalid name")
	ErrInvalidTitle       = errors.New("invalid title")
	ErrInvalidPriority    = errors.New("invalid priority")
	ErrInvalidStoryPoints = errors.New("invalid story points")
	ErrInvalidCapacity    = errors.New("invalid capacity")
	ErrInvalidException   = errors.New("invalid capacity exception")
	ErrInvalidHistory     = errors.New("invalid sprint history")
)

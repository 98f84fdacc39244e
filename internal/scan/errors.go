package scan

import "errors"

var (
	ErrInvalidRange  = errors.New("invalid index range")
	ErrInvalidParams = errors.New("invalid scan parameters")
)

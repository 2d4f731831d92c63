package field

import "errors"

var (
	ErrFieldSize = errors.New("field: size mismatch")
	ErrSpin      = errors.New("field: spin components mismatch")
)

package models

import "errors"

// ErrMatchNotFound is returned by match stores when no match has the requested id.
var ErrMatchNotFound = errors.New("match not found")

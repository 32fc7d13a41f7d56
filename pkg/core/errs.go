package core

import "errors"

var (
	ErrMalformedTimestamp = errors.New("malformed timestamp")
	ErrEmptySeries        = errors.New("empty series")
	ErrNoData             = errors.New("no data")
)

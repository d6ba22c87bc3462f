package trainer

import "errors"

var (
	ErrProviderUnavailable = errors.New("position provider unavailable")
	ErrIllegalMove         = errors.New("illegal move")
	ErrMalformedSolution   = errors.New("malformed solution")
	ErrLoading             = errors.New("position is loading")
	ErrNoPosition          = errors.New("no position loaded")
	ErrSuperseded          = errors.New("load superseded by a newer request")
)

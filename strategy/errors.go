package strategy

import "errors"

// ErrUnknownPolicy indicates that a policy name is not recognized by New.
var ErrUnknownPolicy = errors.New("unknown reallocation policy")

// ErrInvalidEpsilon indicates an exploration share outside [0, 1].
var ErrInvalidEpsilon = errors.New("epsilon must be within [0, 1]")

package rest

import "errors"

// Server configuration/option errors.
var (
	ErrNilOptions            = errors.New("rest: server options cannot be nil")
	ErrInvalidID              = errors.New("rest: server options must have a non-empty id")
	ErrInvalidListenHost      = errors.New("rest: server options must have a non-empty listen host")
	ErrInvalidListenPort      = errors.New("rest: server options must have a listen port > 0")
	ErrInvalidPrivateKeyPath  = errors.New("rest: TLS enabled but private key path is empty")
	ErrInvalidCertPath        = errors.New("rest: TLS enabled but cert path is empty")
	ErrInvalidParamType       = errors.New("rest: unsupported parameter type")
)

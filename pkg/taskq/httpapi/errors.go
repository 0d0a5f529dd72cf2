package httpapi

import "errors"

var (
	ErrStart       = errors.New("httpapi: failed to start server")
	ErrShutdown    = errors.New("httpapi: failed to shutdown server")
	ErrBadRequest  = errors.New("httpapi: bad request")
	ErrInvalidID   = errors.New("httpapi: invalid task id")
	ErrInvalidBody = errors.New("httpapi: invalid request body")
)

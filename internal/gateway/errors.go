package gateway

import "errors"

var (
	// ErrNotFound marks a 404 from the platform: the exam or attempt does
	// not exist. Fatal to session start.
	ErrNotFound = errors.New("gateway: resource not found")

	// ErrUnauthorized marks a 401 from any call. The surrounding
	// application treats it as a global force-logout signal; it is never
	// handled inside an exam session.
	ErrUnauthorized = errors.New("gateway: unauthorized")
)

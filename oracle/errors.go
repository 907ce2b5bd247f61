package oracle

import "errors"

var (
	// ErrNotFound the address has no transaction history, or the tx is unknown
	ErrNotFound = errors.New("oracle: no transaction history")
	// ErrUpstreamUnavailable transport failure or 5xx; skip the asset this cycle
	ErrUpstreamUnavailable = errors.New("oracle: upstream unavailable")
	// ErrMalformedResponse body or timestamp could not be parsed
	ErrMalformedResponse = errors.New("oracle: malformed response")
)

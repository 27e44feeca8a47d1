package wallet

import "errors"

var (
	// ErrInvalidKey is returned when imported key material cannot be
	// parsed. Nothing is persisted when this is returned.
	ErrInvalidKey = errors.New("invalid private key")

	// ErrUnknownNetwork is returned for a network key that is not in the
	// registry. No state changes when this is returned.
	ErrUnknownNetwork = errors.New("unknown network")

	// ErrNetworkUnreachable is returned when a network switch could not
	// connect to the target endpoint. The wallet rolls back to the
	// previous network.
	ErrNetworkUnreachable = errors.New("network unreachable")

	// ErrUnbound is returned when an operation requires a live chain
	// connection and an account but at least one is missing.
	ErrUnbound = errors.New("wallet not bound to a network")
)

package service

import "errors"

var (
	ErrNotFound = errors.New("error not found")

	// ErrDataIntegrity means the ledger is inconsistent, e.g. an oversell.
	// The affected portfolio is skipped and the batch continues.
	ErrDataIntegrity = errors.New("error data integrity")

	// ErrTransientProvider means a price or benchmark lookup failed on network or
	// rate limits. Affected dates are retried by the next run.
	ErrTransientProvider = errors.New("error transient provider")

	ErrMissingPrice = errors.New("error missing price")

	// ErrIncompleteSnapshot marks a valuation that could not price every holding;
	// such snapshots are never persisted.
	ErrIncompleteSnapshot = errors.New("error incomplete snapshot")

	// ErrFatalStorage aborts the whole run.
	ErrFatalStorage = errors.New("error fatal storage")

	ErrUnauthorized     = errors.New("error unauthorized")
	ErrUnknownBenchmark = errors.New("error unknown benchmark")
	ErrInvalidArgument  = errors.New("error invalid argument")
)

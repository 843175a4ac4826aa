package errors

import "errors"

var (
	ErrNetworkTransient        = errors.New("transient network failure")
	ErrTicketNotFound          = errors.New("ticket not found")
	ErrConflict                = errors.New("customer already holds an active ticket")
	ErrNotFoundAmbiguous       = errors.New("ticket missing from snapshot")
	ErrNoActiveTicket          = errors.New("no active ticket")
	ErrCompoundPartialFailure  = errors.New("left the queue but could not join the new barber")
	ErrGeolocationUnavailable  = errors.New("geolocation unavailable")
	ErrNoOpportunity           = errors.New("no faster barber available")
	ErrConfirmationNotExpected = errors.New("ticket is not waiting for confirmation")
)

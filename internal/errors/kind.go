package errors

import "errors"

// Kind classifies failures by how the agent recovers from them.
type Kind string

const (
	KindUnknown                         Kind = "unknown"
	KindNetworkTransient                Kind = "network_transient"
	KindConflict                        Kind = "conflict"
	KindNotFoundAmbiguous               Kind = "not_found_ambiguous"
	KindGeolocationUnavailable          Kind = "geolocation_unavailable"
	KindStorageUnavailable              Kind = "storage_unavailable"
	KindCompoundOperationPartialFailure Kind = "compound_operation_partial_failure"
)

func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCompoundPartialFailure):
		return KindCompoundOperationPartialFailure
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrNotFoundAmbiguous):
		return KindNotFoundAmbiguous
	case errors.Is(err, ErrGeolocationUnavailable):
		return KindGeolocationUnavailable
	case errors.Is(err, ErrStorageUnavailable):
		return KindStorageUnavailable
	case errors.Is(err, ErrNetworkTransient):
		return KindNetworkTransient
	default:
		return KindUnknown
	}
}

// IsSurfaced reports whether the failure must be shown to the customer as an
// actionable message rather than recovered silently.
func IsSurfaced(err error) bool {
	return KindOf(err) == KindCompoundOperationPartialFailure
}

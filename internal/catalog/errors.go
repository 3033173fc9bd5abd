package catalog

import "fmt"

// NotFoundError reports a requested unit number the work does not have.
type NotFoundError struct {
	SerieID int
	Type    UnitType
	Number  int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("serie %d has no %s %d", e.SerieID, e.Type, e.Number)
}

// AccessDeniedError reports a unit the session is not allowed to read,
// either because it is paywalled or because the account does not own it.
type AccessDeniedError struct {
	SerieID int
	Type    UnitType
	Number  int
	Access  AccessType
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("%s %d of serie %d is locked (%s)", e.Type, e.Number, e.SerieID, e.Access)
}

// InvalidRequestError reports a selection that cannot be interpreted.
// An empty selection is never defaulted.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

// ParseError reports a catalog payload this client cannot interpret.
type ParseError struct {
	Subject string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Subject, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

package api

import "errors"

// ErrAuthentication is wrapped by every error raised while logging in.
var ErrAuthentication = errors.New("authentication failed")

// APIError reports a failed API call. Status is zero when no response arrived.
type APIError struct {
	Message string
	Status  int
	Body    string
	Err     error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// asAuthError tags err as an authentication failure, keeping HTTP details.
func asAuthError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		tagged := *apiErr
		tagged.Err = ErrAuthentication
		return &tagged
	}
	return &APIError{Message: "Authentication failed: " + err.Error(), Err: ErrAuthentication}
}

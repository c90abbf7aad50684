package matrix

import (
	"errors"
	"fmt"
)

// ErrNotLoggedIn is returned by session methods used without an access token.
var ErrNotLoggedIn = errors.New("matrix: not logged in")

// Error is the standard Matrix error response body.
type Error struct {
	StatusCode int    `json:"-"`
	Code       string `json:"errcode"`
	Message    string `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("matrix: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// IsErrorCode reports whether err is a Matrix error with the given errcode.
func IsErrorCode(err error, code string) bool {
	var matrixErr *Error
	if errors.As(err, &matrixErr) {
		return matrixErr.Code == code
	}
	return false
}

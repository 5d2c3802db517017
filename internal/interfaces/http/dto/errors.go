package dto

import (
	"errors"
	"net/http"

	"github.com/reconciler/backend/internal/domain/shared"
)

// ErrorCodeHTTPStatus maps domain error codes to the status reported to the
// trigger. A 2xx tells the trigger not to retry.
var ErrorCodeHTTPStatus = map[string]int{
	shared.CodeValidation:    http.StatusBadRequest,
	shared.CodeNotFound:      http.StatusOK,
	shared.CodeConfiguration: http.StatusInternalServerError,
	shared.CodeDispatch:      http.StatusInternalServerError,
	shared.CodePersistence:   http.StatusInternalServerError,
	shared.CodeInvalidState:  http.StatusOK,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// StatusFor maps a reconciliation error to its HTTP status. Without strict
// configuration a missing custodian key is acknowledged like a missing record.
func StatusFor(err error, strictConfiguration bool) int {
	if errors.Is(err, ErrInvalidRecord) {
		return http.StatusBadRequest
	}
	code := shared.ErrorCode(err)
	if code == shared.CodeConfiguration && !strictConfiguration {
		return http.StatusOK
	}
	return GetHTTPStatus(code)
}

// Message returns the text sent back for err: the domain message when there is
// one, a generic text otherwise.
func Message(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	if errors.Is(err, ErrInvalidRecord) {
		return "Invalid record data"
	}
	return "Internal error"
}

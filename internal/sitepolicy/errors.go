package sitepolicy

import (
	"fmt"

	"github.com/lotas/trackerguard/internal/types"
)

// ErrorCode classifies site-list errors. The list editor keys its inline
// warning message off the code.
type ErrorCode string

const (
	ErrCodeInvalidHost   ErrorCode = "INVALID_HOST"
	ErrCodeDuplicateHost ErrorCode = "DUPLICATE_HOST"
	ErrCodeCrossList     ErrorCode = "CROSS_LIST"
)

// InvalidHostError rejects malformed or oversized host input.
type InvalidHostError struct {
	Code   ErrorCode
	Host   string
	Reason string
}

func (e *InvalidHostError) Error() string {
	return fmt.Sprintf("%s: %q: %s", e.Code, e.Host, e.Reason)
}

// DuplicateHostError rejects a host already on the target list.
type DuplicateHostError struct {
	Code ErrorCode
	Host string
	List types.ListKind
}

func (e *DuplicateHostError) Error() string {
	return fmt.Sprintf("%s: %q is already on the %s", e.Code, e.Host, e.List)
}

// CrossListWarning is not fatal: the host was moved off the other list.
type CrossListWarning struct {
	Code ErrorCode
	Host string
	From types.ListKind
	To   types.ListKind
}

func (w *CrossListWarning) Error() string {
	return fmt.Sprintf("%s: %q moved from %s to %s", w.Code, w.Host, w.From, w.To)
}

func invalidHost(host, reason string) error {
	return &InvalidHostError{Code: ErrCodeInvalidHost, Host: host, Reason: reason}
}

// Package xerrors replaces the reference implementation's exception
// hierarchy (QueueException, FileException, HookRejectException,
// DupeException, ShareException) with Go error values, per Design Note 9:
// "a result type carrying a discriminated error enum; hook rejections are a
// dedicated variant because callers often want to re-raise them to the UI
// verbatim."
package xerrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the input-validation and dupe-checking boundary
// conditions named throughout spec.md §4.5 (QueueManager.cpp equivalents).
var (
	ErrEmptyTarget       = errors.New("target path is empty")
	ErrPathTraversal     = errors.New("target path escapes data directory")
	ErrSkiplisted        = errors.New("target matches user skiplist")
	ErrTargetFileExists  = errors.New("target file already exists on disk")
	ErrSizeMismatch      = errors.New("queued file size does not match")
	ErrTTHMismatch       = errors.New("queued file TTH does not match")
	ErrDuplicateSource   = errors.New("user is already a source for this file")
	ErrSelfSource        = errors.New("cannot add self as a source")
	ErrTLSRequired       = errors.New("TLS is mandatory but peer does not support it")
	ErrNestedBundle      = errors.New("target would create a nested bundle relation")
	ErrZeroSizeSegment   = errors.New("segment size must be greater than zero")
	ErrNoFreePort        = errors.New("no free listen port available")
	ErrUnknownUser       = errors.New("unknown user")
	ErrFileNotAvailable  = errors.New("file not available")
	ErrFileAccessDenied  = errors.New("file access denied by share profile")
	ErrNoSlotAvailable   = errors.New("no upload slot available")
	ErrTokenNotFound     = errors.New("token not found")
	ErrTokenExists       = errors.New("token already registered")
	ErrBadPSRPairCount   = errors.New("partial_info length does not match 2*PC")
)

// ConnectError enumerates internal/hub's connect_to_user outcomes (§4.2.4).
type ConnectError int

const (
	ConnectOK ConnectError = iota
	ConnectProtocolUnsupported
	ConnectTLSRequired
	ConnectNoNATT
	ConnectNoHubHash
	ConnectBadState
	ConnectCCPMUnsupported
)

func (e ConnectError) Error() string {
	switch e {
	case ConnectOK:
		return "ok"
	case ConnectProtocolUnsupported:
		return "protocol unsupported"
	case ConnectTLSRequired:
		return "tls required"
	case ConnectNoNATT:
		return "no mutual NAT traversal support"
	case ConnectNoHubHash:
		return "no hub hash available"
	case ConnectBadState:
		return "connection request made in invalid state"
	case ConnectCCPMUnsupported:
		return "CCPM required but unsupported"
	default:
		return "unknown connect error"
	}
}

// Rejection is returned by a validation hook (internal/hook) that vetoes an
// operation. It is propagated verbatim to the UI-facing caller.
type Rejection struct {
	HookID   string
	ReasonID string
	Message  string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s rejected [%s]: %s", r.HookID, r.ReasonID, r.Message)
}

// NewRejection builds a *Rejection, the Go analogue of HookRejectException.
func NewRejection(hookID, reasonID, message string) *Rejection {
	return &Rejection{HookID: hookID, ReasonID: reasonID, Message: message}
}

// AsRejection unwraps err into a *Rejection if that's what it is.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	ok := errors.As(err, &r)
	return r, ok
}

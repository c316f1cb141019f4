package adc

import "fmt"

// StatusSeverity is the first digit-ish field of an ADC STA command.
type StatusSeverity int

const (
	SeveritySuccess    StatusSeverity = 0
	SeverityRecoverable StatusSeverity = 1
	SeverityFatal       StatusSeverity = 2
)

// StatusCode enumerates the STA error codes from AdcCommand.h's Error enum.
// The hundreds digit is the category (hub/login/banned/protocol/transfer/
// file), the rest the specific code.
type StatusCode int

const (
	ErrGeneric StatusCode = 0

	ErrHubGeneric  StatusCode = 10
	ErrHubFull     StatusCode = 11
	ErrHubDisabled StatusCode = 12

	ErrLoginGeneric  StatusCode = 20
	ErrNickInvalid   StatusCode = 21
	ErrNickTaken     StatusCode = 22
	ErrBadPassword   StatusCode = 23
	ErrCIDTaken      StatusCode = 24
	ErrCommandAccess StatusCode = 25
	ErrRegisteredOnly StatusCode = 26
	ErrInvalidPID    StatusCode = 27

	ErrBannedGeneric StatusCode = 30
	ErrPermBanned    StatusCode = 31
	ErrTempBanned    StatusCode = 32

	ErrProtocolGeneric StatusCode = 40
	ErrUnsupported     StatusCode = 41
	ErrConnectFailed   StatusCode = 42
	ErrInfMissing      StatusCode = 43
	ErrBadState        StatusCode = 44
	ErrFeatureMissing  StatusCode = 45
	ErrBadIP           StatusCode = 46
	ErrNoHubHash       StatusCode = 47

	ErrTransferGeneric   StatusCode = 50
	ErrFileNotAvailable  StatusCode = 51
	ErrFilePartNotAvail  StatusCode = 52
	ErrSlotsFull         StatusCode = 53
	ErrNoClientHash      StatusCode = 54
	ErrHBRITimeout       StatusCode = 55

	ErrFileAccessDenied StatusCode = 60
	ErrUnknownUser      StatusCode = 61
	ErrTLSRequired      StatusCode = 62
)

// Status is a decoded STA command body.
type Status struct {
	Severity StatusSeverity
	Code     StatusCode
	Message  string
}

// NewStatus builds the ISTA/HSTA/DSTA payload command for sev/code/msg. The
// STA code is one positional token: a severity digit followed by a
// zero-padded two-digit code (e.g. "111" = recoverable, hub full).
func NewStatus(typ AddressType, name string, sev StatusSeverity, code StatusCode, msg string) *Command {
	c := &Command{Type: typ, Name: name}
	c.AddPositional(fmt.Sprintf("%d%02d", sev, code))
	c.AddPositional(msg)
	return c
}

// ParseStatus decodes a STA command's two leading parameters.
func ParseStatus(c *Command) (Status, error) {
	if len(c.Params) < 2 {
		return Status{}, fmt.Errorf("adc: STA missing parameters")
	}
	code := c.Params[0]
	if len(code) < 3 {
		return Status{}, fmt.Errorf("adc: malformed STA code %q", code)
	}
	var sev StatusSeverity
	var num int
	if _, err := fmt.Sscanf(code, "%1d%2d", &sev, &num); err != nil {
		return Status{}, fmt.Errorf("adc: malformed STA code %q: %w", code, err)
	}
	return Status{Severity: sev, Code: StatusCode(num), Message: c.Params[1]}, nil
}

package x509cert

import (
	"errors"
	"fmt"
)

var (
	ErrDecode                        = errors.New("x509cert: decode error")
	ErrCharset                       = errors.New("x509cert: value not representable in string type")
	ErrKeyAlgorithm                  = errors.New("x509cert: unsupported key algorithm")
	ErrUnsupportedSignatureAlgorithm = errors.New("x509cert: unsupported signature algorithm")
	ErrSignatureVerificationFailed   = errors.New("x509cert: signature verification failed")
	ErrIO                            = errors.New("x509cert: I/O error")
	ErrNoPEMCertificate              = fmt.Errorf("%w: no CERTIFICATE PEM block found", ErrDecode)
	// ErrInvariant signals that bytes which were parsed successfully once
	// could not be parsed again.
	ErrInvariant = errors.New("x509cert: internal invariant violated")
)

// DecodeError describes a failure to decode a certificate under a specific
// encoding rule. It matches ErrDecode with errors.Is.
type DecodeError struct {
	Rule  EncodingRule
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("x509cert: decode error (%s)", e.Rule)
	if e.Field != "" {
		msg += " at " + e.Field
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDecode}
	}
	return []error{ErrDecode, e.Err}
}

func decodeError(rule EncodingRule, field string, format string, args ...any) error {
	return &DecodeError{Rule: rule, Field: field, Err: fmt.Errorf(format, args...)}
}

func ioError(err error) error {
	return fmt.Errorf("%w: %w", ErrIO, err)
}

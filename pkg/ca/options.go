package ca

import (
	"encoding/asn1"
	"errors"
	"math/big"
	"time"

	"github.com/gematik/zero-codesign/pkg/x509cert"
)

// SigningOption adjusts a certificate before it is signed
type SigningOption func(b *x509cert.Builder) error

// WithValidity sets the validity period, starting now.
func WithValidity(d time.Duration) SigningOption {
	return func(b *x509cert.Builder) error {
		if d <= 0 {
			return errors.New("validity must be positive")
		}
		b.NotBefore(time.Now()).ValidityDuration(d)
		return nil
	}
}

func WithSerialNumber(serial *big.Int) SigningOption {
	return func(b *x509cert.Builder) error {
		if serial == nil || serial.Sign() <= 0 {
			return errors.New("serial number must be positive")
		}
		b.SerialNumberBigInt(serial)
		return nil
	}
}

// WithExtension adds an extension with an already DER encoded value.
func WithExtension(oid asn1.ObjectIdentifier, critical bool, der []byte) SigningOption {
	return func(b *x509cert.Builder) error {
		b.AddExtensionDERData(oid, critical, der)
		return nil
	}
}

package ca

import (
	"github.com/gematik/zero-codesign/pkg/x509cert"
)

// Simple interface for a certificate authority issuing code signing
// certificates
type CertificateAuthority interface {
	IssuerCertificate() *x509cert.CapturedX509Certificate
	IssueCodeSigningCertificate(subjectKey *x509cert.KeyPair, subject x509cert.Name, opts ...SigningOption) (*x509cert.CapturedX509Certificate, error)
}

// Encodes a X509 certificate to PEM format
func EncodeCertToPEM(cert *x509cert.CapturedX509Certificate) (string, error) {
	return cert.EncodePEM()
}

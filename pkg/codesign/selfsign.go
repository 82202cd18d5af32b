package codesign

import (
	"encoding/asn1"
	"fmt"
	"time"

	"github.com/gematik/zero-codesign/pkg/x509cert"
)

// keyUsageDigitalSignature is the DER BIT STRING with only digitalSignature set.
var keyUsageDigitalSignature = []byte{0x03, 0x02, 0x07, 0x80}

// CreateSelfSignedCodeSigningCertificate generates a key pair of type alg
// and a self-signed certificate for it, usable for code signing. The subject
// consists of common name, country and email address, all as UTF8String.
// It returns the certificate, the key pair and the PKCS#8 encoding of the
// private key.
func CreateSelfSignedCodeSigningCertificate(
	alg x509cert.KeyAlgorithm,
	commonName string,
	country string,
	email string,
	validity time.Duration,
) (*x509cert.CapturedX509Certificate, *x509cert.KeyPair, []byte, error) {
	b, err := newCodeSigningBuilder(alg, commonName, country, email, validity)
	if err != nil {
		return nil, nil, nil, err
	}
	return b.CreateWithRandomKeyPair()
}

// CreateCodeSigningCertificateWithKeyPair is like
// CreateSelfSignedCodeSigningCertificate but uses an existing key pair.
func CreateCodeSigningCertificateWithKeyPair(
	kp *x509cert.KeyPair,
	commonName string,
	country string,
	email string,
	validity time.Duration,
) (*x509cert.CapturedX509Certificate, error) {
	b, err := newCodeSigningBuilder(kp.KeyAlgorithm(), commonName, country, email, validity)
	if err != nil {
		return nil, err
	}
	return b.CreateWithKeyPair(kp)
}

func newCodeSigningBuilder(alg x509cert.KeyAlgorithm, commonName, country, email string, validity time.Duration) (*x509cert.Builder, error) {
	b := x509cert.NewBuilder(alg)

	if err := b.Subject().AppendCommonNameUTF8String(commonName); err != nil {
		return nil, fmt.Errorf("common name: %w", err)
	}
	if err := b.Subject().AppendCountryUTF8String(country); err != nil {
		return nil, fmt.Errorf("country: %w", err)
	}
	if err := b.Subject().AppendUTF8String(OIDEmailAddress, email); err != nil {
		return nil, fmt.Errorf("email address: %w", err)
	}

	b.ValidityDuration(validity)
	b.AddExtensionDERData(OIDKeyUsage, true, keyUsageDigitalSignature)

	eku, err := asn1.Marshal([]asn1.ObjectIdentifier{OIDExtendedKeyUsageCodeSigning})
	if err != nil {
		return nil, err
	}
	b.AddExtensionDERData(OIDExtendedKeyUsage, true, eku)

	return b, nil
}

// IsCodeSigningCertificate reports whether the certificate carries the
// code signing extended key usage.
func IsCodeSigningCertificate(cert *x509cert.CapturedX509Certificate) bool {
	ext, ok := cert.FindExtension(OIDExtendedKeyUsage)
	if !ok {
		return false
	}

	var usages []asn1.ObjectIdentifier
	rest, err := asn1.Unmarshal(ext.Value, &usages)
	if err != nil || len(rest) > 0 {
		return false
	}
	for _, usage := range usages {
		if usage.Equal(OIDExtendedKeyUsageCodeSigning) {
			return true
		}
	}
	return false
}

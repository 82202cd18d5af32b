package ca

import (
	"crypto/rand"
	"encoding/asn1"
	"fmt"
	"math/big"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/gematik/zero-codesign/pkg/codesign"
	"github.com/gematik/zero-codesign/pkg/x509cert"
)

var (
	oidBasicConstraints = asn1.ObjectIdentifier{2, 5, 29, 19}

	// SEQUENCE { cA BOOLEAN TRUE }
	basicConstraintsCA = []byte{0x30, 0x03, 0x01, 0x01, 0xff}
	// digitalSignature, keyCertSign
	keyUsageCA = []byte{0x03, 0x02, 0x02, 0x84}
	// digitalSignature
	keyUsageLeaf = []byte{0x03, 0x02, 0x07, 0x80}
	// SEQUENCE { codeSigning }
	extKeyUsageCodeSigning = []byte{0x30, 0x0a, 0x06, 0x08, 0x2b, 0x06, 0x01, 0x05, 0x05, 0x07, 0x03, 0x03}
)

type mockCertificateAuthority struct {
	Certificate *x509cert.CapturedX509Certificate
	prk         *x509cert.KeyPair
}

func NewRandomMockCA(alg x509cert.KeyAlgorithm) (CertificateAuthority, error) {
	var issuer x509cert.Name
	if err := issuer.AppendCommonNameUTF8String(ksuid.New().String()); err != nil {
		return nil, err
	}
	return NewMockCA(alg, issuer)
}

func NewMockCA(alg x509cert.KeyAlgorithm, issuer x509cert.Name) (CertificateAuthority, error) {
	sn, err := rand.Int(rand.Reader, big.NewInt(100000))
	if err != nil {
		return nil, err
	}

	caPrk, _, err := x509cert.GenerateKeyPair(alg)
	if err != nil {
		return nil, err
	}

	b := x509cert.NewBuilder(alg)
	*b.Subject() = issuer.Clone()
	b.SerialNumberBigInt(sn.Add(sn, big.NewInt(1)))
	b.NotBefore(time.Now().Add(-1 * time.Hour)).ValidityDuration(24 * 30 * 6 * time.Hour)
	b.AddExtensionDERData(oidBasicConstraints, true, basicConstraintsCA)
	b.AddExtensionDERData(codesign.OIDKeyUsage, true, keyUsageCA)

	caCrt, err := b.CreateWithKeyPair(caPrk)
	if err != nil {
		return nil, err
	}

	return &mockCertificateAuthority{
		Certificate: caCrt,
		prk:         caPrk,
	}, nil
}

func (ca *mockCertificateAuthority) IssuerCertificate() *x509cert.CapturedX509Certificate {
	return ca.Certificate
}

func (ca *mockCertificateAuthority) IssueCodeSigningCertificate(subjectKey *x509cert.KeyPair, subject x509cert.Name, opts ...SigningOption) (*x509cert.CapturedX509Certificate, error) {
	max := new(big.Int)
	max.Exp(big.NewInt(2), big.NewInt(130), nil).Sub(max, big.NewInt(1))
	serialNumber, err := rand.Int(rand.Reader, max)
	if err != nil {
		return nil, fmt.Errorf("unable to generate serial number: %w", err)
	}

	b := x509cert.NewBuilder(subjectKey.KeyAlgorithm())
	*b.Subject() = subject.Clone()
	*b.Issuer() = ca.Certificate.SubjectName()
	b.SerialNumberBigInt(serialNumber.Add(serialNumber, big.NewInt(1)))
	b.NotBefore(time.Now().Add(-1 * time.Hour)).ValidityDuration(24 * time.Hour)
	b.AddExtensionDERData(codesign.OIDKeyUsage, true, keyUsageLeaf)
	b.AddExtensionDERData(codesign.OIDExtendedKeyUsage, true, extKeyUsageCodeSigning)

	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, fmt.Errorf("unable to apply signing option: %w", err)
		}
	}

	crt, err := b.CreateSignedBy(subjectKey, ca.prk)
	if err != nil {
		return nil, fmt.Errorf("unable to sign code signing certificate: %w", err)
	}

	if err := crt.VerifySignedByCertificate(ca.Certificate); err != nil {
		return nil, fmt.Errorf("issued certificate does not verify: %w", err)
	}

	return crt, nil
}

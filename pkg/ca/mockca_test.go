package ca_test

import (
	"encoding/asn1"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gematik/zero-codesign/pkg/ca"
	"github.com/gematik/zero-codesign/pkg/codesign"
	"github.com/gematik/zero-codesign/pkg/x509cert"
)

func testSubject(t *testing.T, cn string) x509cert.Name {
	t.Helper()
	var n x509cert.Name
	require.NoError(t, n.AppendCountryUTF8String("DE"))
	require.NoError(t, n.AppendCommonNameUTF8String(cn))
	return n
}

func TestIssueCodeSigningCertificate(t *testing.T) {
	for _, alg := range []x509cert.KeyAlgorithm{x509cert.KeyAlgorithmECDSA, x509cert.KeyAlgorithmEd25519, x509cert.KeyAlgorithmRSA} {
		t.Run(alg.String(), func(t *testing.T) {
			testCA, err := ca.NewMockCA(alg, testSubject(t, "Test CA"))
			require.NoError(t, err)
			issuer := testCA.IssuerCertificate()
			assert.True(t, issuer.SubjectIsIssuer())
			assert.NoError(t, issuer.VerifySignedByCertificate(issuer))

			keyPair, _, err := x509cert.GenerateKeyPair(x509cert.KeyAlgorithmEd25519)
			require.NoError(t, err)

			cert, err := testCA.IssueCodeSigningCertificate(keyPair, testSubject(t, "Test Certificate"))
			require.NoError(t, err)

			assert.NoError(t, cert.VerifySignedByCertificate(issuer))
			assert.ErrorIs(t, cert.VerifySignedByCertificate(cert), x509cert.ErrSignatureVerificationFailed)
			assert.True(t, cert.IssuerName().Equal(issuer.SubjectName()))
			assert.Equal(t, keyPair.PublicKeyData(), cert.PublicKeyData())
			assert.True(t, codesign.IsCodeSigningCertificate(cert))

			assert.Equal(t, 1, cert.CompareIssuer(issuer))
			// a self-signed issuer is never ordered after anything
			assert.Equal(t, 0, issuer.CompareIssuer(cert))
		})
	}
}

func TestSigningOptions(t *testing.T) {
	testCA, err := ca.NewRandomMockCA(x509cert.KeyAlgorithmECDSA)
	require.NoError(t, err)
	cn, ok := testCA.IssuerCertificate().SubjectCommonName()
	assert.True(t, ok)
	assert.Len(t, cn, 27)

	keyPair, _, err := x509cert.GenerateKeyPair(x509cert.KeyAlgorithmECDSA)
	require.NoError(t, err)

	oidAdditionalInformation := asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 99999, 1}
	info, err := asn1.MarshalWithParams(`{"owner":"Test Owner"}`, "utf8")
	require.NoError(t, err)

	cert, err := testCA.IssueCodeSigningCertificate(
		keyPair,
		testSubject(t, "Test Certificate"),
		ca.WithValidity(2*time.Hour),
		ca.WithSerialNumber(big.NewInt(4711)),
		ca.WithExtension(oidAdditionalInformation, false, info),
	)
	require.NoError(t, err)

	assert.Equal(t, int64(4711), cert.SerialNumber().Int64())
	assert.Equal(t, 2*time.Hour, cert.NotAfter().Sub(cert.NotBefore()))
	ext, ok := cert.FindExtension(oidAdditionalInformation)
	require.True(t, ok)
	assert.False(t, ext.Critical)
	assert.Equal(t, info, ext.Value)

	_, err = testCA.IssueCodeSigningCertificate(keyPair, testSubject(t, "x"), ca.WithSerialNumber(big.NewInt(0)))
	assert.Error(t, err)
	_, err = testCA.IssueCodeSigningCertificate(keyPair, testSubject(t, "x"), ca.WithValidity(0))
	assert.Error(t, err)
}

func TestEncodeCertToPEM(t *testing.T) {
	testCA, err := ca.NewRandomMockCA(x509cert.KeyAlgorithmEd25519)
	require.NoError(t, err)

	certPEM, err := ca.EncodeCertToPEM(testCA.IssuerCertificate())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(certPEM, "-----BEGIN CERTIFICATE-----"))

	decoded, err := x509cert.CapturePEM([]byte(certPEM))
	require.NoError(t, err)
	assert.True(t, decoded.Equal(testCA.IssuerCertificate()))
}

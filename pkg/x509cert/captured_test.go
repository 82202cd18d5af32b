package x509cert

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutationIsolation(t *testing.T) {
	cert, kp := newSelfSigned(t, KeyAlgorithmEd25519, "original")
	original := cert.ConstructedData()

	m := cert.Mutable()
	m.X509().TBS().SerialNumber = big.NewInt(99)
	require.NoError(t, m.X509().TBS().Subject.AppendCommonNameUTF8String("mutated"))

	assert.Equal(t, original, cert.ConstructedData())
	assert.Equal(t, original, m.ConstructedData())
	assert.Equal(t, int64(1), cert.SerialNumber().Int64())
	assert.Equal(t, int64(99), m.X509().SerialNumber().Int64())

	// verification follows the captured bytes, not the edited tree
	assert.NoError(t, m.VerifySignedByCertificate(cert))
	assert.NoError(t, m.VerifySignedByPublicKey(kp.PublicKeyData()))

	recaptured, err := m.ToCaptured()
	require.NoError(t, err)
	assert.NotEqual(t, original, recaptured.ConstructedData())
	assert.ErrorIs(t, recaptured.VerifySignedByCertificate(cert), ErrSignatureVerificationFailed)
}

func TestCapturedAccessorsReturnCopies(t *testing.T) {
	cert, _ := newSelfSigned(t, KeyAlgorithmEd25519, "copies")

	data := cert.ConstructedData()
	data[0] = 0x00
	assert.Equal(t, byte(0x30), cert.ConstructedData()[0])

	x := cert.X509()
	x.TBS().SerialNumber.SetInt64(42)
	x.TBS().Subject[0][0].Value.Value = "changed"
	assert.Equal(t, int64(1), cert.SerialNumber().Int64())
	cn, _ := cert.SubjectCommonName()
	assert.Equal(t, "copies", cn)

	subject := cert.SubjectName()
	subject[0][0].Value.Value = "changed"
	cn, _ = cert.SubjectCommonName()
	assert.Equal(t, "copies", cn)

	pub := cert.PublicKeyData()
	pub[0] ^= 0xff
	assert.NotEqual(t, pub, cert.PublicKeyData())
}

func TestCapturedEncodePEMUsesOriginalBytes(t *testing.T) {
	cert, _ := newSelfSigned(t, KeyAlgorithmECDSA, "pem")
	berData := toIndefinite(cert.ConstructedData())

	captured, err := CaptureBER(berData)
	require.NoError(t, err)

	pemData, err := captured.EncodePEM()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pemData, "-----BEGIN CERTIFICATE-----"))

	reparsed, err := CapturePEM([]byte(pemData))
	assert.ErrorIs(t, err, ErrDecode, "PEM holds the BER bytes which are not valid DER")
	assert.Nil(t, reparsed)

	x509PEM, err := captured.X509().EncodePEM()
	require.NoError(t, err)
	fromPEM, err := CapturePEM([]byte(x509PEM))
	require.NoError(t, err)
	assert.Equal(t, cert.ConstructedData(), fromPEM.ConstructedData())
}

func TestNewCapturedFromBuiltStructure(t *testing.T) {
	cert, kp := newSelfSigned(t, KeyAlgorithmRSA, "structure")
	x := cert.X509()

	recaptured, err := NewCaptured(x)
	require.NoError(t, err)
	assert.True(t, recaptured.Equal(cert))
	assert.Equal(t, DER, recaptured.EncodingRule())
	assert.NoError(t, recaptured.VerifySignedByPublicKey(kp.PublicKeyData()))
}

func TestCompareIssuer(t *testing.T) {
	rootKey, _, err := GenerateKeyPair(KeyAlgorithmEd25519)
	require.NoError(t, err)
	interKey, _, err := GenerateKeyPair(KeyAlgorithmEd25519)
	require.NoError(t, err)
	leafKey, _, err := GenerateKeyPair(KeyAlgorithmEd25519)
	require.NoError(t, err)

	b := NewBuilder(KeyAlgorithmEd25519)
	require.NoError(t, b.Subject().AppendCommonNameUTF8String("root"))
	root, err := b.CreateWithKeyPair(rootKey)
	require.NoError(t, err)
	inter := issueCert(t, "intermediate", "root", interKey, rootKey)
	leaf := issueCert(t, "leaf", "intermediate", leafKey, interKey)
	unrelated, _ := newSelfSigned(t, KeyAlgorithmEd25519, "unrelated")

	assert.Equal(t, 0, root.CompareIssuer(root))
	assert.Equal(t, 1, inter.CompareIssuer(root))
	assert.Equal(t, 0, root.CompareIssuer(inter))
	assert.Equal(t, 1, leaf.CompareIssuer(inter))
	assert.Equal(t, -1, inter.CompareIssuer(leaf))
	assert.Equal(t, 0, leaf.CompareIssuer(unrelated))
	assert.Equal(t, 0, leaf.CompareIssuer(root))

	assert.NoError(t, inter.VerifySignedByCertificate(root))
	assert.NoError(t, leaf.VerifySignedByCertificate(inter))
	assert.ErrorIs(t, leaf.VerifySignedByCertificate(root), ErrSignatureVerificationFailed)
}

func TestCertificateIsSubsetOf(t *testing.T) {
	var small, large, other Name
	require.NoError(t, small.AppendCommonNameUTF8String("alice"))
	require.NoError(t, large.AppendCountryUTF8String("DE"))
	require.NoError(t, large.AppendCommonNameUTF8String("alice"))
	require.NoError(t, other.AppendCommonNameUTF8String("bob"))

	one := big.NewInt(1)
	two := big.NewInt(2)

	tests := []struct {
		name   string
		aSer   *big.Int
		aName  Name
		bSer   *big.Int
		bName  Name
		expect bool
	}{
		{"identical", one, large, one, large, true},
		{"subset", one, small, one, large, true},
		{"superset", one, large, one, small, false},
		{"different names", one, small, one, other, false},
		{"different serials", one, large, two, large, false},
		{"empty name", one, Name{}, one, other, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, CertificateIsSubsetOf(tt.aSer, tt.aName, tt.bSer, tt.bName))
		})
	}
}

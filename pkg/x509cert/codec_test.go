package x509cert

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var oidKeyUsage = asn1.ObjectIdentifier{2, 5, 29, 15}

// stdlibCertificate creates a self-signed CA certificate with crypto/x509.
func stdlibCertificate(t *testing.T, key crypto.Signer) []byte {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1234567890),
		Subject: pkix.Name{
			CommonName:   "stdlib",
			Organization: []string{"gematik"},
			Country:      []string{"DE"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	require.NoError(t, err)
	return der
}

func stdlibKeys(t *testing.T) map[string]crypto.Signer {
	t.Helper()
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return map[string]crypto.Signer{"RSA": rsaKey, "ECDSA": ecKey, "Ed25519": edKey}
}

// toIndefinite rewrites the outer SEQUENCE of a DER element to the BER
// indefinite length form.
func toIndefinite(der []byte) []byte {
	header := 2
	if der[1]&0x80 != 0 {
		header += int(der[1] & 0x7f)
	}
	out := []byte{der[0], 0x80}
	out = append(out, der[header:]...)
	return append(out, 0x00, 0x00)
}

func TestDecodeStdlibCertificates(t *testing.T) {
	for name, key := range stdlibKeys(t) {
		t.Run(name, func(t *testing.T) {
			der := stdlibCertificate(t, key)

			x, err := FromDER(der)
			require.NoError(t, err)

			cn, ok := x.SubjectCommonName()
			assert.True(t, ok)
			assert.Equal(t, "stdlib", cn)
			assert.Equal(t, "CN=stdlib,O=gematik,C=DE", x.SubjectName().UserFriendlyString())
			assert.Equal(t, int64(1234567890), x.SerialNumber().Int64())
			assert.Equal(t, V3, x.TBS().Version)
			assert.True(t, x.SubjectIsIssuer())

			_, ok = x.FindExtension(oidKeyUsage)
			assert.True(t, ok)

			reencoded, err := x.EncodeDER()
			require.NoError(t, err)
			assert.Equal(t, der, reencoded)

			captured, err := CaptureDER(der)
			require.NoError(t, err)
			assert.NoError(t, captured.VerifySignedByCertificate(captured))
		})
	}
}

func TestDecodeBER(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der := stdlibCertificate(t, key)
	berData := toIndefinite(der)

	_, err = FromDER(berData)
	assert.ErrorIs(t, err, ErrDecode)

	fromBER, err := FromBER(berData)
	require.NoError(t, err)
	fromDER, err := FromDER(der)
	require.NoError(t, err)
	assert.True(t, fromBER.Equal(fromDER))

	captured, err := CaptureBER(berData)
	require.NoError(t, err)
	assert.Equal(t, BER, captured.EncodingRule())
	assert.Equal(t, berData, captured.ConstructedData())
	assert.NoError(t, captured.VerifySignedByCertificate(captured))

	reencoded, err := captured.EncodeDER()
	require.NoError(t, err)
	assert.Equal(t, der, reencoded)

	// the captured fingerprint covers the original bytes, the parsed one
	// the DER form
	berSum := sha256.Sum256(berData)
	derSum := sha256.Sum256(der)
	fingerprint, err := captured.FingerprintSHA256()
	require.NoError(t, err)
	assert.Equal(t, berSum[:], fingerprint)
	fingerprint, err = fromBER.FingerprintSHA256()
	require.NoError(t, err)
	assert.Equal(t, derSum[:], fingerprint)
}

func TestDecodeErrors(t *testing.T) {
	cert, _ := newSelfSigned(t, KeyAlgorithmEd25519, "broken")
	der := cert.ConstructedData()

	t.Run("garbage", func(t *testing.T) {
		_, err := FromDER([]byte{0x01, 0x02, 0x03})
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("trailing data", func(t *testing.T) {
		_, err := FromDER(append(bytes.Clone(der), 0x00))
		var decodeErr *DecodeError
		require.True(t, errors.As(err, &decodeErr))
		assert.Equal(t, DER, decodeErr.Rule)
		assert.Equal(t, "certificate", decodeErr.Field)
	})

	t.Run("extensions in version 1", func(t *testing.T) {
		x := cert.X509()
		x.TBS().Version = V1
		x.TBS().Extensions = []Extension{{ID: OIDCommonName, Value: []byte{0x05, 0x00}}}
		data, err := x.EncodeDER()
		require.NoError(t, err)

		_, err = FromDER(data)
		assert.ErrorIs(t, err, ErrDecode)
		var decodeErr *DecodeError
		require.True(t, errors.As(err, &decodeErr))
		assert.Equal(t, "tbsCertificate.extensions", decodeErr.Field)
	})

	t.Run("truncated BER", func(t *testing.T) {
		_, err := FromBER(der[:len(der)-10])
		var decodeErr *DecodeError
		require.True(t, errors.As(err, &decodeErr))
		assert.Equal(t, BER, decodeErr.Rule)
	})
}

func TestPEM(t *testing.T) {
	a, _ := newSelfSigned(t, KeyAlgorithmEd25519, "a")
	b, _ := newSelfSigned(t, KeyAlgorithmEd25519, "b")

	var buf bytes.Buffer
	require.NoError(t, a.WritePEM(&buf))
	require.NoError(t, pem.Encode(&buf, &pem.Block{Type: "PRIVATE KEY", Bytes: []byte{0x30, 0x00}}))
	require.NoError(t, b.WritePEM(&buf))
	data := buf.Bytes()

	first, err := FromPEM(data)
	require.NoError(t, err)
	assert.True(t, first.Equal(a.X509()))

	certs, err := FromPEMMultiple(data)
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.True(t, certs[1].Equal(b.X509()))

	captured, err := CapturePEMMultipleTags(data, "CERTIFICATE", "TRUSTED CERTIFICATE")
	require.NoError(t, err)
	require.Len(t, captured, 2)
	assert.True(t, captured[0].Equal(a))

	keyOnly := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte{0x30, 0x00}})
	_, err = FromPEM(keyOnly)
	assert.ErrorIs(t, err, ErrNoPEMCertificate)
	assert.ErrorIs(t, err, ErrDecode)

	none, err := FromPEMMultiple(keyOnly)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEncodeToWriter(t *testing.T) {
	cert, _ := newSelfSigned(t, KeyAlgorithmEd25519, "writer")
	x := cert.X509()

	var buf bytes.Buffer
	require.NoError(t, x.EncodeDERTo(&buf))
	assert.Equal(t, cert.ConstructedData(), buf.Bytes())

	err := x.EncodeDERTo(failingWriter{})
	assert.ErrorIs(t, err, ErrIO)
	assert.NotErrorIs(t, err, ErrDecode)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestRDNOrdering(t *testing.T) {
	cert, _ := newSelfSigned(t, KeyAlgorithmEd25519, "order")
	x := cert.X509()

	country, err := NewAttributeValue(PrintableString, "US")
	require.NoError(t, err)
	cn, err := NewAttributeValue(UTF8String, "zz")
	require.NoError(t, err)
	x.TBS().Subject = Name{{
		{Type: OIDCountryName, Value: country},
		{Type: OIDCommonName, Value: cn},
	}}

	der, err := x.EncodeDER()
	require.NoError(t, err)
	fromDER, err := FromDER(der)
	require.NoError(t, err)
	assert.True(t, OIDCommonName.Equal(fromDER.SubjectName()[0][0].Type))

	berData, err := x.EncodeBER()
	require.NoError(t, err)
	fromBER, err := FromBER(berData)
	require.NoError(t, err)
	assert.True(t, OIDCountryName.Equal(fromBER.SubjectName()[0][0].Type))

	assert.True(t, fromDER.SubjectName().Equal(fromBER.SubjectName()))
}

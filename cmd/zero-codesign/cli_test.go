package main

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gematik/zero-codesign/pkg/codesign"
	"github.com/gematik/zero-codesign/pkg/x509cert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelfSignAndInspect(t *testing.T) {
	dir := t.TempDir()
	profile := &Profile{
		BaseDir:    dir,
		Algorithm:  "ecdsa",
		CommonName: "Example Signer",
		Country:    "DE",
		Email:      "dev@example.com",
		Validity:   "24h",
		Output: Output{
			Certificate: "codesign.crt",
			PrivateKey:  "codesign.key",
			PFX:         "codesign.p12",
			PFXPassword: "secret",
		},
	}
	require.NoError(t, validateProfile(profile))
	require.NoError(t, selfSign(profile))

	cert, err := loadCertificateFile(filepath.Join(dir, "codesign.crt"))
	require.NoError(t, err)
	assert.True(t, codesign.IsCodeSigningCertificate(cert))

	var out bytes.Buffer
	require.NoError(t, printCertificate(&out, cert))
	assert.Contains(t, out.String(), "Self-signed:   yes")
	assert.Contains(t, out.String(), "Code signing:  true")
	assert.Contains(t, out.String(), `"kty": "EC"`)

	// DER input is accepted as well
	der, err := cert.EncodeDER()
	require.NoError(t, err)
	fromDER, err := loadCertificate(der)
	require.NoError(t, err)
	assert.True(t, cert.X509().Equal(fromDER.X509()))

	p12, err := os.ReadFile(filepath.Join(dir, "codesign.p12"))
	require.NoError(t, err)
	out.Reset()
	require.NoError(t, printPFX(&out, p12, "secret"))
	assert.Contains(t, out.String(), "Certificate 0: encrypted=true")
	assert.Contains(t, out.String(), "shrouded=true")
	assert.Contains(t, out.String(), "Matching pairs: 1")

	keyPEM, err := os.ReadFile(filepath.Join(dir, "codesign.key"))
	require.NoError(t, err)
	assert.Contains(t, string(keyPEM), "BEGIN PRIVATE KEY")
}

func TestLoadCertificateGarbage(t *testing.T) {
	_, err := loadCertificate([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestPrintCertificateUnsupportedKey(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(42),
		Subject:               pkix.Name{CommonName: "P-384 Root"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	require.NoError(t, err)

	cert, err := x509cert.CaptureDER(der)
	require.NoError(t, err)
	_, err = cert.KeyAlgorithm()
	require.ErrorIs(t, err, x509cert.ErrKeyAlgorithm)

	var out bytes.Buffer
	require.NoError(t, printCertificate(&out, cert))
	assert.Contains(t, out.String(), "Subject:       CN=P-384 Root")
	assert.Contains(t, out.String(), "Key:           unknown")
	assert.Contains(t, out.String(), "Signature:     ECDSA-SHA384")
}

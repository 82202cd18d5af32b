package pkcs12

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gematik/zero-codesign/pkg/ber"
)

// testIdentity creates a self-signed certificate and its key.
func testIdentity(t *testing.T, cn string) (*x509.Certificate, crypto.Signer) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(42),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert, key
}

// testBags returns bags holding one certificate and its PKCS#8 key.
func testBags(t *testing.T) *Bags {
	t.Helper()
	cert, key := testIdentity(t, "bags")
	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	keyID := []byte{1, 2, 3, 4}
	return &Bags{
		Certificates: []CertificateBag{{Raw: cert.Raw, FriendlyName: "Grüße", LocalKeyID: keyID}},
		PrivateKeys:  []PrivateKeyBag{{Raw: pkcs8, FriendlyName: "Grüße", LocalKeyID: keyID}},
	}
}

// toIndefinite rewrites the outer element of a DER encoding to the BER
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

func TestOIDConstants(t *testing.T) {
	tests := []struct {
		name     string
		oid      asn1.ObjectIdentifier
		expected string
	}{
		{"Data", OIDData, "1.2.840.113549.1.7.1"},
		{"EncryptedData", OIDEncryptedData, "1.2.840.113549.1.7.6"},
		{"CertBag", OIDCertBag, "1.2.840.113549.1.12.10.1.3"},
		{"PKCS8ShroudedKeyBag", OIDPKCS8ShroudedKeyBag, "1.2.840.113549.1.12.10.1.2"},
		{"X509Certificate", OIDX509Certificate, "1.2.840.113549.1.9.22.1"},
		{"FriendlyName", OIDFriendlyName, "1.2.840.113549.1.9.20"},
		{"LocalKeyID", OIDLocalKeyID, "1.2.840.113549.1.9.21"},
		{"PBES2", OIDPBES2, "1.2.840.113549.1.5.13"},
		{"PBKDF2", OIDPBKDF2, "1.2.840.113549.1.5.12"},
		{"AES128CBC", OIDAes128CBC, "2.16.840.1.101.3.4.1.2"},
		{"AES256CBC", OIDAes256CBC, "2.16.840.1.101.3.4.1.42"},
		{"HMACSHA256", OIDHMACSHA256, "1.2.840.113549.2.9"},
		{"RC2-40", OIDPBEWithSHAAnd40BitRC2CBC, "1.2.840.113549.1.12.1.6"},
		{"3DES", OIDPBEWithSHAAnd3KeyTripleDESCBC, "1.2.840.113549.1.12.1.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.oid.String())
		})
	}
}

func TestDecodeBMPString(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    string
		wantErr bool
	}{
		{name: "ASCII text", input: []byte{0x00, 0x48, 0x00, 0x65, 0x00, 0x6c, 0x00, 0x6c, 0x00, 0x6f}, want: "Hello"},
		{name: "with terminator", input: []byte{0x00, 0x41, 0x00, 0x00}, want: "A"},
		{name: "umlaut", input: []byte{0x00, 0xfc}, want: "ü"},
		{name: "empty string", input: []byte{}, want: ""},
		{name: "odd length", input: []byte{0x00, 0x48, 0x00}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeBMPString(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrParse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBMPPassword(t *testing.T) {
	assert.Equal(t, []byte{0x00, 0x00}, BMPPassword(""))
	assert.Equal(t, []byte{0x00, 0x30, 0x00, 0x30, 0x00, 0x00}, BMPPassword("00"))
	assert.Equal(t, []byte{0x00, 0xe4, 0x00, 0x00}, BMPPassword("ä"))
	// outside the BMP a surrogate pair is written
	assert.Equal(t, []byte{0xd8, 0x3d, 0xde, 0x42, 0x00, 0x00}, BMPPassword("🙂"))
}

func TestExtractOctetString(t *testing.T) {
	result, err := extractOctetString([]byte{0x04, 0x05, 0x48, 0x65, 0x6c, 0x6c, 0x6f})
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello"), result)

	_, err = extractOctetString([]byte{0x30, 0x00})
	assert.ErrorIs(t, err, ErrParse)
}

func TestParseInvalidPFX(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"too small", []byte{0x30, 0x05}},
		{"not a sequence", []byte{0xff, 0x10, 0x02, 0x01, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}},
		{"wrong version", []byte{0x30, 0x0b, 0x02, 0x01, 0x02, 0x30, 0x06, 0x06, 0x01, 0x00, 0xa0, 0x01, 0x00}},
		{"trailing data", append(mustEncode(t), 0x00)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			assert.ErrorIs(t, err, ErrInvalidPFX)
		})
	}
}

func TestParseInvalidTag(t *testing.T) {
	_, err := Parse([]byte{0xFF, 0x10, 0x02, 0x01, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0xff")
	assert.Contains(t, err.Error(), "0x30")
}

func TestParseTooSmall(t *testing.T) {
	_, err := Parse([]byte{0x30, 0x05})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too small")
}

func TestParseBERIndefiniteLength(t *testing.T) {
	// indefinite SEQUENCE without end-of-contents
	berData := []byte{0x30, 0x80, 0x02, 0x01, 0x03, 0x30, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00}

	_, err := Parse(berData)
	assert.ErrorIs(t, err, ErrInvalidPFX)
	assert.ErrorIs(t, err, ber.ErrMalformed)
}

func TestParseBER(t *testing.T) {
	der := mustEncode(t)
	berData := toIndefinite(der)
	require.True(t, ber.IsIndefinite(berData))

	fromDER, err := Parse(der)
	require.NoError(t, err)
	fromBER, err := Parse(berData)
	require.NoError(t, err)

	assert.Equal(t, fromDER.RawAuthSafe, fromBER.RawAuthSafe)
	assert.NoError(t, VerifyMAC(fromBER, "secret"))

	bags, err := Decode(berData, "secret")
	require.NoError(t, err)
	assert.Len(t, bags.Certificates, 1)
	assert.Len(t, bags.PrivateKeys, 1)
}

func TestOIDEquality(t *testing.T) {
	oid1 := asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	oid3 := asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 6}

	assert.True(t, OIDData.Equal(oid1))
	assert.False(t, oid1.Equal(oid3))
}

func TestAttributes(t *testing.T) {
	name, err := createFriendlyNameAttribute("Grüße 🙂")
	require.NoError(t, err)
	// universal BMPString tag
	assert.Equal(t, byte(0x1e), name.Values[0][0])

	keyID, err := createLocalKeyIDAttribute([]byte{0xca, 0xfe})
	require.NoError(t, err)

	attrs := []PKCS12Attribute{name, keyID}
	got, ok := GetFriendlyName(attrs)
	assert.True(t, ok)
	assert.Equal(t, "Grüße 🙂", got)

	id, ok := GetLocalKeyID(attrs)
	assert.True(t, ok)
	assert.Equal(t, []byte{0xca, 0xfe}, id)

	_, ok = GetFriendlyName(nil)
	assert.False(t, ok)
}

func mustEncode(t *testing.T) []byte {
	t.Helper()
	data, err := Encode(testBags(t), "secret")
	require.NoError(t, err)
	return data
}

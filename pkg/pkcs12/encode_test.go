package pkcs12

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha1"
	"crypto/x509"
	"encoding/asn1"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

func TestEncodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		opts *EncodeOptions
	}{
		{"default", DefaultEncodeOptions()},
		{"legacy", LegacyEncodeOptions()},
		{"plain certificates", &EncodeOptions{KeyEncryption: OIDAes128CBC, PRF: OIDHMACSHA1, IncludeMAC: true}},
		{"without MAC", &EncodeOptions{KeyEncryption: OIDAes256CBC, CertEncryption: OIDAes256CBC}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := testBags(t)
			data, err := EncodeWithOptions(in, "secret", tt.opts)
			require.NoError(t, err)

			pfx, err := Parse(data)
			require.NoError(t, err)
			assert.Equal(t, tt.opts.IncludeMAC, pfx.MacData != nil)

			out, err := ExtractBags(pfx, "secret")
			require.NoError(t, err)

			require.Len(t, out.Certificates, 1)
			require.Len(t, out.PrivateKeys, 1)
			assert.Equal(t, in.Certificates[0].Raw, out.Certificates[0].Raw)
			assert.Equal(t, in.PrivateKeys[0].Raw, out.PrivateKeys[0].Raw)
			assert.Equal(t, "Grüße", out.Certificates[0].FriendlyName)
			assert.Equal(t, "Grüße", out.PrivateKeys[0].FriendlyName)
			assert.Equal(t, tt.opts.CertEncryption != nil, out.Certificates[0].Encrypted)
			assert.True(t, out.PrivateKeys[0].Shrouded)
			assert.Len(t, out.FindMatchingPairs(), 1)
		})
	}
}

func TestEncodeLegacyAlgorithms(t *testing.T) {
	data, err := EncodeWithOptions(testBags(t), "secret", LegacyEncodeOptions())
	require.NoError(t, err)

	pfx, err := Parse(data)
	require.NoError(t, err)
	assert.True(t, pfx.MacData.Mac.Algorithm.Algorithm.Equal(OIDSHA1))
	assert.Equal(t, 1, pfx.MacData.Iterations)

	authSafe, err := ParseAuthenticatedSafe(pfx.RawAuthSafe)
	require.NoError(t, err)
	require.Len(t, authSafe.ContentInfos, 2)

	alg, _, err := parseEncryptedData(authSafe.ContentInfos[0].Content)
	require.NoError(t, err)
	assert.True(t, alg.Algorithm.Equal(OIDPBEWithSHAAnd40BitRC2CBC))
}

func TestEncodePlainKeyBag(t *testing.T) {
	opts := DefaultEncodeOptions()
	opts.KeyEncryption = nil
	in := testBags(t)

	data, err := EncodeWithOptions(in, "secret", opts)
	require.NoError(t, err)

	out, err := Decode(data, "secret")
	require.NoError(t, err)
	require.Len(t, out.PrivateKeys, 1)
	assert.False(t, out.PrivateKeys[0].Shrouded)
	assert.Equal(t, in.PrivateKeys[0].Raw, out.PrivateKeys[0].Raw)
}

func TestEncodeWrongPassword(t *testing.T) {
	data, err := Encode(testBags(t), "secret")
	require.NoError(t, err)

	_, err = Decode(data, "Secret")
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestEncodeDeterministicWithRand(t *testing.T) {
	in := testBags(t)
	encode := func() []byte {
		opts := DefaultEncodeOptions()
		opts.Rand = bytes.NewReader(bytes.Repeat([]byte{0x5a}, 256))
		data, err := EncodeWithOptions(in, "secret", opts)
		require.NoError(t, err)
		return data
	}
	assert.Equal(t, encode(), encode())
}

func TestEncodeUnsupportedAlgorithm(t *testing.T) {
	opts := DefaultEncodeOptions()
	opts.KeyEncryption = asn1.ObjectIdentifier{1, 2, 3, 4}
	_, err := EncodeWithOptions(testBags(t), "secret", opts)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestDecodeSSLMateEncoders(t *testing.T) {
	encoders := map[string]*gopkcs12.Encoder{
		"Modern2023": gopkcs12.Modern2023,
		"LegacyDES":  gopkcs12.LegacyDES,
		"LegacyRC2":  gopkcs12.LegacyRC2,
	}

	for name, enc := range encoders {
		t.Run(name, func(t *testing.T) {
			cert, key := testIdentity(t, name)
			ca, _ := testIdentity(t, "ca")

			data, err := enc.Encode(key, cert, []*x509.Certificate{ca}, "Grüße")
			require.NoError(t, err)

			bags, err := Decode(data, "Grüße")
			require.NoError(t, err)
			require.Len(t, bags.Certificates, 2)
			require.Len(t, bags.PrivateKeys, 1)
			assert.Equal(t, cert.Raw, bags.Certificates[0].Raw)
			assert.Equal(t, ca.Raw, bags.Certificates[1].Raw)

			keyID := sha1.Sum(cert.Raw)
			pairs := bags.FindMatchingPairs()
			require.Len(t, pairs, 1)
			assert.Equal(t, keyID[:], pairs[0].Certificate.LocalKeyID)

			decoded, err := x509.ParsePKCS8PrivateKey(bags.PrivateKeys[0].Raw)
			require.NoError(t, err)
			assert.True(t, key.(*ecdsa.PrivateKey).Equal(decoded))

			_, err = Decode(data, "wrong")
			assert.ErrorIs(t, err, ErrAuthentication)
		})
	}
}

func TestDecodeSSLMatePasswordless(t *testing.T) {
	cert, key := testIdentity(t, "passwordless")
	data, err := gopkcs12.Passwordless.Encode(key, cert, nil, "")
	require.NoError(t, err)

	pfx, err := Parse(data)
	require.NoError(t, err)
	assert.Nil(t, pfx.MacData)

	bags, err := ExtractBags(pfx, "ignored")
	require.NoError(t, err)
	require.Len(t, bags.Certificates, 1)
	require.Len(t, bags.PrivateKeys, 1)
	assert.False(t, bags.Certificates[0].Encrypted)
	assert.False(t, bags.PrivateKeys[0].Shrouded)
}

func TestSSLMateDecodesOurOutput(t *testing.T) {
	tests := map[string]*EncodeOptions{
		"default": DefaultEncodeOptions(),
		"legacy":  LegacyEncodeOptions(),
	}

	for name, opts := range tests {
		t.Run(name, func(t *testing.T) {
			cert, key := testIdentity(t, name)
			pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
			require.NoError(t, err)

			opts.Rand = rand.Reader
			data, err := EncodeWithOptions(&Bags{
				Certificates: []CertificateBag{{Raw: cert.Raw}},
				PrivateKeys:  []PrivateKeyBag{{Raw: pkcs8}},
			}, "Grüße", opts)
			require.NoError(t, err)

			decodedKey, decodedCert, err := gopkcs12.Decode(data, "Grüße")
			require.NoError(t, err)
			assert.Equal(t, cert.Raw, decodedCert.Raw)
			assert.True(t, key.(*ecdsa.PrivateKey).Equal(decodedKey))
		})
	}
}

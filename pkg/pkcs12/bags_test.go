package pkcs12

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPFX assembles an unprotected PFX from a single Data safe.
func buildPFX(t *testing.T, bags []SafeBag) []byte {
	t.Helper()
	safe, err := serializeSafeContents(&SafeContents{Bags: bags})
	require.NoError(t, err)
	ci, err := createDataContentInfo(safe)
	require.NoError(t, err)
	authSafe, err := serializeAuthenticatedSafe(&AuthenticatedSafe{ContentInfos: []ContentInfo{ci}})
	require.NoError(t, err)
	outer, err := createDataContentInfo(authSafe)
	require.NoError(t, err)
	data, err := serializePFX(&PFX{Version: 3, AuthSafe: outer})
	require.NoError(t, err)
	return data
}

func TestExtractBagsNestedAndSkipped(t *testing.T) {
	in := testBags(t)
	certBag, err := createCertBag(in.Certificates[0])
	require.NoError(t, err)

	e := &encoder{opts: EncodeOptions{}}
	keyBag, err := e.createKeyBag(in.PrivateKeys[0])
	require.NoError(t, err)

	nested, err := serializeSafeContents(&SafeContents{Bags: []SafeBag{keyBag}})
	require.NoError(t, err)

	data := buildPFX(t, []SafeBag{
		certBag,
		{BagID: OIDSecretBag, BagValue: []byte{0x05, 0x00}},
		{BagID: OIDSafeContentsBag, BagValue: nested},
	})

	bags, err := Decode(data, "")
	require.NoError(t, err)

	require.Len(t, bags.Certificates, 1)
	require.Len(t, bags.PrivateKeys, 1)
	assert.False(t, bags.PrivateKeys[0].Shrouded)
	require.Len(t, bags.Skipped, 1)
	assert.True(t, bags.Skipped[0].Equal(OIDSecretBag))

	pairs := bags.FindMatchingPairs()
	require.Len(t, pairs, 1)
	assert.Equal(t, in.Certificates[0].Raw, pairs[0].Certificate.Raw)
	assert.Equal(t, in.PrivateKeys[0].Raw, pairs[0].PrivateKey.Raw)
}

func TestExtractBagsRejectsSDSICertificate(t *testing.T) {
	certBag, err := createCertBag(CertificateBag{Raw: []byte("sdsi")})
	require.NoError(t, err)
	bagValue, err := ParseCertBag(certBag.BagValue)
	require.NoError(t, err)
	assert.Equal(t, []byte("sdsi"), bagValue.CertValue)

	// rewrite the certificate type
	sdsi := certBag
	sdsi.BagValue = append([]byte(nil), certBag.BagValue...)
	oidX509, oidSDSI := []byte{0x16, 0x01}, []byte{0x16, 0x02}
	for i := 0; i+1 < len(sdsi.BagValue); i++ {
		if sdsi.BagValue[i] == oidX509[0] && sdsi.BagValue[i+1] == oidX509[1] {
			copy(sdsi.BagValue[i:], oidSDSI)
			break
		}
	}

	_, err = Decode(buildPFX(t, []SafeBag{sdsi}), "")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestFindHelpers(t *testing.T) {
	bags := &Bags{
		Certificates: []CertificateBag{
			{Raw: []byte("ca")},
			{Raw: []byte("leaf"), LocalKeyID: []byte{1}},
			{Raw: []byte("other"), LocalKeyID: []byte{2}},
		},
		PrivateKeys: []PrivateKeyBag{
			{Raw: []byte("key"), LocalKeyID: []byte{1}},
		},
	}

	assert.Equal(t, []byte("leaf"), bags.FindCertificate([]byte{1}).Raw)
	assert.Nil(t, bags.FindCertificate([]byte{3}))
	assert.Equal(t, []byte("key"), bags.FindPrivateKey([]byte{1}).Raw)
	assert.Nil(t, bags.FindPrivateKey([]byte{2}))

	pairs := bags.FindMatchingPairs()
	require.Len(t, pairs, 1)
	assert.Equal(t, []byte("leaf"), pairs[0].Certificate.Raw)

	// the pair points into the bags
	pairs[0].PrivateKey.FriendlyName = "renamed"
	assert.Equal(t, "renamed", bags.PrivateKeys[0].FriendlyName)
}

func TestExtractBagsNonDataAuthSafe(t *testing.T) {
	pfx := &PFX{Version: 3, AuthSafe: ContentInfo{ContentType: OIDEncryptedData}}
	_, err := ExtractBags(pfx, "")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

package x509cert

import (
	"encoding/asn1"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAttributeValueCharset(t *testing.T) {
	tests := []struct {
		kind    StringKind
		value   string
		wantErr bool
	}{
		{UTF8String, "Grüße 🙂", false},
		{UTF8String, "\xff", true},
		{PrintableString, "Example Org (DE)", false},
		{PrintableString, "user@example.com", true},
		{PrintableString, "a*b", true},
		{IA5String, "user@example.com", false},
		{IA5String, "müller@example.com", true},
		{NumericString, "0123 456", false},
		{NumericString, "12a", true},
		{VisibleString, "visible~", false},
		{VisibleString, "tab\t", true},
		{BMPString, "Grüße", false},
		{BMPString, "🙂", true},
		{UniversalString, "🙂", false},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String()+"/"+tt.value, func(t *testing.T) {
			v, err := NewAttributeValue(tt.kind, tt.value)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrCharset)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.value, v.Value)
		})
	}
}

func TestNameAppendRejectsCharset(t *testing.T) {
	var n Name
	require.NoError(t, n.AppendCommonNameUTF8String("ok"))
	assert.ErrorIs(t, n.AppendPrintableString(OIDCommonName, "not_printable"), ErrCharset)
	assert.ErrorIs(t, n.AppendIA5String(OIDCommonName, "ä"), ErrCharset)
	assert.Len(t, n, 1)
}

func TestStringKindsRoundTrip(t *testing.T) {
	cert, _ := newSelfSigned(t, KeyAlgorithmEd25519, "strings")
	x := cert.X509()

	subject := Name{}
	values := map[StringKind]string{
		UTF8String:      "Grüße",
		PrintableString: "Printable",
		IA5String:       "ia5@example.com",
		BMPString:       "BMP Ω",
		NumericString:   "4711",
		VisibleString:   "Visible!",
		UniversalString: "Universal 🙂",
	}
	for kind, value := range values {
		require.NoError(t, subject.AppendAttribute(OIDOrganizationalUnitName, kind, value))
	}
	x.TBS().Subject = subject

	der, err := x.EncodeDER()
	require.NoError(t, err)
	decoded, err := FromDER(der)
	require.NoError(t, err)
	assert.True(t, decoded.SubjectName().Equal(subject))

	found := decoded.SubjectName().FindAll(OIDOrganizationalUnitName)
	assert.Len(t, found, len(values))
	for _, v := range found {
		assert.Equal(t, values[v.Kind], v.Value)
	}
}

func TestNameEquality(t *testing.T) {
	cn, _ := NewAttributeValue(UTF8String, "a")
	c, _ := NewAttributeValue(UTF8String, "DE")
	cnPrintable, _ := NewAttributeValue(PrintableString, "a")

	ab := Name{{{Type: OIDCommonName, Value: cn}, {Type: OIDCountryName, Value: c}}}
	ba := Name{{{Type: OIDCountryName, Value: c}, {Type: OIDCommonName, Value: cn}}}
	split := Name{{{Type: OIDCommonName, Value: cn}}, {{Type: OIDCountryName, Value: c}}}
	printable := Name{{{Type: OIDCommonName, Value: cnPrintable}, {Type: OIDCountryName, Value: c}}}

	assert.True(t, ab.Equal(ba))
	assert.False(t, ab.Equal(split))

	cnAttr := AttributeTypeAndValue{Type: OIDCommonName, Value: cn}
	cAttr := AttributeTypeAndValue{Type: OIDCountryName, Value: c}
	aab := RelativeDistinguishedName{cnAttr, cnAttr, cAttr}
	abb := RelativeDistinguishedName{cnAttr, cAttr, cAttr}
	aba := RelativeDistinguishedName{cnAttr, cAttr, cnAttr}
	assert.False(t, aab.Equal(abb))
	assert.False(t, abb.Equal(aab))
	assert.True(t, aab.Equal(aba))
	assert.False(t, ab.Equal(printable))
	assert.True(t, ab.Clone().Equal(ab))
}

func TestNameLookup(t *testing.T) {
	var n Name
	require.NoError(t, n.AppendCountryUTF8String("DE"))
	require.NoError(t, n.AppendOrganizationUTF8String("gematik"))
	require.NoError(t, n.AppendCommonNameUTF8String("first"))
	require.NoError(t, n.AppendCommonNameUTF8String("second"))

	cn, ok := n.CommonName()
	assert.True(t, ok)
	assert.Equal(t, "first", cn)
	assert.Len(t, n.FindAll(OIDCommonName), 2)

	_, ok = n.FindFirst(OIDTitle)
	assert.False(t, ok)

	assert.Equal(t, "CN=second,CN=first,O=gematik,C=DE", n.String())
}

func TestNewTime(t *testing.T) {
	tests := []struct {
		year int
		kind TimeKind
	}{
		{1949, GeneralizedTime},
		{1950, UTCTime},
		{2049, UTCTime},
		{2050, GeneralizedTime},
	}
	for _, tt := range tests {
		got := NewTime(time.Date(tt.year, 1, 1, 0, 0, 0, 500, time.UTC))
		assert.Equal(t, tt.kind, got.Kind, "year %d", tt.year)
		assert.Zero(t, got.Value.Nanosecond())
	}
}

func TestOpaqueAttributeValues(t *testing.T) {
	oidUniqueIdentifier := asn1.ObjectIdentifier{2, 5, 4, 45}
	generalString := []byte{0x1b, 0x07, 'g', 'e', 'n', 'e', 'r', 'a', 'l'}
	uniqueID, err := asn1.Marshal(asn1.BitString{Bytes: []byte{0xab}, BitLength: 8})
	require.NoError(t, err)

	b := NewBuilder(KeyAlgorithmEd25519)
	require.NoError(t, b.Subject().AppendCommonNameUTF8String("opaque"))
	require.NoError(t, b.Subject().AppendAttribute(OIDTitle, OpaqueValue, string(generalString)))
	require.NoError(t, b.Subject().AppendAttribute(oidUniqueIdentifier, OpaqueValue, string(uniqueID)))
	cert, _, _, err := b.CreateWithRandomKeyPair()
	require.NoError(t, err)
	require.NoError(t, cert.VerifySignedByCertificate(cert))

	subject := cert.SubjectName()
	v, ok := subject.FindFirst(OIDTitle)
	require.True(t, ok)
	assert.Equal(t, OpaqueValue, v.Kind)
	assert.Equal(t, string(generalString), v.Value)
	v, ok = subject.FindFirst(oidUniqueIdentifier)
	require.True(t, ok)
	assert.Equal(t, string(uniqueID), v.Value)
	assert.Contains(t, subject.String(), "2.5.4.45=#030200ab")

	der, err := cert.EncodeDER()
	require.NoError(t, err)
	assert.Equal(t, cert.ConstructedData(), der)

	_, err = NewAttributeValue(OpaqueValue, "\x04")
	assert.ErrorIs(t, err, ErrCharset)
}

package x509cert

import (
	"bytes"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"slices"
)

// Version is the X.509 version field, zero based as encoded.
type Version int

const (
	V1 Version = 0
	V2 Version = 1
	V3 Version = 2
)

// Certificate is the RFC 5280 Certificate structure.
type Certificate struct {
	TBSCertificate     TBSCertificate
	SignatureAlgorithm pkix.AlgorithmIdentifier
	SignatureValue     asn1.BitString
}

// TBSCertificate is the signed portion of a certificate.
type TBSCertificate struct {
	Version              Version
	SerialNumber         *big.Int
	Signature            pkix.AlgorithmIdentifier
	Issuer               Name
	Validity             Validity
	Subject              Name
	SubjectPublicKeyInfo SubjectPublicKeyInfo
	IssuerUniqueID       *asn1.BitString
	SubjectUniqueID      *asn1.BitString
	Extensions           []Extension

	// raw holds the encoding of this structure as last parsed. It is only
	// read by signature verification on freshly parsed values.
	raw []byte
}

// SubjectPublicKeyInfo carries the algorithm and the encoded public key.
type SubjectPublicKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

// Extension is a certificate extension with an opaque DER value.
type Extension struct {
	ID       asn1.ObjectIdentifier
	Critical bool
	Value    []byte
}

func (c *Certificate) Equal(o *Certificate) bool {
	return c.TBSCertificate.Equal(&o.TBSCertificate) &&
		algorithmIdentifierEqual(c.SignatureAlgorithm, o.SignatureAlgorithm) &&
		bitStringEqual(c.SignatureValue, o.SignatureValue)
}

func (c *Certificate) Clone() *Certificate {
	return &Certificate{
		TBSCertificate:     c.TBSCertificate.Clone(),
		SignatureAlgorithm: cloneAlgorithmIdentifier(c.SignatureAlgorithm),
		SignatureValue:     cloneBitString(c.SignatureValue),
	}
}

// Equal compares the structures field by field. The raw encoding is not
// taken into account.
func (t *TBSCertificate) Equal(o *TBSCertificate) bool {
	return t.Version == o.Version &&
		bigIntEqual(t.SerialNumber, o.SerialNumber) &&
		algorithmIdentifierEqual(t.Signature, o.Signature) &&
		t.Issuer.Equal(o.Issuer) &&
		t.Validity.Equal(o.Validity) &&
		t.Subject.Equal(o.Subject) &&
		t.SubjectPublicKeyInfo.Equal(o.SubjectPublicKeyInfo) &&
		optionalBitStringEqual(t.IssuerUniqueID, o.IssuerUniqueID) &&
		optionalBitStringEqual(t.SubjectUniqueID, o.SubjectUniqueID) &&
		slices.EqualFunc(t.Extensions, o.Extensions, Extension.Equal)
}

// Clone returns a deep copy without the raw encoding.
func (t *TBSCertificate) Clone() TBSCertificate {
	out := TBSCertificate{
		Version:              t.Version,
		Signature:            cloneAlgorithmIdentifier(t.Signature),
		Issuer:               t.Issuer.Clone(),
		Validity:             t.Validity,
		Subject:              t.Subject.Clone(),
		SubjectPublicKeyInfo: t.SubjectPublicKeyInfo.Clone(),
	}
	if t.SerialNumber != nil {
		out.SerialNumber = new(big.Int).Set(t.SerialNumber)
	}
	if t.IssuerUniqueID != nil {
		id := cloneBitString(*t.IssuerUniqueID)
		out.IssuerUniqueID = &id
	}
	if t.SubjectUniqueID != nil {
		id := cloneBitString(*t.SubjectUniqueID)
		out.SubjectUniqueID = &id
	}
	if t.Extensions != nil {
		out.Extensions = make([]Extension, len(t.Extensions))
		for i, ext := range t.Extensions {
			out.Extensions[i] = ext.Clone()
		}
	}
	return out
}

// Raw returns the encoding the structure was parsed from, if any.
func (t *TBSCertificate) Raw() []byte {
	return t.raw
}

func (s SubjectPublicKeyInfo) Equal(o SubjectPublicKeyInfo) bool {
	return algorithmIdentifierEqual(s.Algorithm, o.Algorithm) && bitStringEqual(s.PublicKey, o.PublicKey)
}

func (s SubjectPublicKeyInfo) Clone() SubjectPublicKeyInfo {
	return SubjectPublicKeyInfo{
		Algorithm: cloneAlgorithmIdentifier(s.Algorithm),
		PublicKey: cloneBitString(s.PublicKey),
	}
}

func (e Extension) Equal(o Extension) bool {
	return e.ID.Equal(o.ID) && e.Critical == o.Critical && bytes.Equal(e.Value, o.Value)
}

func (e Extension) Clone() Extension {
	return Extension{ID: slices.Clone(e.ID), Critical: e.Critical, Value: slices.Clone(e.Value)}
}

func algorithmIdentifierEqual(a, b pkix.AlgorithmIdentifier) bool {
	return a.Algorithm.Equal(b.Algorithm) && bytes.Equal(a.Parameters.FullBytes, b.Parameters.FullBytes)
}

func cloneAlgorithmIdentifier(a pkix.AlgorithmIdentifier) pkix.AlgorithmIdentifier {
	out := pkix.AlgorithmIdentifier{Algorithm: slices.Clone(a.Algorithm)}
	if len(a.Parameters.FullBytes) > 0 {
		out.Parameters = asn1.RawValue{
			Class:     a.Parameters.Class,
			Tag:       a.Parameters.Tag,
			FullBytes: slices.Clone(a.Parameters.FullBytes),
		}
	}
	return out
}

func bitStringEqual(a, b asn1.BitString) bool {
	return a.BitLength == b.BitLength && bytes.Equal(a.Bytes, b.Bytes)
}

func optionalBitStringEqual(a, b *asn1.BitString) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return bitStringEqual(*a, *b)
}

func cloneBitString(b asn1.BitString) asn1.BitString {
	return asn1.BitString{Bytes: slices.Clone(b.Bytes), BitLength: b.BitLength}
}

func bigIntEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Cmp(b) == 0
}

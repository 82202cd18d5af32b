package x509cert

import (
	"bytes"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"

	"github.com/gematik/zero-codesign/pkg/ber"
	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// EncodingRule names the ASN.1 encoding rules a certificate is read or
// written with.
type EncodingRule int

const (
	DER EncodingRule = iota
	BER
)

func (r EncodingRule) String() string {
	if r == BER {
		return "BER"
	}
	return "DER"
}

var (
	tagVersion         = cryptobyte_asn1.Tag(0).Constructed().ContextSpecific()
	tagIssuerUniqueID  = cryptobyte_asn1.Tag(1).ContextSpecific()
	tagSubjectUniqueID = cryptobyte_asn1.Tag(2).ContextSpecific()
	tagExtensions      = cryptobyte_asn1.Tag(3).Constructed().ContextSpecific()
)

// parseCertificate decodes a BER or DER certificate. The returned
// TBSCertificate carries the original bytes of its encoding.
func parseCertificate(data []byte, rule EncodingRule) (*Certificate, error) {
	if rule == DER {
		return parseCertificateDER(data, DER)
	}

	el, rest, err := ber.Parse(data)
	if err != nil {
		return nil, &DecodeError{Rule: BER, Field: "certificate", Err: err}
	}
	if len(rest) > 0 {
		return nil, decodeError(BER, "certificate", "%d bytes of trailing data", len(rest))
	}
	if !el.IsSequence() || len(el.Children) == 0 {
		return nil, decodeError(BER, "certificate", "expected SEQUENCE")
	}

	cert, err := parseCertificateDER(el.DER(), BER)
	if err != nil {
		return nil, err
	}
	cert.TBSCertificate.raw = bytes.Clone(el.Children[0].Raw)
	return cert, nil
}

func parseCertificateDER(der []byte, rule EncodingRule) (*Certificate, error) {
	input := cryptobyte.String(der)
	var certSeq cryptobyte.String
	if !input.ReadASN1(&certSeq, cryptobyte_asn1.SEQUENCE) {
		return nil, decodeError(rule, "certificate", "malformed certificate")
	}
	if !input.Empty() {
		return nil, decodeError(rule, "certificate", "%d bytes of trailing data", len(input))
	}

	var tbsElem cryptobyte.String
	if !certSeq.ReadASN1Element(&tbsElem, cryptobyte_asn1.SEQUENCE) {
		return nil, decodeError(rule, "tbsCertificate", "malformed tbs certificate")
	}
	tbs, err := parseTBSCertificate(tbsElem, rule)
	if err != nil {
		return nil, err
	}

	cert := &Certificate{TBSCertificate: *tbs}

	var sigAI cryptobyte.String
	if !certSeq.ReadASN1(&sigAI, cryptobyte_asn1.SEQUENCE) {
		return nil, decodeError(rule, "signatureAlgorithm", "malformed algorithm identifier")
	}
	if cert.SignatureAlgorithm, err = parseAlgorithmIdentifier(sigAI, rule, "signatureAlgorithm"); err != nil {
		return nil, err
	}

	if !certSeq.ReadASN1BitString(&cert.SignatureValue) {
		return nil, decodeError(rule, "signatureValue", "malformed signature")
	}
	cert.SignatureValue = cloneBitString(cert.SignatureValue)

	if !certSeq.Empty() {
		return nil, decodeError(rule, "certificate", "unexpected trailing fields")
	}

	return cert, nil
}

func parseTBSCertificate(elem cryptobyte.String, rule EncodingRule) (*TBSCertificate, error) {
	tbs := &TBSCertificate{raw: bytes.Clone(elem)}

	var seq cryptobyte.String
	if !elem.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) {
		return nil, decodeError(rule, "tbsCertificate", "malformed tbs certificate")
	}

	var version int
	if !seq.ReadOptionalASN1Integer(&version, tagVersion, 0) {
		return nil, decodeError(rule, "tbsCertificate.version", "malformed version")
	}
	if version < int(V1) || version > int(V3) {
		return nil, decodeError(rule, "tbsCertificate.version", "invalid version %d", version)
	}
	tbs.Version = Version(version)

	serial := new(big.Int)
	if !seq.ReadASN1Integer(serial) {
		return nil, decodeError(rule, "tbsCertificate.serialNumber", "malformed serial number")
	}
	tbs.SerialNumber = serial

	var sigAI cryptobyte.String
	if !seq.ReadASN1(&sigAI, cryptobyte_asn1.SEQUENCE) {
		return nil, decodeError(rule, "tbsCertificate.signature", "malformed algorithm identifier")
	}
	var err error
	if tbs.Signature, err = parseAlgorithmIdentifier(sigAI, rule, "tbsCertificate.signature"); err != nil {
		return nil, err
	}

	if tbs.Issuer, err = parseName(&seq, rule, "tbsCertificate.issuer"); err != nil {
		return nil, err
	}
	if tbs.Validity, err = parseValidity(&seq, rule); err != nil {
		return nil, err
	}
	if tbs.Subject, err = parseName(&seq, rule, "tbsCertificate.subject"); err != nil {
		return nil, err
	}
	if tbs.SubjectPublicKeyInfo, err = parseSubjectPublicKeyInfo(&seq, rule); err != nil {
		return nil, err
	}

	if tbs.IssuerUniqueID, err = parseOptionalUniqueID(&seq, tagIssuerUniqueID, rule, "tbsCertificate.issuerUniqueID"); err != nil {
		return nil, err
	}
	if tbs.SubjectUniqueID, err = parseOptionalUniqueID(&seq, tagSubjectUniqueID, rule, "tbsCertificate.subjectUniqueID"); err != nil {
		return nil, err
	}
	if tbs.Version == V1 && (tbs.IssuerUniqueID != nil || tbs.SubjectUniqueID != nil) {
		return nil, decodeError(rule, "tbsCertificate.version", "unique identifiers require version 2 or 3")
	}

	var extensions cryptobyte.String
	var present bool
	if !seq.ReadOptionalASN1(&extensions, &present, tagExtensions) {
		return nil, decodeError(rule, "tbsCertificate.extensions", "malformed extensions")
	}
	if present {
		if tbs.Version != V3 {
			return nil, decodeError(rule, "tbsCertificate.extensions", "extensions require version 3")
		}
		if tbs.Extensions, err = parseExtensions(extensions, rule); err != nil {
			return nil, err
		}
	}

	if !seq.Empty() {
		return nil, decodeError(rule, "tbsCertificate", "unexpected trailing fields")
	}

	return tbs, nil
}

func parseAlgorithmIdentifier(der cryptobyte.String, rule EncodingRule, field string) (pkix.AlgorithmIdentifier, error) {
	ai := pkix.AlgorithmIdentifier{}
	if !der.ReadASN1ObjectIdentifier(&ai.Algorithm) {
		return ai, decodeError(rule, field+".algorithm", "malformed OID")
	}
	if der.Empty() {
		return ai, nil
	}
	var params cryptobyte.String
	var tag cryptobyte_asn1.Tag
	if !der.ReadAnyASN1Element(&params, &tag) {
		return ai, decodeError(rule, field+".parameters", "malformed parameters")
	}
	if !der.Empty() {
		return ai, decodeError(rule, field, "unexpected trailing fields")
	}
	ai.Parameters = asn1.RawValue{
		Class:     int(tag&0xc0) >> 6,
		Tag:       int(tag & 0x1f),
		FullBytes: bytes.Clone(params),
	}
	return ai, nil
}

func parseName(s *cryptobyte.String, rule EncodingRule, field string) (Name, error) {
	var inner cryptobyte.String
	if !s.ReadASN1(&inner, cryptobyte_asn1.SEQUENCE) {
		return nil, decodeError(rule, field, "malformed RDNSequence")
	}

	name := Name{}
	for !inner.Empty() {
		var set cryptobyte.String
		if !inner.ReadASN1(&set, cryptobyte_asn1.SET) {
			return nil, decodeError(rule, field, "malformed RDN set")
		}
		rdn := RelativeDistinguishedName{}
		for !set.Empty() {
			var atv cryptobyte.String
			if !set.ReadASN1(&atv, cryptobyte_asn1.SEQUENCE) {
				return nil, decodeError(rule, field, "malformed AttributeTypeAndValue")
			}
			var attr AttributeTypeAndValue
			if !atv.ReadASN1ObjectIdentifier(&attr.Type) {
				return nil, decodeError(rule, field, "malformed attribute type")
			}
			var element, value cryptobyte.String
			var tag cryptobyte_asn1.Tag
			if !atv.ReadAnyASN1Element(&element, &tag) || !atv.Empty() {
				return nil, decodeError(rule, field, "malformed attribute value for %v", attr.Type)
			}
			elem := element
			if !elem.ReadAnyASN1(&value, &tag) {
				return nil, decodeError(rule, field, "malformed attribute value for %v", attr.Type)
			}
			v, err := decodeAttributeValue(tag, value, element)
			if err != nil {
				return nil, &DecodeError{Rule: rule, Field: field + "." + attr.Type.String(), Err: err}
			}
			attr.Value = v
			rdn = append(rdn, attr)
		}
		name = append(name, rdn)
	}
	return name, nil
}

func parseValidity(s *cryptobyte.String, rule EncodingRule) (Validity, error) {
	var v Validity
	var der cryptobyte.String
	if !s.ReadASN1(&der, cryptobyte_asn1.SEQUENCE) {
		return v, decodeError(rule, "tbsCertificate.validity", "malformed validity")
	}

	var err error
	if v.NotBefore, err = parseTime(&der, rule, "tbsCertificate.validity.notBefore"); err != nil {
		return v, err
	}
	if v.NotAfter, err = parseTime(&der, rule, "tbsCertificate.validity.notAfter"); err != nil {
		return v, err
	}
	if !der.Empty() {
		return v, decodeError(rule, "tbsCertificate.validity", "unexpected trailing fields")
	}
	return v, nil
}

func parseTime(der *cryptobyte.String, rule EncodingRule, field string) (Time, error) {
	var t Time
	switch {
	case der.PeekASN1Tag(cryptobyte_asn1.UTCTime):
		if !der.ReadASN1UTCTime(&t.Value) {
			return t, decodeError(rule, field, "malformed UTCTime")
		}
		t.Kind = UTCTime
	case der.PeekASN1Tag(cryptobyte_asn1.GeneralizedTime):
		if !der.ReadASN1GeneralizedTime(&t.Value) {
			return t, decodeError(rule, field, "malformed GeneralizedTime")
		}
		t.Kind = GeneralizedTime
	default:
		return t, decodeError(rule, field, "unsupported time format")
	}
	t.Value = t.Value.UTC()
	return t, nil
}

func parseSubjectPublicKeyInfo(s *cryptobyte.String, rule EncodingRule) (SubjectPublicKeyInfo, error) {
	var spki SubjectPublicKeyInfo
	var seq cryptobyte.String
	if !s.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) {
		return spki, decodeError(rule, "tbsCertificate.subjectPublicKeyInfo", "malformed subject public key info")
	}

	var ai cryptobyte.String
	if !seq.ReadASN1(&ai, cryptobyte_asn1.SEQUENCE) {
		return spki, decodeError(rule, "tbsCertificate.subjectPublicKeyInfo.algorithm", "malformed algorithm identifier")
	}
	var err error
	if spki.Algorithm, err = parseAlgorithmIdentifier(ai, rule, "tbsCertificate.subjectPublicKeyInfo.algorithm"); err != nil {
		return spki, err
	}

	if !seq.ReadASN1BitString(&spki.PublicKey) {
		return spki, decodeError(rule, "tbsCertificate.subjectPublicKeyInfo.subjectPublicKey", "malformed public key")
	}
	spki.PublicKey = cloneBitString(spki.PublicKey)
	if !seq.Empty() {
		return spki, decodeError(rule, "tbsCertificate.subjectPublicKeyInfo", "unexpected trailing fields")
	}
	return spki, nil
}

// parseOptionalUniqueID reads an IMPLICIT tagged BIT STRING.
func parseOptionalUniqueID(s *cryptobyte.String, tag cryptobyte_asn1.Tag, rule EncodingRule, field string) (*asn1.BitString, error) {
	if !s.PeekASN1Tag(tag) {
		return nil, nil
	}
	var contents cryptobyte.String
	if !s.ReadASN1(&contents, tag) {
		return nil, decodeError(rule, field, "malformed unique identifier")
	}
	bs, ok := bitStringFromContents(contents)
	if !ok {
		return nil, decodeError(rule, field, "malformed bit string")
	}
	return &bs, nil
}

func bitStringFromContents(contents []byte) (asn1.BitString, bool) {
	if len(contents) == 0 {
		return asn1.BitString{}, false
	}
	padding := int(contents[0])
	if padding > 7 || (len(contents) == 1 && padding > 0) {
		return asn1.BitString{}, false
	}
	data := bytes.Clone(contents[1:])
	return asn1.BitString{Bytes: data, BitLength: len(data)*8 - padding}, true
}

func parseExtensions(der cryptobyte.String, rule EncodingRule) ([]Extension, error) {
	var seq cryptobyte.String
	if !der.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) || !der.Empty() {
		return nil, decodeError(rule, "tbsCertificate.extensions", "malformed extensions")
	}

	exts := []Extension{}
	for i := 0; !seq.Empty(); i++ {
		var extSeq cryptobyte.String
		if !seq.ReadASN1(&extSeq, cryptobyte_asn1.SEQUENCE) {
			return nil, decodeError(rule, "tbsCertificate.extensions", "malformed extension %d", i)
		}
		var ext Extension
		if !extSeq.ReadASN1ObjectIdentifier(&ext.ID) {
			return nil, decodeError(rule, "tbsCertificate.extensions", "malformed extension %d OID", i)
		}
		field := "tbsCertificate.extensions." + ext.ID.String()
		if extSeq.PeekASN1Tag(cryptobyte_asn1.BOOLEAN) {
			if !extSeq.ReadASN1Boolean(&ext.Critical) {
				return nil, decodeError(rule, field, "malformed critical flag")
			}
		}
		var value cryptobyte.String
		if !extSeq.ReadASN1(&value, cryptobyte_asn1.OCTET_STRING) || !extSeq.Empty() {
			return nil, decodeError(rule, field, "malformed extension value")
		}
		ext.Value = bytes.Clone(value)
		exts = append(exts, ext)
	}
	return exts, nil
}

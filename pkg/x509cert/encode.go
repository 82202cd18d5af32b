package x509cert

import (
	"bytes"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// encodeCertificate serializes the in-memory structure. Under DER the
// members of every RDN set are sorted by their encoding; BER keeps them in
// the order they are stored.
func encodeCertificate(c *Certificate, rule EncodingRule) ([]byte, error) {
	b := cryptobyte.NewBuilder(nil)
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		addTBSCertificate(b, &c.TBSCertificate, rule)
		addAlgorithmIdentifier(b, c.SignatureAlgorithm)
		addBitString(b, cryptobyte_asn1.BIT_STRING, c.SignatureValue)
	})
	return b.Bytes()
}

func encodeTBSCertificate(t *TBSCertificate, rule EncodingRule) ([]byte, error) {
	b := cryptobyte.NewBuilder(nil)
	addTBSCertificate(b, t, rule)
	return b.Bytes()
}

func addTBSCertificate(b *cryptobyte.Builder, t *TBSCertificate, rule EncodingRule) {
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		if t.Version != V1 {
			b.AddASN1(tagVersion, func(b *cryptobyte.Builder) {
				b.AddASN1Int64(int64(t.Version))
			})
		}
		if t.SerialNumber == nil {
			b.SetError(errors.New("x509cert: missing serial number"))
			return
		}
		b.AddASN1BigInt(t.SerialNumber)
		addAlgorithmIdentifier(b, t.Signature)
		addName(b, t.Issuer, rule)
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			addTime(b, t.Validity.NotBefore)
			addTime(b, t.Validity.NotAfter)
		})
		addName(b, t.Subject, rule)
		addSubjectPublicKeyInfo(b, t.SubjectPublicKeyInfo)
		if t.IssuerUniqueID != nil {
			addBitString(b, tagIssuerUniqueID, *t.IssuerUniqueID)
		}
		if t.SubjectUniqueID != nil {
			addBitString(b, tagSubjectUniqueID, *t.SubjectUniqueID)
		}
		if len(t.Extensions) > 0 {
			b.AddASN1(tagExtensions, func(b *cryptobyte.Builder) {
				b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
					for _, ext := range t.Extensions {
						addExtension(b, ext)
					}
				})
			})
		}
	})
}

func addAlgorithmIdentifier(b *cryptobyte.Builder, ai pkix.AlgorithmIdentifier) {
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1ObjectIdentifier(ai.Algorithm)
		if len(ai.Parameters.FullBytes) > 0 {
			b.AddBytes(ai.Parameters.FullBytes)
		}
	})
}

func addBitString(b *cryptobyte.Builder, tag cryptobyte_asn1.Tag, bs asn1.BitString) {
	padding := len(bs.Bytes)*8 - bs.BitLength
	if padding < 0 || padding > 7 {
		b.SetError(fmt.Errorf("x509cert: invalid bit string length %d for %d bytes", bs.BitLength, len(bs.Bytes)))
		return
	}
	b.AddASN1(tag, func(b *cryptobyte.Builder) {
		b.AddUint8(uint8(padding))
		b.AddBytes(bs.Bytes)
	})
}

func addTime(b *cryptobyte.Builder, t Time) {
	switch t.Kind {
	case UTCTime:
		b.AddASN1UTCTime(t.Value.UTC())
	case GeneralizedTime:
		b.AddASN1GeneralizedTime(t.Value.UTC())
	default:
		b.SetError(fmt.Errorf("x509cert: unknown time kind %d", t.Kind))
	}
}

func addSubjectPublicKeyInfo(b *cryptobyte.Builder, spki SubjectPublicKeyInfo) {
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		addAlgorithmIdentifier(b, spki.Algorithm)
		addBitString(b, cryptobyte_asn1.BIT_STRING, spki.PublicKey)
	})
}

func addExtension(b *cryptobyte.Builder, ext Extension) {
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1ObjectIdentifier(ext.ID)
		if ext.Critical {
			b.AddASN1Boolean(true)
		}
		b.AddASN1OctetString(ext.Value)
	})
}

func addName(b *cryptobyte.Builder, name Name, rule EncodingRule) {
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		for _, rdn := range name {
			members := make([][]byte, 0, len(rdn))
			for _, atv := range rdn {
				enc, err := encodeAttributeTypeAndValue(atv)
				if err != nil {
					b.SetError(err)
					return
				}
				members = append(members, enc)
			}
			if rule == DER {
				slices.SortFunc(members, bytes.Compare)
			}
			b.AddASN1(cryptobyte_asn1.SET, func(b *cryptobyte.Builder) {
				for _, m := range members {
					b.AddBytes(m)
				}
			})
		}
	})
}

func encodeAttributeTypeAndValue(atv AttributeTypeAndValue) ([]byte, error) {
	if atv.Value.Kind == OpaqueValue {
		if err := checkCharset(OpaqueValue, atv.Value.Value, false); err != nil {
			return nil, err
		}
		b := cryptobyte.NewBuilder(nil)
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(atv.Type)
			b.AddBytes([]byte(atv.Value.Value))
		})
		return b.Bytes()
	}
	tag, ok := atv.Value.Kind.tag()
	if !ok {
		return nil, fmt.Errorf("%w: unknown string kind %v", ErrCharset, atv.Value.Kind)
	}
	contents, err := atv.Value.encodeContents()
	if err != nil {
		return nil, err
	}
	b := cryptobyte.NewBuilder(nil)
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1ObjectIdentifier(atv.Type)
		b.AddASN1(tag, func(b *cryptobyte.Builder) {
			b.AddBytes(contents)
		})
	})
	return b.Bytes()
}

// marshalSubjectPublicKeyInfo returns the DER encoding of spki.
func marshalSubjectPublicKeyInfo(spki SubjectPublicKeyInfo) ([]byte, error) {
	b := cryptobyte.NewBuilder(nil)
	addSubjectPublicKeyInfo(b, spki)
	return b.Bytes()
}

package x509cert

import (
	"crypto"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
)

// KeyAlgorithm identifies the type of a key pair.
type KeyAlgorithm int

const (
	KeyAlgorithmUnknown KeyAlgorithm = iota
	KeyAlgorithmRSA
	// KeyAlgorithmECDSA is ECDSA on the NIST P-256 curve.
	KeyAlgorithmECDSA
	KeyAlgorithmEd25519
)

func (a KeyAlgorithm) String() string {
	switch a {
	case KeyAlgorithmRSA:
		return "RSA"
	case KeyAlgorithmECDSA:
		return "ECDSA"
	case KeyAlgorithmEd25519:
		return "Ed25519"
	default:
		return "unknown"
	}
}

// ParseKeyAlgorithm maps a name as used in configuration files to a
// KeyAlgorithm.
func ParseKeyAlgorithm(name string) (KeyAlgorithm, error) {
	switch name {
	case "rsa", "RSA":
		return KeyAlgorithmRSA, nil
	case "ecdsa", "ECDSA", "p256", "P-256":
		return KeyAlgorithmECDSA, nil
	case "ed25519", "Ed25519":
		return KeyAlgorithmEd25519, nil
	}
	return KeyAlgorithmUnknown, fmt.Errorf("%w: %q", ErrKeyAlgorithm, name)
}

// AlgorithmIdentifier returns the SubjectPublicKeyInfo algorithm identifier
// for keys of this type.
func (a KeyAlgorithm) AlgorithmIdentifier() (pkix.AlgorithmIdentifier, error) {
	switch a {
	case KeyAlgorithmRSA:
		return pkix.AlgorithmIdentifier{
			Algorithm:  OIDPublicKeyRSA,
			Parameters: asn1.RawValue{Tag: asn1.TagNull, FullBytes: asn1NULL},
		}, nil
	case KeyAlgorithmECDSA:
		curve, err := asn1.Marshal(OIDNamedCurveP256)
		if err != nil {
			return pkix.AlgorithmIdentifier{}, err
		}
		return pkix.AlgorithmIdentifier{
			Algorithm:  OIDPublicKeyECDSA,
			Parameters: asn1.RawValue{Tag: asn1.TagOID, FullBytes: curve},
		}, nil
	case KeyAlgorithmEd25519:
		return pkix.AlgorithmIdentifier{Algorithm: OIDPublicKeyEd25519}, nil
	}
	return pkix.AlgorithmIdentifier{}, fmt.Errorf("%w: %v", ErrKeyAlgorithm, a)
}

// KeyAlgorithmFromIdentifier maps a SubjectPublicKeyInfo algorithm
// identifier to a KeyAlgorithm. ECDSA keys are only recognized on P-256.
func KeyAlgorithmFromIdentifier(ai pkix.AlgorithmIdentifier) (KeyAlgorithm, error) {
	switch {
	case ai.Algorithm.Equal(OIDPublicKeyRSA):
		return KeyAlgorithmRSA, nil
	case ai.Algorithm.Equal(OIDPublicKeyEd25519):
		return KeyAlgorithmEd25519, nil
	case ai.Algorithm.Equal(OIDPublicKeyECDSA):
		params := cryptobyte.String(ai.Parameters.FullBytes)
		var curve asn1.ObjectIdentifier
		if !params.ReadASN1ObjectIdentifier(&curve) {
			return KeyAlgorithmUnknown, fmt.Errorf("%w: missing named curve", ErrKeyAlgorithm)
		}
		if !curve.Equal(OIDNamedCurveP256) {
			return KeyAlgorithmUnknown, fmt.Errorf("%w: curve %v", ErrKeyAlgorithm, curve)
		}
		return KeyAlgorithmECDSA, nil
	}
	return KeyAlgorithmUnknown, fmt.Errorf("%w: %v", ErrKeyAlgorithm, ai.Algorithm)
}

// SignatureAlgorithm identifies a certificate signature algorithm.
type SignatureAlgorithm int

const (
	SignatureAlgorithmUnknown SignatureAlgorithm = iota
	SHA1WithRSA
	SHA256WithRSA
	SHA384WithRSA
	SHA512WithRSA
	ECDSAWithSHA256
	ECDSAWithSHA384
	PureEd25519
)

var signatureAlgorithmDetails = []struct {
	algo    SignatureAlgorithm
	name    string
	oid     asn1.ObjectIdentifier
	keyAlgo asn1.ObjectIdentifier
	hash    crypto.Hash
	// nullParams is set for algorithms whose identifier carries NULL
	// parameters (RFC 4055).
	nullParams bool
}{
	{SHA1WithRSA, "SHA1-RSA", OIDSignatureSHA1WithRSA, OIDPublicKeyRSA, crypto.SHA1, true},
	{SHA256WithRSA, "SHA256-RSA", OIDSignatureSHA256WithRSA, OIDPublicKeyRSA, crypto.SHA256, true},
	{SHA384WithRSA, "SHA384-RSA", OIDSignatureSHA384WithRSA, OIDPublicKeyRSA, crypto.SHA384, true},
	{SHA512WithRSA, "SHA512-RSA", OIDSignatureSHA512WithRSA, OIDPublicKeyRSA, crypto.SHA512, true},
	{ECDSAWithSHA256, "ECDSA-SHA256", OIDSignatureECDSAWithSHA256, OIDPublicKeyECDSA, crypto.SHA256, false},
	{ECDSAWithSHA384, "ECDSA-SHA384", OIDSignatureECDSAWithSHA384, OIDPublicKeyECDSA, crypto.SHA384, false},
	{PureEd25519, "Ed25519", OIDSignatureEd25519, OIDPublicKeyEd25519, crypto.Hash(0), false},
}

func (s SignatureAlgorithm) String() string {
	for _, d := range signatureAlgorithmDetails {
		if d.algo == s {
			return d.name
		}
	}
	return "unknown"
}

// OID returns the object identifier of the algorithm.
func (s SignatureAlgorithm) OID() asn1.ObjectIdentifier {
	for _, d := range signatureAlgorithmDetails {
		if d.algo == s {
			return d.oid
		}
	}
	return nil
}

// HashFunc returns the digest used before signing, or zero for Ed25519.
func (s SignatureAlgorithm) HashFunc() crypto.Hash {
	for _, d := range signatureAlgorithmDetails {
		if d.algo == s {
			return d.hash
		}
	}
	return 0
}

func (s SignatureAlgorithm) keyAlgorithmOID() asn1.ObjectIdentifier {
	for _, d := range signatureAlgorithmDetails {
		if d.algo == s {
			return d.keyAlgo
		}
	}
	return nil
}

// AlgorithmIdentifier returns the identifier as embedded in certificates.
func (s SignatureAlgorithm) AlgorithmIdentifier() (pkix.AlgorithmIdentifier, error) {
	for _, d := range signatureAlgorithmDetails {
		if d.algo != s {
			continue
		}
		ai := pkix.AlgorithmIdentifier{Algorithm: d.oid}
		if d.nullParams {
			ai.Parameters = asn1.RawValue{Tag: asn1.TagNull, FullBytes: asn1NULL}
		}
		return ai, nil
	}
	return pkix.AlgorithmIdentifier{}, fmt.Errorf("%w: %v", ErrUnsupportedSignatureAlgorithm, s)
}

// SignatureAlgorithmFromOID resolves a signature algorithm object
// identifier.
func SignatureAlgorithmFromOID(oid asn1.ObjectIdentifier) (SignatureAlgorithm, error) {
	for _, d := range signatureAlgorithmDetails {
		if d.oid.Equal(oid) {
			return d.algo, nil
		}
	}
	return SignatureAlgorithmUnknown, fmt.Errorf("%w: %v", ErrUnsupportedSignatureAlgorithm, oid)
}

// DefaultSignatureAlgorithm returns the algorithm used when signing with a
// key of the given type.
func DefaultSignatureAlgorithm(alg KeyAlgorithm) (SignatureAlgorithm, error) {
	switch alg {
	case KeyAlgorithmRSA:
		return SHA256WithRSA, nil
	case KeyAlgorithmECDSA:
		return ECDSAWithSHA256, nil
	case KeyAlgorithmEd25519:
		return PureEd25519, nil
	}
	return SignatureAlgorithmUnknown, fmt.Errorf("%w: %v", ErrKeyAlgorithm, alg)
}

// ecdsaCurveFor returns the named curve implied by an ECDSA signature
// algorithm.
func ecdsaCurveFor(s SignatureAlgorithm) asn1.ObjectIdentifier {
	switch s {
	case ECDSAWithSHA256:
		return OIDNamedCurveP256
	case ECDSAWithSHA384:
		return OIDNamedCurveP384
	}
	return nil
}

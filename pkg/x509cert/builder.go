package x509cert

import (
	"encoding/asn1"
	"fmt"
	"math/big"
	"slices"
	"time"
)

// Builder assembles and signs new version 3 certificates. The Create
// methods do not change the builder and may be called repeatedly.
type Builder struct {
	keyAlgorithm KeyAlgorithm
	subject      Name
	issuer       *Name
	extensions   []Extension
	serialNumber *big.Int
	notBefore    time.Time
	notAfter     time.Time
}

// NewBuilder returns a builder for keys of type alg with serial number 1
// and a validity of one hour starting now.
func NewBuilder(alg KeyAlgorithm) *Builder {
	now := time.Now().UTC().Truncate(time.Second)
	return &Builder{
		keyAlgorithm: alg,
		subject:      Name{},
		serialNumber: big.NewInt(1),
		notBefore:    now,
		notAfter:     now.Add(time.Hour),
	}
}

func (b *Builder) Subject() *Name {
	return &b.subject
}

// Issuer returns the issuer name, creating an empty one on first use. If
// Issuer is never called the certificate is issued by its subject.
func (b *Builder) Issuer() *Name {
	if b.issuer == nil {
		b.issuer = &Name{}
	}
	return b.issuer
}

func (b *Builder) SerialNumber(serial int64) *Builder {
	b.serialNumber = big.NewInt(serial)
	return b
}

func (b *Builder) SerialNumberBigInt(serial *big.Int) *Builder {
	b.serialNumber = new(big.Int).Set(serial)
	return b
}

// AddExtensionDERData appends an extension with an already encoded value.
// The value is not checked.
func (b *Builder) AddExtensionDERData(oid asn1.ObjectIdentifier, critical bool, der []byte) *Builder {
	b.extensions = append(b.extensions, Extension{ID: slices.Clone(oid), Critical: critical, Value: slices.Clone(der)})
	return b
}

// ValidityDuration sets the end of the validity period relative to its
// start.
func (b *Builder) ValidityDuration(d time.Duration) *Builder {
	b.notAfter = b.notBefore.Add(d)
	return b
}

// NotBefore moves the start of the validity period and keeps its length.
func (b *Builder) NotBefore(t time.Time) *Builder {
	d := b.notAfter.Sub(b.notBefore)
	b.notBefore = t.UTC().Truncate(time.Second)
	b.notAfter = b.notBefore.Add(d)
	return b
}

// CreateWithRandomKeyPair generates a key pair, issues a self-signed
// certificate for it and returns the certificate, the key pair and the
// PKCS#8 encoding of the private key.
func (b *Builder) CreateWithRandomKeyPair() (*CapturedX509Certificate, *KeyPair, []byte, error) {
	kp, pkcs8, err := GenerateKeyPair(b.keyAlgorithm)
	if err != nil {
		return nil, nil, nil, err
	}
	cert, err := b.CreateSignedBy(kp, kp)
	if err != nil {
		return nil, nil, nil, err
	}
	return cert, kp, pkcs8, nil
}

// CreateWithKeyPair issues a certificate for kp signed by kp itself.
func (b *Builder) CreateWithKeyPair(kp *KeyPair) (*CapturedX509Certificate, error) {
	return b.CreateSignedBy(kp, kp)
}

// CreateSignedBy issues a certificate for subjectKey signed by issuerKey.
func (b *Builder) CreateSignedBy(subjectKey, issuerKey *KeyPair) (*CapturedX509Certificate, error) {
	sigAI, err := issuerKey.SignatureAlgorithm().AlgorithmIdentifier()
	if err != nil {
		return nil, err
	}
	spki, err := subjectKey.SubjectPublicKeyInfo()
	if err != nil {
		return nil, err
	}

	issuer := b.subject
	if b.issuer != nil {
		issuer = *b.issuer
	}

	tbs := TBSCertificate{
		Version:      V3,
		SerialNumber: new(big.Int).Set(b.serialNumber),
		Signature:    sigAI,
		Issuer:       issuer.Clone(),
		Validity: Validity{
			NotBefore: NewTime(b.notBefore),
			NotAfter:  NewTime(b.notAfter),
		},
		Subject:              b.subject.Clone(),
		SubjectPublicKeyInfo: spki,
	}
	for _, ext := range b.extensions {
		tbs.Extensions = append(tbs.Extensions, ext.Clone())
	}

	tbsDER, err := encodeTBSCertificate(&tbs, DER)
	if err != nil {
		return nil, fmt.Errorf("encoding tbs certificate: %w", err)
	}
	signature, err := issuerKey.Sign(tbsDER)
	if err != nil {
		return nil, err
	}

	cert := Certificate{
		TBSCertificate:     tbs,
		SignatureAlgorithm: cloneAlgorithmIdentifier(sigAI),
		SignatureValue:     asn1.BitString{Bytes: signature, BitLength: len(signature) * 8},
	}
	der, err := encodeCertificate(&cert, DER)
	if err != nil {
		return nil, fmt.Errorf("encoding certificate: %w", err)
	}
	return CaptureDER(der)
}

package x509cert

import (
	"bytes"
	"crypto/sha256"
	"encoding/asn1"
	"io"
	"math/big"
	"time"
)

// CapturedX509Certificate is a certificate together with the exact bytes it
// was parsed from. The original bytes never change and are the only input
// trusted for signature verification.
//
// Values are created by parsing or by NewCaptured and are safe for
// concurrent use.
type CapturedX509Certificate struct {
	original []byte
	rule     EncodingRule
	cert     *X509Certificate
}

func capture(data []byte, rule EncodingRule) (*CapturedX509Certificate, error) {
	original := bytes.Clone(data)
	c, err := parseCertificate(original, rule)
	if err != nil {
		return nil, err
	}
	return &CapturedX509Certificate{original: original, rule: rule, cert: &X509Certificate{cert: *c}}, nil
}

// CaptureDER parses a DER encoded certificate and keeps a copy of data.
func CaptureDER(data []byte) (*CapturedX509Certificate, error) {
	return capture(data, DER)
}

// CaptureBER parses a BER encoded certificate and keeps a copy of data.
func CaptureBER(data []byte) (*CapturedX509Certificate, error) {
	return capture(data, BER)
}

// CapturePEM captures the DER payload of the first CERTIFICATE block.
func CapturePEM(data []byte) (*CapturedX509Certificate, error) {
	der, err := firstPEMCertificate(data)
	if err != nil {
		return nil, err
	}
	return CaptureDER(der)
}

func CapturePEMMultiple(data []byte) ([]*CapturedX509Certificate, error) {
	return CapturePEMMultipleTags(data, pemTypeCertificate)
}

// CapturePEMMultipleTags captures every PEM block whose type is in tags.
func CapturePEMMultipleTags(data []byte, tags ...string) ([]*CapturedX509Certificate, error) {
	var certs []*CapturedX509Certificate
	for _, der := range pemBlocks(data, tags) {
		c, err := CaptureDER(der)
		if err != nil {
			return nil, err
		}
		certs = append(certs, c)
	}
	return certs, nil
}

// NewCaptured DER encodes x and parses the result again. The encoding
// becomes the provenance of the returned certificate.
func NewCaptured(x *X509Certificate) (*CapturedX509Certificate, error) {
	der, err := x.EncodeDER()
	if err != nil {
		return nil, err
	}
	return CaptureDER(der)
}

// ConstructedData returns a copy of the bytes the certificate was created
// from.
func (c *CapturedX509Certificate) ConstructedData() []byte {
	return bytes.Clone(c.original)
}

func (c *CapturedX509Certificate) EncodingRule() EncodingRule {
	return c.rule
}

// EncodePEM armors the original bytes.
func (c *CapturedX509Certificate) EncodePEM() (string, error) {
	var buf bytes.Buffer
	if err := c.WritePEM(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (c *CapturedX509Certificate) WritePEM(w io.Writer) error {
	return writePEM(w, c.original)
}

func (c *CapturedX509Certificate) EncodeDER() ([]byte, error) {
	return c.cert.EncodeDER()
}

func (c *CapturedX509Certificate) EncodeBER() ([]byte, error) {
	return c.cert.EncodeBER()
}

// X509 returns a copy of the parsed certificate.
func (c *CapturedX509Certificate) X509() *X509Certificate {
	return c.cert.Clone()
}

// Mutable returns an editable view of a copy of the parsed certificate.
func (c *CapturedX509Certificate) Mutable() *MutableX509Certificate {
	return NewMutable(c)
}

func (c *CapturedX509Certificate) SerialNumber() *big.Int {
	return c.cert.SerialNumber()
}

func (c *CapturedX509Certificate) SubjectName() Name {
	return c.cert.SubjectName().Clone()
}

func (c *CapturedX509Certificate) IssuerName() Name {
	return c.cert.IssuerName().Clone()
}

func (c *CapturedX509Certificate) SubjectCommonName() (string, bool) {
	return c.cert.SubjectCommonName()
}

func (c *CapturedX509Certificate) IssuerCommonName() (string, bool) {
	return c.cert.IssuerCommonName()
}

func (c *CapturedX509Certificate) NotBefore() time.Time {
	return c.cert.NotBefore()
}

func (c *CapturedX509Certificate) NotAfter() time.Time {
	return c.cert.NotAfter()
}

func (c *CapturedX509Certificate) FindExtension(oid asn1.ObjectIdentifier) (Extension, bool) {
	ext, ok := c.cert.FindExtension(oid)
	return ext.Clone(), ok
}

func (c *CapturedX509Certificate) KeyAlgorithm() (KeyAlgorithm, error) {
	return c.cert.KeyAlgorithm()
}

func (c *CapturedX509Certificate) SignatureAlgorithm() (SignatureAlgorithm, error) {
	return c.cert.SignatureAlgorithm()
}

func (c *CapturedX509Certificate) PublicKeyData() []byte {
	return c.cert.PublicKeyData()
}

func (c *CapturedX509Certificate) SubjectPublicKeyInfoDER() ([]byte, error) {
	return c.cert.SubjectPublicKeyInfoDER()
}

func (c *CapturedX509Certificate) SubjectIsIssuer() bool {
	return c.cert.SubjectIsIssuer()
}

func (c *CapturedX509Certificate) CompareIssuer(other *CapturedX509Certificate) int {
	return c.cert.CompareIssuer(other.cert)
}

// FingerprintSHA256 is the SHA-256 digest of the original bytes.
func (c *CapturedX509Certificate) FingerprintSHA256() ([]byte, error) {
	sum := sha256.Sum256(c.original)
	return sum[:], nil
}

// Equal compares the original bytes and encoding rule.
func (c *CapturedX509Certificate) Equal(o *CapturedX509Certificate) bool {
	return c.rule == o.rule && bytes.Equal(c.original, o.original)
}

// VerifySignedByCertificate checks that signer's public key produced the
// signature of c. Passing c itself checks a self-signature.
func (c *CapturedX509Certificate) VerifySignedByCertificate(signer *CapturedX509Certificate) error {
	spki := signer.cert.cert.TBSCertificate.SubjectPublicKeyInfo
	return verifyCertificate(c.original, c.rule, func(SignatureAlgorithm) (SubjectPublicKeyInfo, error) {
		return spki, nil
	})
}

// VerifySignedByPublicKey checks the signature of c with a raw public key
// in SubjectPublicKeyInfo bit string form.
func (c *CapturedX509Certificate) VerifySignedByPublicKey(publicKeyData []byte) error {
	return verifyCertificate(c.original, c.rule, func(alg SignatureAlgorithm) (SubjectPublicKeyInfo, error) {
		return rawKeySubjectPublicKeyInfo(alg, publicKeyData)
	})
}

// MutableX509Certificate is an editable certificate bound to the captured
// certificate it was created from. Edits never reach the captured bytes, and
// verification always uses them.
//
// A MutableX509Certificate must not be shared between goroutines while it
// is being modified.
type MutableX509Certificate struct {
	captured *CapturedX509Certificate
	cert     *X509Certificate
}

func NewMutable(c *CapturedX509Certificate) *MutableX509Certificate {
	return &MutableX509Certificate{captured: c, cert: c.cert.Clone()}
}

// X509 returns the live, editable certificate.
func (m *MutableX509Certificate) X509() *X509Certificate {
	return m.cert
}

// Captured returns the certificate the view was created from.
func (m *MutableX509Certificate) Captured() *CapturedX509Certificate {
	return m.captured
}

func (m *MutableX509Certificate) ConstructedData() []byte {
	return m.captured.ConstructedData()
}

func (m *MutableX509Certificate) VerifySignedByCertificate(signer *CapturedX509Certificate) error {
	return m.captured.VerifySignedByCertificate(signer)
}

func (m *MutableX509Certificate) VerifySignedByPublicKey(publicKeyData []byte) error {
	return m.captured.VerifySignedByPublicKey(publicKeyData)
}

// ToCaptured encodes the current state and captures it as a new baseline.
func (m *MutableX509Certificate) ToCaptured() (*CapturedX509Certificate, error) {
	return NewCaptured(m.cert)
}

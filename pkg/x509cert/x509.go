package x509cert

import (
	"bytes"
	"crypto/sha256"
	"encoding/asn1"
	"encoding/pem"
	"io"
	"math/big"
	"slices"
	"time"
)

const pemTypeCertificate = "CERTIFICATE"

// X509Certificate is a parsed certificate without byte provenance. Its
// structure may be changed freely through Certificate.
type X509Certificate struct {
	cert Certificate
}

// NewX509Certificate wraps a copy of c.
func NewX509Certificate(c *Certificate) *X509Certificate {
	return &X509Certificate{cert: *c.Clone()}
}

// FromDER decodes a DER encoded certificate.
func FromDER(data []byte) (*X509Certificate, error) {
	c, err := parseCertificate(data, DER)
	if err != nil {
		return nil, err
	}
	return &X509Certificate{cert: *c}, nil
}

// FromBER decodes a BER encoded certificate.
func FromBER(data []byte) (*X509Certificate, error) {
	c, err := parseCertificate(data, BER)
	if err != nil {
		return nil, err
	}
	return &X509Certificate{cert: *c}, nil
}

// FromPEM decodes the first CERTIFICATE block found in data.
func FromPEM(data []byte) (*X509Certificate, error) {
	der, err := firstPEMCertificate(data)
	if err != nil {
		return nil, err
	}
	return FromDER(der)
}

// FromPEMMultiple decodes every CERTIFICATE block in data.
func FromPEMMultiple(data []byte) ([]*X509Certificate, error) {
	return FromPEMMultipleTags(data, pemTypeCertificate)
}

// FromPEMMultipleTags decodes every PEM block whose type is in tags. Blocks
// of other types are skipped.
func FromPEMMultipleTags(data []byte, tags ...string) ([]*X509Certificate, error) {
	var certs []*X509Certificate
	for _, der := range pemBlocks(data, tags) {
		c, err := FromDER(der)
		if err != nil {
			return nil, err
		}
		certs = append(certs, c)
	}
	return certs, nil
}

func firstPEMCertificate(data []byte) ([]byte, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, ErrNoPEMCertificate
		}
		if block.Type == pemTypeCertificate {
			return block.Bytes, nil
		}
	}
}

func pemBlocks(data []byte, tags []string) [][]byte {
	var out [][]byte
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return out
		}
		if slices.Contains(tags, block.Type) {
			out = append(out, block.Bytes)
		}
	}
}

// Certificate gives write access to the parsed structure.
func (c *X509Certificate) Certificate() *Certificate {
	return &c.cert
}

// TBS gives write access to the TBSCertificate.
func (c *X509Certificate) TBS() *TBSCertificate {
	return &c.cert.TBSCertificate
}

func (c *X509Certificate) Clone() *X509Certificate {
	return &X509Certificate{cert: *c.cert.Clone()}
}

// Equal reports structural equality.
func (c *X509Certificate) Equal(o *X509Certificate) bool {
	return c.cert.Equal(&o.cert)
}

func (c *X509Certificate) EncodeDER() ([]byte, error) {
	return encodeCertificate(&c.cert, DER)
}

func (c *X509Certificate) EncodeBER() ([]byte, error) {
	return encodeCertificate(&c.cert, BER)
}

func (c *X509Certificate) EncodeDERTo(w io.Writer) error {
	return encodeTo(w, &c.cert, DER)
}

func (c *X509Certificate) EncodeBERTo(w io.Writer) error {
	return encodeTo(w, &c.cert, BER)
}

// EncodePEM PEM armors the DER encoding of the current structure.
func (c *X509Certificate) EncodePEM() (string, error) {
	var buf bytes.Buffer
	if err := c.WritePEM(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (c *X509Certificate) WritePEM(w io.Writer) error {
	der, err := c.EncodeDER()
	if err != nil {
		return err
	}
	return writePEM(w, der)
}

func encodeTo(w io.Writer, cert *Certificate, rule EncodingRule) error {
	data, err := encodeCertificate(cert, rule)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return ioError(err)
	}
	return nil
}

func writePEM(w io.Writer, der []byte) error {
	if err := pem.Encode(w, &pem.Block{Type: pemTypeCertificate, Bytes: der}); err != nil {
		return ioError(err)
	}
	return nil
}

// SerialNumber returns a copy of the serial number.
func (c *X509Certificate) SerialNumber() *big.Int {
	if c.cert.TBSCertificate.SerialNumber == nil {
		return nil
	}
	return new(big.Int).Set(c.cert.TBSCertificate.SerialNumber)
}

// SerialNumberASN1 returns the DER encoding of the serial number INTEGER
// content.
func (c *X509Certificate) SerialNumberASN1() ([]byte, error) {
	raw, err := asn1.Marshal(c.cert.TBSCertificate.SerialNumber)
	if err != nil {
		return nil, err
	}
	var v asn1.RawValue
	if _, err := asn1.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v.Bytes, nil
}

func (c *X509Certificate) SubjectName() Name {
	return c.cert.TBSCertificate.Subject
}

func (c *X509Certificate) IssuerName() Name {
	return c.cert.TBSCertificate.Issuer
}

func (c *X509Certificate) SubjectCommonName() (string, bool) {
	return c.cert.TBSCertificate.Subject.CommonName()
}

func (c *X509Certificate) IssuerCommonName() (string, bool) {
	return c.cert.TBSCertificate.Issuer.CommonName()
}

func (c *X509Certificate) NotBefore() time.Time {
	return c.cert.TBSCertificate.Validity.NotBefore.Value
}

func (c *X509Certificate) NotAfter() time.Time {
	return c.cert.TBSCertificate.Validity.NotAfter.Value
}

func (c *X509Certificate) Extensions() []Extension {
	return c.cert.TBSCertificate.Extensions
}

// FindExtension returns the first extension with the given identifier.
func (c *X509Certificate) FindExtension(oid asn1.ObjectIdentifier) (Extension, bool) {
	for _, ext := range c.cert.TBSCertificate.Extensions {
		if ext.ID.Equal(oid) {
			return ext, true
		}
	}
	return Extension{}, false
}

// KeyAlgorithm returns the algorithm of the subject public key.
func (c *X509Certificate) KeyAlgorithm() (KeyAlgorithm, error) {
	return KeyAlgorithmFromIdentifier(c.cert.TBSCertificate.SubjectPublicKeyInfo.Algorithm)
}

// SignatureAlgorithm returns the algorithm the certificate is signed with.
func (c *X509Certificate) SignatureAlgorithm() (SignatureAlgorithm, error) {
	return SignatureAlgorithmFromOID(c.cert.SignatureAlgorithm.Algorithm)
}

// PublicKeyData returns the raw subject public key: the PKCS#1
// RSAPublicKey, the uncompressed EC point or the Ed25519 key bytes.
func (c *X509Certificate) PublicKeyData() []byte {
	return slices.Clone(c.cert.TBSCertificate.SubjectPublicKeyInfo.PublicKey.Bytes)
}

// SubjectPublicKeyInfoDER returns the DER encoded SubjectPublicKeyInfo.
func (c *X509Certificate) SubjectPublicKeyInfoDER() ([]byte, error) {
	return marshalSubjectPublicKeyInfo(c.cert.TBSCertificate.SubjectPublicKeyInfo)
}

// SubjectIsIssuer reports whether subject and issuer names are equal.
func (c *X509Certificate) SubjectIsIssuer() bool {
	return c.cert.TBSCertificate.Subject.Equal(c.cert.TBSCertificate.Issuer)
}

// CompareIssuer orders certificates so that issuers come before the
// certificates they issued. It returns +1 if other issued c, -1 if c issued
// other and 0 for self-signed or unrelated certificates. The ordering is not
// total.
func (c *X509Certificate) CompareIssuer(other *X509Certificate) int {
	switch {
	case c.SubjectIsIssuer():
		return 0
	case c.IssuerName().Equal(other.SubjectName()):
		return 1
	case c.SubjectName().Equal(other.IssuerName()):
		return -1
	}
	return 0
}

// FingerprintSHA256 returns the SHA-256 digest of the DER encoding.
func (c *X509Certificate) FingerprintSHA256() ([]byte, error) {
	der, err := c.EncodeDER()
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(der)
	return sum[:], nil
}

// CertificateIsSubsetOf reports whether serials are equal and every RDN of
// aName is present in bName.
func CertificateIsSubsetOf(aSerial *big.Int, aName Name, bSerial *big.Int, bName Name) bool {
	if !bigIntEqual(aSerial, bSerial) {
		return false
	}
	for _, rdn := range aName {
		if !slices.ContainsFunc(bName, rdn.Equal) {
			return false
		}
	}
	return true
}

package pkcs12

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"unicode/utf16"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/gematik/zero-codesign/pkg/ber"
)

// Common PKCS#12 OIDs as defined in RFC 7292
var (
	// PKCS#7 Content Types
	OIDData          = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	OIDEncryptedData = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 6}

	// PKCS#12 Bag Types (RFC 7292 Section 4.2.1)
	OIDKeyBag              = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 10, 1, 1}
	OIDPKCS8ShroudedKeyBag = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 10, 1, 2}
	OIDCertBag             = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 10, 1, 3}
	OIDCRLBag              = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 10, 1, 4}
	OIDSecretBag           = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 10, 1, 5}
	OIDSafeContentsBag     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 10, 1, 6}

	// Certificate Types
	OIDX509Certificate = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 22, 1}
	OIDSDSICertificate = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 22, 2}

	// Attribute OIDs
	OIDFriendlyName = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 20}
	OIDLocalKeyID   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 21}

	// PBES2 (RFC 8018)
	OIDPBES2     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 13}
	OIDPBKDF2    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 12}
	OIDAes128CBC = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 2}
	OIDAes192CBC = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 22}
	OIDAes256CBC = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 42}

	// Legacy PKCS#12 PBE (RFC 7292 Appendix C)
	OIDPBEWithSHAAnd3KeyTripleDESCBC = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 1, 3}
	OIDPBEWithSHAAnd128BitRC2CBC     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 1, 5}
	OIDPBEWithSHAAnd40BitRC2CBC      = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 1, 6}

	// HMAC algorithms used as PBKDF2 PRF
	OIDHMACSHA1   = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 7}
	OIDHMACSHA224 = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 8}
	OIDHMACSHA256 = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 9}
	OIDHMACSHA384 = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 10}
	OIDHMACSHA512 = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 11}

	// Digest algorithms used by MacData
	OIDSHA1   = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	OIDSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	OIDSHA384 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	OIDSHA512 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}
	OIDSHA224 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 4}
)

var (
	ErrInvalidPFX           = errors.New("pkcs12: invalid PFX structure")
	ErrUnsupportedAlgorithm = errors.New("pkcs12: unsupported algorithm")
	ErrParse                = errors.New("pkcs12: parse error")
)

// PFX represents the PKCS#12 PFX structure (RFC 7292 Section 4)
type PFX struct {
	Version  int
	AuthSafe ContentInfo
	MacData  *MacData
	// RawAuthSafe holds the octets of the authSafe Data content, the input
	// of the integrity MAC. It is only set when AuthSafe is of type Data.
	RawAuthSafe []byte
}

// ContentInfo represents PKCS#7 ContentInfo (RFC 2315)
type ContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     []byte // inner bytes of the [0] EXPLICIT content
}

// DataContent returns the octets carried by a Data ContentInfo.
func (ci ContentInfo) DataContent() ([]byte, error) {
	if !ci.ContentType.Equal(OIDData) {
		return nil, fmt.Errorf("%w: content type %v is not Data", ErrParse, ci.ContentType)
	}
	return extractOctetString(ci.Content)
}

// MacData represents MAC data for integrity verification (RFC 7292 Section 4)
type MacData struct {
	Mac        DigestInfo
	MacSalt    []byte
	Iterations int
}

type DigestInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	Digest    []byte
}

type AuthenticatedSafe struct {
	ContentInfos []ContentInfo
}

// SafeContents is a sequence of SafeBags
type SafeContents struct {
	Bags []SafeBag
}

// SafeBag represents a bag in PKCS#12 (RFC 7292 Section 4.2)
type SafeBag struct {
	BagID      asn1.ObjectIdentifier
	BagValue   []byte
	Attributes []PKCS12Attribute
}

type PKCS12Attribute struct {
	ID     asn1.ObjectIdentifier
	Values [][]byte // complete TLV of each value
}

// CertBag represents a certificate bag (RFC 7292 Section 4.2.3)
type CertBag struct {
	CertID    asn1.ObjectIdentifier
	CertValue []byte
}

// EncryptedPrivateKeyInfo represents an encrypted private key (RFC 5208)
type EncryptedPrivateKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	Data      []byte
}

// EncryptionAlgorithm holds the parsed parameters of a password based
// encryption scheme. Salt and Iterations are set for the legacy PKCS#12 PBE
// schemes, KDF and Cipher for PBES2.
type EncryptionAlgorithm struct {
	Algorithm  asn1.ObjectIdentifier
	Salt       []byte
	Iterations int
	KDF        *PBKDF2Params
	Cipher     *CipherParams
}

type PBKDF2Params struct {
	Salt       []byte
	Iterations int
	KeyLength  int
	PRF        asn1.ObjectIdentifier
}

type CipherParams struct {
	Algorithm asn1.ObjectIdentifier
	IV        []byte
}

// Parse parses a PKCS#12 PFX structure. BER input, as written by keychain
// tools, is converted to DER before parsing.
func Parse(data []byte) (*PFX, error) {
	if len(data) < 10 {
		return nil, fmt.Errorf("%w: file too small (%d bytes)", ErrInvalidPFX, len(data))
	}

	if data[0] != 0x30 {
		return nil, fmt.Errorf("%w: invalid structure, expected SEQUENCE tag (0x30), got 0x%02x. "+
			"File may be corrupted or not a PKCS#12 file", ErrInvalidPFX, data[0])
	}

	der, err := toDER(data)
	if err != nil {
		return nil, fmt.Errorf("%w: BER to DER conversion failed: %w", ErrInvalidPFX, err)
	}

	input := cryptobyte.String(der)

	// PFX ::= SEQUENCE {
	//   version    INTEGER {v3(3)}(v3,...),
	//   authSafe   ContentInfo,
	//   macData    MacData OPTIONAL
	// }
	var pfx PFX
	var seq cryptobyte.String

	if !input.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) || !input.Empty() {
		return nil, fmt.Errorf("%w: failed to read PFX SEQUENCE", ErrInvalidPFX)
	}

	if !seq.ReadASN1Integer(&pfx.Version) {
		return nil, fmt.Errorf("%w: failed to read version", ErrInvalidPFX)
	}

	if pfx.Version != 3 {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidPFX, pfx.Version)
	}

	pfx.AuthSafe, err = parseContentInfo(&seq)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse authSafe: %w", ErrInvalidPFX, err)
	}

	if !seq.Empty() {
		macData, err := parseMacData(&seq)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse MacData: %w", ErrInvalidPFX, err)
		}
		pfx.MacData = macData
	}

	if !seq.Empty() {
		return nil, fmt.Errorf("%w: trailing data after MacData", ErrInvalidPFX)
	}

	if pfx.AuthSafe.ContentType.Equal(OIDData) {
		pfx.RawAuthSafe, err = extractOctetString(pfx.AuthSafe.Content)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to extract authSafe content: %w", ErrInvalidPFX, err)
		}
	}

	return &pfx, nil
}

// toDER returns the DER form of a single BER element. DER input is returned
// unchanged.
func toDER(data []byte) ([]byte, error) {
	return ber.Normalize(data)
}

func parseContentInfo(s *cryptobyte.String) (ContentInfo, error) {
	var ci ContentInfo
	var seq cryptobyte.String

	if !s.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) {
		return ci, fmt.Errorf("%w: failed to read ContentInfo SEQUENCE", ErrParse)
	}

	if !seq.ReadASN1ObjectIdentifier(&ci.ContentType) {
		return ci, fmt.Errorf("%w: failed to read contentType", ErrParse)
	}

	// content [0] EXPLICIT ANY DEFINED BY contentType
	var content cryptobyte.String
	if !seq.ReadASN1(&content, cryptobyte_asn1.Tag(0).ContextSpecific().Constructed()) {
		return ci, fmt.Errorf("%w: failed to read content", ErrParse)
	}

	ci.Content = []byte(content)
	return ci, nil
}

func parseMacData(s *cryptobyte.String) (*MacData, error) {
	var md MacData
	var seq cryptobyte.String

	if !s.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) {
		return nil, fmt.Errorf("%w: failed to read MacData SEQUENCE", ErrParse)
	}

	var digestSeq cryptobyte.String
	if !seq.ReadASN1(&digestSeq, cryptobyte_asn1.SEQUENCE) {
		return nil, fmt.Errorf("%w: failed to read DigestInfo", ErrParse)
	}

	if err := parseAlgorithmIdentifier(&digestSeq, &md.Mac.Algorithm); err != nil {
		return nil, err
	}

	if !digestSeq.ReadASN1Bytes(&md.Mac.Digest, cryptobyte_asn1.OCTET_STRING) {
		return nil, fmt.Errorf("%w: failed to read digest", ErrParse)
	}

	if !seq.ReadASN1Bytes(&md.MacSalt, cryptobyte_asn1.OCTET_STRING) {
		return nil, fmt.Errorf("%w: failed to read macSalt", ErrParse)
	}

	// iterations INTEGER DEFAULT 1
	md.Iterations = 1
	if !seq.Empty() {
		if !seq.ReadASN1Integer(&md.Iterations) {
			return nil, fmt.Errorf("%w: failed to read iterations", ErrParse)
		}
	}
	if md.Iterations < 1 {
		return nil, fmt.Errorf("%w: invalid MAC iteration count %d", ErrParse, md.Iterations)
	}

	return &md, nil
}

// ParseAuthenticatedSafe parses the authenticated safe contents
func ParseAuthenticatedSafe(data []byte) (*AuthenticatedSafe, error) {
	der, err := toDER(data)
	if err != nil {
		return nil, fmt.Errorf("%w: AuthenticatedSafe: %w", ErrParse, err)
	}
	input := cryptobyte.String(der)
	var authSafe AuthenticatedSafe
	var seq cryptobyte.String

	if !input.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) {
		return nil, fmt.Errorf("%w: failed to read AuthenticatedSafe SEQUENCE", ErrParse)
	}

	for !seq.Empty() {
		ci, err := parseContentInfo(&seq)
		if err != nil {
			return nil, err
		}
		authSafe.ContentInfos = append(authSafe.ContentInfos, ci)
	}

	return &authSafe, nil
}

// ParseSafeContents parses safe contents (a sequence of SafeBags)
func ParseSafeContents(data []byte) (*SafeContents, error) {
	der, err := toDER(data)
	if err != nil {
		return nil, fmt.Errorf("%w: SafeContents: %w", ErrParse, err)
	}
	input := cryptobyte.String(der)
	var sc SafeContents
	var seq cryptobyte.String

	if !input.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) {
		return nil, fmt.Errorf("%w: failed to read SafeContents SEQUENCE", ErrParse)
	}

	for !seq.Empty() {
		bag, err := parseSafeBag(&seq)
		if err != nil {
			return nil, err
		}
		sc.Bags = append(sc.Bags, bag)
	}

	return &sc, nil
}

func parseSafeBag(s *cryptobyte.String) (SafeBag, error) {
	var bag SafeBag
	var seq cryptobyte.String

	if !s.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) {
		return bag, fmt.Errorf("%w: failed to read SafeBag SEQUENCE", ErrParse)
	}

	if !seq.ReadASN1ObjectIdentifier(&bag.BagID) {
		return bag, fmt.Errorf("%w: failed to read bagId", ErrParse)
	}

	var bagValue cryptobyte.String
	if !seq.ReadASN1(&bagValue, cryptobyte_asn1.Tag(0).ContextSpecific().Constructed()) {
		return bag, fmt.Errorf("%w: failed to read bagValue", ErrParse)
	}
	bag.BagValue = []byte(bagValue)

	if !seq.Empty() {
		var attrSet cryptobyte.String
		if !seq.ReadASN1(&attrSet, cryptobyte_asn1.SET) {
			return bag, fmt.Errorf("%w: failed to read attributes SET", ErrParse)
		}

		for !attrSet.Empty() {
			attr, err := parsePKCS12Attribute(&attrSet)
			if err != nil {
				return bag, err
			}
			bag.Attributes = append(bag.Attributes, attr)
		}
	}

	return bag, nil
}

func parsePKCS12Attribute(s *cryptobyte.String) (PKCS12Attribute, error) {
	var attr PKCS12Attribute
	var seq cryptobyte.String

	if !s.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) {
		return attr, fmt.Errorf("%w: failed to read Attribute SEQUENCE", ErrParse)
	}

	if !seq.ReadASN1ObjectIdentifier(&attr.ID) {
		return attr, fmt.Errorf("%w: failed to read attribute ID", ErrParse)
	}

	var valuesSet cryptobyte.String
	if !seq.ReadASN1(&valuesSet, cryptobyte_asn1.SET) {
		return attr, fmt.Errorf("%w: failed to read attribute values SET", ErrParse)
	}

	for !valuesSet.Empty() {
		var value cryptobyte.String
		var tag cryptobyte_asn1.Tag
		if !valuesSet.ReadAnyASN1Element(&value, &tag) {
			return attr, fmt.Errorf("%w: failed to read attribute value", ErrParse)
		}
		attr.Values = append(attr.Values, []byte(value))
	}

	return attr, nil
}

// ParseCertBag parses a CertBag from bag value
func ParseCertBag(data []byte) (*CertBag, error) {
	input := cryptobyte.String(data)
	var cb CertBag
	var seq cryptobyte.String

	if !input.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) {
		return nil, fmt.Errorf("%w: failed to read CertBag SEQUENCE", ErrParse)
	}

	if !seq.ReadASN1ObjectIdentifier(&cb.CertID) {
		return nil, fmt.Errorf("%w: failed to read certId", ErrParse)
	}

	// certValue [0] EXPLICIT OCTET STRING
	var certValue cryptobyte.String
	if !seq.ReadASN1(&certValue, cryptobyte_asn1.Tag(0).ContextSpecific().Constructed()) {
		return nil, fmt.Errorf("%w: failed to read certValue context", ErrParse)
	}

	if !certValue.ReadASN1Bytes(&cb.CertValue, cryptobyte_asn1.OCTET_STRING) {
		return nil, fmt.Errorf("%w: failed to read certValue OCTET STRING", ErrParse)
	}

	return &cb, nil
}

func ParseEncryptedPrivateKeyInfo(data []byte) (*EncryptedPrivateKeyInfo, error) {
	input := cryptobyte.String(data)
	var epki EncryptedPrivateKeyInfo
	var seq cryptobyte.String

	if !input.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) {
		return nil, fmt.Errorf("%w: failed to read EncryptedPrivateKeyInfo SEQUENCE", ErrParse)
	}

	if err := parseAlgorithmIdentifier(&seq, &epki.Algorithm); err != nil {
		return nil, err
	}

	if !seq.ReadASN1Bytes(&epki.Data, cryptobyte_asn1.OCTET_STRING) {
		return nil, fmt.Errorf("%w: failed to read encrypted data", ErrParse)
	}

	return &epki, nil
}

// ParseEncryptionAlgorithm parses the parameters of PBES2 and the legacy
// PKCS#12 PBE schemes.
func ParseEncryptionAlgorithm(alg pkix.AlgorithmIdentifier) (*EncryptionAlgorithm, error) {
	if alg.Algorithm.Equal(OIDPBES2) {
		return parsePBES2Params(alg.Parameters.FullBytes)
	}

	if isLegacyPBE(alg.Algorithm) {
		return parseLegacyPBEParams(alg)
	}

	return nil, fmt.Errorf("%w: %v", ErrUnsupportedAlgorithm, alg.Algorithm)
}

func isLegacyPBE(oid asn1.ObjectIdentifier) bool {
	return oid.Equal(OIDPBEWithSHAAnd3KeyTripleDESCBC) ||
		oid.Equal(OIDPBEWithSHAAnd128BitRC2CBC) ||
		oid.Equal(OIDPBEWithSHAAnd40BitRC2CBC)
}

func parsePBES2Params(data []byte) (*EncryptionAlgorithm, error) {
	input := cryptobyte.String(data)
	var seq cryptobyte.String

	if !input.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) {
		return nil, fmt.Errorf("%w: failed to read PBES2 params", ErrParse)
	}

	ea := &EncryptionAlgorithm{
		Algorithm: OIDPBES2,
	}

	var kdfAlg pkix.AlgorithmIdentifier
	if err := parseAlgorithmIdentifier(&seq, &kdfAlg); err != nil {
		return nil, err
	}

	if !kdfAlg.Algorithm.Equal(OIDPBKDF2) {
		return nil, fmt.Errorf("%w: unsupported KDF: %v", ErrUnsupportedAlgorithm, kdfAlg.Algorithm)
	}

	kdfParams, err := parsePBKDF2Params(kdfAlg.Parameters.FullBytes)
	if err != nil {
		return nil, err
	}
	ea.KDF = kdfParams

	var cipherAlg pkix.AlgorithmIdentifier
	if err := parseAlgorithmIdentifier(&seq, &cipherAlg); err != nil {
		return nil, err
	}

	cipherParams, err := parseCipherParams(cipherAlg)
	if err != nil {
		return nil, err
	}
	ea.Cipher = cipherParams

	return ea, nil
}

func parsePBKDF2Params(data []byte) (*PBKDF2Params, error) {
	input := cryptobyte.String(data)
	var seq cryptobyte.String

	if !input.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) {
		return nil, fmt.Errorf("%w: failed to read PBKDF2 params", ErrParse)
	}

	params := &PBKDF2Params{}

	// salt CHOICE { specified OCTET STRING, otherSource AlgorithmIdentifier }
	if !seq.ReadASN1Bytes(&params.Salt, cryptobyte_asn1.OCTET_STRING) {
		return nil, fmt.Errorf("%w: failed to read salt", ErrParse)
	}

	if !seq.ReadASN1Integer(&params.Iterations) || params.Iterations < 1 {
		return nil, fmt.Errorf("%w: failed to read iterations", ErrParse)
	}

	if seq.PeekASN1Tag(cryptobyte_asn1.INTEGER) {
		if !seq.ReadASN1Integer(&params.KeyLength) {
			return nil, fmt.Errorf("%w: failed to read keyLength", ErrParse)
		}
	}

	// prf AlgorithmIdentifier DEFAULT algid-hmacWithSHA1
	params.PRF = OIDHMACSHA1
	if !seq.Empty() {
		var prfAlg pkix.AlgorithmIdentifier
		if err := parseAlgorithmIdentifier(&seq, &prfAlg); err != nil {
			return nil, err
		}
		params.PRF = prfAlg.Algorithm
	}

	return params, nil
}

func parseCipherParams(alg pkix.AlgorithmIdentifier) (*CipherParams, error) {
	params := &CipherParams{
		Algorithm: alg.Algorithm,
	}

	// AES-CBC parameters are the IV
	if cipherKeyLength(alg.Algorithm) > 0 {
		input := cryptobyte.String(alg.Parameters.FullBytes)
		if !input.ReadASN1Bytes(&params.IV, cryptobyte_asn1.OCTET_STRING) {
			return nil, fmt.Errorf("%w: failed to read IV", ErrParse)
		}
	}

	return params, nil
}

// parseLegacyPBEParams parses pkcs-12PbeParams ::= SEQUENCE { salt, iterations }
func parseLegacyPBEParams(alg pkix.AlgorithmIdentifier) (*EncryptionAlgorithm, error) {
	ea := &EncryptionAlgorithm{
		Algorithm: alg.Algorithm,
	}

	input := cryptobyte.String(alg.Parameters.FullBytes)
	var seq cryptobyte.String

	if !input.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) {
		return nil, fmt.Errorf("%w: failed to read PBE params", ErrParse)
	}

	if !seq.ReadASN1Bytes(&ea.Salt, cryptobyte_asn1.OCTET_STRING) {
		return nil, fmt.Errorf("%w: failed to read salt", ErrParse)
	}

	if !seq.ReadASN1Integer(&ea.Iterations) || ea.Iterations < 1 {
		return nil, fmt.Errorf("%w: failed to read iterations", ErrParse)
	}

	return ea, nil
}

func parseAlgorithmIdentifier(s *cryptobyte.String, alg *pkix.AlgorithmIdentifier) error {
	var seq cryptobyte.String
	if !s.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) {
		return fmt.Errorf("%w: failed to read AlgorithmIdentifier", ErrParse)
	}

	if !seq.ReadASN1ObjectIdentifier(&alg.Algorithm) {
		return fmt.Errorf("%w: failed to read algorithm OID", ErrParse)
	}

	// parameters may be NULL, a SEQUENCE or an OCTET STRING
	if !seq.Empty() {
		alg.Parameters = asn1.RawValue{FullBytes: []byte(seq)}
	}

	return nil
}

func extractOctetString(data []byte) ([]byte, error) {
	input := cryptobyte.String(data)
	var result []byte
	if !input.ReadASN1Bytes(&result, cryptobyte_asn1.OCTET_STRING) {
		return nil, fmt.Errorf("%w: failed to read OCTET STRING", ErrParse)
	}
	return result, nil
}

// GetFriendlyName returns the friendlyName attribute (a BMPString).
func GetFriendlyName(attrs []PKCS12Attribute) (string, bool) {
	for _, attr := range attrs {
		if attr.ID.Equal(OIDFriendlyName) && len(attr.Values) > 0 {
			input := cryptobyte.String(attr.Values[0])
			var bmpString []byte
			if input.ReadASN1Bytes(&bmpString, cryptobyte_asn1.Tag(30)) {
				if name, err := decodeBMPString(bmpString); err == nil {
					return name, true
				}
			}
		}
	}
	return "", false
}

func GetLocalKeyID(attrs []PKCS12Attribute) ([]byte, bool) {
	for _, attr := range attrs {
		if attr.ID.Equal(OIDLocalKeyID) && len(attr.Values) > 0 {
			input := cryptobyte.String(attr.Values[0])
			var keyID []byte
			if input.ReadASN1Bytes(&keyID, cryptobyte_asn1.OCTET_STRING) {
				return keyID, true
			}
		}
	}
	return nil, false
}

// decodeBMPString decodes UTF-16BE into a UTF-8 string. A trailing NUL
// terminator is dropped.
func decodeBMPString(bmpData []byte) (string, error) {
	if len(bmpData)%2 != 0 {
		return "", fmt.Errorf("%w: odd BMPString length", ErrParse)
	}

	units := make([]uint16, 0, len(bmpData)/2)
	for i := 0; i < len(bmpData); i += 2 {
		units = append(units, uint16(bmpData[i])<<8|uint16(bmpData[i+1]))
	}
	if n := len(units); n > 0 && units[n-1] == 0 {
		units = units[:n-1]
	}

	return string(utf16.Decode(units)), nil
}

// encodeBMPString encodes s as UTF-16BE without terminator.
func encodeBMPString(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 0, 2*len(units))
	for _, u := range units {
		out = append(out, byte(u>>8), byte(u))
	}
	return out
}

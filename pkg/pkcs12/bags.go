package pkcs12

import (
	"bytes"
	"encoding/asn1"
	"fmt"
)

// CertificateBag represents a certificate from a PKCS#12 file with metadata
type CertificateBag struct {
	// Raw certificate data (DER-encoded X.509)
	Raw []byte

	FriendlyName string

	// LocalKeyID links this certificate to its corresponding private key
	LocalKeyID []byte

	// Encrypted reports whether the bag was read from an EncryptedData safe
	Encrypted bool
}

// PrivateKeyBag represents a private key from a PKCS#12 file with metadata
type PrivateKeyBag struct {
	// Raw private key data (DER-encoded PKCS#8)
	Raw []byte

	FriendlyName string
	LocalKeyID   []byte

	// Shrouded is false for plain KeyBags
	Shrouded bool
}

// Bags contains all certificates and keys extracted from a PKCS#12 file
type Bags struct {
	Certificates []CertificateBag
	PrivateKeys  []PrivateKeyBag

	// Skipped lists the bag types that were present but not extracted
	Skipped []asn1.ObjectIdentifier
}

// ExtractBags extracts all certificates and private keys from a PKCS#12 file.
// Unlike a strict extractor it tolerates plain KeyBags, nested
// SafeContentsBags and unknown bag types, which makes it suitable for
// inspecting arbitrary files.
//
// The returned raw data can be parsed using crypto/x509:
//   - For certificates: x509.ParseCertificate(cert.Raw)
//   - For keys: x509.ParsePKCS8PrivateKey(key.Raw)
func ExtractBags(pfx *PFX, password string) (*Bags, error) {
	bags := &Bags{
		Certificates: make([]CertificateBag, 0),
		PrivateKeys:  make([]PrivateKeyBag, 0),
	}

	if err := VerifyMAC(pfx, password); err != nil {
		return nil, err
	}

	if !pfx.AuthSafe.ContentType.Equal(OIDData) {
		return nil, fmt.Errorf("%w: authSafe content type %v", ErrUnsupportedAlgorithm, pfx.AuthSafe.ContentType)
	}

	authSafe, err := ParseAuthenticatedSafe(pfx.RawAuthSafe)
	if err != nil {
		return nil, fmt.Errorf("failed to parse authenticated safe: %w", err)
	}

	for _, ci := range authSafe.ContentInfos {
		var safeContents []byte
		encrypted := false

		switch {
		case ci.ContentType.Equal(OIDData):
			safeContents, err = extractOctetString(ci.Content)
			if err != nil {
				return nil, fmt.Errorf("failed to extract safe contents: %w", err)
			}
		case ci.ContentType.Equal(OIDEncryptedData):
			safeContents, err = DecryptEncryptedData(ci, password)
			if err != nil {
				return nil, fmt.Errorf("failed to decrypt safe contents: %w", err)
			}
			encrypted = true
		default:
			continue
		}

		sc, err := ParseSafeContents(safeContents)
		if err != nil {
			return nil, fmt.Errorf("failed to parse safe contents: %w", err)
		}

		if err := extractFromSafeContents(sc, password, encrypted, bags); err != nil {
			return nil, err
		}
	}

	return bags, nil
}

// Decode reads PKCS#12 data and extracts all bags (certificates and private keys).
// This is a convenience function that combines Parse and ExtractBags.
func Decode(data []byte, password string) (*Bags, error) {
	pfx, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PKCS#12: %w", err)
	}

	return ExtractBags(pfx, password)
}

func extractFromSafeContents(sc *SafeContents, password string, encrypted bool, bags *Bags) error {
	for _, bag := range sc.Bags {
		switch {
		case bag.BagID.Equal(OIDCertBag):
			cert, err := extractCertificate(bag)
			if err != nil {
				return fmt.Errorf("failed to extract certificate: %w", err)
			}
			cert.Encrypted = encrypted
			bags.Certificates = append(bags.Certificates, cert)

		case bag.BagID.Equal(OIDPKCS8ShroudedKeyBag):
			key, err := extractShroudedKey(bag, password)
			if err != nil {
				return fmt.Errorf("failed to extract shrouded key: %w", err)
			}
			bags.PrivateKeys = append(bags.PrivateKeys, key)

		case bag.BagID.Equal(OIDKeyBag):
			bags.PrivateKeys = append(bags.PrivateKeys, extractKeyBag(bag))

		case bag.BagID.Equal(OIDSafeContentsBag):
			nestedSC, err := ParseSafeContents(bag.BagValue)
			if err != nil {
				return fmt.Errorf("failed to parse nested safe contents: %w", err)
			}
			if err := extractFromSafeContents(nestedSC, password, encrypted, bags); err != nil {
				return err
			}

		default:
			bags.Skipped = append(bags.Skipped, bag.BagID)
		}
	}

	return nil
}

func extractCertificate(bag SafeBag) (CertificateBag, error) {
	cert := CertificateBag{}

	certBag, err := ParseCertBag(bag.BagValue)
	if err != nil {
		return cert, err
	}

	if !certBag.CertID.Equal(OIDX509Certificate) {
		return cert, fmt.Errorf("%w: unsupported certificate type %v",
			ErrUnsupportedAlgorithm, certBag.CertID)
	}

	cert.Raw = certBag.CertValue
	cert.FriendlyName, cert.LocalKeyID = extractAttributes(bag.Attributes)

	return cert, nil
}

func extractShroudedKey(bag SafeBag, password string) (PrivateKeyBag, error) {
	decrypted, err := DecryptShroudedKeyBag(bag.BagValue, password)
	if err != nil {
		return PrivateKeyBag{}, err
	}

	key := PrivateKeyBag{Raw: decrypted, Shrouded: true}
	key.FriendlyName, key.LocalKeyID = extractAttributes(bag.Attributes)

	return key, nil
}

// extractKeyBag extracts an unencrypted KeyBag, already in PKCS#8 format
func extractKeyBag(bag SafeBag) PrivateKeyBag {
	key := PrivateKeyBag{Raw: bag.BagValue}
	key.FriendlyName, key.LocalKeyID = extractAttributes(bag.Attributes)
	return key
}

func extractAttributes(attrs []PKCS12Attribute) (friendlyName string, localKeyID []byte) {
	if name, ok := GetFriendlyName(attrs); ok {
		friendlyName = name
	}
	if keyID, ok := GetLocalKeyID(attrs); ok {
		localKeyID = keyID
	}
	return
}

// FindCertificate finds a certificate by localKeyID
func (b *Bags) FindCertificate(localKeyID []byte) *CertificateBag {
	for i := range b.Certificates {
		if bytes.Equal(b.Certificates[i].LocalKeyID, localKeyID) {
			return &b.Certificates[i]
		}
	}
	return nil
}

// FindPrivateKey finds a private key by localKeyID
func (b *Bags) FindPrivateKey(localKeyID []byte) *PrivateKeyBag {
	for i := range b.PrivateKeys {
		if bytes.Equal(b.PrivateKeys[i].LocalKeyID, localKeyID) {
			return &b.PrivateKeys[i]
		}
	}
	return nil
}

// FindMatchingPairs returns pairs of certificates and their corresponding private keys
// based on localKeyID matching
func (b *Bags) FindMatchingPairs() []CertKeyPair {
	pairs := make([]CertKeyPair, 0)

	for i := range b.Certificates {
		cert := &b.Certificates[i]
		if len(cert.LocalKeyID) > 0 {
			if key := b.FindPrivateKey(cert.LocalKeyID); key != nil {
				pairs = append(pairs, CertKeyPair{
					Certificate: cert,
					PrivateKey:  key,
				})
			}
		}
	}

	return pairs
}

// CertKeyPair represents a matched certificate and private key pair
type CertKeyPair struct {
	Certificate *CertificateBag
	PrivateKey  *PrivateKeyBag
}

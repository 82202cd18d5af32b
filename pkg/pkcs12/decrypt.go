package pkcs12

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"hash"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
	"golang.org/x/crypto/pbkdf2"

	"github.com/gematik/zero-codesign/pkg/pkcs12/internal/rc2"
)

var (
	ErrDecryption     = errors.New("pkcs12: decryption failed")
	ErrAuthentication = errors.New("pkcs12: MAC verification failed")
	ErrInvalidPadding = fmt.Errorf("%w: invalid padding", ErrDecryption)
)

// PKCS#12 KDF diversifiers (RFC 7292 Appendix B.3)
const (
	kdfIDKey = 1
	kdfIDIV  = 2
	kdfIDMAC = 3
)

// BMPPassword encodes password the way the PKCS#12 KDF expects it: UTF-16BE
// followed by a two byte NUL terminator. The empty password becomes {0, 0}.
func BMPPassword(password string) []byte {
	return append(encodeBMPString(password), 0, 0)
}

// DecryptPBES2 decrypts data encrypted with the PBES2 scheme. The password
// enters PBKDF2 as UTF-8 (RFC 8018 Section 3).
func DecryptPBES2(encAlg *EncryptionAlgorithm, password string, data []byte) ([]byte, error) {
	if encAlg.KDF == nil || encAlg.Cipher == nil {
		return nil, fmt.Errorf("%w: invalid PBES2 parameters", ErrDecryption)
	}

	keyLen := cipherKeyLength(encAlg.Cipher.Algorithm)
	if keyLen == 0 {
		return nil, fmt.Errorf("%w: cipher %v", ErrUnsupportedAlgorithm, encAlg.Cipher.Algorithm)
	}
	if encAlg.KDF.KeyLength != 0 && encAlg.KDF.KeyLength != keyLen {
		return nil, fmt.Errorf("%w: key length %d does not match cipher", ErrDecryption, encAlg.KDF.KeyLength)
	}

	prf := prfHash(encAlg.KDF.PRF)
	if prf == nil {
		return nil, fmt.Errorf("%w: PRF %v", ErrUnsupportedAlgorithm, encAlg.KDF.PRF)
	}

	key := pbkdf2.Key([]byte(password), encAlg.KDF.Salt, encAlg.KDF.Iterations, keyLen, prf)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	return decryptCBC(block, encAlg.Cipher.IV, data)
}

// DecryptLegacyPBE decrypts data encrypted with one of the PKCS#12 PBE
// schemes of RFC 7292 Appendix C. Key and IV are derived from the BMP encoded
// password with SHA-1.
func DecryptLegacyPBE(encAlg *EncryptionAlgorithm, password string, data []byte) ([]byte, error) {
	block, iv, err := legacyCipher(encAlg, BMPPassword(password))
	if err != nil {
		return nil, err
	}
	return decryptCBC(block, iv, data)
}

// decrypt dispatches on the scheme of a parsed algorithm identifier.
func decrypt(encAlg *EncryptionAlgorithm, password string, data []byte) ([]byte, error) {
	if encAlg.Algorithm.Equal(OIDPBES2) {
		return DecryptPBES2(encAlg, password, data)
	}
	return DecryptLegacyPBE(encAlg, password, data)
}

// DecryptEncryptedData decrypts a PKCS#7 EncryptedData ContentInfo and
// returns the plaintext content, usually a SafeContents.
func DecryptEncryptedData(contentInfo ContentInfo, password string) ([]byte, error) {
	if !contentInfo.ContentType.Equal(OIDEncryptedData) {
		return nil, fmt.Errorf("%w: content type %v is not EncryptedData", ErrDecryption, contentInfo.ContentType)
	}

	encAlg, ciphertext, err := parseEncryptedData(contentInfo.Content)
	if err != nil {
		return nil, err
	}

	parsed, err := ParseEncryptionAlgorithm(encAlg)
	if err != nil {
		return nil, err
	}

	return decrypt(parsed, password, ciphertext)
}

// parseEncryptedData reads
//
//	EncryptedData ::= SEQUENCE {
//	  version INTEGER,
//	  encryptedContentInfo SEQUENCE {
//	    contentType ContentType,
//	    contentEncryptionAlgorithm AlgorithmIdentifier,
//	    encryptedContent [0] IMPLICIT OCTET STRING OPTIONAL } }
//
// The encrypted content may be primitive or, as written by some BER
// encoders, constructed from OCTET STRING segments.
func parseEncryptedData(data []byte) (alg pkix.AlgorithmIdentifier, ciphertext []byte, err error) {
	input := cryptobyte.String(data)
	var seq, eci cryptobyte.String
	var version int

	if !input.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) {
		return alg, nil, fmt.Errorf("%w: failed to read EncryptedData SEQUENCE", ErrParse)
	}
	if !seq.ReadASN1Integer(&version) {
		return alg, nil, fmt.Errorf("%w: failed to read EncryptedData version", ErrParse)
	}
	if version != 0 && version != 2 {
		return alg, nil, fmt.Errorf("%w: unsupported EncryptedData version %d", ErrParse, version)
	}
	if !seq.ReadASN1(&eci, cryptobyte_asn1.SEQUENCE) {
		return alg, nil, fmt.Errorf("%w: failed to read EncryptedContentInfo", ErrParse)
	}

	var contentType asn1.ObjectIdentifier
	if !eci.ReadASN1ObjectIdentifier(&contentType) {
		return alg, nil, fmt.Errorf("%w: failed to read encrypted content type", ErrParse)
	}
	if !contentType.Equal(OIDData) {
		return alg, nil, fmt.Errorf("%w: encrypted content type %v is not Data", ErrParse, contentType)
	}
	if err := parseAlgorithmIdentifier(&eci, &alg); err != nil {
		return alg, nil, err
	}

	primitive := cryptobyte_asn1.Tag(0).ContextSpecific()
	switch {
	case eci.PeekASN1Tag(primitive):
		if !eci.ReadASN1Bytes(&ciphertext, primitive) {
			return alg, nil, fmt.Errorf("%w: failed to read encryptedContent", ErrParse)
		}
	case eci.PeekASN1Tag(primitive.Constructed()):
		var segments cryptobyte.String
		if !eci.ReadASN1(&segments, primitive.Constructed()) {
			return alg, nil, fmt.Errorf("%w: failed to read encryptedContent", ErrParse)
		}
		for !segments.Empty() {
			var segment []byte
			if !segments.ReadASN1Bytes(&segment, cryptobyte_asn1.OCTET_STRING) {
				return alg, nil, fmt.Errorf("%w: failed to read encryptedContent segment", ErrParse)
			}
			ciphertext = append(ciphertext, segment...)
		}
	default:
		return alg, nil, fmt.Errorf("%w: EncryptedData without content", ErrParse)
	}

	return alg, ciphertext, nil
}

// DecryptShroudedKeyBag decrypts the value of a PKCS8ShroudedKeyBag and
// returns the PKCS#8 PrivateKeyInfo DER.
func DecryptShroudedKeyBag(bagValue []byte, password string) ([]byte, error) {
	epki, err := ParseEncryptedPrivateKeyInfo(bagValue)
	if err != nil {
		return nil, err
	}

	encAlg, err := ParseEncryptionAlgorithm(epki.Algorithm)
	if err != nil {
		return nil, err
	}

	return decrypt(encAlg, password, epki.Data)
}

// VerifyMAC verifies the integrity MAC of a PFX. A PFX without MacData is
// accepted. For the empty password both the two byte terminator and the
// zero length encoding are tried.
func VerifyMAC(pfx *PFX, password string) error {
	if pfx.MacData == nil {
		return nil
	}
	if !pfx.AuthSafe.ContentType.Equal(OIDData) {
		return fmt.Errorf("%w: MAC over non-Data authSafe", ErrUnsupportedAlgorithm)
	}

	ok, err := macMatches(pfx, BMPPassword(password))
	if err != nil {
		return err
	}
	if !ok && password == "" {
		// some writers encode the empty password as zero bytes
		ok, err = macMatches(pfx, nil)
		if err != nil {
			return err
		}
	}
	if !ok {
		return ErrAuthentication
	}

	return nil
}

func macMatches(pfx *PFX, bmpPassword []byte) (bool, error) {
	expected, err := computeMAC(pfx.MacData.Mac.Algorithm.Algorithm, bmpPassword,
		pfx.MacData.MacSalt, pfx.MacData.Iterations, pfx.RawAuthSafe)
	if err != nil {
		return false, err
	}
	return hmac.Equal(expected, pfx.MacData.Mac.Digest), nil
}

func computeMAC(digestAlg asn1.ObjectIdentifier, bmpPassword, salt []byte, iterations int, message []byte) ([]byte, error) {
	h, ok := macDigests[digestAlg.String()]
	if !ok {
		return nil, fmt.Errorf("%w: MAC algorithm %v", ErrUnsupportedAlgorithm, digestAlg)
	}

	key := derivePKCS12Key(h.sum, h.size, h.blockSize, bmpPassword, salt, iterations, kdfIDMAC, h.size)
	mac := hmac.New(h.new, key)
	mac.Write(message)
	return mac.Sum(nil), nil
}

func legacyCipher(encAlg *EncryptionAlgorithm, bmpPassword []byte) (cipher.Block, []byte, error) {
	var keyLen int
	var newBlock func(key []byte) (cipher.Block, error)

	switch {
	case encAlg.Algorithm.Equal(OIDPBEWithSHAAnd3KeyTripleDESCBC):
		keyLen, newBlock = 24, des.NewTripleDESCipher
	case encAlg.Algorithm.Equal(OIDPBEWithSHAAnd128BitRC2CBC):
		keyLen = 16
		newBlock = func(key []byte) (cipher.Block, error) { return rc2.New(key, 128) }
	case encAlg.Algorithm.Equal(OIDPBEWithSHAAnd40BitRC2CBC):
		keyLen = 5
		newBlock = func(key []byte) (cipher.Block, error) { return rc2.New(key, 40) }
	default:
		return nil, nil, fmt.Errorf("%w: legacy algorithm %v", ErrUnsupportedAlgorithm, encAlg.Algorithm)
	}

	key := derivePKCS12Key(sha1Sum, sha1.Size, 64, bmpPassword, encAlg.Salt, encAlg.Iterations, kdfIDKey, keyLen)
	iv := derivePKCS12Key(sha1Sum, sha1.Size, 64, bmpPassword, encAlg.Salt, encAlg.Iterations, kdfIDIV, 8)

	block, err := newBlock(key)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	return block, iv, nil
}

func decryptCBC(block cipher.Block, iv, ciphertext []byte) ([]byte, error) {
	bs := block.BlockSize()
	if len(iv) != bs {
		return nil, fmt.Errorf("%w: invalid IV length %d", ErrDecryption, len(iv))
	}
	if len(ciphertext) == 0 || len(ciphertext)%bs != 0 {
		return nil, fmt.Errorf("%w: ciphertext not multiple of block size", ErrDecryption)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return removePKCS7Padding(plaintext, bs)
}

func removePKCS7Padding(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrInvalidPadding
	}

	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, ErrInvalidPadding
	}

	for i := len(data) - padLen; i < len(data); i++ {
		if data[i] != byte(padLen) {
			return nil, ErrInvalidPadding
		}
	}

	return data[:len(data)-padLen], nil
}

// derivePKCS12Key derives key material with the PKCS#12 KDF (RFC 7292
// Appendix B.2). id selects key (1), IV (2) or MAC key (3); u is the digest
// size and v the block size of hash, both in bytes.
func derivePKCS12Key(hash func([]byte) []byte, u, v int, bmpPassword, salt []byte, iterations, id, keyLen int) []byte {
	D := make([]byte, v)
	for i := range D {
		D[i] = byte(id)
	}

	S := fillWithRepeats(salt, v)
	P := fillWithRepeats(bmpPassword, v)
	I := append(S, P...)

	c := (keyLen + u - 1) / u
	A := make([]byte, c*u)

	one := big.NewInt(1)
	for i := 0; i < c; i++ {
		Ai := hash(append(D, I...))
		for j := 1; j < iterations; j++ {
			Ai = hash(Ai)
		}
		copy(A[i*u:], Ai)

		if i < c-1 {
			// I_j = (I_j + B + 1) mod 2^(8v) for every v-byte block of I
			B := new(big.Int).SetBytes(fillWithRepeats(Ai, v)[:v])
			Ij := new(big.Int)
			for j := 0; j < len(I)/v; j++ {
				Ij.SetBytes(I[j*v : (j+1)*v])
				Ij.Add(Ij, B)
				Ij.Add(Ij, one)

				Ijb := Ij.Bytes()
				if len(Ijb) > v {
					Ijb = Ijb[len(Ijb)-v:]
				}
				block := I[j*v : (j+1)*v]
				clear(block)
				copy(block[v-len(Ijb):], Ijb)
			}
		}
	}

	return A[:keyLen]
}

// fillWithRepeats repeats pattern up to the next multiple of v bytes.
func fillWithRepeats(pattern []byte, v int) []byte {
	if len(pattern) == 0 {
		return nil
	}

	outputLen := v * ((len(pattern) + v - 1) / v)
	result := make([]byte, outputLen)
	for i := range result {
		result[i] = pattern[i%len(pattern)]
	}

	return result
}

func cipherKeyLength(cipher asn1.ObjectIdentifier) int {
	switch {
	case cipher.Equal(OIDAes128CBC):
		return 16
	case cipher.Equal(OIDAes192CBC):
		return 24
	case cipher.Equal(OIDAes256CBC):
		return 32
	default:
		return 0
	}
}

func prfHash(prf asn1.ObjectIdentifier) func() hash.Hash {
	switch {
	case prf.Equal(OIDHMACSHA1):
		return sha1.New
	case prf.Equal(OIDHMACSHA224):
		return sha256.New224
	case prf.Equal(OIDHMACSHA256):
		return sha256.New
	case prf.Equal(OIDHMACSHA384):
		return sha512.New384
	case prf.Equal(OIDHMACSHA512):
		return sha512.New
	default:
		return nil
	}
}

type macDigest struct {
	new       func() hash.Hash
	sum       func([]byte) []byte
	size      int
	blockSize int
}

var macDigests = map[string]macDigest{
	OIDSHA1.String():   {sha1.New, sha1Sum, sha1.Size, sha1.BlockSize},
	OIDSHA224.String(): {sha256.New224, func(b []byte) []byte { h := sha256.Sum224(b); return h[:] }, sha256.Size224, sha256.BlockSize},
	OIDSHA256.String(): {sha256.New, func(b []byte) []byte { h := sha256.Sum256(b); return h[:] }, sha256.Size, sha256.BlockSize},
	OIDSHA384.String(): {sha512.New384, func(b []byte) []byte { h := sha512.Sum384(b); return h[:] }, sha512.Size384, sha512.BlockSize},
	OIDSHA512.String(): {sha512.New, func(b []byte) []byte { h := sha512.Sum512(b); return h[:] }, sha512.Size, sha512.BlockSize},
}

func sha1Sum(b []byte) []byte {
	h := sha1.Sum(b)
	return h[:]
}

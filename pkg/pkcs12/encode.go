package pkcs12

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// EncodeOptions configures PKCS#12 encoding
type EncodeOptions struct {
	// KeyEncryption selects how private keys are shrouded: an AES-CBC OID
	// selects PBES2, a legacy PBE OID selects RFC 7292 Appendix C. Nil stores
	// keys in plain KeyBags.
	KeyEncryption asn1.ObjectIdentifier

	// CertEncryption selects the scheme of the EncryptedData safe holding
	// the certificates. Nil stores certificates in a plain Data safe.
	CertEncryption asn1.ObjectIdentifier

	// Iterations for PBKDF2 and the legacy PBE KDF (default: 2048)
	Iterations int

	// PRF is the PBKDF2 pseudo random function (default: HMAC-SHA-256)
	PRF asn1.ObjectIdentifier

	// MacAlgorithm is the MacData digest (default: SHA-256)
	MacAlgorithm  asn1.ObjectIdentifier
	MacIterations int
	IncludeMAC    bool

	// Rand is the source for salts and IVs (default: crypto/rand)
	Rand io.Reader
}

// DefaultEncodeOptions returns options equivalent to OpenSSL 3 defaults:
// PBES2 with PBKDF2-HMAC-SHA-256 and AES-256-CBC for keys and certificates,
// SHA-256 MAC.
func DefaultEncodeOptions() *EncodeOptions {
	return &EncodeOptions{
		KeyEncryption:  OIDAes256CBC,
		CertEncryption: OIDAes256CBC,
		Iterations:     2048,
		PRF:            OIDHMACSHA256,
		MacAlgorithm:   OIDSHA256,
		MacIterations:  2048,
		IncludeMAC:     true,
	}
}

// LegacyEncodeOptions returns options readable by old software: 3DES for
// keys, 40 bit RC2 for certificates and a SHA-1 MAC.
func LegacyEncodeOptions() *EncodeOptions {
	return &EncodeOptions{
		KeyEncryption:  OIDPBEWithSHAAnd3KeyTripleDESCBC,
		CertEncryption: OIDPBEWithSHAAnd40BitRC2CBC,
		Iterations:     2048,
		MacAlgorithm:   OIDSHA1,
		MacIterations:  1,
		IncludeMAC:     true,
	}
}

// Encode creates a PKCS#12 file from bags with default options.
// For more control, use EncodeWithOptions.
func Encode(bags *Bags, password string) ([]byte, error) {
	return EncodeWithOptions(bags, password, DefaultEncodeOptions())
}

// EncodeWithOptions creates a PKCS#12 file from bags with custom options.
// Certificates go into the first safe, keys into the second.
func EncodeWithOptions(bags *Bags, password string, opts *EncodeOptions) ([]byte, error) {
	if opts == nil {
		opts = DefaultEncodeOptions()
	}
	e := &encoder{opts: *opts, password: password}
	if e.opts.Iterations == 0 {
		e.opts.Iterations = 2048
	}
	if e.opts.MacIterations == 0 {
		e.opts.MacIterations = 1
	}
	if e.opts.PRF == nil {
		e.opts.PRF = OIDHMACSHA256
	}
	if e.opts.MacAlgorithm == nil {
		e.opts.MacAlgorithm = OIDSHA256
	}
	if e.opts.Rand == nil {
		e.opts.Rand = rand.Reader
	}

	var contentInfos []ContentInfo

	if len(bags.Certificates) > 0 {
		certSafeBags := make([]SafeBag, 0, len(bags.Certificates))
		for _, cert := range bags.Certificates {
			bag, err := createCertBag(cert)
			if err != nil {
				return nil, fmt.Errorf("failed to create cert bag: %w", err)
			}
			certSafeBags = append(certSafeBags, bag)
		}

		safeData, err := serializeSafeContents(&SafeContents{Bags: certSafeBags})
		if err != nil {
			return nil, fmt.Errorf("failed to serialize cert safe contents: %w", err)
		}

		var ci ContentInfo
		if e.opts.CertEncryption != nil {
			ci, err = e.createEncryptedContentInfo(safeData)
		} else {
			ci, err = createDataContentInfo(safeData)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create certificate safe: %w", err)
		}
		contentInfos = append(contentInfos, ci)
	}

	if len(bags.PrivateKeys) > 0 {
		keySafeBags := make([]SafeBag, 0, len(bags.PrivateKeys))
		for _, key := range bags.PrivateKeys {
			bag, err := e.createKeyBag(key)
			if err != nil {
				return nil, fmt.Errorf("failed to create key bag: %w", err)
			}
			keySafeBags = append(keySafeBags, bag)
		}

		safeData, err := serializeSafeContents(&SafeContents{Bags: keySafeBags})
		if err != nil {
			return nil, fmt.Errorf("failed to serialize key safe contents: %w", err)
		}

		ci, err := createDataContentInfo(safeData)
		if err != nil {
			return nil, fmt.Errorf("failed to create key safe: %w", err)
		}
		contentInfos = append(contentInfos, ci)
	}

	authSafeData, err := serializeAuthenticatedSafe(&AuthenticatedSafe{ContentInfos: contentInfos})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize authenticated safe: %w", err)
	}

	authSafeCI, err := createDataContentInfo(authSafeData)
	if err != nil {
		return nil, fmt.Errorf("failed to create authsafe content: %w", err)
	}

	pfx := PFX{
		Version:     3,
		AuthSafe:    authSafeCI,
		RawAuthSafe: authSafeData,
	}

	if e.opts.IncludeMAC {
		macData, err := e.generateMAC(authSafeData)
		if err != nil {
			return nil, fmt.Errorf("failed to generate MAC: %w", err)
		}
		pfx.MacData = macData
	}

	return serializePFX(&pfx)
}

type encoder struct {
	opts     EncodeOptions
	password string
}

func (e *encoder) createKeyBag(key PrivateKeyBag) (SafeBag, error) {
	bag := SafeBag{
		BagID:      OIDKeyBag,
		BagValue:   key.Raw,
		Attributes: bagAttributes(key.FriendlyName, key.LocalKeyID),
	}
	if e.opts.KeyEncryption == nil {
		return bag, nil
	}

	algorithm, encrypted, err := e.encrypt(e.opts.KeyEncryption, key.Raw)
	if err != nil {
		return SafeBag{}, err
	}

	epkiData, err := asn1.Marshal(EncryptedPrivateKeyInfo{
		Algorithm: algorithm,
		Data:      encrypted,
	})
	if err != nil {
		return SafeBag{}, fmt.Errorf("failed to marshal EPKI: %w", err)
	}

	bag.BagID = OIDPKCS8ShroudedKeyBag
	bag.BagValue = epkiData
	return bag, nil
}

func createCertBag(cert CertificateBag) (SafeBag, error) {
	certBag := struct {
		CertID    asn1.ObjectIdentifier
		CertValue []byte `asn1:"tag:0,explicit"`
	}{
		CertID:    OIDX509Certificate,
		CertValue: cert.Raw,
	}

	certBagData, err := asn1.Marshal(certBag)
	if err != nil {
		return SafeBag{}, fmt.Errorf("failed to marshal cert bag: %w", err)
	}

	return SafeBag{
		BagID:      OIDCertBag,
		BagValue:   certBagData,
		Attributes: bagAttributes(cert.FriendlyName, cert.LocalKeyID),
	}, nil
}

func bagAttributes(friendlyName string, localKeyID []byte) []PKCS12Attribute {
	var attrs []PKCS12Attribute
	if friendlyName != "" {
		if attr, err := createFriendlyNameAttribute(friendlyName); err == nil {
			attrs = append(attrs, attr)
		}
	}
	if len(localKeyID) > 0 {
		if attr, err := createLocalKeyIDAttribute(localKeyID); err == nil {
			attrs = append(attrs, attr)
		}
	}
	return attrs
}

func createFriendlyNameAttribute(name string) (PKCS12Attribute, error) {
	bmpValue, err := asn1.Marshal(asn1.RawValue{
		Class: asn1.ClassUniversal,
		Tag:   asn1.TagBMPString,
		Bytes: encodeBMPString(name),
	})
	if err != nil {
		return PKCS12Attribute{}, err
	}

	return PKCS12Attribute{
		ID:     OIDFriendlyName,
		Values: [][]byte{bmpValue},
	}, nil
}

func createLocalKeyIDAttribute(keyID []byte) (PKCS12Attribute, error) {
	keyIDValue, err := asn1.Marshal(keyID)
	if err != nil {
		return PKCS12Attribute{}, err
	}

	return PKCS12Attribute{
		ID:     OIDLocalKeyID,
		Values: [][]byte{keyIDValue},
	}, nil
}

// createDataContentInfo wraps data into a Data ContentInfo. Content holds
// the OCTET STRING, serializeContentInfo adds the [0] wrapper.
func createDataContentInfo(data []byte) (ContentInfo, error) {
	octetData, err := asn1.Marshal(data)
	if err != nil {
		return ContentInfo{}, err
	}

	return ContentInfo{
		ContentType: OIDData,
		Content:     octetData,
	}, nil
}

type encryptedData struct {
	Version              int
	EncryptedContentInfo encryptedContentInfo
}

type encryptedContentInfo struct {
	ContentType                asn1.ObjectIdentifier
	ContentEncryptionAlgorithm pkix.AlgorithmIdentifier
	EncryptedContent           []byte `asn1:"tag:0,optional"`
}

func (e *encoder) createEncryptedContentInfo(data []byte) (ContentInfo, error) {
	algorithm, encrypted, err := e.encrypt(e.opts.CertEncryption, data)
	if err != nil {
		return ContentInfo{}, err
	}

	content, err := asn1.Marshal(encryptedData{
		Version: 0,
		EncryptedContentInfo: encryptedContentInfo{
			ContentType:                OIDData,
			ContentEncryptionAlgorithm: algorithm,
			EncryptedContent:           encrypted,
		},
	})
	if err != nil {
		return ContentInfo{}, err
	}

	return ContentInfo{
		ContentType: OIDEncryptedData,
		Content:     content,
	}, nil
}

// encrypt encrypts plaintext with the scheme selected by oid and returns the
// matching AlgorithmIdentifier.
func (e *encoder) encrypt(oid asn1.ObjectIdentifier, plaintext []byte) (pkix.AlgorithmIdentifier, []byte, error) {
	if keyLen := cipherKeyLength(oid); keyLen > 0 {
		return e.encryptPBES2(oid, keyLen, plaintext)
	}
	if isLegacyPBE(oid) {
		return e.encryptLegacyPBE(oid, plaintext)
	}
	return pkix.AlgorithmIdentifier{}, nil, fmt.Errorf("%w: encryption %v", ErrUnsupportedAlgorithm, oid)
}

func (e *encoder) encryptPBES2(cipherOID asn1.ObjectIdentifier, keyLen int, plaintext []byte) (pkix.AlgorithmIdentifier, []byte, error) {
	prf := prfHash(e.opts.PRF)
	if prf == nil {
		return pkix.AlgorithmIdentifier{}, nil, fmt.Errorf("%w: PRF %v", ErrUnsupportedAlgorithm, e.opts.PRF)
	}

	salt, err := e.random(16)
	if err != nil {
		return pkix.AlgorithmIdentifier{}, nil, err
	}
	iv, err := e.random(aes.BlockSize)
	if err != nil {
		return pkix.AlgorithmIdentifier{}, nil, err
	}

	key := pbkdf2.Key([]byte(e.password), salt, e.opts.Iterations, keyLen, prf)
	block, err := aes.NewCipher(key)
	if err != nil {
		return pkix.AlgorithmIdentifier{}, nil, err
	}

	algorithm, err := buildPBES2AlgorithmIdentifier(cipherOID, e.opts.PRF, salt, iv, e.opts.Iterations)
	if err != nil {
		return pkix.AlgorithmIdentifier{}, nil, err
	}

	return algorithm, encryptCBC(block, iv, plaintext), nil
}

func (e *encoder) encryptLegacyPBE(oid asn1.ObjectIdentifier, plaintext []byte) (pkix.AlgorithmIdentifier, []byte, error) {
	salt, err := e.random(8)
	if err != nil {
		return pkix.AlgorithmIdentifier{}, nil, err
	}

	encAlg := &EncryptionAlgorithm{Algorithm: oid, Salt: salt, Iterations: e.opts.Iterations}
	block, iv, err := legacyCipher(encAlg, BMPPassword(e.password))
	if err != nil {
		return pkix.AlgorithmIdentifier{}, nil, err
	}

	params, err := asn1.Marshal(struct {
		Salt       []byte
		Iterations int
	}{salt, e.opts.Iterations})
	if err != nil {
		return pkix.AlgorithmIdentifier{}, nil, err
	}

	algorithm := pkix.AlgorithmIdentifier{
		Algorithm:  oid,
		Parameters: asn1.RawValue{FullBytes: params},
	}
	return algorithm, encryptCBC(block, iv, plaintext), nil
}

func (e *encoder) random(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(e.opts.Rand, b); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return b, nil
}

func (e *encoder) generateMAC(authSafeData []byte) (*MacData, error) {
	salt, err := e.random(16)
	if err != nil {
		return nil, err
	}

	digest, err := computeMAC(e.opts.MacAlgorithm, BMPPassword(e.password), salt, e.opts.MacIterations, authSafeData)
	if err != nil {
		return nil, err
	}

	return &MacData{
		Mac: DigestInfo{
			Algorithm: pkix.AlgorithmIdentifier{
				Algorithm:  e.opts.MacAlgorithm,
				Parameters: asn1.NullRawValue,
			},
			Digest: digest,
		},
		MacSalt:    salt,
		Iterations: e.opts.MacIterations,
	}, nil
}

func encryptCBC(block cipher.Block, iv, plaintext []byte) []byte {
	padded := addPKCS7Padding(plaintext, block.BlockSize())
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext
}

func addPKCS7Padding(data []byte, blockSize int) []byte {
	padding := blockSize - (len(data) % blockSize)
	out := make([]byte, len(data), len(data)+padding)
	copy(out, data)
	for i := 0; i < padding; i++ {
		out = append(out, byte(padding))
	}
	return out
}

func buildPBES2AlgorithmIdentifier(cipherOID, prfOID asn1.ObjectIdentifier, salt, iv []byte, iterations int) (pkix.AlgorithmIdentifier, error) {
	kdfParams := struct {
		Salt           []byte
		IterationCount int
		KeyLength      int                      `asn1:"optional"`
		PRF            pkix.AlgorithmIdentifier `asn1:"optional"`
	}{
		Salt:           salt,
		IterationCount: iterations,
	}
	// hmacWithSHA1 is the DEFAULT and therefore omitted
	if !prfOID.Equal(OIDHMACSHA1) {
		kdfParams.PRF = pkix.AlgorithmIdentifier{Algorithm: prfOID, Parameters: asn1.NullRawValue}
	}

	kdfData, err := asn1.Marshal(kdfParams)
	if err != nil {
		return pkix.AlgorithmIdentifier{}, err
	}

	ivData, err := asn1.Marshal(iv)
	if err != nil {
		return pkix.AlgorithmIdentifier{}, err
	}

	pbes2Data, err := asn1.Marshal(struct {
		KeyDerivationFunc pkix.AlgorithmIdentifier
		EncryptionScheme  pkix.AlgorithmIdentifier
	}{
		KeyDerivationFunc: pkix.AlgorithmIdentifier{
			Algorithm:  OIDPBKDF2,
			Parameters: asn1.RawValue{FullBytes: kdfData},
		},
		EncryptionScheme: pkix.AlgorithmIdentifier{
			Algorithm:  cipherOID,
			Parameters: asn1.RawValue{FullBytes: ivData},
		},
	})
	if err != nil {
		return pkix.AlgorithmIdentifier{}, err
	}

	return pkix.AlgorithmIdentifier{
		Algorithm:  OIDPBES2,
		Parameters: asn1.RawValue{FullBytes: pbes2Data},
	}, nil
}

func serializeSafeContents(sc *SafeContents) ([]byte, error) {
	rawBags := make([]asn1.RawValue, 0, len(sc.Bags))
	for _, bag := range sc.Bags {
		bagData, err := serializeSafeBag(&bag)
		if err != nil {
			return nil, err
		}
		rawBags = append(rawBags, asn1.RawValue{FullBytes: bagData})
	}

	return asn1.Marshal(rawBags)
}

func serializeSafeBag(bag *SafeBag) ([]byte, error) {
	type safeBagASN1 struct {
		BagID      asn1.ObjectIdentifier
		BagValue   asn1.RawValue
		Attributes []asn1.RawValue `asn1:"set,omitempty"`
	}

	sb := safeBagASN1{
		BagID: bag.BagID,
		BagValue: asn1.RawValue{
			Class:      asn1.ClassContextSpecific,
			Tag:        0,
			IsCompound: true,
			Bytes:      bag.BagValue,
		},
	}

	for _, attr := range bag.Attributes {
		attrData, err := serializeAttribute(&attr)
		if err != nil {
			return nil, err
		}
		sb.Attributes = append(sb.Attributes, asn1.RawValue{FullBytes: attrData})
	}

	return asn1.Marshal(sb)
}

func serializeAttribute(attr *PKCS12Attribute) ([]byte, error) {
	type attributeASN1 struct {
		ID     asn1.ObjectIdentifier
		Values []asn1.RawValue `asn1:"set"`
	}

	a := attributeASN1{ID: attr.ID}
	for _, val := range attr.Values {
		a.Values = append(a.Values, asn1.RawValue{FullBytes: val})
	}

	return asn1.Marshal(a)
}

func serializeAuthenticatedSafe(authSafe *AuthenticatedSafe) ([]byte, error) {
	rawCIs := make([]asn1.RawValue, 0, len(authSafe.ContentInfos))
	for _, ci := range authSafe.ContentInfos {
		ciData, err := serializeContentInfo(&ci)
		if err != nil {
			return nil, err
		}
		rawCIs = append(rawCIs, asn1.RawValue{FullBytes: ciData})
	}

	return asn1.Marshal(rawCIs)
}

func serializeContentInfo(ci *ContentInfo) ([]byte, error) {
	type contentInfoASN1 struct {
		ContentType asn1.ObjectIdentifier
		Content     asn1.RawValue
	}

	return asn1.Marshal(contentInfoASN1{
		ContentType: ci.ContentType,
		Content: asn1.RawValue{
			Class:      asn1.ClassContextSpecific,
			Tag:        0,
			IsCompound: true,
			Bytes:      ci.Content,
		},
	})
}

func serializePFX(pfx *PFX) ([]byte, error) {
	type pfxASN1 struct {
		Version  int
		AuthSafe asn1.RawValue
		MacData  asn1.RawValue `asn1:"optional"`
	}

	authSafeData, err := serializeContentInfo(&pfx.AuthSafe)
	if err != nil {
		return nil, err
	}

	p := pfxASN1{
		Version:  pfx.Version,
		AuthSafe: asn1.RawValue{FullBytes: authSafeData},
	}

	if pfx.MacData != nil {
		macData, err := serializeMacData(pfx.MacData)
		if err != nil {
			return nil, err
		}
		p.MacData = asn1.RawValue{FullBytes: macData}
	}

	return asn1.Marshal(p)
}

func serializeMacData(macData *MacData) ([]byte, error) {
	type macDataASN1 struct {
		Mac        DigestInfo
		MacSalt    []byte
		Iterations int `asn1:"optional,default:1"`
	}

	return asn1.Marshal(macDataASN1{
		Mac:        macData.Mac,
		MacSalt:    macData.MacSalt,
		Iterations: macData.Iterations,
	})
}

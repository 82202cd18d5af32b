package x509cert

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"slices"
)

const rsaKeySize = 2048

// KeyPair is an in-memory signing key.
type KeyPair struct {
	alg       KeyAlgorithm
	signer    crypto.Signer
	pkcs8     []byte
	publicKey []byte
}

// GenerateKeyPair creates a random key pair and returns it together with
// its PKCS#8 DER encoding.
func GenerateKeyPair(alg KeyAlgorithm) (*KeyPair, []byte, error) {
	var signer crypto.Signer
	var err error
	switch alg {
	case KeyAlgorithmRSA:
		signer, err = rsa.GenerateKey(rand.Reader, rsaKeySize)
	case KeyAlgorithmECDSA:
		signer, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case KeyAlgorithmEd25519:
		_, signer, err = ed25519.GenerateKey(rand.Reader)
	default:
		return nil, nil, fmt.Errorf("%w: %v", ErrKeyAlgorithm, alg)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("generating %v key: %w", alg, err)
	}
	kp, err := NewKeyPair(signer)
	if err != nil {
		return nil, nil, err
	}
	return kp, kp.PKCS8DER(), nil
}

// KeyPairFromPKCS8DER decodes an unencrypted PKCS#8 private key.
func KeyPairFromPKCS8DER(der []byte) (*KeyPair, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyAlgorithm, err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrKeyAlgorithm, key)
	}
	return NewKeyPair(signer)
}

// NewKeyPair wraps an existing RSA, ECDSA P-256 or Ed25519 private key.
func NewKeyPair(signer crypto.Signer) (*KeyPair, error) {
	kp := &KeyPair{signer: signer}
	switch k := signer.(type) {
	case *rsa.PrivateKey:
		kp.alg = KeyAlgorithmRSA
		kp.publicKey = x509.MarshalPKCS1PublicKey(&k.PublicKey)
	case *ecdsa.PrivateKey:
		if k.Curve != elliptic.P256() {
			return nil, fmt.Errorf("%w: curve %s", ErrKeyAlgorithm, k.Curve.Params().Name)
		}
		pub, err := k.PublicKey.ECDH()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrKeyAlgorithm, err)
		}
		kp.alg = KeyAlgorithmECDSA
		kp.publicKey = pub.Bytes()
	case ed25519.PrivateKey:
		kp.alg = KeyAlgorithmEd25519
		kp.publicKey = slices.Clone([]byte(k.Public().(ed25519.PublicKey)))
	default:
		return nil, fmt.Errorf("%w: %T", ErrKeyAlgorithm, signer)
	}

	der, err := x509.MarshalPKCS8PrivateKey(signer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyAlgorithm, err)
	}
	kp.pkcs8 = der
	return kp, nil
}

func (k *KeyPair) KeyAlgorithm() KeyAlgorithm {
	return k.alg
}

// SignatureAlgorithm returns the algorithm Sign produces signatures for.
func (k *KeyPair) SignatureAlgorithm() SignatureAlgorithm {
	alg, _ := DefaultSignatureAlgorithm(k.alg)
	return alg
}

// PublicKeyData returns the public key as stored in a
// SubjectPublicKeyInfo bit string.
func (k *KeyPair) PublicKeyData() []byte {
	return slices.Clone(k.publicKey)
}

func (k *KeyPair) PublicKey() crypto.PublicKey {
	return k.signer.Public()
}

// PKCS8DER returns the unencrypted PKCS#8 encoding of the private key.
func (k *KeyPair) PKCS8DER() []byte {
	return slices.Clone(k.pkcs8)
}

func (k *KeyPair) Signer() crypto.Signer {
	return k.signer
}

// SubjectPublicKeyInfo returns the public key in certificate form.
func (k *KeyPair) SubjectPublicKeyInfo() (SubjectPublicKeyInfo, error) {
	ai, err := k.alg.AlgorithmIdentifier()
	if err != nil {
		return SubjectPublicKeyInfo{}, err
	}
	return SubjectPublicKeyInfo{
		Algorithm: ai,
		PublicKey: asn1.BitString{Bytes: k.PublicKeyData(), BitLength: len(k.publicKey) * 8},
	}, nil
}

// Sign signs message with the default signature algorithm of the key.
// ECDSA signatures are ASN.1 encoded.
func (k *KeyPair) Sign(message []byte) ([]byte, error) {
	alg := k.SignatureAlgorithm()
	hash := alg.HashFunc()
	digest := message
	if hash != 0 {
		h := hash.New()
		h.Write(message)
		digest = h.Sum(nil)
	}
	sig, err := k.signer.Sign(rand.Reader, digest, hash)
	if err != nil {
		return nil, fmt.Errorf("signing with %v: %w", alg, err)
	}
	return sig, nil
}

package x509cert

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
)

// VerifySignature checks signature over message with a raw public key as
// found in a SubjectPublicKeyInfo bit string. For ECDSA the curve is implied
// by the signature algorithm.
func VerifySignature(alg SignatureAlgorithm, publicKeyData, message, signature []byte) error {
	if alg.OID() == nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedSignatureAlgorithm, alg)
	}
	spki, err := rawKeySubjectPublicKeyInfo(alg, publicKeyData)
	if err != nil {
		return ErrSignatureVerificationFailed
	}
	return verifyWithSPKI(alg, spki, message, signature)
}

// verifyCertificate checks the signature of the certificate encoded in
// original. signerKey supplies the key for the declared algorithm.
func verifyCertificate(original []byte, rule EncodingRule, signerKey func(SignatureAlgorithm) (SubjectPublicKeyInfo, error)) error {
	cert, err := parseCertificate(original, rule)
	if err != nil {
		return fmt.Errorf("%w: re-parsing captured certificate: %w", ErrInvariant, err)
	}
	alg, err := SignatureAlgorithmFromOID(cert.SignatureAlgorithm.Algorithm)
	if err != nil {
		return err
	}
	if !algorithmIdentifierEqual(cert.SignatureAlgorithm, cert.TBSCertificate.Signature) {
		return ErrSignatureVerificationFailed
	}
	if cert.SignatureValue.BitLength%8 != 0 {
		return ErrSignatureVerificationFailed
	}
	signer, err := signerKey(alg)
	if err != nil {
		return ErrSignatureVerificationFailed
	}
	return verifyWithSPKI(alg, signer, cert.TBSCertificate.Raw(), cert.SignatureValue.Bytes)
}

func verifyWithSPKI(alg SignatureAlgorithm, spki SubjectPublicKeyInfo, message, signature []byte) error {
	pub, err := publicKeyFromSPKI(alg, spki)
	if err != nil {
		return ErrSignatureVerificationFailed
	}

	hash := alg.HashFunc()
	digest := message
	if hash != 0 {
		if !hash.Available() {
			return ErrSignatureVerificationFailed
		}
		h := hash.New()
		h.Write(message)
		digest = h.Sum(nil)
	}

	switch k := pub.(type) {
	case *rsa.PublicKey:
		err = rsa.VerifyPKCS1v15(k, hash, digest, signature)
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(k, digest, signature) {
			err = errors.New("invalid ECDSA signature")
		}
	case ed25519.PublicKey:
		if !ed25519.Verify(k, message, signature) {
			err = errors.New("invalid Ed25519 signature")
		}
	default:
		err = errors.New("unexpected key type")
	}
	if err != nil {
		return ErrSignatureVerificationFailed
	}
	return nil
}

func publicKeyFromSPKI(alg SignatureAlgorithm, spki SubjectPublicKeyInfo) (crypto.PublicKey, error) {
	keyAlgo := alg.keyAlgorithmOID()
	if !spki.Algorithm.Algorithm.Equal(keyAlgo) {
		return nil, fmt.Errorf("key algorithm %v does not match %v", spki.Algorithm.Algorithm, alg)
	}
	if spki.PublicKey.BitLength%8 != 0 {
		return nil, errors.New("public key is not byte aligned")
	}
	data := spki.PublicKey.Bytes

	switch {
	case keyAlgo.Equal(OIDPublicKeyRSA):
		return x509.ParsePKCS1PublicKey(data)
	case keyAlgo.Equal(OIDPublicKeyEd25519):
		if len(data) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("invalid Ed25519 key length %d", len(data))
		}
		return ed25519.PublicKey(data), nil
	case keyAlgo.Equal(OIDPublicKeyECDSA):
		der, err := marshalSubjectPublicKeyInfo(spki)
		if err != nil {
			return nil, err
		}
		return x509.ParsePKIXPublicKey(der)
	}
	return nil, fmt.Errorf("no key type for %v", alg)
}

func rawKeySubjectPublicKeyInfo(alg SignatureAlgorithm, data []byte) (SubjectPublicKeyInfo, error) {
	spki := SubjectPublicKeyInfo{
		Algorithm: pkix.AlgorithmIdentifier{Algorithm: alg.keyAlgorithmOID()},
		PublicKey: asn1.BitString{Bytes: data, BitLength: len(data) * 8},
	}
	switch {
	case spki.Algorithm.Algorithm.Equal(OIDPublicKeyRSA):
		spki.Algorithm.Parameters = asn1.RawValue{Tag: asn1.TagNull, FullBytes: asn1NULL}
	case spki.Algorithm.Algorithm.Equal(OIDPublicKeyECDSA):
		curve, err := asn1.Marshal(ecdsaCurveFor(alg))
		if err != nil {
			return spki, err
		}
		spki.Algorithm.Parameters = asn1.RawValue{Tag: asn1.TagOID, FullBytes: curve}
	}
	return spki, nil
}

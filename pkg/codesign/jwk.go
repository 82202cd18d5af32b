package codesign

import (
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/cert"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/gematik/zero-codesign/pkg/x509cert"
)

// PublicKeyJWK returns the subject public key of the certificate as JSON Web
// Key. The key ID is the RFC 7638 SHA-256 thumbprint and the certificate
// itself is attached as x5c.
func PublicKeyJWK(c *x509cert.CapturedX509Certificate) (jwk.Key, error) {
	spki, err := c.SubjectPublicKeyInfoDER()
	if err != nil {
		return nil, err
	}
	pub, err := x509.ParsePKIXPublicKey(spki)
	if err != nil {
		return nil, fmt.Errorf("could not parse public key: %w", err)
	}

	key, err := jwk.FromRaw(pub)
	if err != nil {
		return nil, fmt.Errorf("could not create jwk from key: %w", err)
	}

	thumbprint, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("could not create thumbprint: %w", err)
	}
	if err := key.Set(jwk.KeyIDKey, base64.RawURLEncoding.EncodeToString(thumbprint)); err != nil {
		return nil, err
	}
	if err := key.Set(jwk.KeyUsageKey, jwk.ForSignature); err != nil {
		return nil, err
	}

	var chain cert.Chain
	if err := chain.AddString(base64.StdEncoding.EncodeToString(c.ConstructedData())); err != nil {
		return nil, err
	}
	if err := key.Set(jwk.X509CertChainKey, &chain); err != nil {
		return nil, err
	}

	return key, nil
}

package codesign

import (
	"crypto/sha1"
	"fmt"

	"github.com/gematik/zero-codesign/pkg/pkcs12"
	"github.com/gematik/zero-codesign/pkg/x509cert"
)

// ExportPFX writes certificate and key into a password protected PKCS#12
// file with the default encryption settings. The result can be read again
// with ParsePFXData.
func ExportPFX(cert *x509cert.CapturedX509Certificate, key *x509cert.KeyPair, password string) ([]byte, error) {
	return ExportPFXWithOptions(cert, key, password, pkcs12.DefaultEncodeOptions())
}

// ExportPFXWithOptions is ExportPFX with explicit encoding options, e.g.
// pkcs12.LegacyEncodeOptions for older keychain tools.
func ExportPFXWithOptions(cert *x509cert.CapturedX509Certificate, key *x509cert.KeyPair, password string, opts *pkcs12.EncodeOptions) ([]byte, error) {
	der := cert.ConstructedData()

	// same convention as OpenSSL and most keychains
	localKeyID := sha1.Sum(der)
	friendlyName, _ := cert.SubjectCommonName()

	data, err := pkcs12.EncodeWithOptions(&pkcs12.Bags{
		Certificates: []pkcs12.CertificateBag{{
			Raw:          der,
			FriendlyName: friendlyName,
			LocalKeyID:   localKeyID[:],
		}},
		PrivateKeys: []pkcs12.PrivateKeyBag{{
			Raw:          key.PKCS8DER(),
			FriendlyName: friendlyName,
			LocalKeyID:   localKeyID[:],
		}},
	}, password, opts)
	if err != nil {
		return nil, fmt.Errorf("unable to encode PFX: %w", err)
	}
	return data, nil
}

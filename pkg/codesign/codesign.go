// Package codesign bundles the certificate operations a code signing tool
// needs: creating self-signed code signing certificates, importing signing
// identities from PKCS#12 files exported by keychain tools and exporting
// them again.
package codesign

import (
	"encoding/asn1"
	"errors"
)

var (
	OIDKeyUsage                    = asn1.ObjectIdentifier{2, 5, 29, 15}
	OIDExtendedKeyUsage            = asn1.ObjectIdentifier{2, 5, 29, 37}
	OIDExtendedKeyUsageCodeSigning = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 3}
	OIDEmailAddress                = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 1}
)

var (
	ErrPFXParse         = errors.New("codesign: PFX parse error")
	ErrPFXBadPassword   = errors.New("codesign: PFX bad password")
	ErrPFXNoCertificate = errors.New("codesign: PFX contains no certificate")
	ErrPFXNoKey         = errors.New("codesign: PFX contains no private key")
)

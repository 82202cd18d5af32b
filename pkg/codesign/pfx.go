package codesign

import (
	"encoding/asn1"
	"errors"
	"fmt"

	"github.com/gematik/zero-codesign/pkg/pkcs12"
	"github.com/gematik/zero-codesign/pkg/x509cert"
)

// safeContent is one entry of the authenticated safe. Only plain and
// password encrypted SafeContents are accepted.
type safeContent interface {
	safeContent()
}

type dataContent struct {
	safeContents []byte
}

type encryptedContent struct {
	info pkcs12.ContentInfo
}

type otherContent struct {
	contentType asn1.ObjectIdentifier
}

func (dataContent) safeContent()      {}
func (encryptedContent) safeContent() {}
func (otherContent) safeContent()     {}

// safeBag is one bag of a SafeContents. X.509 certificates and shrouded
// keys are accepted, everything else is rejected.
type safeBag interface {
	safeBag()
}

type certificateBag struct {
	certID asn1.ObjectIdentifier
	der    []byte
}

type shroudedKeyBag struct {
	value []byte
}

type otherBag struct {
	bagID asn1.ObjectIdentifier
}

func (certificateBag) safeBag() {}
func (shroudedKeyBag) safeBag() {}
func (otherBag) safeBag()       {}

func classifyContent(ci pkcs12.ContentInfo) (safeContent, error) {
	switch {
	case ci.ContentType.Equal(pkcs12.OIDData):
		data, err := ci.DataContent()
		if err != nil {
			return nil, err
		}
		return dataContent{safeContents: data}, nil
	case ci.ContentType.Equal(pkcs12.OIDEncryptedData):
		return encryptedContent{info: ci}, nil
	default:
		return otherContent{contentType: ci.ContentType}, nil
	}
}

func classifyBag(bag pkcs12.SafeBag) (safeBag, error) {
	switch {
	case bag.BagID.Equal(pkcs12.OIDCertBag):
		cb, err := pkcs12.ParseCertBag(bag.BagValue)
		if err != nil {
			return nil, err
		}
		return certificateBag{certID: cb.CertID, der: cb.CertValue}, nil
	case bag.BagID.Equal(pkcs12.OIDPKCS8ShroudedKeyBag):
		return shroudedKeyBag{value: bag.BagValue}, nil
	default:
		return otherBag{bagID: bag.BagID}, nil
	}
}

// ParsePFXData extracts the signing certificate and its private key from a
// PKCS#12 file, as exported by keychain tools. The file must consist of
// certificate bags and shrouded key bags only. If several certificates or
// keys are present the last one of each wins.
//
// A wrong password is reported as ErrPFXBadPassword when the file carries an
// integrity MAC. Files without MAC are accepted and a wrong password then
// shows up as ErrPFXParse from decryption.
func ParsePFXData(data []byte, password string) (*x509cert.CapturedX509Certificate, *x509cert.KeyPair, error) {
	pfx, err := pkcs12.Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: data does not appear to be PFX: %w", ErrPFXParse, err)
	}

	if err := pkcs12.VerifyMAC(pfx, password); err != nil {
		if errors.Is(err, pkcs12.ErrAuthentication) {
			return nil, nil, ErrPFXBadPassword
		}
		return nil, nil, fmt.Errorf("%w: %w", ErrPFXParse, err)
	}

	if !pfx.AuthSafe.ContentType.Equal(pkcs12.OIDData) {
		return nil, nil, fmt.Errorf("%w: unexpected PFX content type %v", ErrPFXParse, pfx.AuthSafe.ContentType)
	}

	authSafe, err := pkcs12.ParseAuthenticatedSafe(pfx.RawAuthSafe)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrPFXParse, err)
	}

	var cert *x509cert.CapturedX509Certificate
	var key *x509cert.KeyPair

	for _, ci := range authSafe.ContentInfos {
		content, err := classifyContent(ci)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrPFXParse, err)
		}

		var safeContents []byte
		switch c := content.(type) {
		case dataContent:
			safeContents = c.safeContents
		case encryptedContent:
			safeContents, err = pkcs12.DecryptEncryptedData(c.info, password)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: error decrypting PFX content: %w", ErrPFXParse, err)
			}
		case otherContent:
			return nil, nil, fmt.Errorf("%w: unexpected PFX content info %v", ErrPFXParse, c.contentType)
		}

		sc, err := pkcs12.ParseSafeContents(safeContents)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrPFXParse, err)
		}

		for _, bag := range sc.Bags {
			classified, err := classifyBag(bag)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %w", ErrPFXParse, err)
			}

			switch b := classified.(type) {
			case certificateBag:
				if !b.certID.Equal(pkcs12.OIDX509Certificate) {
					return nil, nil, fmt.Errorf("%w: unexpected certificate type %v", ErrPFXParse, b.certID)
				}
				cert, err = captureCertificate(b.der)
				if err != nil {
					return nil, nil, fmt.Errorf("%w: %w", ErrPFXParse, err)
				}
			case shroudedKeyBag:
				pkcs8, err := pkcs12.DecryptShroudedKeyBag(b.value, password)
				if err != nil {
					return nil, nil, fmt.Errorf("%w: error decrypting shrouded key bag: %w", ErrPFXParse, err)
				}
				key, err = x509cert.KeyPairFromPKCS8DER(pkcs8)
				if err != nil {
					return nil, nil, err
				}
			case otherBag:
				return nil, nil, fmt.Errorf("%w: unexpected safe bag %v", ErrPFXParse, b.bagID)
			}
		}
	}

	if key == nil {
		return nil, nil, ErrPFXNoKey
	}
	if cert == nil {
		return nil, nil, ErrPFXNoCertificate
	}

	return cert, key, nil
}

// captureCertificate keeps the bag bytes as they are. Certificates written
// by BER tooling are accepted too.
func captureCertificate(data []byte) (*x509cert.CapturedX509Certificate, error) {
	cert, err := x509cert.CaptureDER(data)
	if err == nil {
		return cert, nil
	}
	cert, berErr := x509cert.CaptureBER(data)
	if berErr != nil {
		return nil, err
	}
	return cert, nil
}

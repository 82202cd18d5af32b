package main

import (
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"

	"github.com/gematik/zero-codesign/pkg/codesign"
	"github.com/gematik/zero-codesign/pkg/x509cert"
	"github.com/spf13/cobra"
)

func newSelfSignCmd() *cobra.Command {
	var (
		profilePath string
		flags       Profile
	)

	cmd := &cobra.Command{
		Use:   "selfsign",
		Short: "Create a self-signed code signing certificate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profile := &flags
			if profilePath != "" {
				var err error
				if profile, err = LoadProfileFile(profilePath); err != nil {
					return err
				}
			} else {
				if flags.Output.PFX != "" && flags.Output.PFXPassword == "" {
					flags.Output.PFXPassword = os.Getenv("P12_PASSWORD")
				}
				if err := validateProfile(profile); err != nil {
					return err
				}
			}
			return selfSign(profile)
		},
	}

	cmd.Flags().StringVarP(&profilePath, "profile", "p", "", "YAML profile, overrides all other flags")
	cmd.Flags().StringVar(&flags.Algorithm, "algorithm", "ecdsa", "key algorithm: rsa, ecdsa or ed25519")
	cmd.Flags().StringVar(&flags.CommonName, "cn", "", "subject common name")
	cmd.Flags().StringVar(&flags.Country, "country", "", "subject country code")
	cmd.Flags().StringVar(&flags.Email, "email", "", "subject email address")
	cmd.Flags().StringVar(&flags.Validity, "validity", "8760h", "certificate lifetime")
	cmd.Flags().StringVar(&flags.Output.Certificate, "cert-out", "codesign.crt", "certificate output file (PEM)")
	cmd.Flags().StringVar(&flags.Output.PrivateKey, "key-out", "codesign.key", "private key output file (PKCS#8 PEM)")
	cmd.Flags().StringVar(&flags.Output.PFX, "pfx-out", "", "optional PKCS#12 output file")
	cmd.Flags().StringVar(&flags.Output.PFXPassword, "pfx-password", "", "PKCS#12 password, defaults to $P12_PASSWORD")

	return cmd
}

func selfSign(profile *Profile) error {
	alg, err := profile.KeyAlgorithm()
	if err != nil {
		return err
	}
	validity, err := profile.ValidityDuration()
	if err != nil {
		return err
	}

	cert, kp, pkcs8, err := codesign.CreateSelfSignedCodeSigningCertificate(
		alg, profile.CommonName, profile.Country, profile.Email, validity)
	if err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}

	if err := writeCertificatePEM(profile.resolve(profile.Output.Certificate), cert); err != nil {
		return err
	}
	if err := writePrivateKeyPEM(profile.resolve(profile.Output.PrivateKey), pkcs8); err != nil {
		return err
	}

	if profile.Output.PFX != "" {
		pfx, err := codesign.ExportPFX(cert, kp, profile.Output.PFXPassword)
		if err != nil {
			return fmt.Errorf("export PKCS#12: %w", err)
		}
		if err := os.WriteFile(profile.resolve(profile.Output.PFX), pfx, 0600); err != nil {
			return fmt.Errorf("write PKCS#12: %w", err)
		}
	}

	slog.Info("Created code signing certificate",
		"subject", cert.SubjectName().String(),
		"algorithm", alg.String(),
		"not_after", cert.NotAfter(),
		"certificate", profile.resolve(profile.Output.Certificate))
	return nil
}

func writeCertificatePEM(path string, cert *x509cert.CapturedX509Certificate) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create certificate file: %w", err)
	}
	defer f.Close()
	if err := cert.WritePEM(f); err != nil {
		return fmt.Errorf("write certificate: %w", err)
	}
	return f.Close()
}

func writePrivateKeyPEM(path string, pkcs8 []byte) error {
	data := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8})
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	return nil
}

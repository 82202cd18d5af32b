package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gematik/zero-codesign/pkg/ca"
	"github.com/gematik/zero-codesign/pkg/x509cert"
	"github.com/spf13/cobra"
)

func newCACmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ca",
		Short: "Test certificate authority",
	}

	var (
		algorithm string
		cn        string
		validity  time.Duration
		out       string
		keyOut    string
	)
	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Issue a code signing certificate from a throwaway CA",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			alg, err := x509cert.ParseKeyAlgorithm(algorithm)
			if err != nil {
				return err
			}
			authority, err := ca.NewRandomMockCA(alg)
			if err != nil {
				return fmt.Errorf("create CA: %w", err)
			}

			kp, pkcs8, err := x509cert.GenerateKeyPair(alg)
			if err != nil {
				return err
			}
			var subject x509cert.Name
			if err := subject.AppendCommonNameUTF8String(cn); err != nil {
				return err
			}
			leaf, err := authority.IssueCodeSigningCertificate(kp, subject, ca.WithValidity(validity))
			if err != nil {
				return fmt.Errorf("issue certificate: %w", err)
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create chain file: %w", err)
			}
			defer f.Close()
			for _, c := range []*x509cert.CapturedX509Certificate{leaf, authority.IssuerCertificate()} {
				pemString, err := ca.EncodeCertToPEM(c)
				if err != nil {
					return err
				}
				if _, err := f.WriteString(pemString); err != nil {
					return fmt.Errorf("write chain: %w", err)
				}
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("write chain: %w", err)
			}
			if err := writePrivateKeyPEM(keyOut, pkcs8); err != nil {
				return err
			}

			slog.Info("Issued code signing certificate",
				"subject", leaf.SubjectName().String(),
				"issuer", leaf.IssuerName().String(),
				"chain", out)
			return nil
		},
	}
	demoCmd.Flags().StringVar(&algorithm, "algorithm", "ecdsa", "key algorithm: rsa, ecdsa or ed25519")
	demoCmd.Flags().StringVar(&cn, "cn", "Zero Code Signing Demo", "subject common name")
	demoCmd.Flags().DurationVar(&validity, "validity", 24*time.Hour, "certificate lifetime")
	demoCmd.Flags().StringVar(&out, "chain-out", "chain.pem", "certificate chain output file")
	demoCmd.Flags().StringVar(&keyOut, "key-out", "codesign.key", "private key output file (PKCS#8 PEM)")
	cmd.AddCommand(demoCmd)

	return cmd
}

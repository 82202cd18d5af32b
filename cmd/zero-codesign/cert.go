package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gematik/zero-codesign/pkg/codesign"
	"github.com/gematik/zero-codesign/pkg/x509cert"
	"github.com/spf13/cobra"
)

func newCertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Inspect and verify certificates",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "info <file>",
		Short: "Print certificate details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cert, err := loadCertificateFile(args[0])
			if err != nil {
				return err
			}
			return printCertificate(cmd.OutOrStdout(), cert)
		},
	})

	var issuerPath string
	verifyCmd := &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify a certificate signature against its issuer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cert, err := loadCertificateFile(args[0])
			if err != nil {
				return err
			}
			issuer := cert
			if issuerPath != "" {
				if issuer, err = loadCertificateFile(issuerPath); err != nil {
					return err
				}
			}
			if !cert.IssuerName().Equal(issuer.SubjectName()) {
				slog.Warn("Issuer name does not match", "issuer", cert.IssuerName().String(), "candidate", issuer.SubjectName().String())
			}
			if err := cert.VerifySignedByCertificate(issuer); err != nil {
				return fmt.Errorf("verify %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: signature OK\n", args[0])
			return nil
		},
	}
	verifyCmd.Flags().StringVarP(&issuerPath, "issuer", "i", "", "issuer certificate, defaults to the certificate itself")
	cmd.AddCommand(verifyCmd)

	return cmd
}

// loadCertificateFile reads PEM, DER or BER encoded certificates.
func loadCertificateFile(path string) (*x509cert.CapturedX509Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read certificate: %w", err)
	}
	return loadCertificate(data)
}

func loadCertificate(data []byte) (*x509cert.CapturedX509Certificate, error) {
	if bytes.Contains(data, []byte("-----BEGIN")) {
		return x509cert.CapturePEM(data)
	}
	cert, err := x509cert.CaptureDER(data)
	if err == nil {
		return cert, nil
	}
	cert, berErr := x509cert.CaptureBER(data)
	if berErr != nil {
		return nil, errors.Join(err, berErr)
	}
	return cert, nil
}

func printCertificate(w io.Writer, cert *x509cert.CapturedX509Certificate) error {
	fingerprint, err := cert.FingerprintSHA256()
	if err != nil {
		return err
	}
	keyAlg := "unknown"
	if alg, err := cert.KeyAlgorithm(); err == nil {
		keyAlg = alg.String()
	} else {
		slog.Debug("Unsupported key algorithm", "error", err)
	}
	sigAlg := "unknown"
	if alg, err := cert.SignatureAlgorithm(); err == nil {
		sigAlg = alg.String()
	} else {
		slog.Debug("Unsupported signature algorithm", "error", err)
	}

	selfSigned := "no"
	if cert.SubjectIsIssuer() {
		if err := cert.VerifySignedByCertificate(cert); err != nil {
			selfSigned = "invalid signature"
		} else {
			selfSigned = "yes"
		}
	}

	fmt.Fprintf(w, "Subject:       %s\n", cert.SubjectName().String())
	fmt.Fprintf(w, "Issuer:        %s\n", cert.IssuerName().String())
	fmt.Fprintf(w, "Serial:        %s\n", cert.SerialNumber().Text(16))
	fmt.Fprintf(w, "Not before:    %s\n", cert.NotBefore().UTC())
	fmt.Fprintf(w, "Not after:     %s\n", cert.NotAfter().UTC())
	fmt.Fprintf(w, "Key:           %s\n", keyAlg)
	fmt.Fprintf(w, "Signature:     %s\n", sigAlg)
	fmt.Fprintf(w, "Encoding:      %s\n", cert.EncodingRule())
	fmt.Fprintf(w, "SHA-256:       %s\n", hex.EncodeToString(fingerprint))
	fmt.Fprintf(w, "Self-signed:   %s\n", selfSigned)
	fmt.Fprintf(w, "Code signing:  %t\n", codesign.IsCodeSigningCertificate(cert))

	key, err := codesign.PublicKeyJWK(cert)
	if err != nil {
		slog.Debug("No JWK for certificate key", "error", err)
		return nil
	}
	jwkJSON, err := json.MarshalIndent(key, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JWK: %w", err)
	}
	fmt.Fprintf(w, "JWK:\n%s\n", jwkJSON)
	return nil
}

package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gematik/zero-codesign/pkg/codesign"
	"github.com/gematik/zero-codesign/pkg/pkcs12"
	"github.com/gematik/zero-codesign/pkg/x509cert"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newPFXCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "pfx",
		Short: "Work with PKCS#12 files",
	}
	cmd.PersistentFlags().StringVar(&password, "password", "", "PKCS#12 password, defaults to $P12_PASSWORD or a prompt")

	var certOut, keyOut string
	extractCmd := &cobra.Command{
		Use:   "extract <file.p12>",
		Short: "Extract the signing certificate and private key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read PKCS#12: %w", err)
			}
			pw, err := resolvePassword(cmd, password)
			if err != nil {
				return err
			}
			cert, kp, err := codesign.ParsePFXData(data, pw)
			if err != nil {
				return err
			}
			if err := writeCertificatePEM(certOut, cert); err != nil {
				return err
			}
			if err := writePrivateKeyPEM(keyOut, kp.PKCS8DER()); err != nil {
				return err
			}
			slog.Info("Extracted signing identity",
				"subject", cert.SubjectName().String(),
				"key", kp.KeyAlgorithm().String(),
				"certificate", certOut,
				"private_key", keyOut)
			return nil
		},
	}
	extractCmd.Flags().StringVar(&certOut, "cert-out", "codesign.crt", "certificate output file (PEM)")
	extractCmd.Flags().StringVar(&keyOut, "key-out", "codesign.key", "private key output file (PKCS#8 PEM)")
	cmd.AddCommand(extractCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "info <file.p12>",
		Short: "Print the structure of a PKCS#12 file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read PKCS#12: %w", err)
			}
			pw, err := resolvePassword(cmd, password)
			if err != nil {
				return err
			}
			return printPFX(cmd.OutOrStdout(), data, pw)
		},
	})

	return cmd
}

func resolvePassword(cmd *cobra.Command, password string) (string, error) {
	if cmd.Flags().Changed("password") {
		return password, nil
	}
	if pw, ok := os.LookupEnv("P12_PASSWORD"); ok {
		return pw, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "PKCS#12 password: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

func printPFX(w io.Writer, data []byte, password string) error {
	pfx, err := pkcs12.Parse(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Version:       %d\n", pfx.Version)
	if pfx.MacData != nil {
		fmt.Fprintf(w, "MAC:           %v (%d iterations, %d byte salt)\n",
			pfx.MacData.Mac.Algorithm.Algorithm, pfx.MacData.Iterations, len(pfx.MacData.MacSalt))
	} else {
		fmt.Fprintf(w, "MAC:           none\n")
	}

	bags, err := pkcs12.ExtractBags(pfx, password)
	if err != nil {
		return err
	}

	for i, cb := range bags.Certificates {
		fmt.Fprintf(w, "Certificate %d: encrypted=%t friendlyName=%q localKeyID=%s\n",
			i, cb.Encrypted, cb.FriendlyName, hex.EncodeToString(cb.LocalKeyID))
		cert, err := x509cert.CaptureDER(cb.Raw)
		if err != nil {
			fmt.Fprintf(w, "  unparsable: %v\n", err)
			continue
		}
		fmt.Fprintf(w, "  subject: %s\n", cert.SubjectName().String())
		fmt.Fprintf(w, "  issuer:  %s\n", cert.IssuerName().String())
	}
	for i, kb := range bags.PrivateKeys {
		fmt.Fprintf(w, "Private key %d: shrouded=%t friendlyName=%q localKeyID=%s\n",
			i, kb.Shrouded, kb.FriendlyName, hex.EncodeToString(kb.LocalKeyID))
		if kp, err := x509cert.KeyPairFromPKCS8DER(kb.Raw); err == nil {
			fmt.Fprintf(w, "  algorithm: %s\n", kp.KeyAlgorithm())
		} else {
			fmt.Fprintf(w, "  unsupported: %v\n", err)
		}
	}
	for _, oid := range bags.Skipped {
		fmt.Fprintf(w, "Skipped bag:   %v\n", oid)
	}
	fmt.Fprintf(w, "Matching pairs: %d\n", len(bags.FindMatchingPairs()))
	return nil
}

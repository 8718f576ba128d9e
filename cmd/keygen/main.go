// keygen generates the two RSA key pairs the server signs tokens with.
// Each pair is written as PKCS1 PEM files, and optionally printed base64
// encoded for pasting into the environment.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const keyBits = 4096

// One pair per token role. The access and refresh keys must never be
// shared, a token signed with one must not verify with the other.
var prefixes = []string{"access", "refresh"}

func main() {
	var outDir string
	var printEnv bool
	var force bool

	rootCmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate RSA key pairs for token signing",
		Long: "Generates independent 4096-bit RSA key pairs for access and refresh tokens\n" +
			"as PKCS1 PEM files. Existing keys are never overwritten unless --force is set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(outDir, printEnv, force)
		},
	}

	rootCmd.Flags().StringVar(&outDir, "out", "keys", "Directory to write the PEM files to")
	rootCmd.Flags().BoolVar(&printEnv, "env", false, "Print the keys base64-encoded as environment variable assignments")
	rootCmd.Flags().BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(outDir string, printEnv, force bool) error {
	if !force {
		for _, prefix := range prefixes {
			for _, suffix := range []string{"_rsa_pub.pem", "_rsa_priv.pem"} {
				path := filepath.Join(outDir, prefix+suffix)
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists, refusing to overwrite (use --force)", path)
				}
			}
		}
	}

	if err := os.MkdirAll(outDir, 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", outDir, err)
	}

	for _, prefix := range prefixes {
		key, err := rsa.GenerateKey(rand.Reader, keyBits)
		if err != nil {
			return fmt.Errorf("failed to generate %s key pair: %w", prefix, err)
		}

		publicPEM := pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PUBLIC KEY",
			Bytes: x509.MarshalPKCS1PublicKey(&key.PublicKey),
		})
		privatePEM := pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		})

		publicPath := filepath.Join(outDir, prefix+"_rsa_pub.pem")
		privatePath := filepath.Join(outDir, prefix+"_rsa_priv.pem")

		if err := os.WriteFile(publicPath, publicPEM, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", publicPath, err)
		}
		if err := os.WriteFile(privatePath, privatePEM, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", privatePath, err)
		}

		fmt.Printf("Generated %s key pair in %s\n", prefix, outDir)

		if printEnv {
			envPrefix := strings.ToUpper(prefix)
			fmt.Printf("%s_TOKEN_PUBLIC_KEY=%s\n", envPrefix, base64.StdEncoding.EncodeToString(publicPEM))
			fmt.Printf("%s_TOKEN_PRIVATE_KEY=%s\n", envPrefix, base64.StdEncoding.EncodeToString(privatePEM))
		}
	}

	return nil
}

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/memflow/memflow-registry/internal/pluginuri"
	"github.com/memflow/memflow-registry/internal/registryclient"
)

func runUpload(args []string) error {
	fs := newFlagSet("upload")
	registry := fs.String("registry", pluginuri.DefaultRegistry, "registry base URL")
	keyPath := fs.String("private-key", "", "path to a signing private key PEM; if unset, -signature must be given")
	encrypted := fs.Bool("encrypted", false, "the private key file is passphrase-encrypted")
	signature := fs.String("signature", "", "precomputed hex DER signature, if not signing here")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: memflow-sign upload -registry <url> [-private-key <path>|-signature <hex>] <binary>")
	}
	binaryPath := fs.Arg(0)

	bytes, err := os.ReadFile(binaryPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", binaryPath, err)
	}

	sig := *signature
	if sig == "" {
		if *keyPath == "" {
			return fmt.Errorf("one of -private-key or -signature is required")
		}
		signer, err := loadSigner(*keyPath, *encrypted)
		if err != nil {
			return err
		}
		sig = signer.Sign(bytes)
	}

	client := registryclient.NewClient()
	result, err := client.Upload(*registry, bytes, sig)
	if err != nil {
		return err
	}

	fmt.Println(strings.TrimSpace(result.Status))
	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/memflow/memflow-registry/internal/sigverify"
)

func runSign(args []string) error {
	fs := newFlagSet("sign")
	keyPath := fs.String("private-key", "", "path to the signing private key PEM (required)")
	encrypted := fs.Bool("encrypted", false, "the private key file is passphrase-encrypted")
	fs.Parse(args)

	if *keyPath == "" || fs.NArg() != 1 {
		return fmt.Errorf("usage: memflow-sign sign -private-key <path> <binary>")
	}
	binaryPath := fs.Arg(0)

	signer, err := loadSigner(*keyPath, *encrypted)
	if err != nil {
		return err
	}

	bytes, err := os.ReadFile(binaryPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", binaryPath, err)
	}

	fmt.Println(signer.Sign(bytes))
	return nil
}

func loadSigner(keyPath string, encrypted bool) (*sigverify.Signer, error) {
	if !encrypted {
		signer, err := sigverify.NewSignerFromFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("load private key: %w", err)
		}
		return signer, nil
	}

	passphrase, err := promptPassphrase("passphrase: ")
	if err != nil {
		return nil, err
	}
	signer, err := sigverify.NewSignerFromEncryptedFile(keyPath, passphrase)
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}
	return signer, nil
}

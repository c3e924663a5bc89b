package main

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/memflow/memflow-registry/internal/sigverify"
)

func runKeygen(args []string) error {
	fs := newFlagSet("keygen")
	privOut := fs.String("private-key-out", "memflow-signing-key.pem", "path to write the private key PEM")
	pubOut := fs.String("public-key-out", "memflow-signing-key.pub.pem", "path to write the public key PEM")
	encrypt := fs.Bool("encrypt", false, "encrypt the private key with a passphrase")
	fs.Parse(args)

	signer, err := sigverify.GenerateSigner()
	if err != nil {
		return fmt.Errorf("generate keypair: %w", err)
	}

	privatePEM := signer.PrivateKeyPEM()
	if *encrypt {
		passphrase, err := promptPassphrase("passphrase for new private key: ")
		if err != nil {
			return err
		}
		confirm, err := promptPassphrase("confirm passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != confirm {
			return fmt.Errorf("passphrases did not match")
		}
		privatePEM, err = signer.PrivateKeyPEMEncrypted(passphrase)
		if err != nil {
			return fmt.Errorf("encrypt private key: %w", err)
		}
	}

	if err := os.WriteFile(*privOut, []byte(privatePEM), 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(*pubOut, []byte(signer.PublicKeyPEM()), 0o644); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}

	fmt.Printf("wrote private key to %s (keep this secret)\n", *privOut)
	fmt.Printf("wrote public key to %s (distribute to MEMFLOW_PUBLIC_KEY_FILE)\n", *pubOut)
	return nil
}

// promptPassphrase reads a passphrase from the controlling terminal without
// echoing it, falling back to a plain line read when stdin isn't a TTY
// (piped input in scripts/tests).
func promptPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		var line string
		_, err := fmt.Scanln(&line)
		return line, err
	}
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return string(b), nil
}

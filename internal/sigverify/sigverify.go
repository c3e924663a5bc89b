// Package sigverify implements detached ECDSA-over-secp256k1 signature
// verification and generation, per spec.md §4.2. Signatures cross the HTTP
// multipart upload boundary as hex text, so the wire form here is always
// hex-encoded DER, never raw bytes.
package sigverify

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/memflow/memflow-registry/internal/apperror"
)

// Verifier checks a detached signature over an arbitrary byte payload.
type Verifier struct {
	pub *secp256k1.PublicKey
}

// NewVerifierFromFile loads a PEM-encoded secp256k1 public key from path.
func NewVerifierFromFile(path string) (*Verifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperror.IO(fmt.Sprintf("read public key file %q", path), err)
	}
	return NewVerifierFromPEM(string(data))
}

// NewVerifierFromPEM loads a PEM-encoded secp256k1 public key from an
// in-memory string.
func NewVerifierFromPEM(pemStr string) (*Verifier, error) {
	pub, err := parsePublicKeyPEM(pemStr)
	if err != nil {
		return nil, err
	}
	return &Verifier{pub: pub}, nil
}

// IsValid verifies signatureHex (hex-encoded, either case, DER-encoded ECDSA
// signature) over SHA-256(bytes).
func (v *Verifier) IsValid(payload []byte, signatureHex string) error {
	sig, err := decodeSignature(signatureHex)
	if err != nil {
		return err
	}
	digest := sha256.Sum256(payload)
	if !sig.Verify(digest[:], v.pub) {
		return apperror.Signature("signature verification failed")
	}
	return nil
}

// Signer produces hex-encoded DER ECDSA signatures; it is the mirror side
// used by the upload-client collaborator and the memflow-sign CLI.
type Signer struct {
	priv *secp256k1.PrivateKey
}

// NewSignerFromFile loads a PEM-encoded secp256k1 private key from path.
func NewSignerFromFile(path string) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperror.IO(fmt.Sprintf("read private key file %q", path), err)
	}
	return NewSignerFromPEM(string(data))
}

// NewSignerFromPEM loads a PEM-encoded secp256k1 private key from an
// in-memory string.
func NewSignerFromPEM(pemStr string) (*Signer, error) {
	priv, err := parsePrivateKeyPEM(pemStr)
	if err != nil {
		return nil, err
	}
	return &Signer{priv: priv}, nil
}

// NewSignerFromEncryptedFile loads a passphrase-encrypted private key, as
// produced by keygen --encrypt.
func NewSignerFromEncryptedFile(path, passphrase string) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperror.IO(fmt.Sprintf("read private key file %q", path), err)
	}
	priv, err := parseEncryptedPrivateKeyPEM(string(data), passphrase)
	if err != nil {
		return nil, err
	}
	return &Signer{priv: priv}, nil
}

// Sign signs bytes and returns the signature as uppercase hex-encoded DER,
// matching the wire convention spec.md §6 documents (generator emits
// uppercase, verifier accepts either case).
func (s *Signer) Sign(payload []byte) string {
	digest := sha256.Sum256(payload)
	sig := ecdsa.Sign(s.priv, digest[:])
	return strings.ToUpper(hex.EncodeToString(sig.Serialize()))
}

// PublicKeyPEM returns the PEM encoding of the signer's public key, useful
// for bootstrapping a fresh keypair.
func (s *Signer) PublicKeyPEM() string {
	return encodePublicKeyPEM(s.priv.PubKey())
}

// PrivateKeyPEM returns the PEM encoding of the signer's private key.
func (s *Signer) PrivateKeyPEM() string {
	return EncodePrivateKeyPEM(s.priv)
}

// PrivateKeyPEMEncrypted returns the signer's private key sealed under
// passphrase, for keygen's --encrypt mode.
func (s *Signer) PrivateKeyPEMEncrypted(passphrase string) (string, error) {
	return EncodePrivateKeyPEMEncrypted(s.priv, passphrase)
}

// GenerateSigner creates a fresh random secp256k1 keypair wrapped as a Signer.
func GenerateSigner() (*Signer, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, apperror.IO("generate secp256k1 keypair", err)
	}
	return &Signer{priv: priv}, nil
}

func decodeSignature(signatureHex string) (*ecdsa.Signature, error) {
	if len(signatureHex) < 2 || len(signatureHex)%2 != 0 {
		return nil, apperror.Parse("signature hex must have even length of at least 2, got %d", len(signatureHex))
	}
	raw, err := hex.DecodeString(strings.ToLower(signatureHex))
	if err != nil {
		return nil, apperror.Parse("invalid hex signature: %v", err)
	}
	sig, err := ecdsa.ParseDERSignature(raw)
	if err != nil {
		return nil, apperror.Parse("invalid DER signature: %v", err)
	}
	return sig, nil
}

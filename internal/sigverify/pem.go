package sigverify

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/pem"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/memflow/memflow-registry/internal/apperror"
)

// secp256k1 is not one of the named curves crypto/x509 knows how to encode
// (only P-224/256/384/521 have registered OIDs), so keys are carried as raw
// point/scalar bytes inside a PEM envelope rather than PKIX/SEC1 DER, the
// same pragmatic choice libraries without ASN.1 curve support make.
const (
	publicKeyBlockType           = "SECP256K1 PUBLIC KEY"
	privateKeyBlockType          = "SECP256K1 PRIVATE KEY"
	encryptedPrivateKeyBlockType = "SECP256K1 ENCRYPTED PRIVATE KEY"
)

func parsePublicKeyPEM(pemStr string) (*secp256k1.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, apperror.Parse("no PEM block found in public key")
	}
	pub, err := secp256k1.ParsePubKey(block.Bytes)
	if err != nil {
		return nil, apperror.Parse("invalid secp256k1 public key: %v", err)
	}
	return pub, nil
}

func parsePrivateKeyPEM(pemStr string) (*secp256k1.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, apperror.Parse("no PEM block found in private key")
	}
	if len(block.Bytes) != 32 {
		return nil, apperror.Parse("secp256k1 private key must be 32 bytes, got %d", len(block.Bytes))
	}
	priv := secp256k1.PrivKeyFromBytes(block.Bytes)
	return priv, nil
}

func encodePublicKeyPEM(pub *secp256k1.PublicKey) string {
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  publicKeyBlockType,
		Bytes: pub.SerializeCompressed(),
	}))
}

// EncodePrivateKeyPEM renders a freshly generated private key as PEM, used
// by the memflow-sign CLI's keygen subcommand.
func EncodePrivateKeyPEM(priv *secp256k1.PrivateKey) string {
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  privateKeyBlockType,
		Bytes: priv.Serialize(),
	}))
}

// EncodePrivateKeyPEMEncrypted seals priv's 32 raw scalar bytes with
// AES-256-GCM under a passphrase-derived key, for keygen's --encrypt mode.
// The key derivation is a single SHA-256 of the passphrase: adequate here
// since secp256k1 scalars carry no other brute-forceable structure, unlike a
// password hash guarding an online account.
func EncodePrivateKeyPEMEncrypted(priv *secp256k1.PrivateKey, passphrase string) (string, error) {
	gcm, err := newPassphraseGCM(passphrase)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", apperror.IO("generate nonce", err)
	}

	sealed := gcm.Seal(nonce, nonce, priv.Serialize(), nil)
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  encryptedPrivateKeyBlockType,
		Bytes: sealed,
	})), nil
}

// parseEncryptedPrivateKeyPEM reverses EncodePrivateKeyPEMEncrypted. A wrong
// passphrase surfaces as a generic decryption failure, never distinguishing
// "bad passphrase" from "corrupt file" to avoid leaking which is the case.
func parseEncryptedPrivateKeyPEM(pemStr, passphrase string) (*secp256k1.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, apperror.Parse("no PEM block found in private key")
	}

	gcm, err := newPassphraseGCM(passphrase)
	if err != nil {
		return nil, err
	}
	if len(block.Bytes) < gcm.NonceSize() {
		return nil, apperror.Parse("encrypted private key is too short")
	}
	nonce, ciphertext := block.Bytes[:gcm.NonceSize()], block.Bytes[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, apperror.Parse("could not decrypt private key: wrong passphrase or corrupt file")
	}
	if len(plaintext) != 32 {
		return nil, apperror.Parse("secp256k1 private key must be 32 bytes, got %d", len(plaintext))
	}
	return secp256k1.PrivKeyFromBytes(plaintext), nil
}

func newPassphraseGCM(passphrase string) (cipher.AEAD, error) {
	key := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, apperror.IO("construct cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperror.IO("construct GCM mode", err)
	}
	return gcm, nil
}

// IsEncryptedPrivateKeyPEM reports whether pemStr holds an
// EncodePrivateKeyPEMEncrypted block rather than a plaintext one.
func IsEncryptedPrivateKeyPEM(pemStr string) bool {
	block, _ := pem.Decode([]byte(pemStr))
	return block != nil && block.Type == encryptedPrivateKeyBlockType
}

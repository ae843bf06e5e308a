package sui

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// Ed25519Flag is the signature scheme flag byte for Ed25519.
const Ed25519Flag byte = 0x00

var transactionIntent = []byte{0, 0, 0}

// Keypair signs transactions for one Ed25519 Sui account.
type Keypair struct {
	priv ed25519.PrivateKey
}

func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Keypair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// KeypairFromHex accepts a 32-byte seed in hex, with or without 0x.
func KeypairFromHex(s string) (*Keypair, error) {
	seed, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode hex key: %w", err)
	}
	return KeypairFromSeed(seed)
}

// KeypairFromBase64 accepts either a bare 32-byte seed or the keystore form
// flag||seed (33 bytes).
func KeypairFromBase64(s string) (*Keypair, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode base64 key: %w", err)
	}
	if len(raw) == ed25519.SeedSize+1 {
		if raw[0] != Ed25519Flag {
			return nil, fmt.Errorf("unsupported key scheme flag 0x%02x", raw[0])
		}
		raw = raw[1:]
	}
	return KeypairFromSeed(raw)
}

// ParseKeypair picks the encoding by shape: 64 hex chars or base64.
func ParseKeypair(s string) (*Keypair, error) {
	s = strings.TrimSpace(s)
	trimmed := strings.TrimPrefix(s, "0x")
	if len(trimmed) == 2*ed25519.SeedSize {
		if _, err := hex.DecodeString(trimmed); err == nil {
			return KeypairFromHex(trimmed)
		}
	}
	return KeypairFromBase64(s)
}

func (k *Keypair) PublicKey() ed25519.PublicKey {
	return k.priv.Public().(ed25519.PublicKey)
}

// Address is 0x + hex(blake2b256(flag || pubkey)).
func (k *Keypair) Address() string {
	data := append([]byte{Ed25519Flag}, k.PublicKey()...)
	sum := blake2b.Sum256(data)
	return "0x" + hex.EncodeToString(sum[:])
}

// SignTransaction returns the serialized signature flag||sig||pubkey in base64
// for base64-encoded transaction bytes.
func (k *Keypair) SignTransaction(txBytesB64 string) (string, error) {
	txBytes, err := base64.StdEncoding.DecodeString(txBytesB64)
	if err != nil {
		return "", fmt.Errorf("decode tx bytes: %w", err)
	}
	digest := intentDigest(txBytes)
	sig := ed25519.Sign(k.priv, digest[:])

	out := make([]byte, 0, 1+ed25519.SignatureSize+ed25519.PublicKeySize)
	out = append(out, Ed25519Flag)
	out = append(out, sig...)
	out = append(out, k.PublicKey()...)
	return base64.StdEncoding.EncodeToString(out), nil
}

func intentDigest(txBytes []byte) [32]byte {
	msg := make([]byte, 0, len(transactionIntent)+len(txBytes))
	msg = append(msg, transactionIntent...)
	msg = append(msg, txBytes...)
	return blake2b.Sum256(msg)
}

// VerifyTransactionSignature checks a serialized signature against tx bytes and
// returns the signer address.
func VerifyTransactionSignature(txBytesB64, serialized string) (string, error) {
	txBytes, err := base64.StdEncoding.DecodeString(txBytesB64)
	if err != nil {
		return "", fmt.Errorf("decode tx bytes: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(serialized)
	if err != nil {
		return "", fmt.Errorf("decode signature: %w", err)
	}
	if len(raw) != 1+ed25519.SignatureSize+ed25519.PublicKeySize || raw[0] != Ed25519Flag {
		return "", fmt.Errorf("not an ed25519 signature")
	}
	sig := raw[1 : 1+ed25519.SignatureSize]
	pub := ed25519.PublicKey(raw[1+ed25519.SignatureSize:])

	digest := intentDigest(txBytes)
	if !ed25519.Verify(pub, digest[:], sig) {
		return "", fmt.Errorf("signature does not verify")
	}
	sum := blake2b.Sum256(append([]byte{Ed25519Flag}, pub...))
	return "0x" + hex.EncodeToString(sum[:]), nil
}

// TransactionDigest computes the digest a node reports for tx bytes.
func TransactionDigest(txBytesB64 string) (string, error) {
	txBytes, err := base64.StdEncoding.DecodeString(txBytesB64)
	if err != nil {
		return "", fmt.Errorf("decode tx bytes: %w", err)
	}
	msg := append([]byte("TransactionData::"), txBytes...)
	sum := blake2b.Sum256(msg)
	return base58.Encode(sum[:]), nil
}

// ValidDigest reports whether d is a base58 encoded 32-byte digest.
func ValidDigest(d string) bool {
	raw, err := base58.Decode(d)
	return err == nil && len(raw) == 32
}

package principal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"

	"github.com/rolegate/rolegate/internal/network"
)

// Keypair is a freshly generated wallet before encryption. PrivateKey is
// hex for EVM, base58 for Solana.
type Keypair struct {
	PublicKey  string
	PrivateKey string
}

// GenerateKeypair mints a keypair appropriate for the network's rail kind.
func GenerateKeypair(kind network.Kind) (*Keypair, error) {
	switch kind {
	case network.KindEVM:
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("principal: generate evm key: %w", err)
		}
		return &Keypair{
			PublicKey:  crypto.PubkeyToAddress(key.PublicKey).Hex(),
			PrivateKey: hex.EncodeToString(crypto.FromECDSA(key)),
		}, nil
	case network.KindSolana:
		wallet := solana.NewWallet()
		return &Keypair{
			PublicKey:  wallet.PublicKey().String(),
			PrivateKey: wallet.PrivateKey.String(),
		}, nil
	default:
		return nil, fmt.Errorf("principal: unsupported rail kind %q", kind)
	}
}

// Cipher seals and opens custodial private keys with AES-256-GCM.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a Cipher from a hex-encoded 32-byte secret.
func NewCipher(hexSecret string) (*Cipher, error) {
	key, err := hex.DecodeString(hexSecret)
	if err != nil {
		return nil, fmt.Errorf("principal: decode encryption secret: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("principal: encryption secret must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("principal: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("principal: init gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Seal encrypts a private key. The nonce is prepended to the ciphertext.
func (c *Cipher) Seal(privateKey string) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("principal: generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, []byte(privateKey), nil), nil
}

// Open decrypts a sealed private key.
func (c *Cipher) Open(sealed []byte) (string, error) {
	if len(sealed) < c.aead.NonceSize() {
		return "", fmt.Errorf("principal: sealed key too short")
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("principal: open sealed key: %w", err)
	}
	return string(plain), nil
}

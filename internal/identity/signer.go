// Package identity proves who is calling. Callers sign request payloads with
// an Ethereum key (EIP-191 personal sign) and are identified by the
// recovered address.
package identity

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidAddress   = errors.New("invalid address")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrSignerMismatch   = errors.New("signature does not match address")
)

// Signer signs messages with a secp256k1 key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a signer from a hex-encoded private key
func NewSigner(hexKey string) (*Signer, error) {
	keyBytes, err := hex.DecodeString(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex key: %w", err)
	}

	privateKey, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return fromKey(privateKey), nil
}

// GenerateSigner creates a signer with a fresh random key.
func GenerateSigner() (*Signer, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return fromKey(privateKey), nil
}

func fromKey(k *ecdsa.PrivateKey) *Signer {
	return &Signer{
		privateKey: k,
		address:    crypto.PubkeyToAddress(k.PublicKey),
	}
}

// Address returns the signer's Ethereum address
func (s *Signer) Address() common.Address {
	return s.address
}

// AddressHex returns the signer's checksummed address
func (s *Signer) AddressHex() string {
	return s.address.Hex()
}

// SignMessage signs a message with EIP-191 personal sign prefix
func (s *Signer) SignMessage(message []byte) ([]byte, error) {
	hash := accounts.TextHash(message)
	sig, err := crypto.Sign(hash, s.privateKey)
	if err != nil {
		return nil, err
	}

	// Adjust v value for Ethereum (27 or 28)
	if sig[64] < 27 {
		sig[64] += 27
	}

	return sig, nil
}

// SignMessageHex signs a message and returns hex-encoded signature
func (s *Signer) SignMessageHex(message []byte) (string, error) {
	sig, err := s.SignMessage(message)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// Recover returns the address that produced sigHex over message.
func Recover(message []byte, sigHex string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
	}

	// Adjust v value back
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubKey, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}

// VerifySignature verifies a signature against a message and address
func VerifySignature(message []byte, sigHex string, expectedAddr common.Address) (bool, error) {
	recovered, err := Recover(message, sigHex)
	if err != nil {
		return false, err
	}
	return recovered == expectedAddr, nil
}

// Authenticate checks that sigHex over message was produced by claimed and
// returns the checksummed form of claimed.
func Authenticate(message []byte, claimed, sigHex string) (string, error) {
	addr, err := ParseAddress(claimed)
	if err != nil {
		return "", err
	}
	ok, err := VerifySignature(message, sigHex, addr)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrSignerMismatch
	}
	return addr.Hex(), nil
}

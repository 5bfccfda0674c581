package wallet

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	signatureLength = 65
	personalPrefix  = "\x19Ethereum Signed Message:\n"
)

var (
	// ErrInvalidAddress reports a string that is not a 20-byte hex address.
	ErrInvalidAddress = errors.New("invalid wallet address")
	// ErrMalformedSignature reports bad hex, a wrong length or an unknown v.
	ErrMalformedSignature = errors.New("malformed signature")
	// ErrRecoveryFailed reports r or s out of range or an unrecoverable point.
	ErrRecoveryFailed = errors.New("signature recovery failed")
)

// NormalizeAddress validates addr and returns its lower-case 0x form.
func NormalizeAddress(addr string) (string, error) {
	if len(addr) != 2+2*common.AddressLength || !strings.HasPrefix(addr, "0x") {
		return "", ErrInvalidAddress
	}
	if !common.IsHexAddress(addr) {
		return "", ErrInvalidAddress
	}
	return strings.ToLower(common.HexToAddress(addr).Hex()), nil
}

// PersonalHash returns keccak256("\x19Ethereum Signed Message:\n" + len(message) + message),
// where len is the decimal byte length of message.
func PersonalHash(message string) []byte {
	prefix := personalPrefix + strconv.Itoa(len(message))
	return crypto.Keccak256([]byte(prefix), []byte(message))
}

// DecodeSignature parses a hex signature and normalizes v to 0 or 1.
func DecodeSignature(signature string) ([]byte, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(signature), "0x"), "0X")
	sig, err := hex.DecodeString(raw)
	if err != nil || len(sig) != signatureLength {
		return nil, ErrMalformedSignature
	}

	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return nil, ErrMalformedSignature
	}
	sig[64] = v
	return sig, nil
}

// RecoverAddress returns the lower-case address that produced signature over
// message under EIP-191.
func RecoverAddress(message, signature string) (string, error) {
	sig, err := DecodeSignature(signature)
	if err != nil {
		return "", err
	}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(sig[64], r, s, false) {
		return "", ErrRecoveryFailed
	}

	pub, err := crypto.SigToPub(PersonalHash(message), sig)
	if err != nil || pub == nil || pub.X == nil || pub.Y == nil {
		return "", ErrRecoveryFailed
	}
	if pub.X.Sign() == 0 && pub.Y.Sign() == 0 {
		return "", ErrRecoveryFailed
	}

	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex()), nil
}

// Verify reports whether signature over message recovers to expected. Any
// decoding or recovery error yields false.
func Verify(message, signature, expected string) bool {
	want, err := NormalizeAddress(expected)
	if err != nil {
		return false
	}
	got, err := RecoverAddress(message, signature)
	if err != nil {
		return false
	}
	return got == want
}

// Verifier adapts the package functions to an interface value.
type Verifier struct{}

// Recover implements the engine's signature port.
func (Verifier) Recover(message, signature string) (string, error) {
	return RecoverAddress(message, signature)
}

// Verify reports whether signature over message recovers to expected.
func (Verifier) Verify(message, signature, expected string) bool {
	return Verify(message, signature, expected)
}

// SignPersonal signs message under EIP-191 with v in {27, 28}, the way browser
// wallets return it. It backs test fixtures and the load generator.
func SignPersonal(message string, key *ecdsa.PrivateKey) (string, error) {
	sig, err := crypto.Sign(PersonalHash(message), key)
	if err != nil {
		return "", err
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

// AddressOf returns the lower-case address of key.
func AddressOf(key *ecdsa.PrivateKey) string {
	return strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())
}

package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrInvalidSignature = errors.New("invalid signature")

// SignatureVerifier checks that a signature over a message was produced by
// the key controlling the claimed address, using the personal-message signing
// scheme: keccak256("\x19Ethereum Signed Message:\n" + len(msg) + msg).
type SignatureVerifier struct{}

func NewSignatureVerifier() *SignatureVerifier {
	return &SignatureVerifier{}
}

// Verify recovers the signing address and compares it case-insensitively to
// the claimed one. A mismatch is (false, nil) rather than an error, so the
// login handler can return one uniform failure for every cause.
func (v *SignatureVerifier) Verify(address, message string, signature []byte) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, fmt.Errorf("%w: malformed address", ErrInvalidSignature)
	}
	if len(signature) != crypto.SignatureLength {
		return false, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, crypto.SignatureLength, len(signature))
	}

	// Wallets emit the recovery id as 27/28; secp256k1 recovery wants 0/1.
	sig := make([]byte, len(signature))
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	hash := personalMessageHash(message)
	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	recovered := crypto.PubkeyToAddress(*pubKey)
	return strings.EqualFold(recovered.Hex(), address), nil
}

func personalMessageHash(message string) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return crypto.Keccak256([]byte(prefixed))
}

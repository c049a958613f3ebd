// Package auth verifies wallet signatures over plain-text messages.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrMalformedSignature is returned when the signature cannot be parsed
	// into a recoverable secp256k1 signature.
	ErrMalformedSignature = errors.New("malformed signature")
	// ErrSignatureMismatch is returned when the recovered signer differs
	// from the claimed address.
	ErrSignatureMismatch = errors.New("signature does not match address")
)

const (
	compactSignatureLength = 64
	fullSignatureLength    = crypto.SignatureLength
)

// Verifier recovers signers of personal_sign style messages.
type Verifier struct{}

// NewVerifier returns a stateless signature verifier.
func NewVerifier() Verifier {
	return Verifier{}
}

// Verify returns nil when signature over payload was produced by claimedAddress.
func (Verifier) Verify(payload string, signature []byte, claimedAddress string) error {
	recovered, err := RecoverAddress(payload, signature)
	if err != nil {
		return err
	}
	if !strings.EqualFold(recovered, strings.TrimSpace(claimedAddress)) {
		return ErrSignatureMismatch
	}
	return nil
}

// VerifyHex decodes a hex encoded signature and verifies it.
func (v Verifier) VerifyHex(payload, signatureHex, claimedAddress string) error {
	sig, err := DecodeSignature(signatureHex)
	if err != nil {
		return err
	}
	return v.Verify(payload, sig, claimedAddress)
}

// DecodeSignature accepts hex with or without the 0x prefix.
func DecodeSignature(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "0x") && !strings.HasPrefix(raw, "0X") {
		raw = "0x" + raw
	}
	sig, err := hexutil.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return sig, nil
}

// RecoverAddress returns the checksummed address that signed payload.
func RecoverAddress(payload string, signature []byte) (string, error) {
	sig, err := normalize(signature)
	if err != nil {
		return "", err
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(payload)), sig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

// normalize converts wallet signatures into the [R || S || V] form with
// V in {0, 1} expected by the recovery routine.
func normalize(signature []byte) ([]byte, error) {
	switch len(signature) {
	case fullSignatureLength:
		sig := make([]byte, fullSignatureLength)
		copy(sig, signature)
		v := sig[crypto.RecoveryIDOffset]
		if v >= 27 {
			v -= 27
		}
		if v > 1 {
			return nil, fmt.Errorf("%w: invalid recovery id %d", ErrMalformedSignature, sig[crypto.RecoveryIDOffset])
		}
		sig[crypto.RecoveryIDOffset] = v
		return sig, nil
	case compactSignatureLength:
		// EIP-2098: the top bit of s carries the y parity.
		sig := make([]byte, fullSignatureLength)
		copy(sig, signature)
		sig[32] &= 0x7f
		sig[crypto.RecoveryIDOffset] = signature[32] >> 7
		return sig, nil
	default:
		return nil, fmt.Errorf("%w: unexpected length %d", ErrMalformedSignature, len(signature))
	}
}

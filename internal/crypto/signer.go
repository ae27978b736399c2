package crypto

import (
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// receiptPrefix namespaces resolution digests so a receipt signature can
// never be replayed as any other kind of signed message.
const receiptPrefix = "\x19lsmm-resolution-v1:"

// Signer signs resolution receipts with the operator's secp256k1 key. The
// signature is stored alongside the resolution so settlements are
// attributable to the key that authorised them.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key.
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}

	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the address derived from the signer's private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// ReceiptDigest computes the keccak256 digest of a resolution receipt:
//
//	keccak256(prefix || marketID || uint64(winningOutcome) || uint64(resolvedAt))
//
// resolvedAt is truncated to whole seconds so the digest survives timestamp
// round trips through the database.
func ReceiptDigest(marketID string, winningOutcome int, resolvedAt time.Time) []byte {
	var outcome, ts [8]byte
	binary.BigEndian.PutUint64(outcome[:], uint64(winningOutcome))
	binary.BigEndian.PutUint64(ts[:], uint64(resolvedAt.Unix()))

	return ethcrypto.Keccak256(
		[]byte(receiptPrefix),
		[]byte(marketID),
		outcome[:],
		ts[:],
	)
}

// SignResolution signs a resolution receipt and returns the hex-encoded
// 65-byte signature (r || s || v).
func (s *Signer) SignResolution(marketID string, winningOutcome int, resolvedAt time.Time) (string, error) {
	digest := ReceiptDigest(marketID, winningOutcome, resolvedAt)

	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing receipt for %s: %w", marketID, err)
	}

	// go-ethereum returns v in {0,1}; store the conventional {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}

	return "0x" + hex.EncodeToString(sig), nil
}

// RecoverResolution recovers the address that signed a resolution receipt.
// Callers use it to verify a stored receipt against the operator address.
func RecoverResolution(marketID string, winningOutcome int, resolvedAt time.Time, signatureHex string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signatureHex, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: invalid signature hex: %w", err)
	}
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("crypto/signer: expected 65-byte signature, got %d", len(sig))
	}

	// Undo the {27,28} convention before recovery.
	recSig := make([]byte, 65)
	copy(recSig, sig)
	if recSig[64] >= 27 {
		recSig[64] -= 27
	}

	digest := ReceiptDigest(marketID, winningOutcome, resolvedAt)
	pub, err := ethcrypto.SigToPub(digest, recSig)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: recover: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

package core

import (
	"crypto/ed25519"
	"encoding/hex"
	"regexp"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// KeyFamily tags which curve a signer public key belongs to. Dispatch is by
// inspecting the key's leading bytes (spec §4.2 step 3), not by any
// out-of-band type tag — mirrors the teacher's KeyAlgo tagged-union dispatch
// in core/security.go, generalized from {Ed25519,BLS} to {Ed25519,secp256k1}.
type KeyFamily uint8

const (
	FamilyUnknown KeyFamily = iota
	FamilyEd25519
	FamilySecp256k1
)

var (
	hexRe         = regexp.MustCompile(`^[0-9a-fA-F]+$`)
	alnumRe       = regexp.MustCompile(`^[0-9a-zA-Z]+$`)
	ed25519KeyRe  = regexp.MustCompile(`^[Ee][Dd][0-9a-fA-F]{64}$`)
	secp256k1KeyRe = regexp.MustCompile(`^(?:02|03)[0-9a-fA-F]{64}$`)
)

// ClassifyKey returns the key family for a hex-encoded signer public key,
// or FamilyUnknown if it matches neither recognized prefix pattern.
func ClassifyKey(signerPublicKey string) KeyFamily {
	switch {
	case ed25519KeyRe.MatchString(signerPublicKey):
		return FamilyEd25519
	case secp256k1KeyRe.MatchString(signerPublicKey):
		return FamilySecp256k1
	default:
		return FamilyUnknown
	}
}

// VerifySignedRequest implements spec §4.2's full algorithm: shape checks,
// key-family dispatch, address derivation/match, and curve-specific
// signature verification over Digest(payload). Every failure is
// ErrInvalidSignature, per spec ("All failures raise InvalidSignature").
func VerifySignedRequest(payload Value, signatureHex, signerPublicKey, expectedAddress string) error {
	if signatureHex == "" || !hexRe.MatchString(signatureHex) || len(signatureHex) < 16 {
		return newErr(ErrInvalidSignature, "signature missing, non-hex, or too short")
	}
	if signerPublicKey == "" || !alnumRe.MatchString(signerPublicKey) ||
		len(signerPublicKey) < 16 || len(signerPublicKey) > 80 {
		return newErr(ErrInvalidSignature, "signer public key missing or malformed")
	}

	family := ClassifyKey(signerPublicKey)
	if family == FamilyUnknown {
		return newErr(ErrInvalidSignature, "unrecognized public key family")
	}

	pubBytes, err := hex.DecodeString(signerPublicKey)
	if err != nil {
		return newErr(ErrInvalidSignature, "public key is not valid hex")
	}

	addr := DeriveAddress(pubBytes)
	if addr != expectedAddress {
		return newErr(ErrInvalidSignature, "signer address does not match expected actor")
	}

	sigBytes, err := hex.DecodeString(signatureHex)
	if err != nil {
		return newErr(ErrInvalidSignature, "signature is not valid hex")
	}

	hashHex := Digest(payload)
	hashBytes, err := hex.DecodeString(hashHex)
	if err != nil || len(hashBytes) != 32 {
		return newErr(ErrInvalidSignature, "unable to compute signing digest")
	}

	switch family {
	case FamilyEd25519:
		// pubBytes is 0xED || 32-byte raw public key.
		if len(pubBytes) != 33 {
			return newErr(ErrInvalidSignature, "malformed ed25519 public key")
		}
		rawPub := ed25519.PublicKey(pubBytes[1:])
		if len(sigBytes) != ed25519.SignatureSize {
			return newErr(ErrInvalidSignature, "malformed ed25519 signature")
		}
		if !ed25519.Verify(rawPub, hashBytes, sigBytes) {
			return newErr(ErrInvalidSignature, "ed25519 verification failed")
		}
		return nil

	case FamilySecp256k1:
		pub, err := secp256k1.ParsePubKey(pubBytes)
		if err != nil {
			return newErr(ErrInvalidSignature, "malformed secp256k1 public key")
		}
		sig, err := ecdsa.ParseDERSignature(sigBytes)
		if err != nil {
			return newErr(ErrInvalidSignature, "malformed secp256k1 signature")
		}
		if !sig.Verify(hashBytes, pub) {
			return newErr(ErrInvalidSignature, "secp256k1 verification failed")
		}
		return nil

	default:
		return newErr(ErrInvalidSignature, "unrecognized public key family")
	}
}

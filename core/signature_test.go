package core

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

func signEd25519(t *testing.T, payload Value) (signatureHex, signerPublicKey, address string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	tagged := append([]byte{0xED}, pub...)
	hashBytes, err := hex.DecodeString(Digest(payload))
	if err != nil {
		t.Fatalf("decode digest: %v", err)
	}
	sig := ed25519.Sign(priv, hashBytes)
	return hex.EncodeToString(sig), hex.EncodeToString(tagged), DeriveAddress(tagged)
}

func signSecp256k1(t *testing.T, payload Value) (signatureHex, signerPublicKey, address string) {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate secp256k1 key: %v", err)
	}
	compressed := priv.PubKey().SerializeCompressed()
	hashBytes, err := hex.DecodeString(Digest(payload))
	if err != nil {
		t.Fatalf("decode digest: %v", err)
	}
	sig := ecdsa.Sign(priv, hashBytes)
	return hex.EncodeToString(sig.Serialize()), hex.EncodeToString(compressed), DeriveAddress(compressed)
}

func TestVerifySignedRequestEd25519Valid(t *testing.T) {
	payload := map[string]Value{"owner": "rOwner", "salt": "deadbeefdeadbeef"}
	sig, pub, addr := signEd25519(t, payload)
	if err := VerifySignedRequest(payload, sig, pub, addr); err != nil {
		t.Fatalf("expected valid ed25519 signature to verify: %v", err)
	}
}

func TestVerifySignedRequestSecp256k1Valid(t *testing.T) {
	payload := map[string]Value{"owner": "rOwner", "salt": "deadbeefdeadbeef"}
	sig, pub, addr := signSecp256k1(t, payload)
	if err := VerifySignedRequest(payload, sig, pub, addr); err != nil {
		t.Fatalf("expected valid secp256k1 signature to verify: %v", err)
	}
}

func TestVerifySignedRequestRejectsTamperedPayload(t *testing.T) {
	payload := map[string]Value{"owner": "rOwner", "salt": "deadbeefdeadbeef"}
	sig, pub, addr := signEd25519(t, payload)
	tampered := map[string]Value{"owner": "rOwner", "salt": "00000000deadbeef"}
	err := VerifySignedRequest(tampered, sig, pub, addr)
	ce := AsContractError(err)
	if ce == nil || ce.Code != ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature for a tampered payload, got %v", err)
	}
}

func TestVerifySignedRequestRejectsTamperedSignature(t *testing.T) {
	payload := map[string]Value{"owner": "rOwner", "salt": "deadbeefdeadbeef"}
	sig, pub, addr := signEd25519(t, payload)
	bad := []byte(sig)
	bad[0] ^= 0xFF
	err := VerifySignedRequest(payload, string(bad), pub, addr)
	ce := AsContractError(err)
	if ce == nil || ce.Code != ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature for a tampered signature, got %v", err)
	}
}

func TestVerifySignedRequestRejectsWrongAddress(t *testing.T) {
	payload := map[string]Value{"owner": "rOwner", "salt": "deadbeefdeadbeef"}
	sig, pub, _ := signEd25519(t, payload)
	err := VerifySignedRequest(payload, sig, pub, "rSomeoneElseEntirely")
	ce := AsContractError(err)
	if ce == nil || ce.Code != ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature when address does not match, got %v", err)
	}
}

func TestVerifySignedRequestRejectsUnknownKeyFamily(t *testing.T) {
	payload := map[string]Value{"owner": "rOwner"}
	err := VerifySignedRequest(payload, "abcdef0123456789", "04deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef", "rOwner")
	ce := AsContractError(err)
	if ce == nil || ce.Code != ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature for an unrecognized key prefix, got %v", err)
	}
}

func TestClassifyKeyDispatch(t *testing.T) {
	if ClassifyKey("ed"+hex.EncodeToString(make([]byte, 32))) != FamilyEd25519 {
		t.Fatalf("ED-prefixed 33-byte hex key should classify as ed25519")
	}
	if ClassifyKey("02"+hex.EncodeToString(make([]byte, 32))) != FamilySecp256k1 {
		t.Fatalf("02-prefixed compressed key should classify as secp256k1")
	}
	if ClassifyKey("notakey") != FamilyUnknown {
		t.Fatalf("garbage input should classify as unknown")
	}
}

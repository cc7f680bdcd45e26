package core

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	cfg := DefaultConfig()
	cfg.StatePath = ""
	audit, err := NewAuditSink("")
	if err != nil {
		t.Fatalf("new audit sink: %v", err)
	}
	tokens := NewTokenAdapter(nil, nil, false)
	return NewDispatcher(NewStore(), tokens, audit, NewMetrics(), cfg)
}

type testSigner struct {
	priv ed25519.PrivateKey
	pub  string
	addr string
}

func newTestSigner(t *testing.T) testSigner {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tagged := append([]byte{0xED}, pub...)
	return testSigner{priv: priv, pub: hex.EncodeToString(tagged), addr: DeriveAddress(tagged)}
}

func (s testSigner) sign(payload Payload) string {
	hashBytes, _ := hex.DecodeString(Digest(payload))
	return hex.EncodeToString(ed25519.Sign(s.priv, hashBytes))
}

func TestDispatcherCreateVaultAddEntryGetEntryHappyPath(t *testing.T) {
	d := newTestDispatcher(t)
	owner := newTestSigner(t)

	createPayload := Payload{
		"owner":    owner.addr,
		"salt":     "deadbeefdeadbeef",
		"roundKey": "1",
	}
	createSig := owner.sign(createPayload)
	createPayload["signerPublicKey"] = owner.pub
	createPayload["signature"] = createSig

	createResp := d.HandleOperation(Request{Type: "createVault", Payload: createPayload})
	if !createResp.OK {
		t.Fatalf("createVault failed: %s (%s)", createResp.Error, createResp.Code)
	}
	vaultID, _ := createResp.Data.(map[string]Value)["vaultId"].(string)
	if vaultID == "" {
		t.Fatalf("expected a vaultId in createVault's response, got %#v", createResp.Data)
	}

	entryMetadata := map[string]Value{"service": "example.com"}
	addPreimage := map[string]Value{
		"vaultId":       vaultID,
		"actor":         owner.addr,
		"encryptedBlob": "aGVsbG8gd29ybGQ=",
		"cid":           "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
		"entryMetadata": map[string]Value{"service": "example.com", "username": nil, "notes": nil},
		"wrappedKeys":   []Value{},
	}
	addSig := owner.sign(addPreimage)
	addPayload := Payload{
		"vaultId":         vaultID,
		"actor":           owner.addr,
		"encryptedBlob":   "aGVsbG8gd29ybGQ=",
		"cid":             "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
		"roundKey":        "2",
		"entryMetadata":   entryMetadata,
		"wrappedKeys":     []Value{},
		"signerPublicKey": owner.pub,
		"signature":       addSig,
	}

	addResp := d.HandleOperation(Request{Type: "addEntry", Payload: addPayload})
	if !addResp.OK {
		t.Fatalf("addEntry failed: %s (%s)", addResp.Error, addResp.Code)
	}

	getPreimage := map[string]Value{
		"vaultId":    vaultID,
		"actor":      owner.addr,
		"entryIndex": int64(0),
		"tokenId":    nil,
	}
	getSig := owner.sign(getPreimage)
	getPayload := Payload{
		"vaultId":         vaultID,
		"actor":           owner.addr,
		"entryIndex":      float64(0),
		"signerPublicKey": owner.pub,
		"signature":       getSig,
	}

	getResp := d.HandleOperation(Request{Type: "getEntry", Payload: getPayload})
	if !getResp.OK {
		t.Fatalf("getEntry failed: %s (%s)", getResp.Error, getResp.Code)
	}
	cid, _ := getResp.Data.(map[string]Value)["cid"].(string)
	if cid != "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG" {
		t.Fatalf("unexpected cid in getEntry response: %q", cid)
	}
}

func TestDispatcherRejectsBadSignature(t *testing.T) {
	d := newTestDispatcher(t)
	owner := newTestSigner(t)

	payload := Payload{
		"owner":           owner.addr,
		"salt":            "deadbeefdeadbeef",
		"roundKey":        "1",
		"signerPublicKey": owner.pub,
		"signature":       "00",
	}
	resp := d.HandleOperation(Request{Type: "createVault", Payload: payload})
	if resp.OK {
		t.Fatalf("expected createVault to fail with a bad signature")
	}
	if resp.Code != ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %s", resp.Code)
	}
	if resp.ErrorID == "" {
		t.Fatalf("expected a non-empty errorId in the failure envelope")
	}
}

func TestDispatcherEnforcesRateLimitAcrossOperations(t *testing.T) {
	d := newTestDispatcher(t)
	d.limiter = NewRateLimiter(1)
	owner := newTestSigner(t)

	first := Payload{"owner": owner.addr, "salt": "deadbeefdeadbeef", "roundKey": "1"}
	firstSig := owner.sign(first)
	first["signerPublicKey"] = owner.pub
	first["signature"] = firstSig
	if resp := d.HandleOperation(Request{Type: "createVault", Payload: first}); !resp.OK {
		t.Fatalf("first createVault in round should succeed: %s", resp.Error)
	}

	second := Payload{"owner": owner.addr, "salt": "00000000deadbeef", "roundKey": "1"}
	secondSig := owner.sign(second)
	second["signerPublicKey"] = owner.pub
	second["signature"] = secondSig
	resp := d.HandleOperation(Request{Type: "createVault", Payload: second})
	if resp.OK {
		t.Fatalf("second mutating op in the same round should be rate limited")
	}
	if resp.Code != ErrRateLimitExceeded {
		t.Fatalf("expected ErrRateLimitExceeded, got %s", resp.Code)
	}
}

func TestDispatcherUnknownOperationFails(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.HandleOperation(Request{Type: "doesNotExist", Payload: Payload{}})
	if resp.OK || resp.Code != ErrUnknownOperation {
		t.Fatalf("expected ErrUnknownOperation, got ok=%v code=%s", resp.OK, resp.Code)
	}
}

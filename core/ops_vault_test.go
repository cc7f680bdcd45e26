package core

import "testing"

// An individual-vault createVault payload may carry an initialAuthorized
// field (excluded from the signing preimage per spec §4.4's "included only
// for team" rule), but it must never be applied to the store — otherwise an
// attacker could tack it onto an otherwise validly-signed request and smuggle
// extra addresses into a vault invariant 3 requires to have exactly one.
func TestCreateVaultIgnoresInitialAuthorizedForIndividualVault(t *testing.T) {
	d := newTestDispatcher(t)
	owner := newTestSigner(t)
	intruder := newTestSigner(t)

	// initialAuthorized is excluded from createVault's signing preimage for
	// the individual path (spec §4.4), so it is signed over separately here
	// to match what the handler actually verifies.
	preimage := Payload{
		"owner":    owner.addr,
		"salt":     "deadbeefdeadbeef",
		"roundKey": "1",
	}
	sig := owner.sign(preimage)
	payload := Payload{
		"owner":             owner.addr,
		"salt":              "deadbeefdeadbeef",
		"roundKey":          "1",
		"initialAuthorized": []Value{intruder.addr},
		"signerPublicKey":   owner.pub,
		"signature":         sig,
	}

	resp := d.HandleOperation(Request{Type: "createVault", Payload: payload})
	if !resp.OK {
		t.Fatalf("createVault failed: %s (%s)", resp.Error, resp.Code)
	}
	vaultID, _ := resp.Data.(map[string]Value)["vaultId"].(string)

	v, err := d.store.GetVault(vaultID)
	if err != nil {
		t.Fatalf("GetVault: %v", err)
	}
	if len(v.Authorized) != 1 || v.Authorized[0] != owner.addr {
		t.Fatalf("expected the individual vault's only authorized member to be the owner, got %v", v.Authorized)
	}
}

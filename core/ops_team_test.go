package core

import "testing"

func createTeamVaultViaDispatcher(t *testing.T, d *Dispatcher, owner testSigner, salt string, initialAuthorized []Value) string {
	t.Helper()
	payload := Payload{
		"owner":    owner.addr,
		"salt":     salt,
		"roundKey": "1",
	}
	if initialAuthorized != nil {
		payload["initialAuthorized"] = initialAuthorized
	}
	sig := owner.sign(payload)
	payload["signerPublicKey"] = owner.pub
	payload["signature"] = sig

	resp := d.HandleOperation(Request{Type: "createTeamVault", Payload: payload})
	if !resp.OK {
		t.Fatalf("createTeamVault failed: %s (%s)", resp.Error, resp.Code)
	}
	vaultID, _ := resp.Data.(map[string]Value)["vaultId"].(string)
	if vaultID == "" {
		t.Fatalf("expected a vaultId in createTeamVault's response")
	}
	return vaultID
}

func TestTeamVaultInviteAcceptRevokeViaDispatcher(t *testing.T) {
	d := newTestDispatcher(t)
	owner := newTestSigner(t)
	invitee := newTestSigner(t)

	vaultID := createTeamVaultViaDispatcher(t, d, owner, "deadbeefdeadbeef", nil)

	invitePreimage := map[string]Value{
		"vaultId": vaultID,
		"invitee": invitee.addr,
		"action":  "inviteToVault",
	}
	inviteSig := owner.sign(invitePreimage)
	invitePayload := Payload{
		"vaultId":         vaultID,
		"actor":           owner.addr,
		"invitee":         invitee.addr,
		"roundKey":        "2",
		"signerPublicKey": owner.pub,
		"signature":       inviteSig,
	}
	inviteResp := d.HandleOperation(Request{Type: "inviteToVault", Payload: invitePayload})
	if !inviteResp.OK {
		t.Fatalf("inviteToVault failed: %s (%s)", inviteResp.Error, inviteResp.Code)
	}

	acceptPreimage := map[string]Value{
		"vaultId": vaultID,
		"action":  "acceptInvite",
	}
	acceptSig := invitee.sign(acceptPreimage)
	acceptPayload := Payload{
		"vaultId":         vaultID,
		"roundKey":        "3",
		"signerPublicKey": invitee.pub,
		"signature":       acceptSig,
	}
	acceptResp := d.HandleOperation(Request{Type: "acceptInvite", Payload: acceptPayload})
	if !acceptResp.OK {
		t.Fatalf("acceptInvite failed: %s (%s)", acceptResp.Error, acceptResp.Code)
	}
	authorizedCount, _ := acceptResp.Data.(map[string]Value)["authorizedCount"].(int64)
	if authorizedCount != 2 {
		t.Fatalf("expected 2 authorized members after accept, got %d", authorizedCount)
	}

	removePreimage := map[string]Value{
		"vaultId":        vaultID,
		"memberToRemove": invitee.addr,
		"action":         "removeMember",
	}
	removeSig := owner.sign(removePreimage)
	removePayload := Payload{
		"vaultId":         vaultID,
		"actor":           owner.addr,
		"memberToRemove":  invitee.addr,
		"roundKey":        "4",
		"signerPublicKey": owner.pub,
		"signature":       removeSig,
	}
	removeResp := d.HandleOperation(Request{Type: "removeMember", Payload: removePayload})
	if !removeResp.OK {
		t.Fatalf("removeMember failed: %s (%s)", removeResp.Error, removeResp.Code)
	}
}

func TestInviteToIndividualVaultFails(t *testing.T) {
	d := newTestDispatcher(t)
	owner := newTestSigner(t)
	invitee := newTestSigner(t)

	createPayload := Payload{"owner": owner.addr, "salt": "deadbeefdeadbeef", "roundKey": "1"}
	createSig := owner.sign(createPayload)
	createPayload["signerPublicKey"] = owner.pub
	createPayload["signature"] = createSig
	createResp := d.HandleOperation(Request{Type: "createVault", Payload: createPayload})
	if !createResp.OK {
		t.Fatalf("createVault failed: %s", createResp.Error)
	}
	vaultID, _ := createResp.Data.(map[string]Value)["vaultId"].(string)

	invitePreimage := map[string]Value{
		"vaultId": vaultID,
		"invitee": invitee.addr,
		"action":  "inviteToVault",
	}
	inviteSig := owner.sign(invitePreimage)
	invitePayload := Payload{
		"vaultId":         vaultID,
		"actor":           owner.addr,
		"invitee":         invitee.addr,
		"roundKey":        "2",
		"signerPublicKey": owner.pub,
		"signature":       inviteSig,
	}
	resp := d.HandleOperation(Request{Type: "inviteToVault", Payload: invitePayload})
	if resp.OK {
		t.Fatalf("expected inviteToVault on an individual vault to fail")
	}
	if resp.Code != ErrInvalidVaultType {
		t.Fatalf("expected ErrInvalidVaultType, got %s", resp.Code)
	}
}

func TestTeamModeDisabledRejectsTeamOperations(t *testing.T) {
	d := newTestDispatcher(t)
	d.cfg.TeamModeEnabled = false
	owner := newTestSigner(t)

	payload := Payload{"owner": owner.addr, "salt": "deadbeefdeadbeef", "roundKey": "1"}
	sig := owner.sign(payload)
	payload["signerPublicKey"] = owner.pub
	payload["signature"] = sig
	resp := d.HandleOperation(Request{Type: "createTeamVault", Payload: payload})
	if resp.OK {
		t.Fatalf("expected createTeamVault to fail when team-mode is disabled")
	}
	if resp.Code != ErrTeamModeDisabled {
		t.Fatalf("expected ErrTeamModeDisabled, got %s", resp.Code)
	}
}

func TestOwnerCannotRemoveSelfViaDispatcher(t *testing.T) {
	d := newTestDispatcher(t)
	owner := newTestSigner(t)
	vaultID := createTeamVaultViaDispatcher(t, d, owner, "deadbeefdeadbeef", nil)

	preimage := map[string]Value{
		"vaultId":        vaultID,
		"memberToRemove": owner.addr,
		"action":         "removeMember",
	}
	sig := owner.sign(preimage)
	payload := Payload{
		"vaultId":         vaultID,
		"actor":           owner.addr,
		"memberToRemove":  owner.addr,
		"roundKey":        "2",
		"signerPublicKey": owner.pub,
		"signature":       sig,
	}
	resp := d.HandleOperation(Request{Type: "removeMember", Payload: payload})
	if resp.OK {
		t.Fatalf("expected owner self-removal to fail")
	}
	if resp.Code != ErrInvalidOperation {
		t.Fatalf("expected ErrInvalidOperation, got %s", resp.Code)
	}
}

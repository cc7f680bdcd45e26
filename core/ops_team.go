package core

import "encoding/hex"

func requireTeamMode(d *Dispatcher) error {
	if !d.cfg.TeamModeEnabled {
		return newErr(ErrTeamModeDisabled, "team-mode is disabled")
	}
	return nil
}

// deriveActorAddress computes the classic address a signer public key would
// sign as. acceptInvite's preimage carries no separate actor field — the
// actor is whoever holds the key, not whatever a payload claims.
func deriveActorAddress(signerPublicKey string) (string, error) {
	pubBytes, err := hex.DecodeString(signerPublicKey)
	if err != nil {
		return "", newErr(ErrInvalidSignature, "signer public key is not valid hex")
	}
	return DeriveAddress(pubBytes), nil
}

func handleInviteToVault(d *Dispatcher, payload Payload) (Value, error) {
	if err := requireTeamMode(d); err != nil {
		return nil, err
	}
	vaultID, err := requireString(payload, "vaultId")
	if err != nil {
		return nil, err
	}
	actor, err := requireString(payload, "actor")
	if err != nil {
		return nil, err
	}
	invitee, err := requireString(payload, "invitee")
	if err != nil {
		return nil, err
	}
	if !ValidAddress(invitee) {
		return nil, newErr(ErrInvalidAddress, "invitee is not a valid address")
	}
	roundKey, err := requireRoundKey(payload)
	if err != nil {
		return nil, err
	}
	signature, err := requireString(payload, "signature")
	if err != nil {
		return nil, err
	}
	signerPublicKey, err := requireString(payload, "signerPublicKey")
	if err != nil {
		return nil, err
	}
	preimage := map[string]Value{
		"vaultId": vaultID,
		"invitee": invitee,
		"action":  "inviteToVault",
	}
	if err := VerifySignedRequest(preimage, signature, signerPublicKey, actor); err != nil {
		return nil, err
	}
	if err := d.enforceRateLimit(actor, roundKey); err != nil {
		return nil, err
	}

	v, err := d.store.AddPendingInvite(vaultID, actor, invitee, roundKey)
	if err != nil {
		return nil, err
	}
	return map[string]Value{
		"vaultId":      v.ID,
		"invitee":      invitee,
		"pendingCount": int64(len(v.PendingInvites)),
	}, nil
}

func handleAcceptInvite(d *Dispatcher, payload Payload) (Value, error) {
	if err := requireTeamMode(d); err != nil {
		return nil, err
	}
	vaultID, err := requireString(payload, "vaultId")
	if err != nil {
		return nil, err
	}
	roundKey, err := requireRoundKey(payload)
	if err != nil {
		return nil, err
	}
	signature, err := requireString(payload, "signature")
	if err != nil {
		return nil, err
	}
	signerPublicKey, err := requireString(payload, "signerPublicKey")
	if err != nil {
		return nil, err
	}
	actor, err := deriveActorAddress(signerPublicKey)
	if err != nil {
		return nil, err
	}
	preimage := map[string]Value{
		"vaultId": vaultID,
		"action":  "acceptInvite",
	}
	if err := VerifySignedRequest(preimage, signature, signerPublicKey, actor); err != nil {
		return nil, err
	}
	if err := d.enforceRateLimit(actor, roundKey); err != nil {
		return nil, err
	}

	v, err := d.store.AcceptPendingInvite(vaultID, actor)
	if err != nil {
		return nil, err
	}
	return map[string]Value{
		"vaultId":         v.ID,
		"authorizedCount": int64(len(v.Authorized)),
	}, nil
}

func handleRevokeInvite(d *Dispatcher, payload Payload) (Value, error) {
	if err := requireTeamMode(d); err != nil {
		return nil, err
	}
	vaultID, err := requireString(payload, "vaultId")
	if err != nil {
		return nil, err
	}
	actor, err := requireString(payload, "actor")
	if err != nil {
		return nil, err
	}
	pendingAddress, err := requireString(payload, "pendingAddress")
	if err != nil {
		return nil, err
	}
	roundKey, err := requireRoundKey(payload)
	if err != nil {
		return nil, err
	}
	signature, err := requireString(payload, "signature")
	if err != nil {
		return nil, err
	}
	signerPublicKey, err := requireString(payload, "signerPublicKey")
	if err != nil {
		return nil, err
	}
	preimage := map[string]Value{
		"vaultId":        vaultID,
		"pendingAddress": pendingAddress,
		"action":         "revokeInvite",
	}
	if err := VerifySignedRequest(preimage, signature, signerPublicKey, actor); err != nil {
		return nil, err
	}
	if err := d.enforceRateLimit(actor, roundKey); err != nil {
		return nil, err
	}

	v, err := d.store.RevokePendingInvite(vaultID, actor, pendingAddress)
	if err != nil {
		return nil, err
	}
	return map[string]Value{
		"vaultId":      v.ID,
		"pendingCount": int64(len(v.PendingInvites)),
	}, nil
}

func handleRemoveMember(d *Dispatcher, payload Payload) (Value, error) {
	if err := requireTeamMode(d); err != nil {
		return nil, err
	}
	vaultID, err := requireString(payload, "vaultId")
	if err != nil {
		return nil, err
	}
	actor, err := requireString(payload, "actor")
	if err != nil {
		return nil, err
	}
	memberToRemove, err := requireString(payload, "memberToRemove")
	if err != nil {
		return nil, err
	}
	roundKey, err := requireRoundKey(payload)
	if err != nil {
		return nil, err
	}
	signature, err := requireString(payload, "signature")
	if err != nil {
		return nil, err
	}
	signerPublicKey, err := requireString(payload, "signerPublicKey")
	if err != nil {
		return nil, err
	}
	preimage := map[string]Value{
		"vaultId":        vaultID,
		"memberToRemove": memberToRemove,
		"action":         "removeMember",
	}
	if err := VerifySignedRequest(preimage, signature, signerPublicKey, actor); err != nil {
		return nil, err
	}
	if err := d.enforceRateLimit(actor, roundKey); err != nil {
		return nil, err
	}

	v, err := d.store.RemoveAuthorizedMember(vaultID, actor, memberToRemove)
	if err != nil {
		return nil, err
	}
	return map[string]Value{
		"vaultId":         v.ID,
		"authorizedCount": int64(len(v.Authorized)),
	}, nil
}

func handleGetPendingInvites(d *Dispatcher, payload Payload) (Value, error) {
	if err := requireTeamMode(d); err != nil {
		return nil, err
	}
	vaultID, err := requireString(payload, "vaultId")
	if err != nil {
		return nil, err
	}
	actor, err := requireString(payload, "actor")
	if err != nil {
		return nil, err
	}
	signature, err := requireString(payload, "signature")
	if err != nil {
		return nil, err
	}
	signerPublicKey, err := requireString(payload, "signerPublicKey")
	if err != nil {
		return nil, err
	}
	preimage := map[string]Value{
		"vaultId": vaultID,
		"action":  "getPendingInvites",
	}
	if err := VerifySignedRequest(preimage, signature, signerPublicKey, actor); err != nil {
		return nil, err
	}

	invites, err := d.store.GetPendingInvites(vaultID, actor)
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(invites))
	for i, inv := range invites {
		out[i] = inv.toValue()
	}
	return out, nil
}

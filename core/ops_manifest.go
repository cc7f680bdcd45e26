package core

import "context"

// manifestUpdateMode names updateVaultManifest's two servicing strategies,
// selected by cfg.MutableURIToken: a cheap in-place stub when the deployment
// treats the manifest URI token as mutable, or a burn-then-remint when it
// doesn't (spec §4.4).
const (
	manifestModeMutableStub = "mutable_stub"
	manifestModeBurnRemint  = "burn_remint"
)

// nullableValue renders an optional string for inclusion in a signing
// preimage: the null sentinel when absent, per spec §4.4's updateVaultManifest
// preimage rule.
func nullableValue(s *string) Value {
	if s == nil {
		return nil
	}
	return *s
}

func handleUpdateVaultManifest(d *Dispatcher, payload Payload) (Value, error) {
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
	roundKey, err := requireRoundKey(payload)
	if err != nil {
		return nil, err
	}
	newURI := optionalString(payload, "newUri")
	newBlobHex := optionalString(payload, "newBlobHex")
	if newURI == nil && newBlobHex == nil {
		return nil, newErr(ErrInvalidInput, "at least one of newUri or newBlobHex is required")
	}
	if newBlobHex != nil && !hexRe.MatchString(*newBlobHex) {
		return nil, newErr(ErrInvalidInput, "newBlobHex must be a hex string")
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
		"newUri":     nullableValue(newURI),
		"newBlobHex": nullableValue(newBlobHex),
		"action":     "updateVaultManifest",
	}
	if err := VerifySignedRequest(preimage, signature, signerPublicKey, actor); err != nil {
		return nil, err
	}
	if err := d.enforceRateLimit(actor, roundKey); err != nil {
		return nil, err
	}

	v, err := d.store.GetVault(vaultID)
	if err != nil {
		return nil, err
	}
	if v.Type != VaultTeam {
		return nil, newErr(ErrInvalidVaultType, "updateVaultManifest is a team-only operation")
	}
	if !contains(v.Authorized, actor) {
		return nil, newErr(ErrUnauthorized, "actor %s is not authorized on vault %s", actor, vaultID)
	}

	if d.cfg.MutableURIToken {
		return map[string]Value{
			"vaultId":         v.ID,
			"manifestTokenId": v.ManifestTokenID,
			"mode":            manifestModeMutableStub,
		}, nil
	}

	if _, err := d.tokens.Burn(context.Background(), v.ManifestTokenID, v.Owner, nil); err != nil {
		return nil, err
	}
	uri := "ipfs://placeholder-for-now"
	if newURI != nil {
		uri = *newURI
	}
	mint, err := d.tokens.Mint(context.Background(), uri, "", v.Owner, nil)
	if err != nil {
		return nil, err
	}
	if err := d.store.SetManifestTokenID(vaultID, mint.TokenID); err != nil {
		return nil, err
	}

	return map[string]Value{
		"vaultId":         v.ID,
		"manifestTokenId": mint.TokenID,
		"mode":            manifestModeBurnRemint,
		"mintMode":        mint.Mode,
	}, nil
}

package core

import "context"

func requireRoundKey(p Payload) (string, error) {
	return requireString(p, "roundKey")
}

// validatePasswordBackupShape checks only the parts of metadata the core cares
// about structurally: an optional passwordBackup envelope and, if present,
// that its vaultId will match the vault about to be created.
func validatePasswordBackupShape(meta map[string]Value, expectedVaultID string) error {
	pb, ok := meta["passwordBackup"]
	if !ok || pb == nil {
		return nil
	}
	m, ok := pb.(map[string]Value)
	if !ok {
		return newErr(ErrInvalidMetadata, "passwordBackup must be an object")
	}
	if err := validatePasswordBackupEnvelope(m, expectedVaultID); err != nil {
		return err
	}
	return nil
}

// validatePasswordBackupEnvelope enforces spec §3's PasswordBackup envelope
// shape: version=1, vaultId matches, and salt/nonce/authTag/ciphertext are
// all base64.
func validatePasswordBackupEnvelope(env map[string]Value, expectedVaultID string) error {
	version, ok := getNumber(Payload(env), "version")
	if !ok || version != 1 {
		return newErr(ErrInvalidMetadata, "passwordBackup.version must be 1")
	}
	vaultID, err := requireString(env, "vaultId")
	if err != nil {
		return newErr(ErrInvalidMetadata, "passwordBackup.vaultId is required")
	}
	if vaultID != expectedVaultID {
		return newErr(ErrInvalidMetadata, "passwordBackup.vaultId does not match the owning vault")
	}
	for _, field := range []string{"salt", "nonce", "authTag", "ciphertext"} {
		v, err := requireString(env, field)
		if err != nil {
			return newErr(ErrInvalidMetadata, "passwordBackup.%s is required", field)
		}
		if !ValidBase64(v) {
			return newErr(ErrInvalidMetadata, "passwordBackup.%s must be base64", field)
		}
	}
	return nil
}

func validateInitialAuthorized(raw []Value) ([]string, error) {
	if len(raw) > 50 {
		return nil, newErr(ErrInvalidInput, "initialAuthorized may not exceed 50 entries")
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok || !ValidAddress(s) {
			return nil, newErr(ErrInvalidAddress, "initialAuthorized contains an invalid address")
		}
		out = append(out, s)
	}
	return out, nil
}

func createVaultCommon(d *Dispatcher, payload Payload, team bool) (Value, error) {
	if team && !d.cfg.TeamModeEnabled {
		return nil, newErr(ErrTeamModeDisabled, "team-mode is disabled")
	}

	owner, err := requireString(payload, "owner")
	if err != nil {
		return nil, err
	}
	if !ValidAddress(owner) {
		return nil, newErr(ErrInvalidAddress, "owner is not a valid address")
	}
	salt, err := requireString(payload, "salt")
	if err != nil {
		return nil, err
	}
	if !ValidSalt(salt) {
		return nil, newErr(ErrInvalidSalt, "salt must be an even-length hex string of 16-256 characters")
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

	metaRaw, _ := getMapValue(payload, "metadata")
	if metaRaw == nil {
		metaRaw = map[string]Value{}
	}

	var initialAuthorized []string
	if team {
		if raw, ok := getSlice(payload, "initialAuthorized"); ok {
			initialAuthorized, err = validateInitialAuthorized(raw)
			if err != nil {
				return nil, err
			}
		}
	}

	vaultID := VaultID(owner, salt)

	if rawVaultID, present := metaRaw["vaultId"]; present && rawVaultID != nil {
		if s, ok := rawVaultID.(string); !ok || s != vaultID {
			return nil, newErr(ErrInvalidMetadata, "metadata.vaultId does not match the computed vault id")
		}
	}
	if err := validatePasswordBackupShape(metaRaw, vaultID); err != nil {
		return nil, err
	}

	preimageKeys := []string{"signature", "signerPublicKey"}
	if !team {
		preimageKeys = append(preimageKeys, "initialAuthorized")
	}
	preimage := withoutKeys(payload, preimageKeys...)
	if err := VerifySignedRequest(preimage, signature, signerPublicKey, owner); err != nil {
		return nil, err
	}

	if err := d.enforceRateLimit(owner, roundKey); err != nil {
		return nil, err
	}

	typ := VaultIndividual
	if team {
		typ = VaultTeam
	}

	mint, err := d.tokens.Mint(context.Background(), "ipfs://placeholder-for-now", "", owner, nil)
	if err != nil {
		return nil, err
	}

	metadata := make(map[string]Value, len(metaRaw)+3)
	for k, v := range metaRaw {
		metadata[k] = v
	}
	metadata["vaultId"] = vaultID
	if _, ok := metadata["blobVersion"]; !ok {
		metadata["blobVersion"] = int64(1)
	}
	metadata["lastUpdated"] = roundKey

	v, err := d.store.CreateVault(owner, salt, typ, metadata, roundKey, mint.TokenID, initialAuthorized, nil)
	if err != nil {
		return nil, err
	}

	out := map[string]Value{
		"vaultId":         v.ID,
		"owner":           v.Owner,
		"createdAt":       v.CreatedAt,
		"manifestTokenId": v.ManifestTokenID,
		"mintMode":        mint.Mode,
	}
	if team {
		out["type"] = string(v.Type)
		out["authorizedCount"] = int64(len(v.Authorized))
	}
	return out, nil
}

func handleCreateVault(d *Dispatcher, payload Payload) (Value, error) {
	return createVaultCommon(d, payload, false)
}

func handleCreateTeamVault(d *Dispatcher, payload Payload) (Value, error) {
	return createVaultCommon(d, payload, true)
}

func handleGetMyVaults(d *Dispatcher, payload Payload) (Value, error) {
	owner, err := requireString(payload, "owner")
	if err != nil {
		return nil, err
	}
	since := optionalString(payload, "since")

	summaries := d.store.GetMyVaults(owner, since)
	out := make([]Value, len(summaries))
	for i, s := range summaries {
		item := map[string]Value{
			"vaultId":         s.VaultID,
			"type":            string(s.Type),
			"owner":           s.Owner,
			"createdAt":       s.CreatedAt,
			"entryCount":      int64(s.EntryCount),
			"manifestTokenId": s.ManifestTokenID,
		}
		if s.LastActivity != nil {
			item["lastActivity"] = *s.LastActivity
		} else {
			item["lastActivity"] = nil
		}
		out[i] = item
	}
	return out, nil
}

func handleListVaultURITokens(d *Dispatcher, payload Payload) (Value, error) {
	vaultID, err := requireString(payload, "vaultId")
	if err != nil {
		return nil, err
	}
	owner, err := requireString(payload, "owner")
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
	preimage := withoutKeys(payload, "signature", "signerPublicKey")
	if err := VerifySignedRequest(preimage, signature, signerPublicKey, owner); err != nil {
		return nil, err
	}

	tokens, err := d.store.ListVaultURITokens(vaultID, owner)
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(tokens))
	for i, t := range tokens {
		out[i] = t
	}
	return out, nil
}

func handleRevokeVault(d *Dispatcher, payload Payload) (Value, error) {
	vaultID, err := requireString(payload, "vaultId")
	if err != nil {
		return nil, err
	}
	owner, err := requireString(payload, "owner")
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
	preimage := withoutKeys(payload, "signature", "signerPublicKey")
	if err := VerifySignedRequest(preimage, signature, signerPublicKey, owner); err != nil {
		return nil, err
	}
	if err := d.enforceRateLimit(owner, roundKey); err != nil {
		return nil, err
	}

	v, err := d.store.GetVault(vaultID)
	if err != nil {
		return nil, err
	}
	if v.Owner != owner {
		return nil, newErr(ErrUnauthorized, "only the owner may revoke the vault")
	}
	if v.Type == VaultTeam && !getBool(payload, "confirm") {
		return nil, newErr(ErrConfirmationRequired, "team vault revocation requires confirm=true")
	}

	tokens, err := d.store.ListVaultURITokens(vaultID, owner)
	if err != nil {
		return nil, err
	}
	for _, tok := range tokens {
		if _, err := d.tokens.Burn(context.Background(), tok, owner, nil); err != nil {
			return nil, err
		}
	}
	if err := d.store.DeleteVault(vaultID, owner); err != nil {
		return nil, err
	}

	return map[string]Value{
		"vaultId":      vaultID,
		"burnedTokens": int64(len(tokens)),
	}, nil
}

func handleStateDigest(d *Dispatcher, payload Payload) (Value, error) {
	return map[string]Value{"digest": d.store.Digest()}, nil
}

func handleAddPasswordBackup(d *Dispatcher, payload Payload) (Value, error) {
	vaultID, err := requireString(payload, "vaultId")
	if err != nil {
		return nil, err
	}
	owner, err := requireString(payload, "owner")
	if err != nil {
		return nil, err
	}
	roundKey, err := requireRoundKey(payload)
	if err != nil {
		return nil, err
	}
	envelope, ok := getMapValue(payload, "envelope")
	if !ok {
		return nil, newErr(ErrInvalidMetadata, "envelope is required")
	}
	signature, err := requireString(payload, "signature")
	if err != nil {
		return nil, err
	}
	signerPublicKey, err := requireString(payload, "signerPublicKey")
	if err != nil {
		return nil, err
	}
	preimage := withoutKeys(payload, "signature", "signerPublicKey")
	if err := VerifySignedRequest(preimage, signature, signerPublicKey, owner); err != nil {
		return nil, err
	}
	if err := d.enforceRateLimit(owner, roundKey); err != nil {
		return nil, err
	}
	if err := validatePasswordBackupEnvelope(envelope, vaultID); err != nil {
		return nil, err
	}

	v, err := d.store.SetPasswordBackup(vaultID, owner, envelope, roundKey)
	if err != nil {
		return nil, err
	}
	return map[string]Value{"vaultId": v.ID}, nil
}

func handleRemovePasswordBackup(d *Dispatcher, payload Payload) (Value, error) {
	vaultID, err := requireString(payload, "vaultId")
	if err != nil {
		return nil, err
	}
	owner, err := requireString(payload, "owner")
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
	preimage := withoutKeys(payload, "signature", "signerPublicKey")
	if err := VerifySignedRequest(preimage, signature, signerPublicKey, owner); err != nil {
		return nil, err
	}
	if err := d.enforceRateLimit(owner, roundKey); err != nil {
		return nil, err
	}

	v, err := d.store.ClearPasswordBackup(vaultID, owner, roundKey)
	if err != nil {
		return nil, err
	}
	return map[string]Value{"vaultId": v.ID}, nil
}

func handleGetVaultMetadata(d *Dispatcher, payload Payload) (Value, error) {
	vaultID, err := requireString(payload, "vaultId")
	if err != nil {
		return nil, err
	}
	owner, err := requireString(payload, "owner")
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
	preimage := withoutKeys(payload, "signature", "signerPublicKey")
	if err := VerifySignedRequest(preimage, signature, signerPublicKey, owner); err != nil {
		return nil, err
	}

	meta, err := d.store.GetVaultMetadata(vaultID, owner)
	if err != nil {
		return nil, err
	}
	return meta, nil
}

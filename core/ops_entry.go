package core

import "context"

// formatEntryIndex renders an *int selector for inclusion in a signing
// preimage (null sentinel when absent), matching spec §4.4's getEntry rule
// that the index selector participates in the signed payload even when
// absent.
func formatEntryIndex(i *int) Value {
	if i == nil {
		return nil
	}
	return int64(*i)
}

func entryIndexSelector(p Payload) (*int, error) {
	n, ok := getNumber(p, "entryIndex")
	if !ok {
		return nil, nil
	}
	i := int(n)
	if float64(i) != n {
		return nil, newErr(ErrInvalidInput, "entryIndex must be an integer")
	}
	return &i, nil
}

func validateEntryMetadata(p Payload) (EntryMetadata, error) {
	m, ok := getMapValue(p, "entryMetadata")
	if !ok {
		return EntryMetadata{}, newErr(ErrInvalidMetadata, "entryMetadata is required")
	}
	service, err := requireString(m, "service")
	if err != nil {
		return EntryMetadata{}, newErr(ErrInvalidMetadata, "entryMetadata.service is required")
	}
	em := EntryMetadata{Service: service}
	if username, ok := getString(m, "username"); ok {
		em.Username = &username
	}
	if notes, ok := getString(m, "notes"); ok {
		em.Notes = &notes
	}
	return em, nil
}

func validateWrappedKeys(p Payload) ([]WrappedKey, error) {
	raw, ok := getSlice(p, "wrappedKeys")
	if !ok {
		return nil, newErr(ErrInvalidInput, "wrappedKeys is required")
	}
	if len(raw) > 200 {
		return nil, newErr(ErrInvalidInput, "wrappedKeys may not exceed 200 entries")
	}
	out := make([]WrappedKey, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]Value)
		if !ok {
			return nil, newErr(ErrInvalidInput, "wrappedKeys entries must be objects")
		}
		address, err := requireString(m, "address")
		if err != nil || !ValidAddress(address) {
			return nil, newErr(ErrInvalidAddress, "wrappedKeys entry has an invalid address")
		}
		encryptedKey, err := requireString(m, "encryptedKey")
		if err != nil {
			return nil, newErr(ErrInvalidInput, "wrappedKeys entry is missing encryptedKey")
		}
		if !ValidBase64(encryptedKey) {
			return nil, newErr(ErrInvalidInput, "wrappedKeys entry's encryptedKey must be base64")
		}
		out = append(out, WrappedKey{Address: address, EncryptedKey: encryptedKey})
	}
	return out, nil
}

// wrappedKeysToValue reconstructs wrappedKeys in the shape a spec-compliant
// client submitted it, for inclusion in addEntry's signing preimage.
func wrappedKeysToValue(wrappedKeys []WrappedKey) []Value {
	out := make([]Value, len(wrappedKeys))
	for i, w := range wrappedKeys {
		out[i] = map[string]Value{"address": w.Address, "encryptedKey": w.EncryptedKey}
	}
	return out
}

func handleAddEntry(d *Dispatcher, payload Payload) (Value, error) {
	vaultID, err := requireString(payload, "vaultId")
	if err != nil {
		return nil, err
	}
	actor, err := requireString(payload, "actor")
	if err != nil {
		return nil, err
	}
	encryptedBlob, err := requireString(payload, "encryptedBlob")
	if err != nil {
		return nil, err
	}
	if !ValidBase64(encryptedBlob) {
		return nil, newErr(ErrInvalidInput, "encryptedBlob must be base64")
	}
	if DecodedBase64Len(encryptedBlob) > maxEncryptedBlobBytes {
		return nil, newErr(ErrInvalidInput, "encryptedBlob exceeds the maximum size")
	}
	cid, err := requireString(payload, "cid")
	if err != nil {
		return nil, err
	}
	if !ValidCID(cid) {
		return nil, newErr(ErrInvalidCid, "cid does not match the accepted CID grammar")
	}
	roundKey, err := requireRoundKey(payload)
	if err != nil {
		return nil, err
	}
	metadata, err := validateEntryMetadata(payload)
	if err != nil {
		return nil, err
	}
	wrappedKeys, err := validateWrappedKeys(payload)
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
		"vaultId":       vaultID,
		"actor":         actor,
		"encryptedBlob": encryptedBlob,
		"cid":           cid,
		"entryMetadata": metadata.toValue(),
		"wrappedKeys":   wrappedKeysToValue(wrappedKeys),
	}
	if err := VerifySignedRequest(preimage, signature, signerPublicKey, actor); err != nil {
		return nil, err
	}
	if err := d.enforceRateLimit(actor, roundKey); err != nil {
		return nil, err
	}

	vault, err := d.store.GetVault(vaultID)
	if err != nil {
		return nil, err
	}

	mint, err := d.tokens.Mint(context.Background(), "ipfs://"+cid, vault.Owner, actor, nil)
	if err != nil {
		return nil, err
	}

	v, _, err := d.store.AddEntry(vaultID, actor, cid, metadata, wrappedKeys, roundKey, mint.TokenID)
	if err != nil {
		return nil, err
	}

	return map[string]Value{
		"vaultId":   v.ID,
		"tokenId":   mint.TokenID,
		"cid":       cid,
		"createdAt": roundKey,
		"metadata":  metadata.toValue(),
		"mintMode":  mint.Mode,
	}, nil
}

func handleGetEntry(d *Dispatcher, payload Payload) (Value, error) {
	vaultID, err := requireString(payload, "vaultId")
	if err != nil {
		return nil, err
	}
	actor, err := requireString(payload, "actor")
	if err != nil {
		return nil, err
	}
	entryIndex, err := entryIndexSelector(payload)
	if err != nil {
		return nil, err
	}
	tokenID := optionalString(payload, "tokenId")
	if entryIndex == nil && tokenID == nil {
		return nil, newErr(ErrInvalidInput, "one of entryIndex or tokenId is required")
	}
	signature, err := requireString(payload, "signature")
	if err != nil {
		return nil, err
	}
	signerPublicKey, err := requireString(payload, "signerPublicKey")
	if err != nil {
		return nil, err
	}

	var tokenIDValue Value
	if tokenID != nil {
		tokenIDValue = *tokenID
	}
	preimage := map[string]Value{
		"vaultId":    vaultID,
		"actor":      actor,
		"entryIndex": formatEntryIndex(entryIndex),
		"tokenId":    tokenIDValue,
	}
	if err := VerifySignedRequest(preimage, signature, signerPublicKey, actor); err != nil {
		return nil, err
	}

	entry, err := d.store.GetEntry(vaultID, actor, entryIndex, tokenID)
	if err != nil {
		return nil, err
	}

	return map[string]Value{
		"cid":        entry.CID,
		"metadata":   entry.Metadata.toValue(),
		"gatewayUrl": d.cfg.GatewayBaseURL + "/ipfs/" + entry.CID,
	}, nil
}

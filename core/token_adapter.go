package core

import (
	"context"
	"encoding/hex"
)

// The Mode* values report how a TokenAdapter call was actually serviced,
// per spec §4.4's "Token Adapter (C4b)" table.
const (
	ModeSimulated        = "simulated"
	ModeSubmitted        = "submitted"
	ModeSimulatedFallback = "simulated_fallback"
)

// MintResult is the Token Adapter's mint() return value.
type MintResult struct {
	TokenID string
	Mode    string
	TxHash  string
}

// BurnResult is the Token Adapter's burn() return value.
type BurnResult struct {
	Mode   string
	TxHash string
}

// uriTokenMintType and uriTokenBurnType are the ledger's transaction type
// codes for a URI-token mint and burn, and burnableFlagBit the mint's
// burnable-flag bit, per spec §4.4.
const (
	uriTokenMintType  = "URITokenMint"
	uriTokenBurnType  = "URITokenBurn"
	burnableFlagBit   = 1 // bit 0
)

// TokenAdapter builds and submits URI-token mint/burn transactions,
// simulating a deterministic id whenever no ledger client or no signers
// are configured. Grounded on core/ipfs.go's "wrap an external gateway
// client, degrade cleanly when uninitialised" shape.
type TokenAdapter struct {
	client      LedgerClient
	multisigner Multisigner
	devFallback bool
}

// NewTokenAdapter wires a TokenAdapter against an optional ledger client.
// A nil client forces every call into simulation mode, which is also the
// mode used whenever the caller supplies no signers.
func NewTokenAdapter(client LedgerClient, multisigner Multisigner, devFallback bool) *TokenAdapter {
	return &TokenAdapter{client: client, multisigner: multisigner, devFallback: devFallback}
}

// simulatedTokenID computes SHA-256(issuer || ':' || owner || ':' || uri),
// per spec §4.4. owner may be empty.
func simulatedTokenID(issuer, owner, uri string) string {
	return DigestConcat(issuer, ":", owner, ":", uri)
}

// Mint builds (or simulates) a URI-token mint for uri, issued by issuer,
// optionally destined to owner, signed by signers.
func (t *TokenAdapter) Mint(ctx context.Context, uri, owner, issuer string, signers []Signer) (*MintResult, error) {
	if t.client == nil || len(signers) == 0 {
		return &MintResult{TokenID: simulatedTokenID(issuer, owner, uri), Mode: ModeSimulated}, nil
	}

	tx := LedgerTx{
		"TransactionType": uriTokenMintType,
		"Account":         issuer,
		"URI":             hex.EncodeToString([]byte(uri)),
		"Flags":           burnableFlagBit,
	}
	if owner != "" {
		tx["Destination"] = owner
	}

	res, err := t.submit(ctx, tx, signers)
	if err != nil {
		if t.devFallback {
			return &MintResult{TokenID: simulatedTokenID(issuer, owner, uri), Mode: ModeSimulatedFallback}, nil
		}
		return nil, newErr(ErrXrplSubmissionFailed, "mint submission failed: %v", err)
	}
	return &MintResult{TokenID: res.URITokenID, Mode: ModeSubmitted, TxHash: res.Hash}, nil
}

// Burn builds (or simulates) a URI-token burn for tokenID, issued by
// issuer, signed by signers.
func (t *TokenAdapter) Burn(ctx context.Context, tokenID, issuer string, signers []Signer) (*BurnResult, error) {
	if t.client == nil || len(signers) == 0 {
		return &BurnResult{Mode: ModeSimulated}, nil
	}

	tx := LedgerTx{
		"TransactionType": uriTokenBurnType,
		"Account":         issuer,
		"URITokenID":      tokenID,
	}

	res, err := t.submit(ctx, tx, signers)
	if err != nil {
		if t.devFallback {
			return &BurnResult{Mode: ModeSimulatedFallback}, nil
		}
		return nil, newErr(ErrXrplSubmissionFailed, "burn submission failed: %v", err)
	}
	return &BurnResult{Mode: ModeSubmitted, TxHash: res.Hash}, nil
}

func (t *TokenAdapter) submit(ctx context.Context, tx LedgerTx, signers []Signer) (*SubmitResult, error) {
	filled, err := t.client.Autofill(ctx, tx)
	if err != nil {
		return nil, err
	}

	blobs := make([]string, 0, len(signers))
	for _, s := range signers {
		blob, err := s.Sign(ctx, filled, len(signers) > 1)
		if err != nil {
			return nil, err
		}
		blobs = append(blobs, blob)
	}

	combined := blobs[0]
	if len(blobs) > 1 {
		if t.multisigner == nil {
			return nil, newErr(ErrUnexpectedError, "multiple signers supplied but no multisigner configured")
		}
		combined, err = t.multisigner.Multisign(ctx, blobs)
		if err != nil {
			return nil, err
		}
	}

	return t.client.SubmitAndWait(ctx, combined)
}

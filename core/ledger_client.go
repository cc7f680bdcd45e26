package core

import "context"

// LedgerTx is the minimal shape of a ledger transaction the adapter needs
// to build and submit, kept intentionally loose (map of field name to
// value) since the concrete ledger library is an external collaborator
// per spec §6 and the core must stay agnostic to its wire format.
type LedgerTx map[string]interface{}

// SubmitResult is the ledger client's response to a submitted transaction,
// per spec §6's "{result:{hash, meta:{uritoken_id}}}" shape.
type SubmitResult struct {
	Hash          string
	URITokenID    string
}

// LedgerClient is the external collaborator described by spec §6: a
// consensus-ledger client providing autofill, submit-and-wait, and account
// lookups. The core never implements this itself — production wiring
// plugs in whatever concrete ledger library the deployment uses.
type LedgerClient interface {
	Autofill(ctx context.Context, tx LedgerTx) (LedgerTx, error)
	SubmitAndWait(ctx context.Context, signedBlob string) (*SubmitResult, error)
	AccountInfo(ctx context.Context, account string) (map[string]interface{}, error)
}

// Signer is one multi-signing party, per spec §6's "per-signer objects
// exposing sign(tx, multi=true)".
type Signer interface {
	Sign(ctx context.Context, tx LedgerTx, multi bool) (blob string, err error)
}

// Multisign combines per-signer blobs into one submittable transaction
// blob, per spec §6's "multisign(blobs) => combined_blob" collaborator
// function.
type Multisigner interface {
	Multisign(ctx context.Context, blobs []string) (combined string, err error)
}

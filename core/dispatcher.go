package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request is a decoded incoming operation, per spec §6: {type, payload}.
type Request struct {
	Type    string
	Payload Payload
}

// Response is the outer wire envelope, per spec §6: either
// {ok:true, operation, data} or {ok:false, error, code, errorId}.
type Response struct {
	OK        bool
	Operation string
	Data      Value
	Error     string
	Code      ErrorCode
	ErrorID   string
}

// opHandler implements one operation kind's full contract: payload
// validation, signature verification, rate limiting, authorization, store
// mutation, token adapter calls — everything in spec §4.4's per-operation
// table except persistence and audit, which the Dispatcher wraps around
// every handler uniformly.
type opHandler func(d *Dispatcher, payload Payload) (Value, error)

// Dispatcher is the C4 Operation Dispatcher. It owns the store, the rate
// limiter, the token adapter, the audit sink and the metrics set as
// explicit fields (per spec §9's "express them as explicit owned values
// held by the dispatcher, never as ambient globals" design note) rather
// than as package-level globals.
type Dispatcher struct {
	store     *Store
	limiter   *RateLimiter
	tokens    *TokenAdapter
	audit     *AuditSink
	metrics   *Metrics
	cfg       Config
	statePath string
	handlers  map[string]opHandler
}

// NewDispatcher wires a Dispatcher over an already-loaded store. cfg's
// StatePath governs where Persist() writes; pass the store returned by
// LoadStore to resume from disk, or NewStore() to start empty.
func NewDispatcher(store *Store, tokens *TokenAdapter, audit *AuditSink, metrics *Metrics, cfg Config) *Dispatcher {
	d := &Dispatcher{
		store:     store,
		limiter:   NewRateLimiter(cfg.RateLimitPerRound),
		tokens:    tokens,
		audit:     audit,
		metrics:   metrics,
		cfg:       cfg,
		statePath: cfg.StatePath,
	}
	d.handlers = map[string]opHandler{
		"createVault":         handleCreateVault,
		"createTeamVault":     handleCreateTeamVault,
		"addEntry":            handleAddEntry,
		"getEntry":            handleGetEntry,
		"getMyVaults":         handleGetMyVaults,
		"inviteToVault":       handleInviteToVault,
		"acceptInvite":        handleAcceptInvite,
		"revokeInvite":        handleRevokeInvite,
		"removeMember":        handleRemoveMember,
		"getPendingInvites":   handleGetPendingInvites,
		"updateVaultManifest": handleUpdateVaultManifest,
		"listVaultURITokens":  handleListVaultURITokens,
		"revokeVault":         handleRevokeVault,
		"stateDigest":         handleStateDigest,
		"addPasswordBackup":   handleAddPasswordBackup,
		"removePasswordBackup": handleRemovePasswordBackup,
		"getVaultMetadata":    handleGetVaultMetadata,
	}
	return d
}

// mutatingOps lists operation kinds subject to the per-round rate limit
// (spec §4.4: "for every mutating operation"). Reads (getMyVaults,
// getEntry, getPendingInvites, listVaultURITokens, stateDigest,
// getVaultMetadata) are exempt.
var mutatingOps = map[string]bool{
	"createVault":           true,
	"createTeamVault":       true,
	"addEntry":              true,
	"inviteToVault":         true,
	"acceptInvite":          true,
	"revokeInvite":          true,
	"removeMember":          true,
	"updateVaultManifest":   true,
	"revokeVault":           true,
	"addPasswordBackup":     true,
	"removePasswordBackup":  true,
}

// HandleOperation is the single entry point the runtime adapter calls for
// every parsed request. It resolves the handler, runs it, converts any
// error to the wire failure envelope, persists on success, and always
// emits an audit record — mirroring spec §7's propagation policy exactly.
func (d *Dispatcher) HandleOperation(req Request) Response {
	reqID := NewCorrelationID()
	at := time.Now().UTC().Format(time.RFC3339Nano)

	handler, ok := d.handlers[req.Type]
	if !ok {
		ce := newErr(ErrUnknownOperation, "unknown operation %q", req.Type)
		return d.fail(req.Type, ce, at, reqID)
	}

	data, err := safeInvoke(d, handler, req.Payload)
	if err != nil {
		ce := AsContractError(err)
		if d.metrics != nil {
			d.metrics.ObserveFailure(req.Type, ce.Code)
		}
		return d.fail(req.Type, ce, at, reqID)
	}

	if err := d.Persist(); err != nil {
		ce := newErr(ErrUnexpectedError, "persist after %s: %v", req.Type, err)
		if d.metrics != nil {
			d.metrics.ObserveFailure(req.Type, ce.Code)
		}
		return d.fail(req.Type, ce, at, reqID)
	}

	if d.metrics != nil {
		d.metrics.ObserveSuccess(req.Type)
		d.metrics.SetVaultCount(d.store.Size())
	}
	if d.audit != nil {
		d.audit.Record(AuditRecord{At: at, ReqID: reqID, Event: req.Type, Success: true})
	}
	return Response{OK: true, Operation: req.Type, Data: data}
}

// safeInvoke recovers a panic inside a handler (e.g. a CanonicalBytes
// programming-error panic) and turns it into an UnexpectedError, so a bug
// in one handler can never crash the replica process — spec §4.1's
// "fatal, programming-error kind" is fatal to the operation, not the node.
func safeInvoke(d *Dispatcher, h opHandler, payload Payload) (data Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newErr(ErrUnexpectedError, "handler panicked: %v", r)
		}
	}()
	return h(d, payload)
}

func (d *Dispatcher) fail(operation string, ce *ContractError, at, reqID string) Response {
	errorID := ErrorID(ce.Code, ce.Message)
	if d.audit != nil {
		d.audit.Record(AuditRecord{
			At: at, ReqID: reqID, Event: operation, Success: false,
			Code: string(ce.Code), ErrorID: errorID,
		})
	}
	return Response{OK: false, Operation: operation, Error: ce.Message, Code: ce.Code, ErrorID: errorID}
}

// Persist writes the current store state to the configured state path.
func (d *Dispatcher) Persist() error {
	if d.statePath == "" {
		return nil
	}
	return SaveStore(d.statePath, d.store)
}

// MetricsRegistry exposes the dispatcher's Prometheus registry so the
// admin HTTP surface can serve it directly, without the core depending on
// net/http itself.
func (d *Dispatcher) MetricsRegistry() *prometheus.Registry {
	return d.metrics.Registry
}

// enforceRateLimit applies spec §4.4's per-round mutation cap for
// mutating operations. roundKey is the caller-supplied opaque round
// identifier (spec glossary: "Round key").
func (d *Dispatcher) enforceRateLimit(owner, roundKey string) error {
	return d.limiter.Enforce(owner, roundKey)
}

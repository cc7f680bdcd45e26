package core

import (
	"math"
	"sort"
	"strconv"
	"sync"
)

// VaultType distinguishes the individual and team vault kinds of spec §3.
type VaultType string

const (
	VaultIndividual VaultType = "individual"
	VaultTeam       VaultType = "team"
)

// WrappedKey is one team-member's ECDH-wrapped copy of an entry's content
// key (spec §3 Entry.wrappedKeys). The core never inspects encryptedKey's
// contents, only its base64 shape.
type WrappedKey struct {
	Address      string `json:"address"`
	EncryptedKey string `json:"encryptedKey"`
}

// EntryMetadata is an entry's structurally-validated, non-secret metadata.
// Username/Notes model spec's "unset optionals stored as the null
// sentinel" rule as Go nil pointers.
type EntryMetadata struct {
	Service  string  `json:"service"`
	Username *string `json:"username"`
	Notes    *string `json:"notes"`
}

func (m EntryMetadata) toValue() Value {
	out := map[string]Value{"service": m.Service}
	if m.Username != nil {
		out["username"] = *m.Username
	} else {
		out["username"] = nil
	}
	if m.Notes != nil {
		out["notes"] = *m.Notes
	} else {
		out["notes"] = nil
	}
	return out
}

// Entry is one vault secret reference (spec §3 "Entry"). The ciphertext
// itself is never persisted here — only its content-addressed reference.
type Entry struct {
	TokenID     string        `json:"tokenId"`
	CID         string        `json:"cid"`
	Metadata    EntryMetadata `json:"metadata"`
	WrappedKeys []WrappedKey  `json:"wrappedKeys"`
	CreatedAt   string        `json:"createdAt"`
}

func (e Entry) toValue() Value {
	wk := make([]Value, len(e.WrappedKeys))
	for i, w := range e.WrappedKeys {
		wk[i] = map[string]Value{"address": w.Address, "encryptedKey": w.EncryptedKey}
	}
	return map[string]Value{
		"tokenId":     e.TokenID,
		"cid":         e.CID,
		"metadata":    e.Metadata.toValue(),
		"wrappedKeys": wk,
		"createdAt":   roundKeyValue(e.CreatedAt),
	}
}

// PendingInvite is one outstanding team-vault invitation (spec §3).
type PendingInvite struct {
	Address   string `json:"address"`
	InvitedBy string `json:"invitedBy"`
	InvitedAt string `json:"invitedAt"`
}

func (p PendingInvite) toValue() Value {
	return map[string]Value{
		"address":   p.Address,
		"invitedBy": p.InvitedBy,
		"invitedAt": roundKeyValue(p.InvitedAt),
	}
}

// Vault is the root aggregate of spec §3. ID/Owner/Salt are immutable for
// the life of the record (invariant 4).
type Vault struct {
	ID              string          `json:"id"`
	Type            VaultType       `json:"type"`
	Owner           string          `json:"owner"`
	Salt            string          `json:"salt"`
	CreatedAt       string          `json:"createdAt"`
	Metadata        map[string]Value `json:"metadata"`
	ManifestTokenID string          `json:"manifestTokenId"`
	Authorized      []string        `json:"authorized"`
	PendingInvites  []PendingInvite `json:"pendingInvites"`
	Entries         []Entry         `json:"entries"`
}

func (v *Vault) toValue() Value {
	auth := make([]Value, len(v.Authorized))
	for i, a := range v.Authorized {
		auth[i] = a
	}
	invites := make([]Value, len(v.PendingInvites))
	for i, p := range v.PendingInvites {
		invites[i] = p.toValue()
	}
	entries := make([]Value, len(v.Entries))
	for i, e := range v.Entries {
		entries[i] = e.toValue()
	}
	meta := make(map[string]Value, len(v.Metadata))
	for k, val := range v.Metadata {
		meta[k] = val
	}
	return map[string]Value{
		"id":              v.ID,
		"type":            string(v.Type),
		"owner":           v.Owner,
		"salt":            v.Salt,
		"createdAt":       roundKeyValue(v.CreatedAt),
		"metadata":        meta,
		"manifestTokenId": v.ManifestTokenID,
		"authorized":      auth,
		"pendingInvites":  invites,
		"entries":         entries,
	}
}

// deepCopy returns an independent copy of v, used by Snapshot so callers
// can never mutate store-owned state through an aliased slice/map.
func (v *Vault) deepCopy() *Vault {
	cp := *v
	cp.Authorized = append([]string(nil), v.Authorized...)
	cp.PendingInvites = append([]PendingInvite(nil), v.PendingInvites...)
	cp.Entries = make([]Entry, len(v.Entries))
	for i, e := range v.Entries {
		e.WrappedKeys = append([]WrappedKey(nil), e.WrappedKeys...)
		cp.Entries[i] = e
	}
	cp.Metadata = make(map[string]Value, len(v.Metadata))
	for k, val := range v.Metadata {
		cp.Metadata[k] = val
	}
	return &cp
}

// roundKeyValue renders an opaque round key as a Value for the canonical
// state serialization: a number when it parses as one, else the bare
// string. getMyVaults' sort does not use it; see roundKeyGreater.
func roundKeyValue(rk string) Value {
	if n, err := strconv.ParseInt(rk, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(rk, 64); err == nil {
		return f
	}
	return rk
}

// VaultSummary is the projection returned by getMyVaults (spec §4.3/§4.4).
type VaultSummary struct {
	VaultID         string
	Type            VaultType
	Owner           string
	CreatedAt       string
	EntryCount      int
	ManifestTokenID string
	LastActivity    *string
}

// Store is the in-memory C3 Vault State Store: a mutex-guarded map of
// vaults with mutators enforcing spec §3's invariants, modeled on
// core/ledger.go's mutex-guarded in-memory maps.
type Store struct {
	mu     sync.RWMutex
	vaults map[string]*Vault
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{vaults: make(map[string]*Vault)}
}

// Digest returns SHA-256 over the canonical serialization of the entire
// vaults map, per spec §3 invariant 7 and §4.3's digest() operation.
func (s *Store) Digest() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Digest(map[string]Value{"vaults": s.vaultsValueLocked()})
}

func (s *Store) vaultsValueLocked() Value {
	out := make(map[string]Value, len(s.vaults))
	for id, v := range s.vaults {
		out[id] = v.toValue()
	}
	return out
}

// Snapshot returns a deep copy of every vault, keyed by id.
func (s *Store) Snapshot() map[string]*Vault {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*Vault, len(s.vaults))
	for id, v := range s.vaults {
		out[id] = v.deepCopy()
	}
	return out
}

func dedupAppend(list []string, addr string) []string {
	for _, a := range list {
		if a == addr {
			return list
		}
	}
	return append(list, addr)
}

func contains(list []string, addr string) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}

// CreateVault inserts a new vault after computing its id. Fails with
// ErrVaultAlreadyExists if that id is already present (spec §4.3).
func (s *Store) CreateVault(owner, salt string, typ VaultType, metadata map[string]Value, createdAt, manifestTokenID string, initialAuthorized []string, pendingInvites []PendingInvite) (*Vault, error) {
	id := VaultID(owner, salt)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.vaults[id]; exists {
		return nil, newErr(ErrVaultAlreadyExists, "vault %s already exists", id)
	}

	authorized := []string{owner}
	for _, a := range initialAuthorized {
		authorized = dedupAppend(authorized, a)
	}

	v := &Vault{
		ID:              id,
		Type:            typ,
		Owner:           owner,
		Salt:            salt,
		CreatedAt:       createdAt,
		Metadata:        metadata,
		ManifestTokenID: manifestTokenID,
		Authorized:      authorized,
		PendingInvites:  append([]PendingInvite(nil), pendingInvites...),
		Entries:         []Entry{},
	}
	s.vaults[id] = v
	return v.deepCopy(), nil
}

func (s *Store) mustVault(vaultID string) (*Vault, error) {
	v, ok := s.vaults[vaultID]
	if !ok {
		return nil, newErr(ErrVaultNotFound, "vault %s not found", vaultID)
	}
	return v, nil
}

func canRead(v *Vault, actor string) bool {
	if v.Type == VaultIndividual {
		return actor == v.Owner
	}
	return contains(v.Authorized, actor)
}

func canWrite(v *Vault, actor string) bool {
	return canRead(v, actor)
}

// AddEntry appends an entry to vaultID if actor has write access.
func (s *Store) AddEntry(vaultID, actor, cid string, metadata EntryMetadata, wrappedKeys []WrappedKey, createdAt, tokenID string) (*Vault, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.mustVault(vaultID)
	if err != nil {
		return nil, 0, err
	}
	if !canWrite(v, actor) {
		return nil, 0, newErr(ErrUnauthorized, "actor %s cannot write to vault %s", actor, vaultID)
	}
	if v.Type == VaultIndividual && len(wrappedKeys) > 0 {
		return nil, 0, newErr(ErrInvalidVaultType, "individual vault entries may not carry wrappedKeys")
	}
	entry := Entry{
		TokenID:     tokenID,
		CID:         cid,
		Metadata:    metadata,
		WrappedKeys: append([]WrappedKey(nil), wrappedKeys...),
		CreatedAt:   createdAt,
	}
	v.Entries = append(v.Entries, entry)
	return v.deepCopy(), len(v.Entries) - 1, nil
}

// GetEntry resolves an entry by index (preferred when both selectors are
// given) or by token id, per spec §4.4's precedence rule.
func (s *Store) GetEntry(vaultID, actor string, entryIndex *int, tokenID *string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, err := s.mustVault(vaultID)
	if err != nil {
		return Entry{}, err
	}
	if !canRead(v, actor) {
		return Entry{}, newErr(ErrUnauthorized, "actor %s cannot read vault %s", actor, vaultID)
	}
	if entryIndex != nil {
		if *entryIndex < 0 || *entryIndex >= len(v.Entries) {
			return Entry{}, newErr(ErrEntryNotFound, "entry index %d out of range", *entryIndex)
		}
		return v.Entries[*entryIndex], nil
	}
	if tokenID != nil {
		for _, e := range v.Entries {
			if e.TokenID == *tokenID {
				return e, nil
			}
		}
		return Entry{}, newErr(ErrEntryNotFound, "no entry with token id %s", *tokenID)
	}
	return Entry{}, newErr(ErrEntryNotFound, "neither entryIndex nor tokenId supplied")
}

// GetMyVaults returns summaries for every vault owned by owner, optionally
// filtered to createdAt > since, sorted by createdAt descending (spec
// §4.3's numeric-else-string tie-break rule).
func (s *Store) GetMyVaults(owner string, since *string) []VaultSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []VaultSummary
	for _, v := range s.vaults {
		if v.Owner != owner {
			continue
		}
		if since != nil && !roundKeyGreater(v.CreatedAt, *since) {
			continue
		}
		out = append(out, summarize(v))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return roundKeyGreater(out[i].CreatedAt, out[j].CreatedAt)
	})
	return out
}

func summarize(v *Vault) VaultSummary {
	s := VaultSummary{
		VaultID:         v.ID,
		Type:            v.Type,
		Owner:           v.Owner,
		CreatedAt:       v.CreatedAt,
		EntryCount:      len(v.Entries),
		ManifestTokenID: v.ManifestTokenID,
	}
	if len(v.Entries) > 0 {
		last := v.Entries[len(v.Entries)-1].CreatedAt
		s.LastActivity = &last
	}
	return s
}

// roundKeyGreater compares two round keys numerically when both parse as
// finite numbers, else falls back to bytewise string comparison — spec
// §4.3's tie-break rule for getMyVaults' descending sort.
func roundKeyGreater(a, b string) bool {
	af, aok := parseFiniteFloat(a)
	bf, bok := parseFiniteFloat(b)
	if aok && bok {
		return af > bf
	}
	return a > b
}

func parseFiniteFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// AddPendingInvite adds invitee to vaultID's pendingInvites, enforcing
// invariants 2 and 3 (team-only, no duplicate, not already authorized).
func (s *Store) AddPendingInvite(vaultID, actor, invitee, invitedAt string) (*Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.mustVault(vaultID)
	if err != nil {
		return nil, err
	}
	if v.Type != VaultTeam {
		return nil, newErr(ErrInvalidVaultType, "vault %s is not a team vault", vaultID)
	}
	if actor != v.Owner {
		return nil, newErr(ErrUnauthorized, "only the owner may invite members")
	}
	if contains(v.Authorized, invitee) {
		return nil, newErr(ErrInviteAlreadyExists, "%s is already an authorized member", invitee)
	}
	for _, p := range v.PendingInvites {
		if p.Address == invitee {
			return nil, newErr(ErrInviteAlreadyExists, "invite for %s already pending", invitee)
		}
	}
	v.PendingInvites = append(v.PendingInvites, PendingInvite{Address: invitee, InvitedBy: actor, InvitedAt: invitedAt})
	return v.deepCopy(), nil
}

// AcceptPendingInvite moves actor from pendingInvites to authorized.
func (s *Store) AcceptPendingInvite(vaultID, actor string) (*Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.mustVault(vaultID)
	if err != nil {
		return nil, err
	}
	if v.Type != VaultTeam {
		return nil, newErr(ErrInvalidVaultType, "vault %s is not a team vault", vaultID)
	}
	if contains(v.Authorized, actor) {
		return nil, newErr(ErrInviteAlreadyAccepted, "%s is already authorized", actor)
	}
	idx := -1
	for i, p := range v.PendingInvites {
		if p.Address == actor {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, newErr(ErrInviteNotFound, "no pending invite for %s", actor)
	}
	v.PendingInvites = append(v.PendingInvites[:idx], v.PendingInvites[idx+1:]...)
	v.Authorized = dedupAppend(v.Authorized, actor)
	return v.deepCopy(), nil
}

// RevokePendingInvite removes a pending invite, owner-only.
func (s *Store) RevokePendingInvite(vaultID, actor, pendingAddress string) (*Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.mustVault(vaultID)
	if err != nil {
		return nil, err
	}
	if v.Type != VaultTeam {
		return nil, newErr(ErrInvalidVaultType, "vault %s is not a team vault", vaultID)
	}
	if actor != v.Owner {
		return nil, newErr(ErrUnauthorized, "only the owner may revoke invites")
	}
	idx := -1
	for i, p := range v.PendingInvites {
		if p.Address == pendingAddress {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, newErr(ErrInviteNotFound, "no pending invite for %s", pendingAddress)
	}
	v.PendingInvites = append(v.PendingInvites[:idx], v.PendingInvites[idx+1:]...)
	return v.deepCopy(), nil
}

// RemoveAuthorizedMember removes memberToRemove from authorized, owner-only,
// and refuses owner self-removal (invariant 6 / spec's InvalidOperation).
func (s *Store) RemoveAuthorizedMember(vaultID, actor, memberToRemove string) (*Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.mustVault(vaultID)
	if err != nil {
		return nil, err
	}
	if v.Type != VaultTeam {
		return nil, newErr(ErrInvalidVaultType, "vault %s is not a team vault", vaultID)
	}
	if actor != v.Owner {
		return nil, newErr(ErrUnauthorized, "only the owner may remove members")
	}
	if memberToRemove == v.Owner {
		return nil, newErr(ErrInvalidOperation, "owner cannot remove themselves")
	}
	idx := -1
	for i, a := range v.Authorized {
		if a == memberToRemove {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, newErr(ErrMemberNotFound, "%s is not an authorized member", memberToRemove)
	}
	v.Authorized = append(v.Authorized[:idx], v.Authorized[idx+1:]...)
	return v.deepCopy(), nil
}

// GetPendingInvites returns the owner-visible pending invite list.
func (s *Store) GetPendingInvites(vaultID, actor string) ([]PendingInvite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, err := s.mustVault(vaultID)
	if err != nil {
		return nil, err
	}
	if v.Type != VaultTeam {
		return nil, newErr(ErrInvalidVaultType, "vault %s is not a team vault", vaultID)
	}
	if actor != v.Owner {
		return nil, newErr(ErrUnauthorized, "only the owner may list pending invites")
	}
	return append([]PendingInvite(nil), v.PendingInvites...), nil
}

// SetPasswordBackup sets metadata.passwordBackup and bumps lastUpdated.
func (s *Store) SetPasswordBackup(vaultID, actor string, envelope map[string]Value, roundKey string) (*Vault, error) {
	return s.mutateOwnerMetadata(vaultID, actor, roundKey, func(meta map[string]Value) {
		meta["passwordBackup"] = envelope
	})
}

// ClearPasswordBackup removes metadata.passwordBackup and bumps lastUpdated.
func (s *Store) ClearPasswordBackup(vaultID, actor, roundKey string) (*Vault, error) {
	return s.mutateOwnerMetadata(vaultID, actor, roundKey, func(meta map[string]Value) {
		delete(meta, "passwordBackup")
	})
}

func (s *Store) mutateOwnerMetadata(vaultID, actor, roundKey string, mutate func(map[string]Value)) (*Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.mustVault(vaultID)
	if err != nil {
		return nil, err
	}
	if actor != v.Owner {
		return nil, newErr(ErrUnauthorized, "only the owner may modify vault metadata")
	}
	mutate(v.Metadata)
	v.Metadata["lastUpdated"] = roundKey
	return v.deepCopy(), nil
}

// GetVaultMetadata returns the raw stored metadata, owner-only. Per spec
// §9's design note, no field-level redaction is applied — callers are
// trusted with any embedded password-backup envelope.
func (s *Store) GetVaultMetadata(vaultID, actor string) (map[string]Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, err := s.mustVault(vaultID)
	if err != nil {
		return nil, err
	}
	if actor != v.Owner {
		return nil, newErr(ErrUnauthorized, "only the owner may read vault metadata")
	}
	out := make(map[string]Value, len(v.Metadata))
	for k, val := range v.Metadata {
		out[k] = val
	}
	return out, nil
}

// ListVaultURITokens returns the manifest token id followed by every
// non-empty entry token id, owner-only.
func (s *Store) ListVaultURITokens(vaultID, owner string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, err := s.mustVault(vaultID)
	if err != nil {
		return nil, err
	}
	if owner != v.Owner {
		return nil, newErr(ErrUnauthorized, "only the owner may list uri tokens")
	}
	out := []string{v.ManifestTokenID}
	for _, e := range v.Entries {
		if e.TokenID != "" {
			out = append(out, e.TokenID)
		}
	}
	return out, nil
}

// DeleteVault removes vaultID and every entry it held, owner-only.
func (s *Store) DeleteVault(vaultID, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.mustVault(vaultID)
	if err != nil {
		return err
	}
	if owner != v.Owner {
		return newErr(ErrUnauthorized, "only the owner may delete the vault")
	}
	delete(s.vaults, vaultID)
	return nil
}

// SetManifestTokenID updates a vault's manifest token id in place, used by
// updateVaultManifest's burn_remint path.
func (s *Store) SetManifestTokenID(vaultID, newTokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.mustVault(vaultID)
	if err != nil {
		return err
	}
	v.ManifestTokenID = newTokenID
	return nil
}

// GetVault returns a defensive copy of a vault by id, used internally by
// handlers that need the full record (e.g. revokeVault's token listing).
func (s *Store) GetVault(vaultID string) (*Vault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, err := s.mustVault(vaultID)
	if err != nil {
		return nil, err
	}
	return v.deepCopy(), nil
}

// Size reports the number of vaults currently stored, used by metrics.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vaults)
}

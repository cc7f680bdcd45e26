package core

import "testing"

func TestCreateVaultOwnerAlwaysAuthorized(t *testing.T) {
	s := NewStore()
	v, err := s.CreateVault("rOwner", "deadbeefdeadbeef", VaultIndividual, map[string]Value{}, "1", "tok1", nil, nil)
	if err != nil {
		t.Fatalf("CreateVault: %v", err)
	}
	if len(v.Authorized) != 1 || v.Authorized[0] != "rOwner" {
		t.Fatalf("owner must be in authorized set, got %v", v.Authorized)
	}
}

func TestCreateVaultRejectsDuplicateID(t *testing.T) {
	s := NewStore()
	if _, err := s.CreateVault("rOwner", "deadbeefdeadbeef", VaultIndividual, map[string]Value{}, "1", "tok1", nil, nil); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := s.CreateVault("rOwner", "deadbeefdeadbeef", VaultIndividual, map[string]Value{}, "2", "tok2", nil, nil)
	ce := AsContractError(err)
	if ce == nil || ce.Code != ErrVaultAlreadyExists {
		t.Fatalf("expected ErrVaultAlreadyExists, got %v", err)
	}
}

func TestAddEntryRequiresWriteAccess(t *testing.T) {
	s := NewStore()
	v, _ := s.CreateVault("rOwner", "deadbeefdeadbeef", VaultIndividual, map[string]Value{}, "1", "tok1", nil, nil)
	meta := EntryMetadata{Service: "example.com"}
	if _, _, err := s.AddEntry(v.ID, "rIntruder", "QmAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", meta, nil, "2", "tok2"); err == nil {
		t.Fatalf("expected unauthorized error for non-owner write to an individual vault")
	}
	if _, _, err := s.AddEntry(v.ID, "rOwner", "QmAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", meta, nil, "2", "tok2"); err != nil {
		t.Fatalf("owner write should succeed: %v", err)
	}
}

func TestAddEntryRejectsWrappedKeysOnIndividualVault(t *testing.T) {
	s := NewStore()
	v, _ := s.CreateVault("rOwner", "deadbeefdeadbeef", VaultIndividual, map[string]Value{}, "1", "tok1", nil, nil)
	meta := EntryMetadata{Service: "example.com"}
	wrapped := []WrappedKey{{Address: "rOwner", EncryptedKey: "aGVsbG8="}}
	_, _, err := s.AddEntry(v.ID, "rOwner", "QmAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", meta, wrapped, "2", "tok2")
	ce := AsContractError(err)
	if ce == nil || ce.Code != ErrInvalidVaultType {
		t.Fatalf("expected ErrInvalidVaultType for wrappedKeys on an individual vault, got %v", err)
	}
}

func TestGetEntryIndexTakesPrecedenceOverTokenID(t *testing.T) {
	s := NewStore()
	v, _ := s.CreateVault("rOwner", "deadbeefdeadbeef", VaultIndividual, map[string]Value{}, "1", "tok1", nil, nil)
	meta1 := EntryMetadata{Service: "first.example"}
	meta2 := EntryMetadata{Service: "second.example"}
	s.AddEntry(v.ID, "rOwner", "QmAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", meta1, nil, "2", "tokA")
	s.AddEntry(v.ID, "rOwner", "QmBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB", meta2, nil, "3", "tokB")

	idx := 0
	otherToken := "tokB"
	entry, err := s.GetEntry(v.ID, "rOwner", &idx, &otherToken)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if entry.Metadata.Service != "first.example" {
		t.Fatalf("entryIndex selector should win over tokenId, got %q", entry.Metadata.Service)
	}
}

func TestTeamVaultInviteAcceptLifecycle(t *testing.T) {
	s := NewStore()
	v, _ := s.CreateVault("rOwner", "deadbeefdeadbeef", VaultTeam, map[string]Value{}, "1", "tok1", nil, nil)

	if _, err := s.AddPendingInvite(v.ID, "rOwner", "rInvitee", "2"); err != nil {
		t.Fatalf("AddPendingInvite: %v", err)
	}
	if _, err := s.AddPendingInvite(v.ID, "rOwner", "rInvitee", "3"); err == nil {
		t.Fatalf("duplicate invite must be rejected")
	}
	v2, err := s.AcceptPendingInvite(v.ID, "rInvitee")
	if err != nil {
		t.Fatalf("AcceptPendingInvite: %v", err)
	}
	if !contains(v2.Authorized, "rInvitee") || len(v2.PendingInvites) != 0 {
		t.Fatalf("invitee should now be authorized with no pending invites left")
	}
}

func TestRemoveAuthorizedMemberBlocksOwnerSelfRemoval(t *testing.T) {
	s := NewStore()
	v, _ := s.CreateVault("rOwner", "deadbeefdeadbeef", VaultTeam, map[string]Value{}, "1", "tok1", []string{"rMember"}, nil)
	if _, err := s.RemoveAuthorizedMember(v.ID, "rOwner", "rOwner"); err == nil {
		t.Fatalf("owner must not be able to remove themselves")
	}
	if _, err := s.RemoveAuthorizedMember(v.ID, "rOwner", "rMember"); err != nil {
		t.Fatalf("owner removing another member should succeed: %v", err)
	}
}

func TestStoreDigestStableAcrossSnapshots(t *testing.T) {
	s := NewStore()
	s.CreateVault("rOwner", "deadbeefdeadbeef", VaultIndividual, map[string]Value{"a": 1}, "1", "tok1", nil, nil)
	d1 := s.Digest()
	d2 := s.Digest()
	if d1 != d2 {
		t.Fatalf("Digest must be a pure function of store contents")
	}
}

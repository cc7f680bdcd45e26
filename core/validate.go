package core

import (
	"encoding/base64"
	"regexp"
	"strings"

	gocid "github.com/ipfs/go-cid"
)

// ValidCID reports whether cid parses as a well-formed content identifier
// (CIDv0 base58btc or any CIDv1 multibase encoding), per spec §6's
// acceptance rule, bounded to 10-120 characters overall against abuse.
func ValidCID(cid string) bool {
	if len(cid) < 10 || len(cid) > 120 {
		return false
	}
	_, err := gocid.Decode(cid)
	return err == nil
}

var saltRe = regexp.MustCompile(`^[0-9a-fA-F]+$`)

// ValidSalt reports whether salt is an even-length hex string of
// 16-256 characters, per spec §3.
func ValidSalt(salt string) bool {
	if len(salt) < 16 || len(salt) > 256 || len(salt)%2 != 0 {
		return false
	}
	return saltRe.MatchString(salt)
}

// ValidBase64 reports whether s decodes as standard base64 and re-encodes
// to the same string modulo padding, the addEntry validation rule for
// encryptedBlob/encryptedKey (spec §4.4: "base64 ... round-trip equality
// mod padding").
func ValidBase64(s string) bool {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(s)
		if err != nil {
			return false
		}
	}
	return base64.RawStdEncoding.EncodeToString(raw) == strings.TrimRight(s, "=")
}

// DecodedBase64Len returns the decoded byte length of a base64 string that
// has already passed ValidBase64, used for the addEntry 1 MiB size check.
func DecodedBase64Len(s string) int {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		raw, _ = base64.RawStdEncoding.DecodeString(s)
	}
	return len(raw)
}

const maxEncryptedBlobBytes = 1 << 20 // 1 MiB

// ValidAddress reports whether addr has a plausible classic-address shape
// AND carries a valid checksum, per spec §6 ("validated by length 25-40 and
// by the ledger library's checksum routine"). Used for payload-shape
// validation of addresses that are not necessarily the signer (e.g. an
// invitee or wrapped-key recipient); a signer's own address is additionally
// re-derived from its public key during signature verification.
func ValidAddress(addr string) bool {
	return len(addr) >= 25 && len(addr) <= 40 && ValidAddressFormat(addr) && VerifyAddressChecksum(addr)
}

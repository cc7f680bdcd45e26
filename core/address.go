package core

import (
	"crypto/sha256"
	"regexp"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ripemd160"
)

// ledgerAlphabet is the base58 dictionary used by the ledger's classic
// address encoding. It differs from the Bitcoin alphabet (it starts
// accounts with 'r' rather than '1') which is why addresses look like
// "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh" rather than a BTC-style address.
const ledgerAlphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

var ledgerB58 = base58.NewAlphabet(ledgerAlphabet)

// addressFormatRe enforces the length bound of spec §6; the checksum
// routine below does the rest of the validation.
var addressFormatRe = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{25,40}$`)

const addressVersionByte byte = 0x00

// ValidAddressFormat reports whether s has a plausible classic-address
// shape (length + alphabet) without verifying its checksum.
func ValidAddressFormat(s string) bool {
	return addressFormatRe.MatchString(s)
}

// DeriveAddress computes the ledger classic address for a raw public key
// (already decoded from hex): version byte || RIPEMD160(SHA256(pubkey)),
// base58check-encoded with a 4-byte double-SHA256 checksum, per spec §4.2
// step 4 ("the ledger's standard double-hash + checksum scheme").
func DeriveAddress(pubKey []byte) string {
	shaSum := sha256.Sum256(pubKey)
	ripemd := ripemd160.New()
	ripemd.Write(shaSum[:])
	payload := append([]byte{addressVersionByte}, ripemd.Sum(nil)...)
	checksum := doubleSHA256(payload)[:4]
	full := append(payload, checksum...)
	return base58.EncodeAlphabet(full, ledgerB58)
}

// VerifyAddressChecksum decodes a classic address and reports whether its
// embedded checksum is valid, independent of any particular public key.
func VerifyAddressChecksum(addr string) bool {
	raw, err := base58.DecodeAlphabet(addr, ledgerB58)
	if err != nil || len(raw) < 5 {
		return false
	}
	payload, checksum := raw[:len(raw)-4], raw[len(raw)-4:]
	want := doubleSHA256(payload)[:4]
	for i := range checksum {
		if checksum[i] != want[i] {
			return false
		}
	}
	return true
}

func doubleSHA256(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

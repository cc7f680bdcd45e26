// Package core implements the XVault contract-side deterministic state
// machine: canonical payload hashing, signature verification, the vault
// state store, the operation dispatcher and the URI-token adapter.
package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Value is any structured value the canonical codec can serialize: nil,
// bool, a number (int64 or float64), string, an ordered sequence ([]any),
// or a mapping from string to Value (map[string]any). Any other dynamic
// type is a programming error.
type Value = interface{}

// CanonicalBytes renders v as the unique deterministic byte string defined
// by spec §4.1: JSON-literal primitives, "[e1,e2,...]" sequences with no
// extra separators, "{"k1":v1,...}" mappings with keys sorted by bytewise
// lexicographic order of their UTF-8 bytes, and no whitespace anywhere.
//
// CanonicalBytes panics on a producer-side error (non-string map key,
// NaN/Inf number, or an unsupported dynamic type) — callers at the
// dispatcher boundary must recover and translate to the UnexpectedError
// kind; this mirrors spec §4.1's "fatal, programming-error kind" rule.
func CanonicalBytes(v Value) []byte {
	buf := make([]byte, 0, 256)
	buf = appendCanonical(buf, v)
	return buf
}

func appendCanonical(buf []byte, v Value) []byte {
	switch t := v.(type) {
	case nil:
		return append(buf, "null"...)
	case bool:
		if t {
			return append(buf, "true"...)
		}
		return append(buf, "false"...)
	case string:
		return appendCanonicalString(buf, t)
	case int:
		return appendCanonicalInt(buf, int64(t))
	case int64:
		return appendCanonicalInt(buf, t)
	case float64:
		return appendCanonicalFloat(buf, t)
	case []Value:
		return appendCanonicalSeq(buf, t)
	case []string:
		seq := make([]Value, len(t))
		for i, s := range t {
			seq[i] = s
		}
		return appendCanonicalSeq(buf, seq)
	case map[string]Value:
		return appendCanonicalMap(buf, t)
	default:
		panic(fmt.Sprintf("codec: unsupported value type %T", v))
	}
}

func appendCanonicalString(buf []byte, s string) []byte {
	// json.Marshal of a bare string is the standard library's own JSON
	// string-escaping routine; reused here for the leaf-level primitive
	// rather than hand-rolled, same trick the teacher's ledger snapshot
	// encoder relies on for string output.
	b, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("codec: cannot encode string: %v", err))
	}
	return append(buf, b...)
}

func appendCanonicalInt(buf []byte, n int64) []byte {
	return strconv.AppendInt(buf, n, 10)
}

func appendCanonicalFloat(buf []byte, f float64) []byte {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		panic("codec: NaN/Infinity cannot be canonically encoded")
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.AppendInt(buf, int64(f), 10)
	}
	return strconv.AppendFloat(buf, f, 'g', -1, 64)
}

func appendCanonicalSeq(buf []byte, seq []Value) []byte {
	buf = append(buf, '[')
	for i, el := range seq {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendCanonical(buf, el)
	}
	buf = append(buf, ']')
	return buf
}

func appendCanonicalMap(buf []byte, m map[string]Value) []byte {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Go string comparison is bytewise over UTF-8, matching spec's rule
	buf = append(buf, '{')
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendCanonicalString(buf, k)
		buf = append(buf, ':')
		buf = appendCanonical(buf, m[k])
	}
	buf = append(buf, '}')
	return buf
}

// Digest returns the 64-character lowercase hex SHA-256 digest of v's
// canonical byte encoding. Used for signing preimages, the whole-state
// digest, and (via DigestConcat) the vault-id derivation.
func Digest(v Value) string {
	sum := sha256.Sum256(CanonicalBytes(v))
	return hex.EncodeToString(sum[:])
}

// DigestConcat hashes the literal concatenation of parts with no separator
// added beyond what the caller already included — used for the vault id,
// which spec §4.1 defines as SHA-256(owner + ":" + salt), NOT a
// canonical-encoded mapping.
func DigestConcat(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:])
}

// VaultID computes the deterministic vault identifier for (owner, salt).
func VaultID(owner, salt string) string {
	return DigestConcat(owner, ":", salt)
}

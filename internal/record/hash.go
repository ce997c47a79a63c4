package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainRow  = "maude/row/v1"
	DomainFile = "maude/file/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RowFingerprint computes the storage key of a row.
// The result depends on the kind and the set of (column, value) pairs, never
// on column order. Two rows that collapse to the same fingerprint are stored once.
func RowFingerprint(r Row) (string, error) {
	canonical, err := MarshalCanonical(r)
	if err != nil {
		return "", fmt.Errorf("RowFingerprint: %w", err)
	}
	return hashWithDomain(DomainRow, canonical), nil
}

// MustRowFingerprint is like RowFingerprint but panics on error.
// Use only in tests or when the row is known to be valid.
func MustRowFingerprint(r Row) string {
	fp, err := RowFingerprint(r)
	if err != nil {
		panic(err)
	}
	return fp
}

// FileFingerprint computes the ledger key of a source file from its raw bytes.
func FileFingerprint(data []byte) string {
	return hashWithDomain(DomainFile, data)
}

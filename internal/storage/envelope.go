// Package storage holds the pieces shared by the catalog.Store backends.
package storage

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"bookshelf/internal/catalog"
)

// ErrChecksumMismatch is returned when a sealed state does not match its digest.
var ErrChecksumMismatch = errors.New("state checksum mismatch")

// envelope keeps the state as a string so JSONB key reordering cannot
// change the bytes the checksum covers.
type envelope struct {
	State    string `json:"state"`
	Checksum string `json:"checksum"`
}

// Seal encodes st as JSON together with a blake2b-256 digest of the encoding.
func Seal(st catalog.State) ([]byte, error) {
	if st.Books == nil {
		st.Books = []catalog.Book{}
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return json.Marshal(envelope{State: string(raw), Checksum: checksum(string(raw))})
}

// Unseal verifies and decodes data produced by Seal. Genre codes go through
// catalog.Genre's decoder, so an out-of-range code fails here.
func Unseal(data []byte) (catalog.State, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return catalog.State{}, fmt.Errorf("decode envelope: %w", err)
	}

	if checksum(env.State) != env.Checksum {
		return catalog.State{}, ErrChecksumMismatch
	}

	var st catalog.State
	if err := json.Unmarshal([]byte(env.State), &st); err != nil {
		return catalog.State{}, fmt.Errorf("decode state: %w", err)
	}
	return st, nil
}

func checksum(state string) string {
	sum := blake2b.Sum256([]byte(state))
	return hex.EncodeToString(sum[:])
}

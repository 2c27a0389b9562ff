// Package storage defines the content-addressable store used to persist
// sealed genesis artifacts and identity-ledger snapshots.
package storage

import "github.com/ipfs/go-cid"

// CAS is a minimal content-addressable storage interface.
//
// Contract:
// - Put MUST be idempotent.
// - Stored objects MUST be immutable: a sealed artifact or ledger snapshot
//   can never be rewritten under the same CID.
// - CIDs MUST be derived from the bytes written (callers supply canonical bytes).
// - Get MUST return ErrNotFound when the CID is absent.
type CAS interface {
	Put(bytes []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}

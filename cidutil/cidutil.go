package cidutil

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// CIDv1RawSHA256CID returns a CIDv1 using the "raw" multicodec and a
// sha2-256 multihash. Sealed artifacts and ledger snapshots are keyed by
// this identifier.
func CIDv1RawSHA256CID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

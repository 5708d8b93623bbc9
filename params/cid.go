package params

import (
	"encoding/json"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Digest returns a CIDv1 (raw codec, sha2-256) of the canonical JSON
// encoding of p. The same parameters yield the same id regardless of
// the format or whitespace of the uploaded document.
func Digest(p *ModelParameters) (cid.Cid, error) {
	canonical, err := json.Marshal(p)
	if err != nil {
		return cid.Undef, fmt.Errorf("params: canonical encoding: %w", err)
	}
	sum, err := multihash.Sum(canonical, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("params: hash: %w", err)
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

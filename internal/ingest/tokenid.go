package ingest

import (
	"fmt"
	"hash/fnv"
	"strings"

	"poolSim/internal/model"
)

// positionTokenID derives a synthetic token id from a position's owner and
// tick range. V3 pool logs carry no position id, and the id must be stable
// across runs: a burn or collect ingested after a checkpoint resume has to
// land on the same position as its mint.
func positionTokenID(owner string, tickLower, tickUpper int32) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%d:%d", strings.ToLower(owner), tickLower, tickUpper)
	return h.Sum64()
}

// assignTokenID stamps mints, burns and collects of the same owner and tick
// range with one token id so the replayer can track the position across its
// lifecycle.
func assignTokenID(decoded interface{}) interface{} {
	switch data := decoded.(type) {
	case model.MintEventData:
		data.TokenID = positionTokenID(data.Owner, data.TickLower, data.TickUpper)
		return data
	case model.BurnEventData:
		data.TokenID = positionTokenID(data.Owner, data.TickLower, data.TickUpper)
		return data
	case model.CollectEventData:
		data.TokenID = positionTokenID(data.Owner, data.TickLower, data.TickUpper)
		return data
	default:
		return decoded
	}
}

package pebblestore

import "fmt"

// Key schema:
//
//	ord:<orderID>       -> OrderRecord (JSON)
//	oseq:<seq>          -> orderID, first-saved order
//	fill:<seq>          -> Fill (JSON)
//	snap:<snapshotID>   -> Snapshot (JSON)
//	meta:seq            -> last allocated sequence number
const (
	prefixOrder    = "ord:"
	prefixOrderSeq = "oseq:"
	prefixFill     = "fill:"
	prefixSnapshot = "snap:"
	keySeq         = "meta:seq"
)

func orderKey(id string) []byte { return []byte(prefixOrder + id) }

// Sequence numbers are zero padded so lexical order matches numeric order.
func orderSeqKey(seq uint64) []byte { return []byte(fmt.Sprintf("%s%020d", prefixOrderSeq, seq)) }

func fillKey(seq uint64) []byte { return []byte(fmt.Sprintf("%s%020d", prefixFill, seq)) }

func snapshotKey(id string) []byte { return []byte(prefixSnapshot + id) }

func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}

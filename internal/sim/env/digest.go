package env

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// stateDigest hashes everything a replay must reproduce: tick, agent
// placement, freeze state, inventories and cumulative rewards.
func (e *Env) stateDigest() string {
	h := sha256.New()
	var tmp [8]byte
	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(tmp[:], v)
		h.Write(tmp[:])
	}

	writeU64(e.tick)
	for i, a := range e.agents {
		loc := a.Loc()
		writeU64(uint64(loc.R))
		writeU64(uint64(loc.C))
		h.Write([]byte{byte(a.Orientation), a.Group})
		writeU64(uint64(a.Frozen))
		items := a.InventoryItems()
		writeU64(uint64(len(items)))
		for _, item := range items {
			h.Write([]byte{item})
			writeU64(uint64(a.Amount(item)))
		}
		writeU64(math.Float64bits(e.episodeRewards[i]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

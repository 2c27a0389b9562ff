// Package trajectory maintains the append-only, hash-chained sequence of
// state vectors that records every admitted transition of an identity.
package trajectory

import (
	"encoding/hex"
	"strconv"

	"golang.org/x/crypto/sha3"
)

const domainStateVector = "STATE_VECTOR"

// LatLon is a geographic position in decimal degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// StateVector is a snapshot of the system at one instant.
//
// PrevHash and SequenceID are assigned by the Trajectory on append; values
// supplied by the caller are overwritten.
type StateVector struct {
	SourceID    string            `json:"source_id"`
	Timestamp   float64           `json:"timestamp"`
	Location    *LatLon           `json:"location,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
	EntropyBits *float64          `json:"entropy_bits,omitempty"`
	PrevHash    string            `json:"prev_hash,omitempty"`
	SequenceID  int               `json:"sequence_id"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Hash computes the canonical SHA3-256 digest of the vector.
//
// Fields are folded in a fixed order under the STATE_VECTOR domain; optional
// fields carry a presence tag so that absent and zero values never collide.
func (v *StateVector) Hash() string {
	h := sha3.New256()
	h.Write([]byte(domainStateVector))
	h.Write([]byte(v.SourceID))
	h.Write([]byte(formatFloat(v.Timestamp)))
	if v.Location != nil {
		h.Write([]byte("LOC:" + formatFloat(v.Location.Lat) + "," + formatFloat(v.Location.Lon)))
	}
	if v.Temperature != nil {
		h.Write([]byte("TEMP:" + formatFloat(*v.Temperature)))
	}
	if v.EntropyBits != nil {
		h.Write([]byte("ENT:" + formatFloat(*v.EntropyBits)))
	}
	if v.PrevHash != "" {
		h.Write([]byte(v.PrevHash))
	}
	h.Write([]byte("SEQ_" + strconv.Itoa(v.SequenceID)))
	return hex.EncodeToString(h.Sum(nil))
}

// clone deep-copies the vector so stored history cannot be mutated through
// caller-held references.
func (v StateVector) clone() StateVector {
	out := v
	if v.Location != nil {
		loc := *v.Location
		out.Location = &loc
	}
	if v.Temperature != nil {
		t := *v.Temperature
		out.Temperature = &t
	}
	if v.EntropyBits != nil {
		e := *v.EntropyBits
		out.EntropyBits = &e
	}
	if v.Metadata != nil {
		meta := make(map[string]string, len(v.Metadata))
		for k, val := range v.Metadata {
			meta[k] = val
		}
		out.Metadata = meta
	}
	return out
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

package engine

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Snapshot is a deep copy of the episode state at one instant.
type Snapshot struct {
	TimeStep int     `json:"time_step" msgpack:"time_step"`
	Terminal bool    `json:"terminal" msgpack:"terminal"`
	Agents   []Agent `json:"agents" msgpack:"agents"`
}

// Observation is the record returned by Reset and Step. Prior is nil after
// Reset; Actions is indexed by agent id and nil after Reset.
type Observation struct {
	Prior   *Snapshot `json:"prior,omitempty" msgpack:"prior,omitempty"`
	Actions []Action  `json:"actions,omitempty" msgpack:"actions,omitempty"`
	Reward  float64   `json:"reward" msgpack:"reward"`
	Next    *Snapshot `json:"next,omitempty" msgpack:"next,omitempty"`
}

// Clone returns a copy sharing no memory with s.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Agents = make([]Agent, len(s.Agents))
	copy(out.Agents, s.Agents)
	return out
}

// appendBinary writes the canonical encoding used by Digest.
func (s Snapshot) appendBinary(b []byte) []byte {
	b = binary.AppendUvarint(b, uint64(s.TimeStep))
	b = appendBool(b, s.Terminal)
	b = binary.AppendUvarint(b, uint64(len(s.Agents)))
	for _, a := range s.Agents {
		b = binary.AppendUvarint(b, uint64(a.ID))
		b = append(b, byte(a.Group), byte(a.Mode), byte(a.LastAction))
		b = binary.AppendVarint(b, int64(a.Pos.X))
		b = binary.AppendVarint(b, int64(a.Pos.Y))
		b = appendBool(b, a.Placed)
		b = appendBool(b, a.Possession)
		b = appendBool(b, a.Available)
		b = binary.AppendUvarint(b, uint64(a.FrameSkip))
	}
	return b
}

func appendBool(b []byte, v bool) []byte {
	if v {
		return append(b, 1)
	}
	return append(b, 0)
}

// Digest returns the BLAKE2b-256 hash of the canonical encoding as hex. Equal
// states always produce equal digests.
func (s Snapshot) Digest() string {
	sum := blake2b.Sum256(s.appendBinary(nil))
	return hex.EncodeToString(sum[:])
}

func (s Snapshot) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "t=%d terminal=%v\n", s.TimeStep, s.Terminal)
	for _, a := range s.Agents {
		pos := "unset"
		if a.Placed {
			pos = a.Pos.String()
		}
		fmt.Fprintf(&b, "  #%d %-8s %-7s mode=%-9s last=%-5s", a.ID, a.Group, pos, a.Mode, a.LastAction)
		if a.Possession {
			b.WriteString(" ball")
		}
		if !a.Available {
			b.WriteString(" captured")
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Package infer reconstructs full device addresses from sniffed captures.
//
// A BD_ADDR is NAP (2 bytes), UAP (1 byte) and LAP (3 bytes). A capture of a
// connection's access code reveals the LAP, and the UAP can be recovered
// from packet checksums, but the NAP never appears on air. The organization
// prefix (NAP and UAP) is filled in from an OUI table instead.
package infer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/XC-/bluing"
	"github.com/XC-/bluing/oui"
)

var logger = log.WithField("pkg", "infer")

// Observation is one capture of a connection's lower address bytes.
type Observation struct {
	LAP    [3]byte // display order
	UAP    uint8
	HasUAP bool

	Time    time.Time
	Channel uint8
}

// Low renders the observed bytes, "99:4C:45:C3" or "4C:45:C3".
func (o Observation) Low() string {
	s := fmt.Sprintf("%02X:%02X:%02X", o.LAP[0], o.LAP[1], o.LAP[2])
	if o.HasUAP {
		return fmt.Sprintf("%02X:", o.UAP) + s
	}
	return s
}

// ParseObservation accepts the LAP, "4C:45:C3", or UAP and LAP,
// "99:4C:45:C3".
func ParseObservation(s string) (Observation, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 && len(parts) != 4 {
		return Observation{}, bluing.NewDecodeError(bluing.Invalid, 0, "observed address bytes %q", s)
	}
	b := make([]byte, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if len(p) != 2 || err != nil {
			return Observation{}, bluing.NewDecodeError(bluing.Invalid, 0, "observed address bytes %q", s)
		}
		b[i] = byte(v)
	}
	var o Observation
	if len(b) == 4 {
		o.UAP, o.HasUAP = b[0], true
		b = b[1:]
	}
	copy(o.LAP[:], b)
	return o, nil
}

// Group is the observations sharing the same lower address bytes: one
// logical target seen in several capture windows.
type Group struct {
	Observations []Observation
}

// Low renders the lower address bytes the group shares.
func (g Group) Low() string { return g.Observations[0].Low() }

// GroupCandidates is the inference result of one group.
type GroupCandidates struct {
	Group
	Candidates []bluing.BDAddr
}

// Engine completes observed addresses with the prefixes of organizations
// matching a name. The table is shared read-only.
type Engine struct {
	Table  *oui.Table
	Policy oui.Policy
}

func (e *Engine) table() *oui.Table {
	if e.Table == nil {
		return oui.Default()
	}
	return e.Table
}

// InferCandidates returns every address formed by the prefix of an
// organization matching org followed by the observed LAP, in table order and
// without duplicates. When the UAP was observed, prefixes ending in a
// different byte cannot be the target and are left out. No match yields an
// empty, non-nil list; addresses outside the table are never produced.
func (e *Engine) InferCandidates(obs Observation, org string) []bluing.BDAddr {
	cands := []bluing.BDAddr{}
	seen := make(map[bluing.BDAddr]bool)
	for _, ent := range e.table().Match(org, e.Policy) {
		if obs.HasUAP && byte(ent.Prefix) != obs.UAP {
			continue
		}
		a := bluing.BDAddr{
			byte(ent.Prefix >> 16), byte(ent.Prefix >> 8), byte(ent.Prefix),
			obs.LAP[0], obs.LAP[1], obs.LAP[2],
		}
		if seen[a] {
			continue
		}
		seen[a] = true
		cands = append(cands, a)
	}
	logger.WithFields(log.Fields{"low": obs.Low(), "org": org, "n": len(cands)}).Debug("inferred candidates")
	return cands
}

type groupKey struct {
	lap    [3]byte
	uap    uint8
	hasUAP bool
}

// Group coalesces observations by their lower address bytes, keeping the
// order in which each group was first seen.
func (e *Engine) Group(obs []Observation) []Group {
	idx := make(map[groupKey]int)
	var groups []Group
	for _, o := range obs {
		k := groupKey{lap: o.LAP, uap: o.UAP, hasUAP: o.HasUAP}
		if !o.HasUAP {
			k.uap = 0
		}
		i, ok := idx[k]
		if !ok {
			i = len(groups)
			idx[k] = i
			groups = append(groups, Group{})
		}
		groups[i].Observations = append(groups[i].Observations, o)
	}
	return groups
}

// InferGroups groups obs and infers one candidate list per group.
func (e *Engine) InferGroups(obs []Observation, org string) []GroupCandidates {
	res := []GroupCandidates{}
	for _, g := range e.Group(obs) {
		res = append(res, GroupCandidates{Group: g, Candidates: e.InferCandidates(g.Observations[0], org)})
	}
	return res
}

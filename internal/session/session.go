// Package session holds the in-memory model of one play session: profile,
// inventory, owned creatures, known stops, and currently visible spawns.
// State is mutated only by the Reducer, which runs synchronously after each
// gateway call, so readers never observe a half-applied response.
package session

import (
	"maps"
	"slices"

	"github.com/talgya/pokebot/internal/gateway"
	"github.com/talgya/pokebot/internal/geo"
	"github.com/talgya/pokebot/internal/pokedex"
)

// Creature is one owned or encountered specimen: the wire fields plus the
// attributes derived from the reference tables.
type Creature struct {
	gateway.CreatureData
	pokedex.Derived
}

// Profile is the player record, updated wholesale on each player-data or
// inventory response.
type Profile struct {
	gateway.PlayerData
	gateway.PlayerStats
}

// Session is the aggregate root for one play loop. It is exclusively owned
// by that loop; no concurrent mutation is permitted.
type Session struct {
	dex *pokedex.Pokedex

	Position geo.Coordinate
	Profile  Profile

	items      map[gateway.ItemID]int
	creatures  map[int][]*Creature // by species, descending MaxCP
	candy      map[int]int         // by family
	eggs       []*Creature
	incubators map[string]gateway.Incubator
	stops      map[string]gateway.Fort
	wild       []gateway.WildCreature
}

// New creates an empty session bound to the given reference data.
func New(dex *pokedex.Pokedex) *Session {
	return &Session{
		dex:        dex,
		items:      make(map[gateway.ItemID]int),
		creatures:  make(map[int][]*Creature),
		candy:      make(map[int]int),
		incubators: make(map[string]gateway.Incubator),
		stops:      make(map[string]gateway.Fort),
	}
}

// Dex returns the injected reference data.
func (s *Session) Dex() *pokedex.Pokedex { return s.dex }

// MoveTo updates the player position.
func (s *Session) MoveTo(c geo.Coordinate) { s.Position = c }

// ItemCount returns the held count of an item kind.
func (s *Session) ItemCount(id gateway.ItemID) int { return s.items[id] }

// Items returns a copy of the held item counts.
func (s *Session) Items() map[gateway.ItemID]int { return maps.Clone(s.items) }

// SetItem replaces the held count of an item kind. Counts are
// server-authoritative: replaced, never incremented.
func (s *Session) SetItem(id gateway.ItemID, count int) { s.items[id] = count }

// TotalItems returns the total held item count across all kinds.
func (s *Session) TotalItems() int {
	total := 0
	for _, n := range s.items {
		total += n
	}
	return total
}

// Candy returns the candy balance for a lineage.
func (s *Session) Candy(familyID int) int { return s.candy[familyID] }

// SetCandy replaces the candy balance for a lineage.
func (s *Session) SetCandy(familyID, n int) { s.candy[familyID] = n }

// NewCreature builds a Creature from wire data, deriving its attributes
// against the reference tables and the current trainer level.
func (s *Session) NewCreature(data gateway.CreatureData) (*Creature, error) {
	derived, err := s.dex.Derive(
		data.SpeciesID, data.IVAttack, data.IVDefense, data.IVStamina,
		data.CPMultiplier, data.ExtraCPM, float64(s.Profile.Level),
	)
	if err != nil {
		return nil, err
	}
	return &Creature{CreatureData: data, Derived: derived}, nil
}

// PutCreature inserts an owned creature, keeping its species collection
// ordered by descending MaxCP.
func (s *Session) PutCreature(c *Creature) {
	list := s.creatures[c.SpeciesID]
	idx, _ := slices.BinarySearchFunc(list, c, func(a, b *Creature) int {
		switch {
		case a.MaxCP > b.MaxCP:
			return -1
		case a.MaxCP < b.MaxCP:
			return 1
		}
		return 0
	})
	s.creatures[c.SpeciesID] = slices.Insert(list, idx, c)
}

// DropCreature removes one owned creature by identity. It reports whether
// the creature was present.
func (s *Session) DropCreature(id uint64) bool {
	for speciesID, list := range s.creatures {
		for i, c := range list {
			if c.ID == id {
				s.creatures[speciesID] = slices.Delete(list, i, i+1)
				return true
			}
		}
	}
	return false
}

// CreaturesOf returns the owned members of one species, strongest first.
// The slice is owned by the session; callers must not mutate it.
func (s *Session) CreaturesOf(speciesID int) []*Creature { return s.creatures[speciesID] }

// CreatureCount returns the number of owned creatures, excluding eggs.
func (s *Session) CreatureCount() int {
	total := 0
	for _, list := range s.creatures {
		total += len(list)
	}
	return total
}

// Lineages groups all owned creatures by lineage identity, each group
// ordered by descending MaxCP.
func (s *Session) Lineages() map[int][]*Creature {
	out := make(map[int][]*Creature)
	for speciesID, list := range s.creatures {
		family := s.dex.FamilyOf(speciesID)
		out[family] = append(out[family], list...)
	}
	for _, group := range out {
		slices.SortFunc(group, func(a, b *Creature) int {
			switch {
			case a.MaxCP > b.MaxCP:
				return -1
			case a.MaxCP < b.MaxCP:
				return 1
			}
			return 0
		})
	}
	return out
}

// Eggs returns the unhatched eggs, longest walk target first.
func (s *Session) Eggs() []*Creature { return s.eggs }

// PutEgg adds an unhatched egg, keeping the longest walk target first.
func (s *Session) PutEgg(c *Creature) {
	s.eggs = append(s.eggs, c)
	slices.SortFunc(s.eggs, func(a, b *Creature) int {
		switch {
		case a.EggKmTarget > b.EggKmTarget:
			return -1
		case a.EggKmTarget < b.EggKmTarget:
			return 1
		}
		return 0
	})
}

// PutIncubator registers or refreshes an incubator by identity.
func (s *Session) PutIncubator(inc gateway.Incubator) { s.incubators[inc.ID] = inc }

// Incubators returns the incubators keyed by identity.
func (s *Session) Incubators() map[string]gateway.Incubator { return s.incubators }

// Stops returns the known points of interest in stable key order.
func (s *Session) Stops() []gateway.Fort {
	keys := make([]string, 0, len(s.stops))
	for k := range s.stops {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]gateway.Fort, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.stops[k])
	}
	return out
}

// Wild returns the currently visible transient spawns.
func (s *Session) Wild() []gateway.WildCreature { return slices.Clone(s.wild) }

// putStop refreshes a point of interest by key.
func (s *Session) putStop(f gateway.Fort) { s.stops[f.ID] = f }

// resetInventory clears the inventory-derived sub-collections ahead of a
// full snapshot, so stale entries never accumulate across refreshes.
func (s *Session) resetInventory() {
	s.items = make(map[gateway.ItemID]int)
	s.creatures = make(map[int][]*Creature)
	s.candy = make(map[int]int)
	s.eggs = nil
	s.incubators = make(map[string]gateway.Incubator)
}

// clearWild drops the visible-spawn collection; a spawn absent from the
// next scan is gone.
func (s *Session) clearWild() { s.wild = nil }

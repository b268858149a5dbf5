// Package pokedex holds the immutable game reference data: species base
// stats, evolution chains, and the level multiplier and power-up cost
// tables. The data is loaded once at startup and injected read-only into
// the components that need it, so decision logic can be tested against
// synthetic tables.
package pokedex

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
)

// MaxLevel is the highest creature level the cost tables reach.
const MaxLevel = 40.0

// Species is one row of the species master table.
type Species struct {
	ID            int
	Identifier    string
	BaseAttack    int
	BaseDefense   int
	BaseStamina   int
	CandyToEvolve int
	EvolvesTo     int // species ID of next stage, 0 for final forms
	EvolvesFrom   int // species ID of previous stage, 0 for base forms
}

// PowerUpCost is the dust and candy price of one half-level power-up.
type PowerUpCost struct {
	Dust  int
	Candy int
}

// Pokedex is the assembled read-only reference data set.
type Pokedex struct {
	species map[int]Species
	byName  map[string]int
	cpm     map[float64]float64
	cost    map[float64]PowerUpCost
}

// New assembles a Pokedex from already-parsed tables. Used by tests and by
// the built-in demo data; production data comes from Load.
func New(species []Species, cpm map[float64]float64, cost map[float64]PowerUpCost) *Pokedex {
	d := &Pokedex{
		species: make(map[int]Species, len(species)),
		byName:  make(map[string]int, len(species)),
		cpm:     cpm,
		cost:    cost,
	}
	for _, s := range species {
		d.species[s.ID] = s
		d.byName[s.Identifier] = s.ID
	}
	return d
}

// Species returns the master-table row for a species ID.
func (d *Pokedex) Species(id int) (Species, bool) {
	s, ok := d.species[id]
	return s, ok
}

// SpeciesIDs returns every known species ID in ascending order.
func (d *Pokedex) SpeciesIDs() []int {
	ids := make([]int, 0, len(d.species))
	for id := range d.species {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// FamilyOf returns the lineage identity for a species: the base form at the
// root of its evolution chain. Candy is shared across the whole lineage.
func (d *Pokedex) FamilyOf(id int) int {
	seen := 0
	for {
		s, ok := d.species[id]
		if !ok || s.EvolvesFrom == 0 {
			return id
		}
		id = s.EvolvesFrom
		if seen++; seen > 8 {
			return id // malformed chain, refuse to loop
		}
	}
}

// FinalStage returns the last species in the evolution chain of id.
func (d *Pokedex) FinalStage(id int) int {
	seen := 0
	for {
		s, ok := d.species[id]
		if !ok || s.EvolvesTo == 0 {
			return id
		}
		id = s.EvolvesTo
		if seen++; seen > 8 {
			return id
		}
	}
}

// CandyToFinal sums the evolution candy cost from id to its final stage.
func (d *Pokedex) CandyToFinal(id int) int {
	total := 0
	seen := 0
	for {
		s, ok := d.species[id]
		if !ok || s.EvolvesTo == 0 {
			return total
		}
		total += s.CandyToEvolve
		id = s.EvolvesTo
		if seen++; seen > 8 {
			return total
		}
	}
}

// CPM returns the combat power multiplier at a level, or 0 if unknown.
func (d *Pokedex) CPM(level float64) float64 {
	return d.cpm[level]
}

// LevelForCPM finds the level whose multiplier matches cpm. The wire value
// is a float that round-trips imprecisely, so matching is by tolerance.
func (d *Pokedex) LevelForCPM(cpm float64) float64 {
	for lv, v := range d.cpm {
		if math.Abs(v-cpm) < 1e-4 {
			return lv
		}
	}
	return 0
}

// Derived holds the attributes computed for an owned or encountered
// creature from its raw wire fields and the reference tables.
type Derived struct {
	Level      float64
	MaxCP      float64 // theoretical CP at full investment with current IVs
	PerfectCP  float64 // CP at full investment with perfect IVs
	Percentile float64 // where MaxCP falls between the worst and perfect IV spread

	DustToCeiling  int // cost to reach the trainer's current power-up ceiling
	CandyToCeiling int
	DustToMax      int // cost to reach MaxLevel
	CandyToMax     int
}

// Derive computes the attributes for one creature. extraCPM is the bonus
// multiplier a powered-up creature carries on top of its level multiplier.
func (d *Pokedex) Derive(speciesID, ivAttack, ivDefense, ivStamina int, cpMultiplier, extraCPM, trainerLevel float64) (Derived, error) {
	s, ok := d.species[speciesID]
	if !ok {
		return Derived{}, fmt.Errorf("derive: unknown species %d", speciesID)
	}

	out := Derived{Level: d.LevelForCPM(cpMultiplier + extraCPM)}

	ba, bd, bs := float64(s.BaseAttack), float64(s.BaseDefense), float64(s.BaseStamina)
	ia, id, is := float64(ivAttack), float64(ivDefense), float64(ivStamina)
	topCPM := d.cpm[MaxLevel]

	out.MaxCP = (ba + ia) * math.Sqrt(bd+id) * math.Sqrt(bs+is) * topCPM * topCPM / 10
	out.PerfectCP = (ba + 15) * math.Sqrt(bd+15) * math.Sqrt(bs+15) * topCPM * topCPM / 10
	worst := ba * math.Sqrt(bd) * math.Sqrt(bs) * topCPM * topCPM / 10
	if out.PerfectCP > worst {
		out.Percentile = (out.MaxCP - worst) / (out.PerfectCP - worst)
	}

	// Power-up cost from the creature's level up to the trainer ceiling,
	// then on to the table maximum.
	ceiling := trainerLevel + 1.5
	if ceiling > MaxLevel {
		ceiling = MaxLevel
	}
	for lv := out.Level; lv < ceiling; lv += 0.5 {
		c := d.cost[lv]
		out.DustToCeiling += c.Dust
		out.CandyToCeiling += c.Candy
	}
	out.DustToMax = out.DustToCeiling
	out.CandyToMax = out.CandyToCeiling
	for lv := ceiling; lv < MaxLevel; lv += 0.5 {
		c := d.cost[lv]
		out.DustToMax += c.Dust
		out.CandyToMax += c.Candy
	}

	return out, nil
}

// Load reads the reference data from a directory holding the species master
// TSV and the two level tables, in the layout the upstream data dumps use:
//
//	species.tsv        PkMn / Identifier / Base* / CandyToEvolve / Evolves*
//	level-to-cpm.json  {"1": 0.094, "1.5": 0.135, ...}
//	level-to-dust.json {"1": [200, 1], ...}
func Load(dir string) (*Pokedex, error) {
	species, err := loadSpecies(filepath.Join(dir, "species.tsv"))
	if err != nil {
		return nil, err
	}

	cpm, err := loadLevelFloats(filepath.Join(dir, "level-to-cpm.json"))
	if err != nil {
		return nil, err
	}

	cost, err := loadLevelCosts(filepath.Join(dir, "level-to-dust.json"))
	if err != nil {
		return nil, err
	}

	return New(species, cpm, cost), nil
}

func loadSpecies(path string) ([]Species, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open species table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse species table: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("species table %s is empty", path)
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[name] = i
	}
	for _, want := range []string{"PkMn", "Identifier", "BaseAttack", "BaseDefense", "BaseStamina", "CandyToEvolve", "EvolvesTo", "EvolvesFrom"} {
		if _, ok := col[want]; !ok {
			return nil, fmt.Errorf("species table missing column %q", want)
		}
	}

	field := func(row []string, name string) string { return row[col[name]] }
	num := func(row []string, name string) int {
		n, _ := strconv.Atoi(field(row, name))
		return n
	}

	// Two passes: the Evolves* columns reference species by identifier.
	byName := make(map[string]int, len(rows)-1)
	for _, row := range rows[1:] {
		byName[field(row, "Identifier")] = num(row, "PkMn")
	}

	out := make([]Species, 0, len(rows)-1)
	for _, row := range rows[1:] {
		out = append(out, Species{
			ID:            num(row, "PkMn"),
			Identifier:    field(row, "Identifier"),
			BaseAttack:    num(row, "BaseAttack"),
			BaseDefense:   num(row, "BaseDefense"),
			BaseStamina:   num(row, "BaseStamina"),
			CandyToEvolve: num(row, "CandyToEvolve"),
			EvolvesTo:     byName[field(row, "EvolvesTo")],
			EvolvesFrom:   byName[field(row, "EvolvesFrom")],
		})
	}
	return out, nil
}

func loadLevelFloats(path string) (map[float64]float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var byKey map[string]float64
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	out := make(map[float64]float64, len(byKey))
	for k, v := range byKey {
		lv, err := strconv.ParseFloat(k, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s: level key %q: %w", path, k, err)
		}
		out[lv] = v
	}
	return out, nil
}

func loadLevelCosts(path string) (map[float64]PowerUpCost, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var byKey map[string][2]int
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	out := make(map[float64]PowerUpCost, len(byKey))
	for k, v := range byKey {
		lv, err := strconv.ParseFloat(k, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s: level key %q: %w", path, k, err)
		}
		out[lv] = PowerUpCost{Dust: v[0], Candy: v[1]}
	}
	return out, nil
}

package pokedex

import "math"

// Demo returns a compact built-in data set covering a handful of lineages.
// It backs the simulated gateway and the probe command so offline runs need
// no data directory. The multiplier curve is an approximation of the
// published table, monotonic and anchored at the real endpoints, which is
// all the offline decision logic depends on.
func Demo() *Pokedex {
	species := []Species{
		{ID: 1, Identifier: "Bulbasaur", BaseAttack: 118, BaseDefense: 111, BaseStamina: 128, CandyToEvolve: 25, EvolvesTo: 2},
		{ID: 2, Identifier: "Ivysaur", BaseAttack: 151, BaseDefense: 143, BaseStamina: 155, CandyToEvolve: 100, EvolvesTo: 3, EvolvesFrom: 1},
		{ID: 3, Identifier: "Venusaur", BaseAttack: 198, BaseDefense: 189, BaseStamina: 190, EvolvesFrom: 2},
		{ID: 4, Identifier: "Charmander", BaseAttack: 116, BaseDefense: 93, BaseStamina: 118, CandyToEvolve: 25, EvolvesTo: 5},
		{ID: 5, Identifier: "Charmeleon", BaseAttack: 158, BaseDefense: 126, BaseStamina: 151, CandyToEvolve: 100, EvolvesTo: 6, EvolvesFrom: 4},
		{ID: 6, Identifier: "Charizard", BaseAttack: 223, BaseDefense: 173, BaseStamina: 186, EvolvesFrom: 5},
		{ID: 10, Identifier: "Caterpie", BaseAttack: 55, BaseDefense: 55, BaseStamina: 128, CandyToEvolve: 12, EvolvesTo: 11},
		{ID: 11, Identifier: "Metapod", BaseAttack: 45, BaseDefense: 80, BaseStamina: 137, CandyToEvolve: 50, EvolvesTo: 12, EvolvesFrom: 10},
		{ID: 12, Identifier: "Butterfree", BaseAttack: 167, BaseDefense: 137, BaseStamina: 155, EvolvesFrom: 11},
		{ID: 16, Identifier: "Pidgey", BaseAttack: 85, BaseDefense: 73, BaseStamina: 120, CandyToEvolve: 12, EvolvesTo: 17},
		{ID: 17, Identifier: "Pidgeotto", BaseAttack: 117, BaseDefense: 105, BaseStamina: 160, CandyToEvolve: 50, EvolvesTo: 18, EvolvesFrom: 16},
		{ID: 18, Identifier: "Pidgeot", BaseAttack: 166, BaseDefense: 154, BaseStamina: 195, EvolvesFrom: 17},
		{ID: 19, Identifier: "Rattata", BaseAttack: 103, BaseDefense: 70, BaseStamina: 102, CandyToEvolve: 25, EvolvesTo: 20},
		{ID: 20, Identifier: "Raticate", BaseAttack: 161, BaseDefense: 139, BaseStamina: 146, EvolvesFrom: 19},
		{ID: 129, Identifier: "Magikarp", BaseAttack: 29, BaseDefense: 85, BaseStamina: 85, CandyToEvolve: 400, EvolvesTo: 130},
		{ID: 130, Identifier: "Gyarados", BaseAttack: 237, BaseDefense: 186, BaseStamina: 216, EvolvesFrom: 129},
		{ID: 133, Identifier: "Eevee", BaseAttack: 104, BaseDefense: 114, BaseStamina: 146, CandyToEvolve: 25, EvolvesTo: 134},
		{ID: 134, Identifier: "Vaporeon", BaseAttack: 205, BaseDefense: 161, BaseStamina: 277, EvolvesFrom: 133},
		{ID: 143, Identifier: "Snorlax", BaseAttack: 190, BaseDefense: 169, BaseStamina: 330},
		{ID: 149, Identifier: "Dragonite", BaseAttack: 263, BaseDefense: 198, BaseStamina: 209},
	}

	cpm := make(map[float64]float64, 79)
	cost := make(map[float64]PowerUpCost, 79)
	for lv := 1.0; lv <= MaxLevel; lv += 0.5 {
		// Anchored at the real level-1 and level-40 multipliers.
		cpm[lv] = 0.094 + (0.7903-0.094)*math.Sqrt((lv-1)/(MaxLevel-1))
		cost[lv] = PowerUpCost{
			Dust:  200 + 200*int((lv-1)/4),
			Candy: 1 + int(lv)/10,
		}
	}

	return New(species, cpm, cost)
}

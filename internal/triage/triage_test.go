package triage

import (
	"context"
	"errors"
	"testing"

	"github.com/talgya/pokebot/internal/gateway"
	"github.com/talgya/pokebot/internal/pokedex"
	"github.com/talgya/pokebot/internal/session"
)

func newSession() *session.Session {
	s := session.New(pokedex.Demo())
	s.Profile.Level = 25
	s.Profile.MaxItemStorage = 350
	s.Profile.MaxCreatureStorage = 250
	return s
}

func creature(id uint64, speciesID, cp int, level, maxCP float64) *session.Creature {
	c := &session.Creature{}
	c.ID = id
	c.SpeciesID = speciesID
	c.CP = cp
	c.Level = level
	c.MaxCP = maxCP
	return c
}

func planned(plan []gateway.RecycleItemRequest, id gateway.ItemID) int {
	for _, req := range plan {
		if req.ItemID == id {
			return req.Count
		}
	}
	return 0
}

func TestPlanDiscardsTrimsOverflowingTier(t *testing.T) {
	s := newSession()
	// usable = 300, ball budget = 100. The top tier alone overflows it.
	s.SetItem(gateway.ItemUltraBall, 120)

	plan := PlanDiscards(s)
	if got := planned(plan, gateway.ItemUltraBall); got != 20 {
		t.Errorf("ultra discard = %d, want 20", got)
	}
}

func TestPlanDiscardsDumpsLesserTiersAfterOverflow(t *testing.T) {
	s := newSession()
	s.SetItem(gateway.ItemMasterBall, 10)
	s.SetItem(gateway.ItemUltraBall, 120)
	s.SetItem(gateway.ItemGreatBall, 80)
	s.SetItem(gateway.ItemPokeBall, 200)

	plan := PlanDiscards(s)
	// Budget 100: master keeps 10, ultra keeps 90, everything below goes.
	if got := planned(plan, gateway.ItemMasterBall); got != 0 {
		t.Errorf("master discard = %d, want 0", got)
	}
	if got := planned(plan, gateway.ItemUltraBall); got != 30 {
		t.Errorf("ultra discard = %d, want 30", got)
	}
	if got := planned(plan, gateway.ItemGreatBall); got != 80 {
		t.Errorf("great discard = %d, want 80", got)
	}
	if got := planned(plan, gateway.ItemPokeBall); got != 200 {
		t.Errorf("base discard = %d, want 200", got)
	}
}

func TestPlanDiscardsCategoryBudgetsAreIndependent(t *testing.T) {
	s := newSession()
	s.SetItem(gateway.ItemPokeBall, 90)   // under 100
	s.SetItem(gateway.ItemMaxPotion, 110) // over 100
	s.SetItem(gateway.ItemRevive, 60)     // over 50
	s.SetItem(gateway.ItemRazzBerry, 40)  // under 50

	plan := PlanDiscards(s)
	if got := planned(plan, gateway.ItemPokeBall); got != 0 {
		t.Errorf("ball discard = %d, want 0", got)
	}
	if got := planned(plan, gateway.ItemMaxPotion); got != 10 {
		t.Errorf("potion discard = %d, want 10", got)
	}
	if got := planned(plan, gateway.ItemRevive); got != 10 {
		t.Errorf("revive discard = %d, want 10", got)
	}
	if got := planned(plan, gateway.ItemRazzBerry); got != 0 {
		t.Errorf("berry discard = %d, want 0", got)
	}
}

func TestPlanDiscardsNothingUnderBudget(t *testing.T) {
	s := newSession()
	s.SetItem(gateway.ItemPokeBall, 50)
	s.SetItem(gateway.ItemPotion, 50)
	if plan := PlanDiscards(s); len(plan) != 0 {
		t.Errorf("plan = %v, want empty", plan)
	}
}

func TestPlanRosterKeepsBestAndMatureAndRetained(t *testing.T) {
	s := newSession()
	// One lineage: best MaxCP, a mature mid specimen, a high-CP specimen,
	// and two strays.
	s.PutCreature(creature(1, 16, 400, 15, 900))  // best, kept
	s.PutCreature(creature(2, 16, 300, 22, 700))  // mature, kept
	s.PutCreature(creature(3, 17, 2600, 18, 850)) // above retention CP, kept
	s.PutCreature(creature(4, 16, 120, 10, 300))  // released
	s.PutCreature(creature(5, 17, 200, 12, 500))  // released

	plan := PlanRoster(s, DefaultPolicy())
	if len(plan.Releases) != 2 {
		t.Fatalf("releases = %d, want 2", len(plan.Releases))
	}
	released := map[uint64]bool{plan.Releases[0].ID: true, plan.Releases[1].ID: true}
	if !released[4] || !released[5] {
		t.Errorf("released ids = %v, want {4, 5}", released)
	}
}

func TestPlanRosterSingletonLineageIsKept(t *testing.T) {
	s := newSession()
	s.PutCreature(creature(1, 19, 80, 5, 200))

	plan := PlanRoster(s, DefaultPolicy())
	if len(plan.Releases) != 0 {
		t.Errorf("releases = %v, want none for a lone specimen", plan.Releases)
	}
}

func TestPlanRosterPromotesBestFirstWithinBudget(t *testing.T) {
	s := newSession()
	// Pidgey line: base stage costs 12 candy to promote.
	s.PutCreature(creature(1, 16, 340, 22, 800)) // best and mature
	s.PutCreature(creature(2, 16, 200, 10, 500)) // released
	s.PutCreature(creature(3, 16, 120, 8, 300))  // released
	s.SetCandy(16, 25)

	plan := PlanRoster(s, DefaultPolicy())
	if len(plan.Promotions) != 1 || plan.Promotions[0].ID != 1 {
		t.Fatalf("promotions = %v, want only the keeper", plan.Promotions)
	}
	if len(plan.Releases) != 2 {
		t.Errorf("releases = %d, want 2", len(plan.Releases))
	}
}

func TestPlanRosterBudgetLimitsPromotions(t *testing.T) {
	s := newSession()
	s.PutCreature(creature(1, 16, 400, 22, 900))
	s.PutCreature(creature(2, 16, 2700, 20, 850)) // retained by CP
	s.SetCandy(16, 12) // covers exactly one promotion

	plan := PlanRoster(s, DefaultPolicy())
	if len(plan.Promotions) != 1 {
		t.Fatalf("promotions = %d, want 1", len(plan.Promotions))
	}
	if plan.Promotions[0].ID != 1 {
		t.Errorf("promoted id = %d, want the higher MaxCP keeper", plan.Promotions[0].ID)
	}
}

func TestPlanRosterGreedySpendAcrossKeepers(t *testing.T) {
	s := newSession()
	// Three keepers, each for a different reason; 30 candy at 12 per
	// promotion pays for the best two and runs dry before the third.
	s.PutCreature(creature(1, 16, 400, 15, 900))  // best
	s.PutCreature(creature(2, 16, 300, 21, 700))  // mature
	s.PutCreature(creature(3, 16, 2600, 15, 500)) // retained by CP
	s.PutCreature(creature(4, 16, 150, 10, 300))  // released
	s.SetCandy(16, 30)

	plan := PlanRoster(s, DefaultPolicy())
	if len(plan.Promotions) != 2 {
		t.Fatalf("promotions = %d, want 2", len(plan.Promotions))
	}
	if plan.Promotions[0].ID != 1 || plan.Promotions[1].ID != 2 {
		t.Errorf("promoted ids = [%d, %d], want [1, 2] in descending MaxCP order",
			plan.Promotions[0].ID, plan.Promotions[1].ID)
	}
	if len(plan.Releases) != 1 || plan.Releases[0].ID != 4 {
		t.Errorf("releases = %v, want only creature 4", plan.Releases)
	}
}

func TestPlanRosterBaseOnlyLineage(t *testing.T) {
	s := newSession()
	// Eevee's lineage branches: only the base stage may be promoted.
	s.PutCreature(creature(1, 134, 900, 22, 1800)) // evolved, best
	s.PutCreature(creature(2, 133, 2700, 20, 900)) // base, retained by CP
	s.SetCandy(133, 200)

	plan := PlanRoster(s, DefaultPolicy())
	for _, c := range plan.Promotions {
		if c.SpeciesID != 133 {
			t.Errorf("promoted species %d, want base stage only", c.SpeciesID)
		}
	}
	if len(plan.Promotions) != 1 {
		t.Errorf("promotions = %d, want 1", len(plan.Promotions))
	}
}

func TestCheckHeadroomAfterReleases(t *testing.T) {
	s := newSession()
	s.Profile.MaxCreatureStorage = 3
	s.PutCreature(creature(1, 16, 400, 22, 900))
	s.PutCreature(creature(2, 16, 200, 10, 500))
	s.PutCreature(creature(3, 16, 100, 8, 300))

	plan := PlanRoster(s, DefaultPolicy())
	if err := CheckHeadroom(s, plan); err != nil {
		t.Fatalf("headroom with 2 releases: %v", err)
	}
}

func TestCheckHeadroomExhausted(t *testing.T) {
	s := newSession()
	s.Profile.MaxCreatureStorage = 1
	s.PutCreature(creature(1, 16, 400, 22, 900))

	plan := PlanRoster(s, DefaultPolicy())
	if err := CheckHeadroom(s, plan); !errors.Is(err, ErrStorageExhausted) {
		t.Fatalf("err = %v, want ErrStorageExhausted", err)
	}
}

// ackGateway acknowledges every request with its success response.
type ackGateway struct {
	released []uint64
	evolved  []uint64
	recycled []gateway.RecycleItemRequest
}

func (g *ackGateway) Submit(_ context.Context, b *gateway.Batch) (*gateway.Envelope, error) {
	env := &gateway.Envelope{}
	for _, req := range b.Requests {
		switch r := req.(type) {
		case gateway.ReleaseRequest:
			g.released = append(g.released, r.CreatureID)
			env.Responses = append(env.Responses, &gateway.ReleaseResponse{Result: gateway.ReleaseSuccess, CandyAwarded: 1})
		case gateway.EvolveRequest:
			g.evolved = append(g.evolved, r.CreatureID)
			env.Responses = append(env.Responses, &gateway.EvolveResponse{Result: gateway.EvolveSuccess})
		case gateway.RecycleItemRequest:
			g.recycled = append(g.recycled, r)
			env.Responses = append(env.Responses, &gateway.RecycleItemResponse{
				Result: gateway.RecycleSuccess, ItemID: r.ItemID, NewCount: 0,
			})
		}
	}
	return env, nil
}

func TestReleaseCreaturesExecutesPlan(t *testing.T) {
	s := newSession()
	s.PutCreature(creature(1, 16, 340, 22, 800))
	s.PutCreature(creature(2, 16, 200, 10, 500))
	s.PutCreature(creature(3, 16, 120, 8, 300))
	s.SetCandy(16, 25)
	red := session.NewReducer(s)

	gw := &ackGateway{}
	if err := ReleaseCreatures(context.Background(), gw, red, DefaultPolicy()); err != nil {
		t.Fatal(err)
	}
	if len(gw.released) != 2 {
		t.Errorf("released = %v, want 2 creatures", gw.released)
	}
	if len(gw.evolved) != 1 || gw.evolved[0] != 1 {
		t.Errorf("evolved = %v, want creature 1", gw.evolved)
	}
	if s.CreatureCount() != 1 {
		t.Errorf("roster = %d, want 1 after releases", s.CreatureCount())
	}
}

func TestRecycleItemsUpdatesBag(t *testing.T) {
	s := newSession()
	s.SetItem(gateway.ItemUltraBall, 120)
	red := session.NewReducer(s)

	gw := &ackGateway{}
	if err := RecycleItems(context.Background(), gw, red); err != nil {
		t.Fatal(err)
	}
	if len(gw.recycled) != 1 || gw.recycled[0].Count != 20 {
		t.Fatalf("recycled = %v, want one 20-count discard", gw.recycled)
	}
	// The reducer folds the server's new count back in.
	if got := s.ItemCount(gateway.ItemUltraBall); got != 0 {
		t.Errorf("ultra count = %d, want server-reported 0", got)
	}
}

package triage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/talgya/pokebot/internal/gateway"
	"github.com/talgya/pokebot/internal/session"
)

// ErrStorageExhausted means releasing everything releasable still leaves
// the roster at the cap once held eggs hatch. Play cannot proceed.
var ErrStorageExhausted = errors.New("triage: creature storage exhausted even after releases")

// Policy holds the roster-keeping thresholds.
type Policy struct {
	MaturityLevel    float64 // strongest specimen at or above this level earns a slot
	RetentionCP      float64 // specimens at or above this CP are never released
	BaseOnlyFamilies []int   // lineages promoted only from the base stage
}

// DefaultPolicy mirrors the tuned roster thresholds.
func DefaultPolicy() Policy {
	return Policy{
		MaturityLevel:    20,
		RetentionCP:      2500,
		BaseOnlyFamilies: []int{133}, // branching lineage, promoting non-base stages wastes candy
	}
}

// Plan is the computed roster action: who goes, who gets promoted.
type Plan struct {
	Releases   []*session.Creature
	Promotions []*session.Creature
}

// PlanRoster walks every lineage and decides keeps, releases, and
// promotions. Within a lineage the keepers are the single best specimen,
// the strongest mature one if distinct, and anything above the retention
// cutoff. Promotions spend the lineage candy balance on the best keepers
// first.
func PlanRoster(s *session.Session, pol Policy) Plan {
	var plan Plan
	dex := s.Dex()

	for family, group := range s.Lineages() {
		if len(group) == 0 {
			continue
		}
		keep := make(map[uint64]bool)

		// Group is sorted by descending MaxCP, so the best is first.
		keep[group[0].ID] = true
		for _, c := range group {
			if c.Level >= pol.MaturityLevel {
				keep[c.ID] = true
				break
			}
		}
		for _, c := range group {
			if float64(c.CP) >= pol.RetentionCP {
				keep[c.ID] = true
			}
		}

		for _, c := range group {
			if !keep[c.ID] {
				plan.Releases = append(plan.Releases, c)
			}
		}

		budget := s.Candy(family)
		baseOnly := slices.Contains(pol.BaseOnlyFamilies, family)
		for _, c := range group {
			if !keep[c.ID] {
				continue
			}
			sp, ok := dex.Species(c.SpeciesID)
			if !ok || sp.EvolvesTo == 0 {
				continue
			}
			if baseOnly && c.SpeciesID != family {
				continue
			}
			if sp.CandyToEvolve > 0 && budget >= sp.CandyToEvolve {
				budget -= sp.CandyToEvolve
				plan.Promotions = append(plan.Promotions, c)
			}
		}
	}

	// Stable order across runs: releases worst first, promotions best first.
	slices.SortFunc(plan.Releases, func(a, b *session.Creature) int {
		switch {
		case a.MaxCP < b.MaxCP:
			return -1
		case a.MaxCP > b.MaxCP:
			return 1
		}
		return 0
	})
	slices.SortFunc(plan.Promotions, func(a, b *session.Creature) int {
		switch {
		case a.MaxCP > b.MaxCP:
			return -1
		case a.MaxCP < b.MaxCP:
			return 1
		}
		return 0
	})
	return plan
}

// CheckHeadroom verifies the roster will have space after the plan runs,
// counting held eggs as future occupants.
func CheckHeadroom(s *session.Session, plan Plan) error {
	after := s.CreatureCount() - len(plan.Releases) + len(s.Eggs())
	if limit := s.Profile.MaxCreatureStorage; limit > 0 && after >= limit {
		return fmt.Errorf("%w: %d occupied of %d after releases", ErrStorageExhausted, after, limit)
	}
	return nil
}

// ReleaseCreatures computes and executes the roster plan. The headroom
// check runs before the first release so the roster is never half-culled
// into a still-unplayable state.
func ReleaseCreatures(ctx context.Context, gw gateway.Gateway, red *session.Reducer, pol Policy) error {
	s := red.Session()
	plan := PlanRoster(s, pol)
	if err := CheckHeadroom(s, plan); err != nil {
		return err
	}
	if len(plan.Releases) == 0 && len(plan.Promotions) == 0 {
		return nil
	}
	slog.Info("roster triage",
		"owned", s.CreatureCount(),
		"releases", len(plan.Releases),
		"promotions", len(plan.Promotions),
	)

	for _, c := range plan.Releases {
		env, err := gw.Submit(ctx, gateway.NewBatch(s.Position.Lat, s.Position.Lng).Add(
			gateway.ReleaseRequest{CreatureID: c.ID},
		))
		if err != nil {
			return fmt.Errorf("release %d: %w", c.ID, err)
		}
		red.Apply(env)
		s.DropCreature(c.ID)
	}

	for _, c := range plan.Promotions {
		env, err := gw.Submit(ctx, gateway.NewBatch(s.Position.Lat, s.Position.Lng).Add(
			gateway.EvolveRequest{CreatureID: c.ID},
		))
		if err != nil {
			return fmt.Errorf("evolve %d: %w", c.ID, err)
		}
		red.Apply(env)
	}
	return nil
}

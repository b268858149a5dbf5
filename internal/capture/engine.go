// Package capture turns a detected spawn into a sequence of gateway calls:
// encounter, optional capture-aid item, throw, bounded retry. The engine
// never mutates session state itself; every response flows through the
// reducer, and the engine only reads the refreshed state between steps.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/pokebot/internal/gateway"
	"github.com/talgya/pokebot/internal/session"
)

// ErrNoBalls means every container tier is empty. It is fatal to the
// current attempt only, never to the play loop.
var ErrNoBalls = errors.New("capture: out of every container tier")

// State enumerates the capture state machine.
type State int

const (
	StateIdle State = iota
	StateEncountering
	StateDeciding
	StateAidItemUse
	StateThrowing
	StateResolved
)

// Outcome is the terminal result of one capture attempt.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeSuccess
	OutcomeFlee
	OutcomeEscape // retry budget exhausted while the creature held on
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFlee:
		return "flee"
	case OutcomeEscape:
		return "escape"
	}
	return "failed"
}

// Policy holds the tunable thresholds of the capture decision. The shape
// of the policy is fixed; the numbers are configuration.
type Policy struct {
	CandySufficiency  int     // below this lineage candy, go aggressive
	HighValueCP       float64 // above this max CP, go aggressive
	BerryReserve      int     // conservative mode only berries above this stock
	HighTierAbundance int     // conservative mode throws ultra only above this combined stock
	MasterReserve     int     // aggressive mode throws master only above this stock
	MaxAttempts       int     // throw retry ceiling per spawn

	// Fixed throw parameters.
	ReticleSize float64
	SpinMod     float64
	HitPosition float64
}

// DefaultPolicy mirrors the tuned values the bot has been run with.
func DefaultPolicy() Policy {
	return Policy{
		CandySufficiency:  50,
		HighValueCP:       2500,
		BerryReserve:      30,
		HighTierAbundance: 100,
		MasterReserve:     0,
		MaxAttempts:       5,
		ReticleSize:       1.950,
		SpinMod:           1,
		HitPosition:       1,
	}
}

// TriageFunc frees creature storage; the engine invokes it as a corrective
// side effect when an encounter reports storage full.
type TriageFunc func(ctx context.Context) error

// Engine drives capture attempts against one session.
type Engine struct {
	gw     gateway.Gateway
	red    *session.Reducer
	policy Policy
	triage TriageFunc

	state State
}

// New creates a capture engine. triage may be nil.
func New(gw gateway.Gateway, red *session.Reducer, policy Policy, triage TriageFunc) *Engine {
	return &Engine{gw: gw, red: red, policy: policy, triage: triage, state: StateIdle}
}

// State reports the engine's current machine state, for observation.
func (e *Engine) State() State { return e.state }

// Attempt runs the full state machine for one spawn. A nil error with a
// non-success outcome is a normal terminal result; errors are gateway
// failures and propagate to the caller.
func (e *Engine) Attempt(ctx context.Context, spawn gateway.WildCreature) (Outcome, error) {
	defer func() { e.state = StateIdle }()

	s := e.red.Session()

	e.state = StateEncountering
	env, err := e.gw.Submit(ctx, gateway.NewBatch(s.Position.Lat, s.Position.Lng).Add(
		gateway.EncounterRequest{
			EncounterID:  spawn.EncounterID,
			SpawnPointID: spawn.SpawnPointID,
			PlayerLat:    s.Position.Lat,
			PlayerLng:    s.Position.Lng,
		},
	))
	if err != nil {
		return OutcomeFailed, fmt.Errorf("encounter: %w", err)
	}
	sig := e.red.Apply(env)

	switch {
	case sig.Encounter == nil || sig.Encounter.Status == gateway.EncounterUnset:
		slog.Warn("encounter yielded no status", "encounter_id", spawn.EncounterID)
		return OutcomeFailed, nil

	case sig.CreatureStorageFull:
		slog.Warn("creature storage full, running triage before giving up")
		if e.triage != nil {
			if terr := e.triage(ctx); terr != nil {
				return OutcomeFailed, terr
			}
		}
		return OutcomeFailed, nil

	case sig.Encounter.Status != gateway.EncounterSuccess:
		slog.Info("encounter refused", "status", int(sig.Encounter.Status))
		return OutcomeFailed, nil

	case sig.EncounterCreature == nil:
		return OutcomeFailed, nil
	}

	target := sig.EncounterCreature
	prob := 0.0
	if len(sig.Encounter.CaptureProbability) > 0 {
		prob = sig.Encounter.CaptureProbability[0]
	}
	slog.Info("encounter opened",
		"species", target.SpeciesID,
		"max_cp", int(target.MaxCP),
		"probability", prob,
	)

	return e.throwLoop(ctx, spawn, target)
}

// throwLoop is the Deciding → AidItemUse → Throwing cycle, bounded by the
// attempt ceiling so unboundedly retryable server statuses cannot spin.
func (e *Engine) throwLoop(ctx context.Context, spawn gateway.WildCreature, target *session.Creature) (Outcome, error) {
	s := e.red.Session()

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		e.state = StateDeciding
		aggressive := e.isAggressive(target)

		if e.wantBerry(aggressive) {
			e.state = StateAidItemUse
			if err := e.useBerry(ctx, spawn); err != nil {
				return OutcomeFailed, err
			}
		}

		ball, ok := e.selectBall(aggressive)
		if !ok {
			slog.Warn("no containers left", "attempt", attempt)
			return OutcomeFailed, ErrNoBalls
		}

		e.state = StateThrowing
		env, err := e.gw.Submit(ctx, gateway.NewBatch(s.Position.Lat, s.Position.Lng).Add(
			gateway.CatchRequest{
				EncounterID:           spawn.EncounterID,
				SpawnPointID:          spawn.SpawnPointID,
				Ball:                  ball,
				NormalizedReticleSize: e.policy.ReticleSize,
				SpinModifier:          e.policy.SpinMod,
				NormalizedHitPosition: e.policy.HitPosition,
				HitCreature:           true,
			},
		))
		if err != nil {
			return OutcomeFailed, fmt.Errorf("catch attempt %d: %w", attempt, err)
		}
		sig := e.red.Apply(env)

		if sig.Catch == nil || sig.Catch.Status == gateway.CatchUnset {
			slog.Warn("catch yielded no status", "attempt", attempt)
			return OutcomeFailed, nil
		}

		e.state = StateResolved
		switch sig.Catch.Status {
		case gateway.CatchSuccess:
			return OutcomeSuccess, nil
		case gateway.CatchFlee:
			return OutcomeFlee, nil
		}
		// Escape or missed: re-enter Deciding.
		slog.Info("creature held on", "status", int(sig.Catch.Status), "attempt", attempt, "ball", ball.Name())
	}

	return OutcomeEscape, nil
}

// isAggressive decides the capture stance: new lineage, candy-starved
// lineage, or a high-value specimen all warrant spending the good stock.
func (e *Engine) isAggressive(target *session.Creature) bool {
	s := e.red.Session()
	family := s.Dex().FamilyOf(target.SpeciesID)
	return len(s.CreaturesOf(target.SpeciesID)) == 0 ||
		s.Candy(family) < e.policy.CandySufficiency ||
		target.MaxCP > e.policy.HighValueCP
}

func (e *Engine) wantBerry(aggressive bool) bool {
	held := e.red.Session().ItemCount(gateway.ItemRazzBerry)
	if aggressive {
		return held > 0
	}
	return held > e.policy.BerryReserve
}

// selectBall picks the throwing container. Master-tier stock is reserved
// for the aggressive branch; the conservative branch spends mid and low
// tiers unless high-tier stock is abundant.
func (e *Engine) selectBall(aggressive bool) (gateway.ItemID, bool) {
	s := e.red.Session()
	master := s.ItemCount(gateway.ItemMasterBall)
	ultra := s.ItemCount(gateway.ItemUltraBall)
	great := s.ItemCount(gateway.ItemGreatBall)
	poke := s.ItemCount(gateway.ItemPokeBall)

	if aggressive {
		switch {
		case master > e.policy.MasterReserve:
			return gateway.ItemMasterBall, true
		case ultra > 0:
			return gateway.ItemUltraBall, true
		case great > 0:
			return gateway.ItemGreatBall, true
		case poke > 0:
			return gateway.ItemPokeBall, true
		}
		return gateway.ItemUnknown, false
	}

	switch {
	case ultra > e.policy.HighTierAbundance:
		return gateway.ItemUltraBall, true
	case great > 0 && great+ultra > e.policy.HighTierAbundance:
		return gateway.ItemGreatBall, true
	case poke > 0:
		return gateway.ItemPokeBall, true
	case great > 0:
		return gateway.ItemGreatBall, true
	case ultra > 0:
		return gateway.ItemUltraBall, true
	}
	return gateway.ItemUnknown, false
}

// useBerry consumes one capture-aid item for the open encounter. Running
// out mid-attempt is not an error; the throw proceeds without it.
func (e *Engine) useBerry(ctx context.Context, spawn gateway.WildCreature) error {
	s := e.red.Session()
	if s.ItemCount(gateway.ItemRazzBerry) <= 0 {
		slog.Info("out of capture-aid items")
		return nil
	}

	env, err := e.gw.Submit(ctx, gateway.NewBatch(s.Position.Lat, s.Position.Lng).Add(
		gateway.UseItemCaptureRequest{
			ItemID:       gateway.ItemRazzBerry,
			EncounterID:  spawn.EncounterID,
			SpawnPointID: spawn.SpawnPointID,
		},
	))
	if err != nil {
		return fmt.Errorf("use capture item: %w", err)
	}
	sig := e.red.Apply(env)

	if sig.UseItemCapture == nil || !sig.UseItemCapture.Success {
		slog.Warn("capture-aid item had no effect")
	}
	return nil
}

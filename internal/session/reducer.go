package session

import (
	"log/slog"

	"github.com/talgya/pokebot/internal/gateway"
)

// Signals carries the per-call outcomes the decision components consume:
// the reducer folds every response into the session, then hands back the
// specific result the caller was waiting on.
type Signals struct {
	Encounter         *gateway.EncounterResponse
	EncounterCreature *Creature // derived when the encounter succeeded
	Catch             *gateway.CatchResponse
	FortSearch        *gateway.FortSearchResponse
	UseItemCapture    *gateway.UseItemCaptureResponse
	Incubator         *gateway.UseItemEggIncubatorResponse

	ItemStorageFull     bool // fort search refused: item bag at capacity
	CreatureStorageFull bool // encounter refused: creature storage at capacity
}

// Handler folds one response kind into the session and signals.
type Handler func(r *Reducer, resp gateway.Response, sig *Signals)

// Reducer decodes response envelopes against a session. Each response kind
// has its own handler, so kinds can be tested in isolation.
type Reducer struct {
	s        *Session
	handlers map[gateway.Kind]Handler
}

// NewReducer creates a reducer with the default handler registry.
func NewReducer(s *Session) *Reducer {
	r := &Reducer{s: s, handlers: make(map[gateway.Kind]Handler)}
	r.Register(gateway.KindGetPlayer, reducePlayer)
	r.Register(gateway.KindGetInventory, reduceInventory)
	r.Register(gateway.KindGetHatchedEggs, reduceHatchedEggs)
	r.Register(gateway.KindGetMapObjects, reduceMapObjects)
	r.Register(gateway.KindEncounter, reduceEncounter)
	r.Register(gateway.KindCatch, reduceCatch)
	r.Register(gateway.KindUseItemCapture, reduceUseItemCapture)
	r.Register(gateway.KindFortSearch, reduceFortSearch)
	r.Register(gateway.KindRecycleItem, reduceRecycle)
	r.Register(gateway.KindRelease, reduceRelease)
	r.Register(gateway.KindEvolve, reduceEvolve)
	r.Register(gateway.KindNickname, reduceNickname)
	r.Register(gateway.KindUseItemEggIncubator, reduceIncubator)
	return r
}

// Register installs or replaces the handler for one response kind.
func (r *Reducer) Register(k gateway.Kind, h Handler) { r.handlers[k] = h }

// Session returns the session this reducer mutates.
func (r *Reducer) Session() *Session { return r.s }

// Apply folds every response in the envelope into the session, in order,
// and returns the extracted signals. Unknown kinds and absent sections are
// warnings, never failures.
func (r *Reducer) Apply(env *gateway.Envelope) *Signals {
	sig := &Signals{}
	if env == nil {
		slog.Warn("reducer: nil envelope")
		return sig
	}
	for _, resp := range env.Responses {
		h, ok := r.handlers[resp.Kind()]
		if !ok {
			slog.Warn("reducer: no handler", "kind", resp.Kind().String())
			continue
		}
		h(r, resp, sig)
	}
	return sig
}

func reducePlayer(r *Reducer, resp gateway.Response, _ *Signals) {
	p, ok := resp.(*gateway.GetPlayerResponse)
	if !ok || !p.Success {
		slog.Warn("GET_PLAYER unsuccessful")
		return
	}
	r.s.Profile.PlayerData = p.Player
}

func reduceInventory(r *Reducer, resp gateway.Response, _ *Signals) {
	inv, ok := resp.(*gateway.GetInventoryResponse)
	if !ok || !inv.Success {
		slog.Warn("GET_INVENTORY unsuccessful")
		return
	}

	r.s.resetInventory()
	for _, entry := range inv.Entries {
		switch {
		case entry.Item != nil:
			if entry.Item.ID != gateway.ItemUnknown {
				r.s.SetItem(entry.Item.ID, entry.Item.Count)
			}

		case entry.Stats != nil:
			r.s.Profile.PlayerStats = *entry.Stats

		case entry.Creature != nil:
			data := *entry.Creature
			if data.IsEgg {
				r.s.PutEgg(&Creature{CreatureData: data})
				continue
			}
			c, err := r.s.NewCreature(data)
			if err != nil {
				slog.Warn("inventory creature skipped", "error", err)
				continue
			}
			r.s.PutCreature(c)

		case entry.Candy != nil:
			if entry.Candy.FamilyID != 0 {
				r.s.SetCandy(entry.Candy.FamilyID, entry.Candy.Candy)
			}

		case len(entry.Incubators) > 0:
			for _, inc := range entry.Incubators {
				r.s.PutIncubator(inc)
			}

		default:
			// Empty entry, the wire format allows them.
		}
	}
}

func reduceHatchedEggs(_ *Reducer, resp gateway.Response, _ *Signals) {
	h, ok := resp.(*gateway.GetHatchedEggsResponse)
	if !ok || !h.Success {
		return
	}
	for _, xp := range h.ExperienceAwarded {
		if xp > 0 {
			slog.Info("egg hatched", "xp", xp)
		}
	}
}

func reduceMapObjects(r *Reducer, resp gateway.Response, _ *Signals) {
	m, ok := resp.(*gateway.GetMapObjectsResponse)
	if !ok {
		return
	}

	// Spawns are transient: the collection is fully replaced per scan.
	r.s.clearWild()
	for _, cell := range m.Cells {
		for _, fort := range cell.Forts {
			if fort.Type == gateway.FortStop {
				r.s.putStop(fort)
			}
		}
		r.s.wild = append(r.s.wild, cell.Wild...)
	}
}

func reduceEncounter(r *Reducer, resp gateway.Response, sig *Signals) {
	e, ok := resp.(*gateway.EncounterResponse)
	if !ok {
		return
	}
	sig.Encounter = e

	switch e.Status {
	case gateway.EncounterUnset:
		slog.Warn("ENCOUNTER status absent")
	case gateway.EncounterSuccess:
		if e.Creature == nil {
			slog.Warn("ENCOUNTER success without creature payload")
			return
		}
		c, err := r.s.NewCreature(*e.Creature)
		if err != nil {
			slog.Warn("ENCOUNTER creature not derivable", "error", err)
			return
		}
		sig.EncounterCreature = c
	case gateway.EncounterInventoryFull:
		sig.CreatureStorageFull = true
	}
}

func reduceCatch(_ *Reducer, resp gateway.Response, sig *Signals) {
	c, ok := resp.(*gateway.CatchResponse)
	if !ok {
		return
	}
	sig.Catch = c

	if c.Status == gateway.CatchUnset {
		slog.Warn("CATCH_POKEMON status absent")
		return
	}
	if c.Status == gateway.CatchSuccess {
		total := 0
		for _, xp := range c.XPAwards {
			total += xp
		}
		slog.Info("catch succeeded", "xp", total, "candy", c.CandyAwarded)
	}
}

func reduceUseItemCapture(_ *Reducer, resp gateway.Response, sig *Signals) {
	u, ok := resp.(*gateway.UseItemCaptureResponse)
	if !ok {
		return
	}
	sig.UseItemCapture = u
}

func reduceFortSearch(_ *Reducer, resp gateway.Response, sig *Signals) {
	f, ok := resp.(*gateway.FortSearchResponse)
	if !ok {
		return
	}
	sig.FortSearch = f

	switch f.Result {
	case gateway.FortSearchUnset:
		slog.Warn("FORT_SEARCH result absent")
	case gateway.FortSearchSuccess:
		slog.Info("stop spun", "xp", f.ExperienceAwarded, "items", len(f.Items))
	case gateway.FortSearchInventoryFull:
		sig.ItemStorageFull = true
	}
}

func reduceRecycle(r *Reducer, resp gateway.Response, _ *Signals) {
	rec, ok := resp.(*gateway.RecycleItemResponse)
	if !ok {
		return
	}
	if rec.Result == gateway.RecycleUnset {
		slog.Warn("RECYCLE_INVENTORY_ITEM result absent")
		return
	}
	if rec.Result == gateway.RecycleSuccess && rec.ItemID != gateway.ItemUnknown {
		r.s.SetItem(rec.ItemID, rec.NewCount)
	}
}

func reduceRelease(_ *Reducer, resp gateway.Response, _ *Signals) {
	rel, ok := resp.(*gateway.ReleaseResponse)
	if !ok {
		return
	}
	if rel.Result == gateway.ReleaseUnset {
		slog.Warn("RELEASE_POKEMON result absent")
		return
	}
	slog.Info("creature released", "result", int(rel.Result), "candy", rel.CandyAwarded)
}

func reduceEvolve(_ *Reducer, resp gateway.Response, _ *Signals) {
	ev, ok := resp.(*gateway.EvolveResponse)
	if !ok {
		return
	}
	if ev.Result == gateway.EvolveUnset {
		slog.Warn("EVOLVE_POKEMON result absent")
		return
	}
	slog.Info("creature evolved", "result", int(ev.Result), "xp", ev.ExperienceAwarded, "candy", ev.CandyAwarded)
}

func reduceNickname(_ *Reducer, resp gateway.Response, _ *Signals) {
	n, ok := resp.(*gateway.NicknameResponse)
	if !ok {
		return
	}
	if !n.Success {
		slog.Warn("NICKNAME_POKEMON failed")
	}
}

func reduceIncubator(r *Reducer, resp gateway.Response, sig *Signals) {
	u, ok := resp.(*gateway.UseItemEggIncubatorResponse)
	if !ok {
		return
	}
	sig.Incubator = u

	if u.Result == gateway.IncubatorUnset {
		slog.Warn("USE_ITEM_EGG_INCUBATOR result absent")
		return
	}
	if u.Result == gateway.IncubatorSuccess && u.Incubator != nil {
		r.s.PutIncubator(*u.Incubator)
	}
}

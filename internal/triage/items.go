// Package triage keeps the bag and the creature roster under their server
// caps so that stop spins and captures never stall on full storage. Plans
// are computed from session state; execution goes through the gateway and
// the reducer folds the confirmations back in.
package triage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/talgya/pokebot/internal/gateway"
	"github.com/talgya/pokebot/internal/session"
)

// StorageBuffer is the headroom left under the item cap so a few stop
// spins never tip the bag over.
const StorageBuffer = 50

// category is an item family sharing one budget, listed best tier first.
type category struct {
	name    string
	tiers   []gateway.ItemID
	divisor int // the category budget is usable capacity over this
}

var categories = []category{
	{"balls", []gateway.ItemID{gateway.ItemMasterBall, gateway.ItemUltraBall, gateway.ItemGreatBall, gateway.ItemPokeBall}, 3},
	{"potions", []gateway.ItemID{gateway.ItemMaxPotion, gateway.ItemHyperPotion, gateway.ItemSuperPotion, gateway.ItemPotion}, 3},
	{"revives", []gateway.ItemID{gateway.ItemMaxRevive, gateway.ItemRevive}, 6},
	{"berries", []gateway.ItemID{gateway.ItemRazzBerry}, 6},
}

// PlanDiscards computes the recycle requests that bring every category
// back under its budget. Better tiers fill the budget first; once a tier
// overflows it the remainder of that tier and every lesser tier go.
func PlanDiscards(s *session.Session) []gateway.RecycleItemRequest {
	usable := s.Profile.MaxItemStorage - StorageBuffer
	if usable <= 0 {
		return nil
	}

	var plan []gateway.RecycleItemRequest
	for _, cat := range categories {
		budget := usable / cat.divisor
		kept := 0
		for _, id := range cat.tiers {
			held := s.ItemCount(id)
			if held == 0 {
				continue
			}
			keep := min(held, budget-kept)
			if keep < 0 {
				keep = 0
			}
			kept += keep
			if held > keep {
				plan = append(plan, gateway.RecycleItemRequest{ItemID: id, Count: held - keep})
			}
		}
	}
	return plan
}

// RecycleItems executes the discard plan one request at a time so a
// partial failure leaves the bag consistent with the server.
func RecycleItems(ctx context.Context, gw gateway.Gateway, red *session.Reducer) error {
	s := red.Session()
	plan := PlanDiscards(s)
	if len(plan) == 0 {
		return nil
	}
	slog.Info("recycling surplus items", "requests", len(plan), "held", s.TotalItems())

	for _, req := range plan {
		env, err := gw.Submit(ctx, gateway.NewBatch(s.Position.Lat, s.Position.Lng).Add(req))
		if err != nil {
			return fmt.Errorf("recycle %s: %w", req.ItemID.Name(), err)
		}
		red.Apply(env)
		slog.Debug("recycled", "item", req.ItemID.Name(), "count", req.Count)
	}
	return nil
}

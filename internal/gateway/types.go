// Package gateway defines the typed request/response surface of the remote
// game service. The core treats the transport as a black box: a batch of
// requests goes in, a response envelope or an error comes out. The only
// in-repo implementation is the simulated gateway under gateway/sim; a
// production transport implements the same interface.
package gateway

// ItemID identifies an inventory item kind on the wire.
type ItemID int

const (
	ItemUnknown    ItemID = 0
	ItemPokeBall   ItemID = 1
	ItemGreatBall  ItemID = 2
	ItemUltraBall  ItemID = 3
	ItemMasterBall ItemID = 4

	ItemPotion      ItemID = 101
	ItemSuperPotion ItemID = 102
	ItemHyperPotion ItemID = 103
	ItemMaxPotion   ItemID = 104

	ItemRevive    ItemID = 201
	ItemMaxRevive ItemID = 202

	ItemRazzBerry ItemID = 701

	ItemIncubatorBasicUnlimited ItemID = 901
	ItemIncubatorBasic          ItemID = 902
)

// Name returns a log-friendly item name.
func (i ItemID) Name() string {
	switch i {
	case ItemPokeBall:
		return "poke_ball"
	case ItemGreatBall:
		return "great_ball"
	case ItemUltraBall:
		return "ultra_ball"
	case ItemMasterBall:
		return "master_ball"
	case ItemPotion:
		return "potion"
	case ItemSuperPotion:
		return "super_potion"
	case ItemHyperPotion:
		return "hyper_potion"
	case ItemMaxPotion:
		return "max_potion"
	case ItemRevive:
		return "revive"
	case ItemMaxRevive:
		return "max_revive"
	case ItemRazzBerry:
		return "razz_berry"
	case ItemIncubatorBasicUnlimited:
		return "incubator_unlimited"
	case ItemIncubatorBasic:
		return "incubator_basic"
	}
	return "unknown_item"
}

// Kind tags each request and response variant.
type Kind int

const (
	KindUnknown Kind = iota
	KindGetPlayer
	KindGetInventory
	KindGetHatchedEggs
	KindGetMapObjects
	KindEncounter
	KindCatch
	KindUseItemCapture
	KindFortSearch
	KindRecycleItem
	KindRelease
	KindEvolve
	KindNickname
	KindUseItemEggIncubator
)

func (k Kind) String() string {
	switch k {
	case KindGetPlayer:
		return "GET_PLAYER"
	case KindGetInventory:
		return "GET_INVENTORY"
	case KindGetHatchedEggs:
		return "GET_HATCHED_EGGS"
	case KindGetMapObjects:
		return "GET_MAP_OBJECTS"
	case KindEncounter:
		return "ENCOUNTER"
	case KindCatch:
		return "CATCH_POKEMON"
	case KindUseItemCapture:
		return "USE_ITEM_CAPTURE"
	case KindFortSearch:
		return "FORT_SEARCH"
	case KindRecycleItem:
		return "RECYCLE_INVENTORY_ITEM"
	case KindRelease:
		return "RELEASE_POKEMON"
	case KindEvolve:
		return "EVOLVE_POKEMON"
	case KindNickname:
		return "NICKNAME_POKEMON"
	case KindUseItemEggIncubator:
		return "USE_ITEM_EGG_INCUBATOR"
	}
	return "UNKNOWN"
}

// ----- Status enums -----
// Values mirror the remote service's result codes. Zero always means the
// field was absent from the response, which the reducer treats as a
// warning, never a failure.

// EncounterStatus is the result of an encounter request.
type EncounterStatus int

const (
	EncounterUnset         EncounterStatus = 0
	EncounterSuccess       EncounterStatus = 1
	EncounterNotFound      EncounterStatus = 2
	EncounterClosed        EncounterStatus = 3
	EncounterPokemonFled   EncounterStatus = 4
	EncounterNotInRange    EncounterStatus = 5
	EncounterAlreadyDone   EncounterStatus = 6
	EncounterInventoryFull EncounterStatus = 7
)

// CatchStatus is the result of a catch attempt.
type CatchStatus int

const (
	CatchUnset   CatchStatus = 0
	CatchSuccess CatchStatus = 1
	CatchEscape  CatchStatus = 2 // broke out of the ball, still present
	CatchFlee    CatchStatus = 3 // gone for good
	CatchMissed  CatchStatus = 4 // throw missed, still present
)

// Retryable reports whether the status permits another throw at the same
// spawn.
func (s CatchStatus) Retryable() bool {
	return s == CatchEscape || s == CatchMissed
}

// FortSearchResult is the result of spinning a point of interest.
type FortSearchResult int

const (
	FortSearchUnset         FortSearchResult = 0
	FortSearchSuccess       FortSearchResult = 1
	FortSearchOutOfRange    FortSearchResult = 2
	FortSearchCooldown      FortSearchResult = 3
	FortSearchInventoryFull FortSearchResult = 4
)

// RecycleResult is the result of discarding items.
type RecycleResult int

const (
	RecycleUnset          RecycleResult = 0
	RecycleSuccess        RecycleResult = 1
	RecycleNotEnoughItems RecycleResult = 2
)

// ReleaseResult is the result of releasing a creature.
type ReleaseResult int

const (
	ReleaseUnset      ReleaseResult = 0
	ReleaseSuccess    ReleaseResult = 1
	ReleaseDeployed   ReleaseResult = 2
	ReleaseFailed     ReleaseResult = 3
	ReleaseErrorIsEgg ReleaseResult = 4
)

// EvolveResult is the result of a promotion request.
type EvolveResult int

const (
	EvolveUnset                 EvolveResult = 0
	EvolveSuccess               EvolveResult = 1
	EvolveFailedMissing         EvolveResult = 2
	EvolveFailedInsufficient    EvolveResult = 3
	EvolveFailedCannotEvolve    EvolveResult = 4
	EvolveFailedDeployed        EvolveResult = 5
)

// IncubatorResult is the result of assigning an egg to an incubator.
type IncubatorResult int

const (
	IncubatorUnset              IncubatorResult = 0
	IncubatorSuccess            IncubatorResult = 1
	IncubatorNotFound           IncubatorResult = 2
	IncubatorEggNotFound        IncubatorResult = 3
	IncubatorNotAnEgg           IncubatorResult = 4
	IncubatorAlreadyIncubating  IncubatorResult = 5
	IncubatorAlreadyInUse       IncubatorResult = 6
)

// ----- Payload records -----

// PlayerData is the account-level profile section of a get-player response.
type PlayerData struct {
	Codename           string
	MaxItemStorage     int
	MaxCreatureStorage int
}

// PlayerStats is the progression section carried inside inventory responses.
type PlayerStats struct {
	Level            int
	Experience       int64
	PrevLevelXP      int64
	NextLevelXP      int64
	KmWalked         float64
	CreaturesCaught  int
	StopVisits       int
}

// CreatureData is an owned or encountered creature as it appears on the
// wire. Derived attributes are computed by the session, not the gateway.
type CreatureData struct {
	ID           uint64
	SpeciesID    int
	CP           int
	CPMultiplier float64
	ExtraCPM     float64
	IVAttack     int
	IVDefense    int
	IVStamina    int

	IsEgg           bool
	EggKmTarget     float64
	EggIncubatorID  string
}

// FamilyCandy is one lineage's candy balance.
type FamilyCandy struct {
	FamilyID int
	Candy    int
}

// Incubator is one egg incubator with its current assignment.
type Incubator struct {
	ID            string
	ItemID        ItemID
	EggID         uint64  // 0 when empty
	StartKmWalked float64
	TargetKm      float64
}

// Fort is a fixed point of interest on the map.
type Fort struct {
	ID       string
	Lat      float64
	Lng      float64
	Type     FortType
	HasLure  bool
}

// FortType distinguishes spinnable stops from contested sites.
type FortType int

const (
	FortGym  FortType = 0
	FortStop FortType = 1
)

// WildCreature is a transient spawn visible on the map.
type WildCreature struct {
	EncounterID    uint64
	SpawnPointID   string
	SpeciesID      int
	Lat            float64
	Lng            float64
	ExpirationMs   int64
}

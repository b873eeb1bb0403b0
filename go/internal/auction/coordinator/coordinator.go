// Package coordinator is the live bidding state machine. A Coordinator owns the
// selected player, bid ledger and team budgets of one auction; a Session
// serializes every intent for that auction through it.
package coordinator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/gavel/go/internal/auction/bidledger"
	"github.com/mcdev12/gavel/go/internal/auction/bidrule"
	"github.com/mcdev12/gavel/go/internal/auction/budget"
	"github.com/mcdev12/gavel/go/internal/auction/events"
	"github.com/mcdev12/gavel/go/internal/models"
)

// UndoReset is the price a player falls back to once every bid is undone.
type UndoReset string

const (
	// UndoResetBasePrice restores the player's base price, so undo exactly
	// reverses the first bid.
	UndoResetBasePrice UndoReset = "base_price"
	// UndoResetZero sets the price to 0 and computes the next bid from the
	// base price.
	UndoResetZero UndoReset = "zero"
)

// Config holds the coordinator's collaborators.
type Config struct {
	Clock     clockwork.Clock
	Selector  Selector
	Recorder  OutcomeRecorder
	UndoReset UndoReset
}

// DefaultConfig returns a config with a real clock, random selection and no
// persistence.
func DefaultConfig() Config {
	return Config{
		Clock:     clockwork.NewRealClock(),
		Selector:  NewRandomSelector(0),
		Recorder:  nopRecorder{},
		UndoReset: UndoResetBasePrice,
	}
}

// Coordinator is not safe for concurrent use. Every method runs on the owning
// session's goroutine.
type Coordinator struct {
	auction models.Auction
	mode    models.BiddingMode

	players     map[uuid.UUID]*models.Player
	playerOrder []uuid.UUID
	teams       map[uuid.UUID]*budget.Ledger
	teamOrder   []uuid.UUID
	bids        *bidledger.Ledger

	active    uuid.UUID
	hasActive bool
	opening   decimal.Decimal // price of the active player when it was selected
	sequence  uint64

	clock     clockwork.Clock
	selector  Selector
	recorder  OutcomeRecorder
	undoReset UndoReset
}

// outcome is the result of applying one intent. advance asks the session to
// auto-select the next player once the events are acknowledged.
type outcome struct {
	events  []events.Event
	advance bool
	sold    uuid.UUID
}

// New builds a coordinator from a loaded auction. The auction starts in LIVE
// mode with no player selected.
func New(auction models.Auction, players []models.Player, teams []models.Team, cfg Config) (*Coordinator, error) {
	if !auction.BaseBidIncrement.IsPositive() {
		return nil, fmt.Errorf("auction %s: base bid increment must be positive, got %s", auction.ID, auction.BaseBidIncrement)
	}
	defaults := DefaultConfig()
	if cfg.Clock == nil {
		cfg.Clock = defaults.Clock
	}
	if cfg.Selector == nil {
		cfg.Selector = defaults.Selector
	}
	if cfg.Recorder == nil {
		cfg.Recorder = defaults.Recorder
	}
	if cfg.UndoReset == "" {
		cfg.UndoReset = defaults.UndoReset
	}

	c := &Coordinator{
		auction:   auction,
		mode:      models.BiddingModeLive,
		players:   make(map[uuid.UUID]*models.Player, len(players)),
		teams:     make(map[uuid.UUID]*budget.Ledger, len(teams)),
		bids:      bidledger.New(cfg.Clock),
		clock:     cfg.Clock,
		selector:  cfg.Selector,
		recorder:  cfg.Recorder,
		undoReset: cfg.UndoReset,
	}
	for _, p := range players {
		if _, dup := c.players[p.ID]; dup {
			return nil, fmt.Errorf("auction %s: duplicate player %s", auction.ID, p.ID)
		}
		c.players[p.ID] = &p
		c.playerOrder = append(c.playerOrder, p.ID)
	}
	for _, t := range teams {
		if _, dup := c.teams[t.ID]; dup {
			return nil, fmt.Errorf("auction %s: duplicate team %s", auction.ID, t.ID)
		}
		c.teams[t.ID] = budget.NewLedger(t)
		c.teamOrder = append(c.teamOrder, t.ID)
	}
	return c, nil
}

// Apply validates and applies one intent and returns the committed events.
// A rejected intent returns a *Rejection and changes nothing.
func (c *Coordinator) Apply(ctx context.Context, intent Intent) ([]events.Event, error) {
	out, err := c.apply(ctx, intent)
	return out.events, err
}

func (c *Coordinator) apply(ctx context.Context, intent Intent) (outcome, error) {
	if intent == nil {
		return outcome{}, ErrUnknownIntent
	}
	return intent.apply(ctx, c)
}

// Advance selects a random AVAILABLE player after soldID was sold. With no
// players left it emits SelectionCleared.
func (c *Coordinator) Advance(soldID uuid.UUID) ([]events.Event, error) {
	candidates := c.available(soldID)
	id, ok := c.selector.Pick(candidates)
	if !ok {
		ev, err := c.event(events.TypeSelectionCleared, nil, nil, decimal.Zero, events.SelectionClearedPayload{
			PreviousPlayerID: &soldID,
			Reason:           events.ClearedExhausted,
		})
		if err != nil {
			return nil, err
		}
		return []events.Event{ev}, nil
	}
	out, err := c.selectPlayer(id, true)
	return out.events, err
}

func (c *Coordinator) selectPlayer(id uuid.UUID, random bool) (outcome, error) {
	p, ok := c.players[id]
	if !ok {
		return outcome{}, reject(ErrUnknownPlayer, "player %s is not part of this auction", id)
	}
	if c.hasActive && c.active == id && p.Status == models.PlayerStatusAvailable {
		return outcome{}, nil
	}
	if p.Status != models.PlayerStatusAvailable {
		return outcome{}, reject(ErrNotAvailable, "%s is %s and cannot be selected", p.Name, p.Status)
	}
	if c.hasActive && c.bids.Count(c.active) > 0 {
		return outcome{}, reject(ErrBidsOpen, "cannot change selection while %s has open bids", c.players[c.active].Name)
	}

	c.active = id
	c.hasActive = true
	c.opening = decimal.Max(p.CurrentPrice, c.basePrice(p))
	p.CurrentPrice = c.opening
	p.Version++

	base := c.biddingBase(p)
	increment := bidrule.Increment(c.auction, base)
	ev, err := c.event(events.TypePlayerSelected, p, nil, p.CurrentPrice, events.PlayerSelectedPayload{
		PlayerID:      p.ID,
		PlayerName:    p.Name,
		BasePrice:     p.BasePrice,
		CurrentPrice:  p.CurrentPrice,
		NextIncrement: increment,
		NextBid:       base.Add(increment),
		Random:        random,
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{events: []events.Event{ev}}, nil
}

func (c *Coordinator) selectRandom() (outcome, error) {
	if c.hasActive && c.bids.Count(c.active) > 0 {
		return outcome{}, reject(ErrBidsOpen, "cannot change selection while %s has open bids", c.players[c.active].Name)
	}
	var exclude uuid.UUID
	if c.hasActive {
		exclude = c.active
	}
	id, ok := c.selector.Pick(c.available(exclude))
	if !ok {
		return outcome{}, ErrNoCandidates
	}
	return c.selectPlayer(id, true)
}

// biddable returns the selected player if it can take a bid right now.
func (c *Coordinator) biddable(playerID uuid.UUID) (*models.Player, error) {
	if c.mode != models.BiddingModeLive {
		return nil, reject(ErrWrongMode, "bids are only accepted in LIVE mode")
	}
	p, err := c.activePlayer()
	if err != nil {
		return nil, err
	}
	if playerID != uuid.Nil && playerID != p.ID {
		return nil, reject(ErrNotSelected, "player %s is no longer selected", playerID)
	}
	if p.Status != models.PlayerStatusAvailable {
		return nil, reject(ErrNotAvailable, "%s is already %s", p.Name, p.Status)
	}
	return p, nil
}

// bidder checks the team side of a bid: known team, no self-raise, roster space.
func (c *Coordinator) bidder(p *models.Player, teamID uuid.UUID) (*budget.Ledger, error) {
	team, err := c.team(teamID)
	if err != nil {
		return nil, err
	}
	if leading, ok := c.bids.Leading(p.ID); ok && leading.TeamID == teamID {
		return nil, reject(ErrSelfRaise, "%s already holds the leading bid of %s", team.Team().Name, leading.Amount)
	}
	if !team.HasRosterSpace(c.auction.PlayersPerTeam) {
		return nil, reject(ErrRosterFull, "%s already has %d players", team.Team().Name, team.Team().PlayersCount)
	}
	return team, nil
}

func (c *Coordinator) placeBid(i PlaceBid) (outcome, error) {
	p, err := c.biddable(i.PlayerID)
	if err != nil {
		return outcome{}, err
	}
	team, err := c.bidder(p, i.TeamID)
	if err != nil {
		return outcome{}, err
	}

	base := c.biddingBase(p)
	increment := bidrule.Increment(c.auction, base)
	if !increment.IsPositive() {
		return outcome{}, reject(ErrBelowIncrement, "resolved increment %s at %s must be positive", increment, base)
	}
	amount := base.Add(increment)
	if !team.CanAfford(amount) {
		return outcome{}, reject(ErrInsufficientBudget, "bid of %s exceeds team remaining budget of %s", amount, team.Remaining())
	}
	return c.acceptBid(p, team, amount, increment, false)
}

func (c *Coordinator) jumpBid(i JumpBid) (outcome, error) {
	p, err := c.biddable(i.PlayerID)
	if err != nil {
		return outcome{}, err
	}
	if i.Amount.IsNegative() {
		return outcome{}, reject(ErrMalformedAmount, "jump bid amount %s must not be negative", i.Amount)
	}
	team, err := c.bidder(p, i.TeamID)
	if err != nil {
		return outcome{}, err
	}

	base := c.biddingBase(p)
	floor := bidrule.NextBid(c.auction, base)
	if i.Amount.LessThan(floor) {
		return outcome{}, reject(ErrBelowIncrement, "jump bid of %s is below the minimum of %s", i.Amount, floor)
	}
	if !team.CanAfford(i.Amount) {
		return outcome{}, reject(ErrInsufficientBudget, "jump bid of %s exceeds team remaining budget of %s", i.Amount, team.Remaining())
	}
	return c.acceptBid(p, team, i.Amount, i.Amount.Sub(base), true)
}

func (c *Coordinator) acceptBid(p *models.Player, team *budget.Ledger, amount, increment decimal.Decimal, jump bool) (outcome, error) {
	t := team.Team()
	bid := c.bids.Place(p.ID, t.ID, amount)
	previous := p.CurrentPrice
	p.CurrentPrice = amount
	p.Version++

	next := bidrule.Increment(c.auction, amount)
	ev, err := c.event(events.TypeBidPlaced, p, &t.ID, amount, events.BidPlacedPayload{
		BidID:         bid.ID,
		PlayerID:      p.ID,
		TeamID:        t.ID,
		TeamName:      t.Name,
		Amount:        amount,
		PreviousPrice: previous,
		Increment:     increment,
		Jump:          jump,
		NextIncrement: next,
		NextBid:       amount.Add(next),
		BidCount:      c.bids.Count(p.ID),
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{events: []events.Event{ev}}, nil
}

func (c *Coordinator) undoLastBid() (outcome, error) {
	if c.mode != models.BiddingModeLive {
		return outcome{}, reject(ErrWrongMode, "undo is only available in LIVE mode")
	}
	p, err := c.activePlayer()
	if err != nil {
		return outcome{}, err
	}
	removed, leading, hasLeading, ok := c.bids.UndoLast(p.ID)
	if !ok {
		return outcome{}, reject(ErrNoBid, "no bid to undo for %s", p.Name)
	}

	var leadingBid *models.Bid
	if hasLeading {
		p.CurrentPrice = leading.Amount
		leadingBid = &leading
	} else {
		p.CurrentPrice = c.noBidPrice(p)
	}
	p.Version++

	var teamID *uuid.UUID
	if leadingBid != nil {
		teamID = &leadingBid.TeamID
	}
	base := c.biddingBase(p)
	next := bidrule.Increment(c.auction, base)
	ev, err := c.event(events.TypeBidUndone, p, teamID, p.CurrentPrice, events.BidUndonePayload{
		RemovedBidID:  removed.ID,
		PlayerID:      p.ID,
		RemovedTeamID: removed.TeamID,
		RemovedAmount: removed.Amount,
		CurrentPrice:  p.CurrentPrice,
		LeadingBid:    leadingBid,
		NextIncrement: next,
		NextBid:       base.Add(next),
		BidCount:      c.bids.Count(p.ID),
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{events: []events.Event{ev}}, nil
}

func (c *Coordinator) markSold(ctx context.Context, i MarkSold) (outcome, error) {
	p, err := c.activePlayer()
	if err != nil {
		return outcome{}, err
	}
	if p.Status != models.PlayerStatusAvailable {
		return outcome{}, reject(ErrNotAvailable, "%s is already %s", p.Name, p.Status)
	}

	var (
		teamID uuid.UUID
		amount decimal.Decimal
		direct bool
	)
	switch c.mode {
	case models.BiddingModeDirect:
		if i.TeamID == uuid.Nil {
			return outcome{}, reject(ErrMissingSelection, "direct sale requires a team")
		}
		if !i.FinalPrice.Valid {
			return outcome{}, reject(ErrMissingSelection, "direct sale requires a final price")
		}
		if i.FinalPrice.Decimal.IsNegative() {
			return outcome{}, reject(ErrMalformedAmount, "final price %s must not be negative", i.FinalPrice.Decimal)
		}
		teamID, amount, direct = i.TeamID, i.FinalPrice.Decimal, true
	default:
		leading, ok := c.bids.Leading(p.ID)
		if !ok {
			return outcome{}, reject(ErrNoBid, "no valid bid to sell %s against", p.Name)
		}
		teamID, amount = leading.TeamID, leading.Amount
	}

	team, err := c.team(teamID)
	if err != nil {
		return outcome{}, err
	}
	t := team.Team()
	if !team.HasRosterSpace(c.auction.PlayersPerTeam) {
		return outcome{}, reject(ErrRosterFull, "%s already has %d players", t.Name, t.PlayersCount)
	}
	if !team.CanAfford(amount) {
		return outcome{}, reject(ErrInsufficientBudget, "sale price %s exceeds team remaining budget of %s", amount, team.Remaining())
	}

	err = c.recorder.RecordSale(ctx, SaleRecord{
		AuctionID: c.auction.ID,
		PlayerID:  p.ID,
		TeamID:    teamID,
		Amount:    amount,
		Direct:    direct,
	})
	if err != nil {
		return outcome{}, wrap(ErrPersistFailed, err)
	}
	if err := team.Commit(amount); err != nil {
		return outcome{}, fmt.Errorf("commit sale of %s: %w", p.ID, err)
	}

	owner := teamID
	p.Status = models.PlayerStatusSold
	p.TeamID = &owner
	p.CurrentPrice = amount
	p.Version++
	c.bids.Clear(p.ID)
	c.hasActive = false

	t = team.Team()
	ev, err := c.event(events.TypePlayerSold, p, &owner, amount, events.PlayerSoldPayload{
		PlayerID:            p.ID,
		PlayerName:          p.Name,
		TeamID:              t.ID,
		TeamName:            t.Name,
		Amount:              amount,
		Direct:              direct,
		TeamPointsUsed:      t.PointsUsed,
		TeamRemainingBudget: t.RemainingBudget(),
		TeamPlayersCount:    t.PlayersCount,
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{events: []events.Event{ev}, advance: true, sold: p.ID}, nil
}

func (c *Coordinator) markUnsold(ctx context.Context) (outcome, error) {
	p, err := c.activePlayer()
	if err != nil {
		return outcome{}, err
	}
	if p.Status != models.PlayerStatusAvailable {
		return outcome{}, reject(ErrNotAvailable, "%s is already %s", p.Name, p.Status)
	}
	if c.mode == models.BiddingModeLive && c.bids.Count(p.ID) > 0 {
		return outcome{}, reject(ErrBidsOpen, "%s has %d open bids and cannot be marked unsold", p.Name, c.bids.Count(p.ID))
	}

	if err := c.recorder.RecordUnsold(ctx, c.auction.ID, p.ID); err != nil {
		return outcome{}, wrap(ErrPersistFailed, err)
	}

	p.Status = models.PlayerStatusUnsold
	p.Version++
	c.bids.Clear(p.ID)
	c.hasActive = false

	ev, err := c.event(events.TypePlayerUnsold, p, nil, p.CurrentPrice, events.PlayerUnsoldPayload{
		PlayerID:   p.ID,
		PlayerName: p.Name,
		Mode:       c.mode,
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{events: []events.Event{ev}}, nil
}

func (c *Coordinator) setMode(mode models.BiddingMode) (outcome, error) {
	if !mode.Valid() {
		return outcome{}, reject(ErrUnknownMode, "unknown bidding mode %q", mode)
	}
	if mode == c.mode {
		return outcome{}, nil
	}
	if c.hasActive && c.bids.Count(c.active) > 0 {
		return outcome{}, reject(ErrBidsOpen, "cannot switch to %s while %s has open bids", mode, c.players[c.active].Name)
	}

	previous := c.mode
	c.mode = mode
	ev, err := c.event(events.TypeModeChanged, nil, nil, decimal.Zero, events.ModeChangedPayload{
		Previous: previous,
		Mode:     mode,
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{events: []events.Event{ev}}, nil
}

func (c *Coordinator) relistPlayer(id uuid.UUID) (outcome, error) {
	p, ok := c.players[id]
	if !ok {
		return outcome{}, reject(ErrUnknownPlayer, "player %s is not part of this auction", id)
	}
	if p.Status != models.PlayerStatusUnsold {
		return outcome{}, reject(ErrNotUnsold, "%s is %s, only UNSOLD players can be re-listed", p.Name, p.Status)
	}

	p.Status = models.PlayerStatusAvailable
	p.TeamID = nil
	p.CurrentPrice = c.basePrice(p)
	p.Version++

	ev, err := c.event(events.TypePlayerRelisted, p, nil, p.CurrentPrice, events.PlayerRelistedPayload{
		PlayerID:     p.ID,
		PlayerName:   p.Name,
		CurrentPrice: p.CurrentPrice,
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{events: []events.Event{ev}}, nil
}

func (c *Coordinator) releasePlayer(i ReleasePlayer) (outcome, error) {
	p, ok := c.players[i.PlayerID]
	if !ok {
		return outcome{}, reject(ErrUnknownPlayer, "player %s is not part of this auction", i.PlayerID)
	}
	if p.Status != models.PlayerStatusSold || p.TeamID == nil {
		return outcome{}, reject(ErrNotOwned, "%s is not on a team roster", p.Name)
	}
	owner := *p.TeamID
	if i.TeamID != uuid.Nil && i.TeamID != owner {
		return outcome{}, reject(ErrNotOwned, "%s is not owned by team %s", p.Name, i.TeamID)
	}
	team, err := c.team(owner)
	if err != nil {
		return outcome{}, err
	}

	refund := p.CurrentPrice
	if i.Refund.Valid {
		if i.Refund.Decimal.IsNegative() {
			return outcome{}, reject(ErrMalformedAmount, "refund %s must not be negative", i.Refund.Decimal)
		}
		refund = i.Refund.Decimal
	}
	applied, err := team.Release(refund)
	if err != nil {
		return outcome{}, reject(ErrNotOwned, "release %s: %v", p.Name, err)
	}

	p.Status = models.PlayerStatusAvailable
	p.TeamID = nil
	p.CurrentPrice = c.basePrice(p)
	p.Version++

	t := team.Team()
	ev, err := c.event(events.TypePlayerReleased, p, &owner, applied, events.PlayerReleasedPayload{
		PlayerID:            p.ID,
		PlayerName:          p.Name,
		TeamID:              t.ID,
		TeamName:            t.Name,
		Refund:              applied,
		CurrentPrice:        p.CurrentPrice,
		TeamPointsUsed:      t.PointsUsed,
		TeamRemainingBudget: t.RemainingBudget(),
		TeamPlayersCount:    t.PlayersCount,
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{events: []events.Event{ev}}, nil
}

func (c *Coordinator) activePlayer() (*models.Player, error) {
	if !c.hasActive {
		return nil, ErrNoActivePlayer
	}
	return c.players[c.active], nil
}

func (c *Coordinator) team(id uuid.UUID) (*budget.Ledger, error) {
	if id == uuid.Nil {
		return nil, reject(ErrMissingSelection, "a team must be chosen")
	}
	team, ok := c.teams[id]
	if !ok {
		return nil, reject(ErrUnknownTeam, "team %s is not part of this auction", id)
	}
	return team, nil
}

// available lists AVAILABLE players in load order, without exclude.
func (c *Coordinator) available(exclude uuid.UUID) []uuid.UUID {
	var ids []uuid.UUID
	for _, id := range c.playerOrder {
		if id == exclude {
			continue
		}
		if c.players[id].Status == models.PlayerStatusAvailable {
			ids = append(ids, id)
		}
	}
	return ids
}

// basePrice is the opening price of a player, never below the auction minimum.
func (c *Coordinator) basePrice(p *models.Player) decimal.Decimal {
	return decimal.Max(p.BasePrice, c.auction.MinimumBid)
}

// noBidPrice is the price shown once every bid is undone.
func (c *Coordinator) noBidPrice(p *models.Player) decimal.Decimal {
	if c.undoReset == UndoResetZero {
		return decimal.Zero
	}
	if c.hasActive && c.active == p.ID {
		return c.opening
	}
	return c.basePrice(p)
}

// biddingBase is the price the next increment is added to. A zero price means
// no bids yet and bidding starts from the base price.
func (c *Coordinator) biddingBase(p *models.Player) decimal.Decimal {
	if p.CurrentPrice.IsZero() {
		return c.basePrice(p)
	}
	return p.CurrentPrice
}

func (c *Coordinator) event(typ events.Type, p *models.Player, teamID *uuid.UUID, amount decimal.Decimal, payload interface{}) (events.Event, error) {
	ev, err := events.New(c.auction.ID, typ, c.clock.Now(), payload)
	if err != nil {
		return events.Event{}, err
	}
	c.sequence++
	ev.Sequence = c.sequence
	ev.TeamID = teamID
	ev.Amount = amount
	if p != nil {
		ev.PlayerID = p.ID
		ev.PlayerStatus = p.Status
		ev.PlayerVersion = p.Version
	}
	return ev, nil
}

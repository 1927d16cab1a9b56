package rooms

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"questvote/internal/events"
	"questvote/internal/narrator"
)

type Phase string

const (
	PhaseOpen         = Phase("open")
	PhaseVoting       = Phase("voting")
	PhaseResolving    = Phase("resolving")
	PhaseAwaitingRoll = Phase("awaiting_roll")
)

const maxIDAttempts = 10

// Notifier fans room events out to live connections. Broadcast is called with
// the room lock held, so implementations must only enqueue and never block on I/O.
type Notifier interface {
	Broadcast(code string, msg any)
	CloseRoom(code string)
	Count(code string) int
}

type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Membership is returned on join: the new player plus where the story stands.
type Membership struct {
	Player
	Context string `json:"context"`
	Prompt  string `json:"prompt"`
	Phase   Phase  `json:"phase"`
}

type Vote struct {
	PlayerID string `json:"player_id"`
	Choice   int    `json:"choice"`
}

// Snapshot is a consistent copy of a room's state.
type Snapshot struct {
	Code    string            `json:"code"`
	Prompt  string            `json:"prompt"`
	Context string            `json:"context"`
	Phase   Phase             `json:"phase"`
	Round   int               `json:"round"`
	Players map[string]string `json:"players"`
	Actions []events.Action   `json:"actions"`
	Votes   []int             `json:"votes"`
}

// Resolution describes the end of a resolve or roll step. When NeedRoll is set
// the round has not advanced yet.
type Resolution struct {
	Round         int           `json:"round"`
	Phase         Phase         `json:"phase"`
	Prompt        string        `json:"prompt"`
	WinningAction events.Action `json:"winning_action"`
	Tally         []int         `json:"votes"`
	NeedRoll      bool          `json:"need_roll"`
	Roll          *int          `json:"roll,omitempty"`
}

// RoundSummary is handed to the round hook each time a round completes.
type RoundSummary struct {
	RoomCode      string
	Round         int
	Prompt        string
	WinningAction events.Action
	Tally         []int
	Roll          *int
	NextPrompt    string
	CompletedAt   time.Time
}

type Room struct {
	Code      string
	CreatedAt time.Time

	mu         sync.Mutex
	players    map[string]string
	actions    []events.Action
	votes      []Vote
	prompt     string
	story      string
	phase      Phase
	round      int
	pending    *pendingRound
	lastActive time.Time

	notify      Notifier
	gateActions bool
	onRound     func(RoundSummary)
	now         func() time.Time
}

// pendingRound holds the closed round while the collaborator is consulted.
type pendingRound struct {
	winner events.Action
	tally  []int
	prompt string
}

type roomConfig struct {
	prompt      string
	story       string
	gateActions bool
	notify      Notifier
	onRound     func(RoundSummary)
	now         func() time.Time
}

func newRoom(code string, cfg roomConfig) *Room {
	now := cfg.now()
	return &Room{
		Code:        code,
		CreatedAt:   now,
		players:     make(map[string]string),
		prompt:      cfg.prompt,
		story:       cfg.story,
		phase:       PhaseOpen,
		round:       1,
		lastActive:  now,
		notify:      cfg.notify,
		gateActions: cfg.gateActions,
		onRound:     cfg.onRound,
		now:         cfg.now,
	}
}

func (r *Room) touchLocked() {
	r.lastActive = r.now()
}

func (r *Room) Touch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touchLocked()
}

func (r *Room) LastActive() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActive
}

func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

func (r *Room) Prompt() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prompt
}

func (r *Room) Players() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.players)
}

func (r *Room) HasPlayer(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.players[id]
	return ok
}

func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Code:    r.Code,
		Prompt:  r.prompt,
		Context: r.story,
		Phase:   r.phase,
		Round:   r.round,
		Players: maps.Clone(r.players),
		Actions: r.actionsLocked(),
		Votes:   r.tallyLocked(),
	}
}

// Join adds a player under a fresh id that is unique within the room.
func (r *Room) Join(name string) (Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for range maxIDAttempts {
		id, err := GenerateCode(PlayerIDLength)
		if err != nil {
			return Membership{}, fmt.Errorf("generating player id: %w", err)
		}
		if _, exists := r.players[id]; exists {
			continue
		}
		r.players[id] = name
		r.touchLocked()
		r.notify.Broadcast(r.Code, events.PlayersEvent{Players: maps.Clone(r.players)})
		return Membership{
			Player:  Player{ID: id, Name: name},
			Context: r.story,
			Prompt:  r.prompt,
			Phase:   r.phase,
		}, nil
	}
	return Membership{}, fmt.Errorf("player id: %w", ErrCodeExhausted)
}

// ProposeAction appends a proposal and returns the full action list.
func (r *Room) ProposeAction(playerID, text string) ([]events.Action, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[playerID]; !ok {
		return nil, ErrPlayerNotInRoom
	}
	switch r.phase {
	case PhaseOpen:
	case PhaseVoting:
		if r.gateActions {
			return nil, fmt.Errorf("proposing during %s: %w", r.phase, ErrWrongPhase)
		}
	default:
		return nil, fmt.Errorf("proposing during %s: %w", r.phase, ErrWrongPhase)
	}

	r.actions = append(r.actions, events.Action{PlayerID: playerID, Text: text})
	r.touchLocked()

	actions := r.actionsLocked()
	r.notify.Broadcast(r.Code, events.ActionsEvent{Actions: actions})
	return actions, nil
}

// SubmitVote records a vote for the action at index choice and returns the tally.
// An out of range choice leaves the votes untouched.
func (r *Room) SubmitVote(playerID string, choice int) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[playerID]; !ok {
		return nil, ErrPlayerNotInRoom
	}
	if r.phase != PhaseOpen && r.phase != PhaseVoting {
		return nil, fmt.Errorf("voting during %s: %w", r.phase, ErrWrongPhase)
	}
	if choice < 0 || choice >= len(r.actions) {
		return nil, fmt.Errorf("choice %d of %d actions: %w", choice, len(r.actions), ErrInvalidChoice)
	}

	r.votes = append(r.votes, Vote{PlayerID: playerID, Choice: choice})
	r.phase = PhaseVoting
	r.touchLocked()

	tally := r.tallyLocked()
	r.notify.Broadcast(r.Code, events.VotesEvent{Votes: tally})
	return tally, nil
}

func (r *Room) Tally() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tallyLocked()
}

func (r *Room) actionsLocked() []events.Action {
	out := make([]events.Action, len(r.actions))
	copy(out, r.actions)
	return out
}

func (r *Room) tallyLocked() []int {
	counts := make([]int, len(r.actions))
	for _, v := range r.votes {
		counts[v.Choice]++
	}
	return counts
}

// winner returns the most voted index; ties go to the earliest action.
func winner(tally []int) int {
	best := 0
	for i, n := range tally {
		if n > tally[best] {
			best = i
		}
	}
	return best
}

// Resolve closes the round, asks the collaborator for the next prompt and
// either advances the round or parks the room until a roll is supplied.
// The collaborator is called without holding the room lock.
func (r *Room) Resolve(ctx context.Context, n narrator.Narrator) (Resolution, error) {
	r.mu.Lock()
	if r.phase != PhaseOpen && r.phase != PhaseVoting {
		r.mu.Unlock()
		return Resolution{}, fmt.Errorf("resolving during %s: %w", r.phase, ErrWrongPhase)
	}
	if len(r.actions) == 0 {
		r.mu.Unlock()
		return Resolution{}, ErrNoActions
	}
	if len(r.votes) == 0 {
		r.mu.Unlock()
		return Resolution{}, ErrNoVotes
	}

	tally := r.tallyLocked()
	p := &pendingRound{
		winner: r.actions[winner(tally)],
		tally:  tally,
		prompt: r.prompt,
	}
	prev := r.phase
	r.phase = PhaseResolving
	r.pending = p
	story := r.story
	r.touchLocked()
	r.notify.Broadcast(r.Code, events.PhaseEvent{Phase: string(PhaseResolving)})
	r.mu.Unlock()

	out, err := n.Evaluate(ctx, p.winner.Text, story, nil)

	r.mu.Lock()
	if err != nil {
		r.phase = prev
		r.pending = nil
		r.notify.Broadcast(r.Code, events.PhaseEvent{Phase: string(prev)})
		r.mu.Unlock()
		return Resolution{}, fmt.Errorf("evaluating round: %w: %w", ErrNarrator, err)
	}

	if out.NeedRoll {
		r.phase = PhaseAwaitingRoll
		r.notify.Broadcast(r.Code, events.RollRequestEvent{
			Phase:         string(PhaseAwaitingRoll),
			NeedRoll:      true,
			WinningAction: p.winner,
		})
		res := Resolution{
			Round:         r.round,
			Phase:         r.phase,
			Prompt:        r.prompt,
			WinningAction: p.winner,
			Tally:         p.tally,
			NeedRoll:      true,
		}
		r.mu.Unlock()
		return res, nil
	}

	res, summary := r.advanceLocked(p, out.NextPrompt, nil)
	r.mu.Unlock()
	r.emitRound(summary)
	return res, nil
}

// Roll supplies the dice outcome for a room waiting on one. The round advances
// with whatever prompt the collaborator returns.
func (r *Room) Roll(ctx context.Context, n narrator.Narrator, value int) (Resolution, error) {
	r.mu.Lock()
	if r.phase != PhaseAwaitingRoll || r.pending == nil {
		r.mu.Unlock()
		return Resolution{}, ErrNoRollPending
	}
	p := r.pending
	r.phase = PhaseResolving
	story := r.story
	r.touchLocked()
	r.notify.Broadcast(r.Code, events.PhaseEvent{Phase: string(PhaseResolving)})
	r.mu.Unlock()

	out, err := n.Evaluate(ctx, p.winner.Text, story, &value)

	r.mu.Lock()
	if err != nil {
		r.phase = PhaseAwaitingRoll
		r.notify.Broadcast(r.Code, events.PhaseEvent{Phase: string(PhaseAwaitingRoll)})
		r.mu.Unlock()
		return Resolution{}, fmt.Errorf("evaluating roll: %w: %w", ErrNarrator, err)
	}
	res, summary := r.advanceLocked(p, out.NextPrompt, &value)
	r.mu.Unlock()
	r.emitRound(summary)
	return res, nil
}

func (r *Room) advanceLocked(p *pendingRound, next string, roll *int) (Resolution, RoundSummary) {
	summary := RoundSummary{
		RoomCode:      r.Code,
		Round:         r.round,
		Prompt:        p.prompt,
		WinningAction: p.winner,
		Tally:         p.tally,
		Roll:          roll,
		NextPrompt:    next,
		CompletedAt:   r.now(),
	}

	r.prompt = next
	r.story += "\n\n" + next
	r.actions = nil
	r.votes = nil
	r.pending = nil
	r.round++
	r.phase = PhaseOpen
	r.touchLocked()

	r.notify.Broadcast(r.Code, events.NewRoundEvent(string(r.phase), r.prompt, r.story, r.round))
	return Resolution{
		Round:         r.round,
		Phase:         r.phase,
		Prompt:        r.prompt,
		WinningAction: p.winner,
		Tally:         p.tally,
		Roll:          roll,
	}, summary
}

func (r *Room) emitRound(s RoundSummary) {
	if r.onRound != nil {
		r.onRound(s)
	}
}

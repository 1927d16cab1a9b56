package rooms

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"questvote/internal/events"
	"questvote/internal/metrics"
	"questvote/internal/narrator"
)

const DefaultWelcomePrompt = "Welcome to the quest."

type Options struct {
	WelcomePrompt           string
	GateActionsDuringVoting bool
	// IdleTTL of zero disables eviction.
	IdleTTL time.Duration

	Narrator narrator.Narrator
	Roller   narrator.Roller
	Notifier Notifier
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger

	// OnRoundComplete runs after a round advances, outside the room lock.
	OnRoundComplete func(RoundSummary)
	Now             func() time.Time
}

// Store is the room registry. The store lock guards only the code map; each
// room carries its own lock for its state.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*Room
	opts  Options
	log   zerolog.Logger
}

func NewStore(opts Options) *Store {
	if opts.WelcomePrompt == "" {
		opts.WelcomePrompt = DefaultWelcomePrompt
	}
	if opts.Narrator == nil {
		opts.Narrator = narrator.Echo{}
	}
	if opts.Roller == nil {
		opts.Roller = narrator.D20{}
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		rooms: make(map[string]*Room),
		opts:  opts,
		log:   opts.Logger,
	}
}

// Seed sets the opening of a quest. Empty fields fall back to the welcome
// prompt; the story context starts as the prompt when no context is given.
type Seed struct {
	Context string
	Prompt  string
}

func (s *Store) Create() (*Room, error) {
	return s.CreateSeeded(Seed{})
}

func (s *Store) CreateSeeded(seed Seed) (*Room, error) {
	prompt := seed.Prompt
	if prompt == "" {
		prompt = s.opts.WelcomePrompt
	}
	story := seed.Context
	if story == "" {
		story = prompt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for range maxIDAttempts {
		code, err := GenerateCode(RoomCodeLength)
		if err != nil {
			return nil, fmt.Errorf("generating room code: %w", err)
		}
		if _, exists := s.rooms[code]; exists {
			continue
		}

		room := newRoom(code, roomConfig{
			prompt:      prompt,
			story:       story,
			gateActions: s.opts.GateActionsDuringVoting,
			notify:      s.opts.Notifier,
			onRound:     s.roundCompleted,
			now:         s.opts.Now,
		})
		s.rooms[code] = room
		s.opts.Metrics.RoomCreated()
		s.log.Debug().Str("room", code).Msg("room created")
		return room, nil
	}
	return nil, fmt.Errorf("room code after %d attempts: %w", maxIDAttempts, ErrCodeExhausted)
}

// Get looks up a room by code.
func (s *Store) Get(code string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (s *Store) Join(code, name string) (Membership, error) {
	room, err := s.Get(code)
	if err != nil {
		return Membership{}, err
	}
	return room.Join(name)
}

func (s *Store) ProposeAction(code, playerID, text string) ([]events.Action, error) {
	room, err := s.Get(code)
	if err != nil {
		return nil, err
	}
	return room.ProposeAction(playerID, text)
}

func (s *Store) SubmitVote(code, playerID string, choice int) ([]int, error) {
	room, err := s.Get(code)
	if err != nil {
		return nil, err
	}
	return room.SubmitVote(playerID, choice)
}

func (s *Store) Resolve(ctx context.Context, code string) (Resolution, error) {
	room, err := s.Get(code)
	if err != nil {
		return Resolution{}, err
	}
	return room.Resolve(ctx, s.opts.Narrator)
}

// Roll feeds a dice outcome to a room awaiting one. A nil value rolls a die.
func (s *Store) Roll(ctx context.Context, code string, value *int) (Resolution, error) {
	room, err := s.Get(code)
	if err != nil {
		return Resolution{}, err
	}
	var v int
	if value != nil {
		v = *value
	} else {
		v = s.opts.Roller.Roll()
	}
	return room.Roll(ctx, s.opts.Narrator, v)
}

// Touch marks activity on a room, keeping it from being swept.
func (s *Store) Touch(code string) error {
	room, err := s.Get(code)
	if err != nil {
		return err
	}
	room.Touch()
	return nil
}

// Delete removes a room and closes its connections. It reports whether the room existed.
func (s *Store) Delete(code string) bool {
	s.mu.Lock()
	_, ok := s.rooms[code]
	delete(s.rooms, code)
	s.mu.Unlock()

	if ok {
		s.opts.Notifier.CloseRoom(code)
		s.opts.Metrics.RoomRemoved(false)
	}
	return ok
}

func (s *Store) List() []*Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		list = append(list, r)
	}
	return list
}

// Sweep evicts rooms idle for longer than the TTL and without live connections.
// It returns the evicted codes.
func (s *Store) Sweep(now time.Time) []string {
	if s.opts.IdleTTL <= 0 {
		return nil
	}

	s.mu.Lock()
	var evicted []string
	for code, room := range s.rooms {
		if now.Sub(room.LastActive()) <= s.opts.IdleTTL {
			continue
		}
		if s.opts.Notifier.Count(code) > 0 {
			continue
		}
		delete(s.rooms, code)
		evicted = append(evicted, code)
	}
	s.mu.Unlock()

	for _, code := range evicted {
		s.opts.Notifier.CloseRoom(code)
		s.opts.Metrics.RoomRemoved(true)
		s.log.Info().Str("room", code).Msg("evicted idle room")
	}
	return evicted
}

// RunSweeper sweeps on every tick until ctx is cancelled.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.opts.Now())
		}
	}
}

func (s *Store) roundCompleted(summary RoundSummary) {
	s.opts.Metrics.RoundResolved()
	s.log.Info().
		Str("room", summary.RoomCode).
		Int("round", summary.Round).
		Str("winning_action", summary.WinningAction.Text).
		Msg("round resolved")
	if s.opts.OnRoundComplete != nil {
		s.opts.OnRoundComplete(summary)
	}
}

type nopNotifier struct{}

func (nopNotifier) Broadcast(string, any) {}
func (nopNotifier) CloseRoom(string)      {}
func (nopNotifier) Count(string) int      { return 0 }

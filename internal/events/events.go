// Package events holds the payloads pushed to a room's real-time connections.
package events

type Action struct {
	PlayerID string `json:"player_id"`
	Text     string `json:"text"`
}

// ActionsEvent is pushed after every accepted action proposal.
type ActionsEvent struct {
	Actions []Action `json:"actions"`
}

// VotesEvent carries the tally, one count per action in action order.
type VotesEvent struct {
	Votes []int `json:"votes"`
}

// ChatEvent relays raw text received on a room connection.
type ChatEvent struct {
	Message string `json:"message"`
}

type PlayersEvent struct {
	Players map[string]string `json:"players"`
}

type RollRequestEvent struct {
	Phase         string `json:"phase"`
	NeedRoll      bool   `json:"need_roll"`
	WinningAction Action `json:"winning_action"`
}

type PhaseEvent struct {
	Phase string `json:"phase"`
}

// RoundEvent announces a new round. Actions and Votes are always empty slices.
type RoundEvent struct {
	Phase   string   `json:"phase"`
	Prompt  string   `json:"prompt"`
	Context string   `json:"context"`
	Round   int      `json:"round"`
	Actions []Action `json:"actions"`
	Votes   []int    `json:"votes"`
}

func NewRoundEvent(phase, prompt, context string, round int) RoundEvent {
	return RoundEvent{
		Phase:   phase,
		Prompt:  prompt,
		Context: context,
		Round:   round,
		Actions: []Action{},
		Votes:   []int{},
	}
}

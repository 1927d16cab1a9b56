package events

import (
	"encoding/json"
	"testing"
)

func TestNewRoundEvent_EncodesEmptyLists(t *testing.T) {
	ev := NewRoundEvent("open", "next", "story", 2)

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"phase":"open","prompt":"next","context":"story","round":2,"actions":[],"votes":[]}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

func TestVotesEvent_Shape(t *testing.T) {
	data, err := json.Marshal(VotesEvent{Votes: []int{1, 0, 2}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"votes":[1,0,2]}` {
		t.Errorf("json = %s", data)
	}
}

func TestActionsEvent_Shape(t *testing.T) {
	data, err := json.Marshal(ActionsEvent{Actions: []Action{{PlayerID: "P1", Text: "open the door"}}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"actions":[{"player_id":"P1","text":"open the door"}]}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

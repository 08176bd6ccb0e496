package battle

import (
	"errors"
	"testing"
)

func TestParseChoice(t *testing.T) {
	cases := []struct {
		in      string
		want    Choice
		wantErr bool
	}{
		{in: "A", want: ChoiceA},
		{in: "B", want: ChoiceB},
		{in: "TIE", want: ChoiceTie},
		{in: "a", wantErr: true},
		{in: "", wantErr: true},
		{in: "C", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseChoice(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidChoice) {
					t.Fatalf("want ErrInvalidChoice, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if got != tc.want {
				t.Fatalf("want %q, got %q", tc.want, got)
			}
		})
	}
}

func TestValidTransition_OnlyForwardSingleSteps(t *testing.T) {
	cases := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"waiting to in_progress", StatusWaiting, StatusInProgress, true},
		{"in_progress to voting", StatusInProgress, StatusVoting, true},
		{"voting to finished", StatusVoting, StatusFinished, true},
		{"skip a step", StatusWaiting, StatusVoting, false},
		{"backward", StatusVoting, StatusInProgress, false},
		{"self", StatusVoting, StatusVoting, false},
		{"out of finished", StatusFinished, StatusWaiting, false},
		{"unknown status", Status("LIMBO"), StatusWaiting, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidTransition(tc.from, tc.to); got != tc.want {
				t.Fatalf("ValidTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestCountVotesAndWinner(t *testing.T) {
	const playerA = "user-a"
	const playerB = "user-b"

	cases := []struct {
		name    string
		choices []Choice
		want    *string
	}{
		{
			name:    "A sweeps",
			choices: []Choice{ChoiceA, ChoiceA},
			want:    ptr(playerA),
		},
		{
			name:    "B sweeps",
			choices: []Choice{ChoiceB, ChoiceB},
			want:    ptr(playerB),
		},
		{
			name:    "split is a tie",
			choices: []Choice{ChoiceA, ChoiceB},
			want:    nil,
		},
		{
			name:    "explicit tie votes push neither side",
			choices: []Choice{ChoiceTie, ChoiceTie},
			want:    nil,
		},
		{
			name:    "tie vote plus A vote resolves to A",
			choices: []Choice{ChoiceTie, ChoiceA},
			want:    ptr(playerA),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			votes := make([]Vote, 0, len(tc.choices))
			for _, c := range tc.choices {
				votes = append(votes, Vote{Choice: c})
			}
			tally := CountVotes(votes)
			if tally.Total() != len(tc.choices) {
				t.Fatalf("tally total = %d, want %d", tally.Total(), len(tc.choices))
			}
			got := Winner(tally, playerA, playerB)
			if (got == nil) != (tc.want == nil) {
				t.Fatalf("winner = %v, want %v", got, tc.want)
			}
			if got != nil && *got != *tc.want {
				t.Fatalf("winner = %q, want %q", *got, *tc.want)
			}
		})
	}
}

func TestResultDeltas_DecisiveResult(t *testing.T) {
	winner := "user-a"
	updates := ResultDeltas(&winner, "user-a", "user-b")
	if len(updates) != 2 {
		t.Fatalf("want 2 updates, got %d", len(updates))
	}
	if updates[0].UserID != "user-a" || updates[0].Wins != 1 || updates[0].Rating != RatingDelta {
		t.Fatalf("winner update wrong: %+v", updates[0])
	}
	if updates[1].UserID != "user-b" || updates[1].Losses != 1 || updates[1].Rating != -RatingDelta {
		t.Fatalf("loser update wrong: %+v", updates[1])
	}
	if updates[0].Ties != 0 || updates[1].Ties != 0 {
		t.Fatalf("decisive result must not touch tie counters: %+v", updates)
	}
}

func TestResultDeltas_BWinnerFlipsLoser(t *testing.T) {
	winner := "user-b"
	updates := ResultDeltas(&winner, "user-a", "user-b")
	if updates[0].UserID != "user-b" || updates[1].UserID != "user-a" {
		t.Fatalf("wrong pair: %+v", updates)
	}
	if updates[1].Losses != 1 || updates[1].Rating != -RatingDelta {
		t.Fatalf("loser update wrong: %+v", updates[1])
	}
}

func TestResultDeltas_Tie(t *testing.T) {
	updates := ResultDeltas(nil, "user-a", "user-b")
	if len(updates) != 2 {
		t.Fatalf("want 2 updates, got %d", len(updates))
	}
	for _, u := range updates {
		if u.Ties != 1 {
			t.Fatalf("tie must increment ties: %+v", u)
		}
		if u.Wins != 0 || u.Losses != 0 || u.Rating != 0 {
			t.Fatalf("tie must leave wins/losses/rating alone: %+v", u)
		}
	}
}

func ptr(s string) *string { return &s }

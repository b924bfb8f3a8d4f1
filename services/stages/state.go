// Package stages runs the round/stage machine of a match. The host is the
// only writer; everybody else reads distributed snapshots and never regresses
// to an older one.
package stages

import (
	"time"

	game_constants "Mobius/constants/game"
)

// VerdictPhase is the tie-break sub-state of the verdict stage.
type VerdictPhase int

const (
	VerdictVote VerdictPhase = iota
	VerdictReDiscussion
	VerdictReVote
)

func (p VerdictPhase) String() string {
	switch p {
	case VerdictReDiscussion:
		return "re-discussion"
	case VerdictReVote:
		return "re-vote"
	}
	return "vote"
}

// Outcome is the verdict of one round.
type Outcome struct {
	Round      int            `json:"round"`
	Accused    string         `json:"accused,omitempty"`
	NoMajority bool           `json:"no_majority"`
	Votes      map[string]int `json:"votes,omitempty"`
}

// State is the full stage machine of a room, as stored and as distributed.
type State struct {
	Room         string       `json:"room"`
	Epoch        int          `json:"epoch"`
	Round        int          `json:"round"`
	Stage        int          `json:"stage"`
	Verdict      VerdictPhase `json:"verdict_phase"`
	StageStartAt time.Time    `json:"stage_start_at"`
	Variant      int          `json:"variant"`
	Started      bool         `json:"started"`
	Finished     bool         `json:"finished"`
	Outcome      *Outcome     `json:"outcome,omitempty"`
	Version      int64        `json:"version"`
}

// Initial is round 1, stage 0, starting now.
func Initial(room string, variant, epoch int, now time.Time) State {
	return State{
		Room:         room,
		Epoch:        epoch,
		Round:        1,
		Stage:        game_constants.STAGE_CLUE,
		Verdict:      VerdictVote,
		StageStartAt: now.UTC(),
		Variant:      variant,
		Started:      true,
	}
}

// Duration of the current stage. Zero means it never times out.
func (s State) Duration() time.Duration {
	switch s.Stage {
	case game_constants.STAGE_CLUE:
		return game_constants.CLUE_DURATION
	case game_constants.STAGE_DISCUSSION:
		return game_constants.DISCUSSION_DURATION
	case game_constants.STAGE_SECRET_VOTE:
		return game_constants.SECRET_VOTE_DURATION
	case game_constants.STAGE_VERDICT:
		switch s.Verdict {
		case VerdictReDiscussion:
			return game_constants.TIE_DISCUSSION_DURATION
		case VerdictReVote:
			return game_constants.TIE_REVOTE_DURATION
		}
		return game_constants.VERDICT_DURATION
	}
	return 0
}

// Deadline of the current stage, false for untimed stages.
func (s State) Deadline() (time.Time, bool) {
	d := s.Duration()
	if d == 0 {
		return time.Time{}, false
	}
	return s.StageStartAt.Add(d), true
}

// Due reports whether the current stage has run out at now. It is computed
// only from the stored start, never from local elapsed counters.
func (s State) Due(now time.Time) bool {
	if !s.Started || s.Finished {
		return false
	}
	d := s.Duration()
	return d > 0 && now.Sub(s.StageStartAt) >= d
}

// Voting reports whether verdict votes are accepted.
func (s State) Voting() bool {
	return s.Started && !s.Finished && s.Stage == game_constants.STAGE_VERDICT &&
		(s.Verdict == VerdictVote || s.Verdict == VerdictReVote)
}

// Running reports a match in one of its timed stages.
func (s State) Running() bool {
	return s.Started && !s.Finished && s.Stage != game_constants.STAGE_SUMMARY
}

// NeedsTally reports whether leaving the current stage resolves a verdict.
func (s State) NeedsTally() bool {
	return s.Stage == game_constants.STAGE_VERDICT && s.Verdict != VerdictReDiscussion
}

// Next is the state after the current stage ends at now. tally is only read
// when NeedsTally is true. From Summary it moves to the next round, or marks
// the match finished after the last one.
func Next(s State, now time.Time, tally map[string]int) State {
	next := s
	next.StageStartAt = now.UTC()

	switch s.Stage {
	case game_constants.STAGE_VERDICT:
		accused, decided := Decide(tally)
		switch {
		case s.Verdict == VerdictReDiscussion:
			next.Verdict = VerdictReVote
		case decided:
			next.Stage = game_constants.STAGE_SUMMARY
			next.Verdict = VerdictVote
			next.Outcome = &Outcome{Round: s.Round, Accused: accused, Votes: tally}
		case s.Verdict == VerdictVote:
			next.Verdict = VerdictReDiscussion
		default:
			// second tie: no second extension
			next.Stage = game_constants.STAGE_SUMMARY
			next.Verdict = VerdictVote
			next.Outcome = &Outcome{Round: s.Round, NoMajority: true, Votes: tally}
		}
	case game_constants.STAGE_SUMMARY:
		if s.Round >= game_constants.MaxGameRounds {
			next.StageStartAt = s.StageStartAt
			next.Finished = true
			return next
		}
		next.Round++
		next.Stage = game_constants.STAGE_CLUE
		next.Verdict = VerdictVote
		next.Outcome = nil
	default:
		next.Stage = (s.Stage + 1) % game_constants.TOTAL_STAGES
		next.Verdict = VerdictVote
	}
	return next
}

// Decide returns the target with the unique highest count. No votes or a
// shared top count is a tie.
func Decide(tally map[string]int) (string, bool) {
	best, top, shared := "", 0, false
	for target, n := range tally {
		switch {
		case n > top:
			best, top, shared = target, n, false
		case n == top:
			shared = true
		}
	}
	if top == 0 || shared {
		return "", false
	}
	return best, true
}

// Newer reports whether a is strictly ahead of b in the match: a later
// epoch, or the same epoch and a later (round, stage, sub-phase, start,
// finished) tuple.
func Newer(a, b State) bool {
	if a.Room != b.Room && b.Room != "" {
		return false
	}
	if a.Epoch != b.Epoch {
		return a.Epoch > b.Epoch
	}
	if a.Started != b.Started {
		return a.Started
	}
	if a.Round != b.Round {
		return a.Round > b.Round
	}
	if a.Stage != b.Stage {
		return a.Stage > b.Stage
	}
	if a.Verdict != b.Verdict {
		return a.Verdict > b.Verdict
	}
	if !a.StageStartAt.Equal(b.StageStartAt) {
		return a.StageStartAt.After(b.StageStartAt)
	}
	return a.Finished && !b.Finished
}

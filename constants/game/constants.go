package game_constants

import "time"

const MaxGameRounds = 10

// Stage indexes within a round
const (
	STAGE_CLUE        = 0
	STAGE_DISCUSSION  = 1
	STAGE_SECRET_VOTE = 2
	STAGE_VERDICT     = 3
	STAGE_SUMMARY     = 4
	TOTAL_STAGES      = 5
)

// Nominal stage durations. Summary has none and only moves on host action.
const (
	CLUE_DURATION        = 60 * time.Second
	DISCUSSION_DURATION  = 900 * time.Second
	SECRET_VOTE_DURATION = 60 * time.Second
	VERDICT_DURATION     = 30 * time.Second

	// Tie-break inside the verdict stage
	TIE_DISCUSSION_DURATION = 180 * time.Second
	TIE_REVOTE_DURATION     = 10 * time.Second
)

// Room codes
const (
	MIN_CODE_LENGTH = 4
	MAX_CODE_LENGTH = 6
	NEW_CODE_LENGTH = 6
	CODE_ALPHABET   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

const MAX_NAME_LENGTH = 24

// Game variants (case files)
const (
	VARIANT_GLASS_TOWER = 1 // office tower
	VARIANT_UNDERGROUND = 2 // subway station
	VARIANT_WHITE_NOISE = 3 // hospital wing
	VARIANT_NEON_MALL   = 4 // shopping mall
	DEFAULT_VARIANT     = VARIANT_GLASS_TOWER
)

// Clue-gathering: how many players may look at one place at the same time
const MAX_PLACE_VIEWERS = 2

// Whispers allowed per player and round
const WHISPERS_PER_ROUND = 1

func ValidVariant(v int) bool {
	return v >= VARIANT_GLASS_TOWER && v <= VARIANT_NEON_MALL
}

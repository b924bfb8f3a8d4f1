package stages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	game_constants "Mobius/constants/game"
	"Mobius/models/postgres"
	redis_models "Mobius/models/redis"
	"Mobius/services/distribution"
	"Mobius/services/rooms"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxTransitionAttempts = 5

// VoteBox keeps the verdict ballots of a round. Implemented by the Redis
// client.
type VoteBox interface {
	CastVote(ctx context.Context, roomCode string, epoch, round, phase int, voter, target string) error
	TallyVotes(ctx context.Context, roomCode string, epoch, round, phase int) (map[string]int, error)
}

// StateCache holds the last-known-good state of each room.
type StateCache interface {
	SaveStateSnapshot(ctx context.Context, roomCode string, version int64, state interface{}) error
	GetStateSnapshot(ctx context.Context, roomCode string, dst interface{}) (bool, error)
}

type Service struct {
	db    *gorm.DB
	rooms *rooms.Service
	votes VoteBox
	cache StateCache
	bus   distribution.Publisher
	now   func() time.Time
}

// NewService wires the stage machine. cache may be nil.
func NewService(db *gorm.DB, roomSvc *rooms.Service, votes VoteBox, cache StateCache, bus distribution.Publisher) *Service {
	if bus == nil {
		bus = distribution.Discard{}
	}
	return &Service{
		db:    db,
		rooms: roomSvc,
		votes: votes,
		cache: cache,
		bus:   bus,
		now:   time.Now,
	}
}

// SetClock replaces the wall clock, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Start begins the match at round 1, stage 0 with the room's variant. Host
// only. Starting a running match returns it unchanged; starting a finished
// one begins a new epoch. Unless force is set every non-host player must be
// ready.
func (s *Service) Start(ctx context.Context, rawCode, requester string, force bool) (*State, bool, error) {
	room, err := s.requireHost(ctx, rawCode, requester)
	if err != nil {
		return nil, false, err
	}

	cur, err := s.load(ctx, room.Code)
	if err != nil {
		return nil, false, err
	}
	if cur.Started && !cur.Finished {
		return cur, false, nil
	}

	if !force {
		ready, err := s.rooms.AllReady(ctx, room.Code)
		if err != nil {
			return nil, false, err
		}
		if !ready {
			return nil, false, ErrNotAllReady
		}
	}

	next := Initial(room.Code, room.Variant, cur.Epoch, s.now())
	if cur.Started {
		next.Epoch = cur.Epoch + 1
	}
	st, err := s.commit(ctx, cur, next)
	if errors.Is(err, errVersionConflict) {
		// someone else started it first
		st, err = s.load(ctx, room.Code)
		return st, false, err
	}
	if err != nil {
		return nil, false, err
	}
	log.Info().Msgf("[STAGE] Match in %s started by %s (epoch %d, variant %d)", st.Room, requester, st.Epoch, st.Variant)
	return st, true, nil
}

// Tick commits the timeout transition when the current stage is due. Host
// only. Not due is not an error: the state comes back unchanged.
func (s *Service) Tick(ctx context.Context, rawCode, requester string) (*State, bool, error) {
	return s.transition(ctx, rawCode, requester, func(cur *State, now time.Time) (bool, error) {
		if !cur.Started {
			return false, ErrNotStarted
		}
		return cur.Due(now), nil
	})
}

// Advance ends the current stage right away. It is the only way out of
// Summary. Host only.
func (s *Service) Advance(ctx context.Context, rawCode, requester string) (*State, bool, error) {
	return s.transition(ctx, rawCode, requester, func(cur *State, now time.Time) (bool, error) {
		if !cur.Started {
			return false, ErrNotStarted
		}
		if cur.Finished {
			return false, ErrMatchFinished
		}
		return true, nil
	})
}

// SelectVariant changes the room's variant. A match in progress restarts from
// round 1, stage 0 in a new epoch. The restart follows the room's variant, not
// whether this call changed it, so a retry repairs a restart that failed after
// the room was already updated.
func (s *Service) SelectVariant(ctx context.Context, rawCode, requester string, variant int) (*redis_models.RosterSnapshot, *State, error) {
	snap, _, err := s.rooms.SetVariant(ctx, rawCode, requester, variant)
	if err != nil {
		return nil, nil, err
	}

	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		cur, err := s.load(ctx, snap.Room)
		if err != nil {
			return snap, nil, err
		}
		if !cur.Started || cur.Finished || cur.Variant == snap.Variant {
			return snap, cur, nil
		}

		next := Initial(snap.Room, snap.Variant, cur.Epoch+1, s.now())
		st, err := s.commit(ctx, cur, next)
		if errors.Is(err, errVersionConflict) {
			continue
		}
		if err != nil {
			return snap, nil, err
		}
		log.Info().Msgf("[STAGE] Match in %s restarted with variant %d (epoch %d)", st.Room, st.Variant, st.Epoch)
		return snap, st, nil
	}
	return snap, nil, fmt.Errorf("%w: state of %s kept changing", rooms.ErrStoreUnavailable, snap.Room)
}

// CastVote records identity's verdict ballot for target. Members only, and
// only while a verdict vote is open. Voting again replaces the ballot.
func (s *Service) CastVote(ctx context.Context, rawCode, identity, target string) (*State, error) {
	code, err := rooms.NormalizeCode(rawCode)
	if err != nil {
		return nil, err
	}
	if _, err := s.rooms.Member(ctx, code, identity); err != nil {
		return nil, err
	}
	if _, err := s.rooms.Member(ctx, code, target); err != nil {
		if errors.Is(err, rooms.ErrNotMember) {
			return nil, ErrInvalidTarget
		}
		return nil, err
	}

	cur, err := s.load(ctx, code)
	if err != nil {
		return nil, err
	}
	if !cur.Voting() {
		return nil, ErrWrongStage
	}
	if err := s.votes.CastVote(ctx, code, cur.Epoch, cur.Round, int(cur.Verdict), identity, target); err != nil {
		return nil, fmt.Errorf("%w: %v", rooms.ErrStoreUnavailable, err)
	}
	log.Debug().Msgf("[VOTE] %s voted in %s round %d (%s)", identity, code, cur.Round, cur.Verdict)
	return cur, nil
}

// Tally returns the ballots of the current verdict sub-phase.
func (s *Service) Tally(ctx context.Context, rawCode string) (map[string]int, error) {
	code, err := rooms.NormalizeCode(rawCode)
	if err != nil {
		return nil, err
	}
	cur, err := s.load(ctx, code)
	if err != nil {
		return nil, err
	}
	if cur.Stage != game_constants.STAGE_VERDICT || !cur.Started {
		return map[string]int{}, nil
	}
	tally, err := s.votes.TallyVotes(ctx, code, cur.Epoch, cur.Round, int(cur.Verdict))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rooms.ErrStoreUnavailable, err)
	}
	return tally, nil
}

// State returns the current state. An unstarted room gives an unstarted
// state. When the store is unreachable the cached snapshot is returned with
// stale=true.
func (s *Service) State(ctx context.Context, rawCode string) (*State, bool, error) {
	code, err := rooms.NormalizeCode(rawCode)
	if err != nil {
		return nil, false, err
	}
	st, err := s.load(ctx, code)
	if err == nil {
		return st, false, nil
	}
	if !errors.Is(err, rooms.ErrStoreUnavailable) {
		return nil, false, err
	}

	log.Warn().Err(err).Msgf("[STAGE] Store read failed for %s, trying cache", code)
	if s.cache != nil {
		var cached State
		ok, cerr := s.cache.GetStateSnapshot(ctx, code, &cached)
		if cerr == nil && ok {
			return &cached, true, nil
		}
	}
	return nil, false, err
}

// transition is the single write path of Tick and Advance: read, decide,
// compute the next state, compare-and-set, retry on conflict.
func (s *Service) transition(ctx context.Context, rawCode, requester string,
	ready func(cur *State, now time.Time) (bool, error)) (*State, bool, error) {

	room, err := s.requireHost(ctx, rawCode, requester)
	if err != nil {
		return nil, false, err
	}

	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		cur, err := s.load(ctx, room.Code)
		if err != nil {
			return nil, false, err
		}
		now := s.now()
		ok, err := ready(cur, now)
		if err != nil {
			return cur, false, err
		}
		if !ok {
			return cur, false, nil
		}

		var tally map[string]int
		if cur.NeedsTally() {
			tally, err = s.votes.TallyVotes(ctx, room.Code, cur.Epoch, cur.Round, int(cur.Verdict))
			if err != nil {
				return cur, false, fmt.Errorf("%w: %v", rooms.ErrStoreUnavailable, err)
			}
		}

		next := Next(*cur, now, tally)
		st, err := s.commit(ctx, cur, next)
		if errors.Is(err, errVersionConflict) {
			log.Debug().Msgf("[STAGE] Conflict on %s (attempt %d)", room.Code, attempt)
			continue
		}
		if err != nil {
			return nil, false, err
		}
		log.Info().Msgf("[STAGE] %s: round %d stage %d (%s) -> round %d stage %d (%s)",
			st.Room, cur.Round, cur.Stage, cur.Verdict, st.Round, st.Stage, st.Verdict)
		return st, true, nil
	}
	return nil, false, fmt.Errorf("%w: state of %s kept changing", rooms.ErrStoreUnavailable, room.Code)
}

func (s *Service) requireHost(ctx context.Context, rawCode, requester string) (*postgres.Room, error) {
	room, err := s.rooms.Lookup(ctx, rawCode)
	if err != nil {
		return nil, err
	}
	if room.HostIdentity == nil || *room.HostIdentity != requester {
		return nil, rooms.ErrNotAuthorized
	}
	return room, nil
}

// load reads the state row. A room without one is unstarted.
func (s *Service) load(ctx context.Context, code string) (*State, error) {
	var row postgres.RoomState
	err := s.db.WithContext(ctx).Where("room_code = ?", code).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		room, lerr := s.rooms.Lookup(ctx, code)
		if lerr != nil {
			return nil, lerr
		}
		return &State{Room: code, Variant: room.Variant}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rooms.ErrStoreUnavailable, err)
	}
	return fromRow(&row), nil
}

// commit writes next over cur with compare-and-set on the version, then
// caches and publishes the result.
func (s *Service) commit(ctx context.Context, cur *State, next State) (*State, error) {
	next.Version = cur.Version + 1
	row, err := toRow(&next)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var res *gorm.DB
	if !cur.Started && cur.Version == 0 {
		res = db.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	} else {
		res = db.Model(&postgres.RoomState{}).
			Where("room_code = ? AND version = ?", cur.Room, cur.Version).
			Updates(map[string]interface{}{
				"epoch":          row.Epoch,
				"round":          row.Round,
				"stage":          row.Stage,
				"verdict":        row.Verdict,
				"stage_start_at": row.StageStartAt,
				"variant":        row.Variant,
				"finished":       row.Finished,
				"outcome":        row.Outcome,
				"version":        row.Version,
			})
	}
	if res.Error != nil {
		return nil, fmt.Errorf("%w: %v", rooms.ErrStoreUnavailable, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errVersionConflict
	}

	s.distribute(ctx, &next)
	return &next, nil
}

// distribute caches and publishes a state snapshot. Failures are only logged.
func (s *Service) distribute(ctx context.Context, st *State) {
	if s.cache != nil {
		if err := s.cache.SaveStateSnapshot(ctx, st.Room, st.Version, st); err != nil {
			log.Warn().Err(err).Msgf("[STAGE-ERROR] Caching state v%d of %s failed", st.Version, st.Room)
		}
	}
	ev, err := distribution.NewEvent(distribution.KindState, st.Room, st.Version, st)
	if err != nil {
		log.Error().Err(err).Msg("[STAGE-ERROR] Encoding state event failed")
		return
	}
	if err := s.bus.Publish(ctx, st.Room, ev); err != nil {
		log.Warn().Err(err).Msgf("[STAGE-ERROR] Publishing state v%d of %s failed", st.Version, st.Room)
	}
}

// Snapshot returns the state as a distribution event, for pollers and cache
// warmers. Unstarted rooms give no event.
func (s *Service) Snapshot(ctx context.Context, code string) (*distribution.Event, error) {
	st, err := s.load(ctx, code)
	if err != nil {
		return nil, err
	}
	if !st.Started {
		return nil, nil
	}
	ev, err := distribution.NewEvent(distribution.KindState, st.Room, st.Version, st)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func fromRow(row *postgres.RoomState) *State {
	st := &State{
		Room:         row.RoomCode,
		Epoch:        row.Epoch,
		Round:        row.Round,
		Stage:        row.Stage,
		Verdict:      VerdictPhase(row.Verdict),
		StageStartAt: row.StageStartAt.UTC(),
		Variant:      row.Variant,
		Started:      true,
		Finished:     row.Finished,
		Version:      row.Version,
	}
	if len(row.Outcome) > 0 {
		var out Outcome
		if err := json.Unmarshal(row.Outcome, &out); err == nil && out.Round > 0 {
			st.Outcome = &out
		}
	}
	return st
}

func toRow(st *State) (*postgres.RoomState, error) {
	outcome := datatypes.JSON("{}")
	if st.Outcome != nil {
		raw, err := json.Marshal(st.Outcome)
		if err != nil {
			return nil, err
		}
		outcome = raw
	}
	return &postgres.RoomState{
		RoomCode:     st.Room,
		Epoch:        st.Epoch,
		Round:        st.Round,
		Stage:        st.Stage,
		Verdict:      int(st.Verdict),
		StageStartAt: st.StageStartAt,
		Variant:      st.Variant,
		Finished:     st.Finished,
		Outcome:      outcome,
		Version:      st.Version,
	}, nil
}

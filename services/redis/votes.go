package redis

import (
	"context"
	"fmt"

	redis_utils "Mobius/services/redis/utils"
)

// CastVote stores voter's choice for one verdict sub-phase. A second vote by
// the same voter replaces the first.
// Key format: "room:{code}:epoch:{e}:round:{r}:verdict:{phase}:votes"
func (rc *RedisClient) CastVote(ctx context.Context, roomCode string, epoch, round, phase int, voter, target string) error {
	key := redis_utils.FormatVotesKey(roomCode, epoch, round, phase)
	pipe := rc.client.TxPipeline()
	pipe.HSet(ctx, key, voter, target)
	pipe.Expire(ctx, key, roundTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("error casting vote: %w", err)
	}
	return nil
}

// TallyVotes returns target -> number of votes.
func (rc *RedisClient) TallyVotes(ctx context.Context, roomCode string, epoch, round, phase int) (map[string]int, error) {
	key := redis_utils.FormatVotesKey(roomCode, epoch, round, phase)
	ballots, err := rc.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("error reading votes: %w", err)
	}
	tally := make(map[string]int, len(ballots))
	for _, target := range ballots {
		tally[target]++
	}
	return tally, nil
}

package presence

import (
	"context"
	"strconv"
	"time"

	"pubcash-backend/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// TTL after which a connection with no heartbeat counts as gone.
const staleAfter = 90 * time.Second

// Service is the connection manager tracking online users in a redis
// sorted set scored by last-seen time. Process-wide state with an
// explicit lifecycle: populated on connect, refreshed on heartbeat,
// cleared on disconnect or staleness. Never a source of truth for
// balances or eligibility.
type Service struct {
	rdb *redis.Client
}

type ServiceParams struct {
	fx.In
	Redis *redis.Client
}

func NewService(p ServiceParams) *Service {
	return &Service{rdb: p.Redis}
}

func (s *Service) Connect(ctx context.Context, userID string) error {
	return s.touch(ctx, userID)
}

func (s *Service) Heartbeat(ctx context.Context, userID string) error {
	return s.touch(ctx, userID)
}

func (s *Service) touch(ctx context.Context, userID string) error {
	err := s.rdb.ZAdd(ctx, rediskey.PresenceSetKey, redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: userID,
	}).Err()
	if err != nil {
		zap.L().Warn("failed to record presence", zap.String("user_id", userID), zap.Error(err))
	}
	return err
}

func (s *Service) Disconnect(ctx context.Context, userID string) error {
	return s.rdb.ZRem(ctx, rediskey.PresenceSetKey, userID).Err()
}

// Online lists users seen within the staleness window, evicting expired
// members on the way.
func (s *Service) Online(ctx context.Context) ([]string, error) {
	cutoff := time.Now().Add(-staleAfter).Unix()

	if err := s.rdb.ZRemRangeByScore(ctx, rediskey.PresenceSetKey,
		"-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		zap.L().Warn("failed to evict stale presence entries", zap.Error(err))
	}

	return s.rdb.ZRangeByScore(ctx, rediskey.PresenceSetKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff, 10),
		Max: "+inf",
	}).Result()
}

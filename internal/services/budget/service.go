package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"argus/internal/domain/telemetry"
	"argus/internal/kv"
	"argus/pkg/errors"
	"argus/pkg/logger"
)

// Spending keys outlive the day they cover so yesterday's total stays
// readable until the next rollover.
const spendTTL = 48 * time.Hour

// warnFraction is the share of the daily limit at which a warning is logged
const warnFraction = 0.80

// Service enforces a per-user daily spending ceiling. Totals are kept
// as running counters in the key-value store, one key per user per UTC
// day. Reads fail open: an unreachable store never blocks requests.
type Service struct {
	store      kv.Store
	dailyLimit decimal.Decimal
	log        *logger.Logger
}

// NewService creates a budget guard with the given daily USD limit per user
func NewService(store kv.Store, dailyLimit decimal.Decimal, log *logger.Logger) *Service {
	return &Service{
		store:      store,
		dailyLimit: dailyLimit,
		log:        log.With("service", "budget"),
	}
}

// Check returns ErrDailyLimitExceeded once the user's spend today has
// reached the daily limit. Requests without a user id are not budgeted.
func (s *Service) Check(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}

	spending, err := s.Spent(ctx, userID)
	if err != nil {
		s.log.Errorw("Failed to read daily spending", "user_id", userID, "error", err)
		return nil
	}

	if spending.GreaterThanOrEqual(s.dailyLimit) {
		s.log.Warnw("Daily cost limit reached",
			"user_id", userID,
			"spent", spending.StringFixed(2),
			"limit", s.dailyLimit.StringFixed(2))
		return errors.Wrapf(errors.ErrDailyLimitExceeded,
			"user %s: $%s / $%s", userID, spending.StringFixed(2), s.dailyLimit.StringFixed(2))
	}

	threshold := s.dailyLimit.Mul(decimal.NewFromFloat(warnFraction))
	if spending.GreaterThanOrEqual(threshold) {
		s.log.Warnw("Approaching daily cost limit",
			"user_id", userID,
			"spent", spending.StringFixed(2),
			"limit", s.dailyLimit.StringFixed(2))
	}

	return nil
}

// Record adds cost to the user's running total for today
func (s *Service) Record(ctx context.Context, userID string, cost decimal.Decimal) error {
	if userID == "" || cost.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	key := spendKey(userID, time.Now().UTC())
	if _, err := s.store.IncrByFloat(ctx, key, cost.InexactFloat64()); err != nil {
		return errors.Wrapf(err, "failed to record spending: user_id=%s", userID)
	}
	if err := s.store.Expire(ctx, key, spendTTL); err != nil {
		s.log.Errorw("Failed to refresh TTL on spending key", "key", key, "error", err)
	}

	return nil
}

// Spent returns the spending recorded for the user today. A user with
// no recorded spend is at zero.
func (s *Service) Spent(ctx context.Context, userID string) (decimal.Decimal, error) {
	data, err := s.store.Get(ctx, spendKey(userID, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, errors.Wrapf(err, "failed to read spending: user_id=%s", userID)
	}

	spending, err := decimal.NewFromString(string(data))
	if err != nil {
		return decimal.Zero, errors.Wrapf(errors.ErrInvalidInput,
			"spending value for user %s is not numeric", userID)
	}
	return spending, nil
}

// Remaining returns the budget the user has left today, floored at zero
func (s *Service) Remaining(ctx context.Context, userID string) (decimal.Decimal, error) {
	spending, err := s.Spent(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}

	remaining := s.dailyLimit.Sub(spending)
	if remaining.LessThan(decimal.Zero) {
		remaining = decimal.Zero
	}
	return remaining, nil
}

// RecordIngested charges a stored request against its user's daily
// budget. Satisfies the telemetry ingest sink so spend tracking rides
// along with every recorded request.
func (s *Service) RecordIngested(ctx context.Context, record *telemetry.Record) {
	if record.UserID == "" || record.CostUSD <= 0 {
		return
	}
	if err := s.Record(ctx, record.UserID, decimal.NewFromFloat(record.CostUSD)); err != nil {
		s.log.Errorw("Failed to track request cost",
			"request_id", record.RequestID,
			"user_id", record.UserID,
			"error", err)
	}
}

func spendKey(userID string, day time.Time) string {
	return fmt.Sprintf("spend:daily:%s:%s", userID, day.Format("2006-01-02"))
}

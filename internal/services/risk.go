package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"battlefield/internal/store"
)

// Advisory risk tags attached to withdrawal requests. Tags inform admin
// review; none of them blocks a request.
const (
	TagFirstWithdrawal   = "first_withdrawal"
	TagHighFrequency     = "high_frequency"
	TagLargeAmount       = "large_amount"
	TagSharedDestination = "shared_destination"
	TagHighRatio         = "high_ratio"
)

var tagWeights = map[string]int{
	TagFirstWithdrawal:   15,
	TagHighFrequency:     25,
	TagLargeAmount:       20,
	TagSharedDestination: 30,
	TagHighRatio:         10,
}

var highRatioThreshold = decimal.RequireFromString("0.9")

// RiskConfig holds the tagging thresholds.
type RiskConfig struct {
	LargeAmount int64
	WeeklyLimit int
}

func (s *PayoutService) assessRisk(ctx context.Context, userID, upiID string, amount, spendable int64) ([]string, int) {
	var tags []string

	total, err := s.payouts.CountByUser(ctx, userID, store.DirectionWithdrawal)
	if err == nil && total == 0 {
		tags = append(tags, TagFirstWithdrawal)
	}

	weekAgo := time.Now().Add(-7 * 24 * time.Hour)
	recent, err := s.payouts.CountSince(ctx, userID, store.DirectionWithdrawal, weekAgo)
	if err == nil && recent > s.risk.WeeklyLimit {
		tags = append(tags, TagHighFrequency)
	}

	if s.risk.LargeAmount > 0 && amount >= s.risk.LargeAmount {
		tags = append(tags, TagLargeAmount)
	}

	shared, err := s.payouts.DestinationShared(ctx, upiID, userID)
	if err == nil && shared {
		tags = append(tags, TagSharedDestination)
	}

	if spendable > 0 {
		ratio := decimal.NewFromInt(amount).Div(decimal.NewFromInt(spendable))
		if ratio.GreaterThanOrEqual(highRatioThreshold) {
			tags = append(tags, TagHighRatio)
		}
	}

	score := 0
	for _, tag := range tags {
		score += tagWeights[tag]
	}
	if score > 100 {
		score = 100
	}
	return tags, score
}

// withinWindow reports whether hour falls inside [start, end). A window with
// start > end wraps past midnight.
func withinWindow(hour, start, end int) bool {
	if start == end {
		return true
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

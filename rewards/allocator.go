package rewards

import (
	"sort"

	"github.com/shopspring/decimal"

	"time26/models"
)

// Allocate splits dailyBudget across the aggregation's participants
// proportionally to their weighted seconds. Wallets are filled in by the caller.
func Allocate(agg *Aggregation, dailyBudget decimal.Decimal) []models.UserRewardResult {
	shares := AllocateWeights(agg.Weights(), dailyBudget)

	results := make([]models.UserRewardResult, 0, len(shares))
	for _, id := range agg.UserIDs() {
		us := agg.Users[id]
		base := shares[id]
		results = append(results, models.UserRewardResult{
			UserID:           id,
			TotalSeconds:     us.TotalSeconds(),
			ExclusiveSeconds: us.ExclusiveSeconds,
			SharedSeconds:    us.SharedSeconds,
			WeightedSeconds:  us.WeightedSeconds,
			BaseReward:       base,
			BonusReward:      decimal.Zero,
			TotalReward:      base,
		})
	}
	return results
}

// AllocateWeights returns floor(weight * budget / Σweights) for every user.
// This is the only place where fractional token amounts are cut to whole
// wei, always toward zero, so the shares never sum past the budget.
func AllocateWeights(weights map[string]decimal.Decimal, budget decimal.Decimal) map[string]decimal.Decimal {
	ids := make([]string, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	total := decimal.Zero
	for _, id := range ids {
		total = total.Add(weights[id])
	}

	shares := make(map[string]decimal.Decimal, len(weights))
	for _, id := range ids {
		if total.IsZero() || budget.Sign() <= 0 || weights[id].Sign() <= 0 {
			shares[id] = decimal.Zero
			continue
		}
		q, _ := weights[id].Mul(budget).QuoRem(total, 0)
		shares[id] = q
	}
	return shares
}

// SumRewards totals the TotalReward column
func SumRewards(results []models.UserRewardResult) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range results {
		sum = sum.Add(r.TotalReward)
	}
	return sum
}

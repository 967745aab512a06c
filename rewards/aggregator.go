package rewards

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"time26/models"
)

// WeightPrecision is the number of fractional digits kept for weighted seconds
const WeightPrecision = 36

// Timeline maps a unix second to the set of users drawing during it
type Timeline map[int64]map[string]struct{}

// UserSeconds is the per-user breakdown of a day's drawing time
type UserSeconds struct {
	UserID           string
	ExclusiveSeconds int64
	SharedSeconds    int64
	WeightedSeconds  decimal.Decimal
}

// TotalSeconds is every second the user was active
func (u *UserSeconds) TotalSeconds() int64 {
	return u.ExclusiveSeconds + u.SharedSeconds
}

// Aggregation is the aggregator output for one day
type Aggregation struct {
	DayStart time.Time
	Timeline Timeline
	Users    map[string]*UserSeconds
	// TotalSeconds counts seconds with at least one active user
	TotalSeconds int64
}

// UserIDs returns participant ids in ascending order
func (a *Aggregation) UserIDs() []string {
	ids := make([]string, 0, len(a.Users))
	for id := range a.Users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TotalWeightedSeconds is the exact sum of every participant's weight
func (a *Aggregation) TotalWeightedSeconds() decimal.Decimal {
	total := decimal.Zero
	for _, id := range a.UserIDs() {
		total = total.Add(a.Users[id].WeightedSeconds)
	}
	return total
}

// Weights returns userID -> weighted seconds
func (a *Aggregation) Weights() map[string]decimal.Decimal {
	weights := make(map[string]decimal.Decimal, len(a.Users))
	for id, u := range a.Users {
		weights[id] = u.WeightedSeconds
	}
	return weights
}

// Aggregate builds the timeline for the UTC day starting at dayStart.
// Intervals are clipped to the day and each user counts at most once per second,
// even with overlapping sessions of their own.
func Aggregate(dayStart time.Time, intervals []models.DrawingInterval) *Aggregation {
	dayStart = dayStart.UTC()
	from := dayStart.Unix()
	to := from + int64(24*time.Hour/time.Second)

	timeline := make(Timeline)
	for _, iv := range intervals {
		if iv.DurationSeconds <= 0 || iv.UserID == "" {
			continue
		}
		start := iv.StartTime.Unix()
		end := start + iv.DurationSeconds
		if start < from {
			start = from
		}
		if end > to {
			end = to
		}
		for s := start; s < end; s++ {
			active, ok := timeline[s]
			if !ok {
				active = make(map[string]struct{}, 1)
				timeline[s] = active
			}
			active[iv.UserID] = struct{}{}
		}
	}

	// Count, per user, how many seconds they shared with N active users
	shareCounts := make(map[string]map[int]int64)
	for _, active := range timeline {
		n := len(active)
		for userID := range active {
			counts, ok := shareCounts[userID]
			if !ok {
				counts = make(map[int]int64)
				shareCounts[userID] = counts
			}
			counts[n]++
		}
	}

	users := make(map[string]*UserSeconds, len(shareCounts))
	for userID, counts := range shareCounts {
		us := &UserSeconds{UserID: userID, WeightedSeconds: decimal.Zero}
		for n, count := range counts {
			if n == 1 {
				us.ExclusiveSeconds += count
				us.WeightedSeconds = us.WeightedSeconds.Add(decimal.NewFromInt(count))
				continue
			}
			us.SharedSeconds += count
			us.WeightedSeconds = us.WeightedSeconds.Add(
				decimal.NewFromInt(count).DivRound(decimal.NewFromInt(int64(n)), WeightPrecision))
		}
		users[userID] = us
	}

	return &Aggregation{
		DayStart:     dayStart,
		Timeline:     timeline,
		Users:        users,
		TotalSeconds: int64(len(timeline)),
	}
}

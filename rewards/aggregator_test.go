package rewards

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"time26/models"
)

var testDay = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func interval(userID string, offsetSeconds, duration int64) models.DrawingInterval {
	return models.DrawingInterval{
		UserID:          userID,
		SessionID:       userID + "-session",
		StartTime:       testDay.Add(time.Duration(offsetSeconds) * time.Second),
		DurationSeconds: duration,
	}
}

func TestAggregate_EmptyInput(t *testing.T) {
	agg := Aggregate(testDay, nil)

	require.NotNil(t, agg)
	assert.Equal(t, int64(0), agg.TotalSeconds)
	assert.Empty(t, agg.Users)
	assert.True(t, agg.TotalWeightedSeconds().IsZero())
}

func TestAggregate_ZeroDurationIgnored(t *testing.T) {
	agg := Aggregate(testDay, []models.DrawingInterval{interval("alice", 10, 0)})

	assert.Equal(t, int64(0), agg.TotalSeconds)
	assert.Empty(t, agg.Users)
}

func TestAggregate_PartialOverlap(t *testing.T) {
	agg := Aggregate(testDay, []models.DrawingInterval{
		interval("alice", 0, 60),
		interval("bob", 30, 60),
	})

	assert.Equal(t, int64(90), agg.TotalSeconds)
	require.Len(t, agg.Users, 2)

	alice := agg.Users["alice"]
	assert.Equal(t, int64(30), alice.ExclusiveSeconds)
	assert.Equal(t, int64(30), alice.SharedSeconds)
	assert.Equal(t, int64(60), alice.TotalSeconds())
	assert.True(t, alice.WeightedSeconds.Equal(decimal.NewFromInt(45)), alice.WeightedSeconds.String())

	bob := agg.Users["bob"]
	assert.True(t, bob.WeightedSeconds.Equal(alice.WeightedSeconds))
	assert.Len(t, agg.Timeline[testDay.Unix()+45], 2)
}

func TestAggregate_SameUserOverlappingSessionsCountOnce(t *testing.T) {
	agg := Aggregate(testDay, []models.DrawingInterval{
		interval("alice", 0, 100),
		interval("alice", 50, 100),
	})

	require.Len(t, agg.Users, 1)
	alice := agg.Users["alice"]
	assert.Equal(t, int64(150), alice.ExclusiveSeconds)
	assert.Equal(t, int64(0), alice.SharedSeconds)
	assert.Equal(t, int64(150), agg.TotalSeconds)
}

func TestAggregate_ClipsToDay(t *testing.T) {
	agg := Aggregate(testDay, []models.DrawingInterval{
		interval("early", -30, 60),       // starts the previous day
		interval("late", 86400-10, 3600), // runs into the next day
		interval("outside", 86400+5, 100),
	})

	assert.Equal(t, int64(30), agg.Users["early"].ExclusiveSeconds)
	assert.Equal(t, int64(10), agg.Users["late"].ExclusiveSeconds)
	assert.NotContains(t, agg.Users, "outside")
	assert.Equal(t, int64(40), agg.TotalSeconds)
}

func TestAggregate_ThreeWaySharing(t *testing.T) {
	agg := Aggregate(testDay, []models.DrawingInterval{
		interval("a", 0, 3),
		interval("b", 0, 3),
		interval("c", 0, 3),
	})

	for _, id := range []string{"a", "b", "c"} {
		us := agg.Users[id]
		assert.Equal(t, int64(3), us.SharedSeconds)
		assert.True(t, us.WeightedSeconds.Equal(decimal.NewFromInt(1)), us.WeightedSeconds.String())
	}
	assert.Equal(t, int64(3), agg.TotalSeconds)
}

func TestAggregation_UserIDsSorted(t *testing.T) {
	agg := Aggregate(testDay, []models.DrawingInterval{
		interval("zed", 0, 5),
		interval("amy", 10, 5),
		interval("kim", 20, 5),
	})

	assert.Equal(t, []string{"amy", "kim", "zed"}, agg.UserIDs())
}

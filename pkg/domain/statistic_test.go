package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatistics(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []Event{
		{Attribute: AttrStatistics, Type: EventAdd, Item: `{"epoch":1,"loss":0.5}`, RuntimeAt: base},
		{Attribute: AttrStatistics, Type: EventAdd, Item: `{"epoch":2,"loss":0.3}`, RuntimeAt: base.Add(time.Minute)},
		{Attribute: AttrStatistics, Type: EventAdd, Item: `{"accuracy":0.9}`, RuntimeAt: base.Add(2 * time.Minute)},
	}

	stats, err := ParseStatistics(events)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Len())
	assert.Equal(t, []string{"accuracy", "epoch", "loss"}, stats.Names())

	loss := stats.Series("loss")
	require.Len(t, loss, 2)
	assert.Equal(t, 0.5, loss[0].Value)
	assert.Equal(t, 0.3, loss[1].Value)

	last, ok := stats.Last("loss")
	require.True(t, ok)
	assert.Equal(t, 0.3, last.Value)

	_, ok = stats.Last("absent")
	assert.False(t, ok)
}

func TestParseStatistics_OrdersByRuntime(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// An analysis process inserted an older sample after the fact.
	events := []Event{
		{Attribute: AttrStatistics, Type: EventAdd, Item: `{"loss":0.3}`, RuntimeAt: base.Add(time.Minute)},
		{Attribute: AttrStatistics, Type: EventAdd, Item: `{"loss":0.5}`, RuntimeAt: base},
	}

	stats, err := ParseStatistics(events)
	require.NoError(t, err)
	series := stats.Series("loss")
	require.Len(t, series, 2)
	assert.Equal(t, 0.5, series[0].Value)
}

func TestParseStatistics_BadPayload(t *testing.T) {
	_, err := ParseStatistics([]Event{
		{Attribute: AttrStatistics, Type: EventAdd, Item: "not json", Seq: 3},
	})
	assert.Error(t, err)
}

func TestStatistic_MarshalItem(t *testing.T) {
	item, err := Statistic{Values: map[string]float64{"loss": 0.25}}.MarshalItem()
	require.NoError(t, err)
	assert.JSONEq(t, `{"loss":0.25}`, item)
}

package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackmate/trackmate/pkg/tmdf"
)

func TestRuleMatches(t *testing.T) {
	rule, err := CompileRule(`Status == "ARRIVED" && StopIndex == 0`)
	require.NoError(t, err)

	matched, err := rule.Matches(&tmdf.StopEvent{
		TripID:    "trip-1",
		StopIndex: 0,
		Status:    tmdf.StopEventStatusArrived,
	})
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = rule.Matches(&tmdf.StopEvent{
		TripID:    "trip-1",
		StopIndex: 3,
		Status:    tmdf.StopEventStatusArrived,
	})
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestRuleByStopName(t *testing.T) {
	rule, err := CompileRule(`StopName == "Main Gate" && Status == "LEFT"`)
	require.NoError(t, err)

	matched, err := rule.Matches(&tmdf.StopEvent{
		StopName: "Main Gate",
		Status:   tmdf.StopEventStatusLeft,
	})
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestCompileRejectsNonBoolean(t *testing.T) {
	_, err := CompileRule(`StopIndex + 1`)
	assert.Error(t, err)
}

func TestCompileRejectsInvalidSyntax(t *testing.T) {
	_, err := CompileRule(`Status ==`)
	assert.Error(t, err)
}

func TestLoadRulesFromEnvironment(t *testing.T) {
	t.Setenv("TRACKMATE_EVENT_ALERT_RULES", `Status == "ARRIVED"; StopIndex > 5 ; not-a-rule ==`)

	rules := LoadRulesFromEnvironment()

	// Two valid rules compile, the invalid one is skipped
	require.Len(t, rules, 2)
	assert.Equal(t, `Status == "ARRIVED"`, rules[0].Expression)
	assert.Equal(t, `StopIndex > 5`, rules[1].Expression)
}

func TestLoadRulesEmptyEnvironment(t *testing.T) {
	t.Setenv("TRACKMATE_EVENT_ALERT_RULES", "")

	assert.Empty(t, LoadRulesFromEnvironment())
}

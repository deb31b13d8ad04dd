package planner

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structurely/ecs-autoscaler/config"
	"github.com/structurely/ecs-autoscaler/metricsources"
)

func floatPtr(f float64) *float64 { return &f }

// fakeHTTPDoer satisfies metricsources.HTTPDoer, returning body as a 200
// response regardless of the request.
type fakeHTTPDoer struct {
	body string
}

func (f fakeHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(f.body)),
	}, nil
}

func TestPlanBelowMinClampsUp(t *testing.T) {
	def := &config.ServiceDefinition{MinTasks: 3, MaxTasks: 10}

	desired, diff, act, err := Plan(t.Context(), def, 1, metricsources.NewRegistry(nil, nil))
	require.NoError(t, err)
	assert.True(t, act)
	assert.Equal(t, 3, desired)
	assert.Equal(t, 2, diff)
}

func TestPlanAboveMaxClampsDownWithLegacySign(t *testing.T) {
	def := &config.ServiceDefinition{MinTasks: 1, MaxTasks: 5}

	desired, diff, act, err := Plan(t.Context(), def, 8, metricsources.NewRegistry(nil, nil))
	require.NoError(t, err)
	assert.True(t, act)
	assert.Equal(t, 5, desired)
	assert.Equal(t, 3, diff, "legacy sign convention: diff = current - max, positive")
}

func TestPlanNoEventsNoAct(t *testing.T) {
	def := &config.ServiceDefinition{MinTasks: 1, MaxTasks: 5}

	desired, diff, act, err := Plan(t.Context(), def, 3, metricsources.NewRegistry(nil, nil))
	require.NoError(t, err)
	assert.False(t, act)
	assert.Equal(t, 3, desired)
	assert.Equal(t, 0, diff)
}

// Scenario 6: event lower-bound clamp at boundary. current=min_tasks=1, event
// {action:-1, min:0, max:nil} matches the metric window, but the clamped
// candidate equals current, so the event is skipped and the service is
// left non-actionable.
func TestScenario6EventClampAtBoundarySkipsService(t *testing.T) {
	def := &config.ServiceDefinition{
		MinTasks: 1,
		MaxTasks: 5,
		Events: []config.Event{
			{Metric: "util", Min: floatPtr(0), Action: -1},
		},
		MetricSources: config.MetricSources{
			ThirdParty: []config.ThirdPartySource{
				{URL: "http://example.invalid/metrics", Statistics: []config.Statistic{{Alias: "util", Name: "util"}}},
			},
		},
	}

	registry := metricsources.NewRegistry(nil, fakeHTTPDoer{body: `{"util": 5}`})

	desired, diff, act, err := Plan(t.Context(), def, 1, registry)
	require.NoError(t, err)
	assert.False(t, act)
	assert.Equal(t, 1, desired)
	assert.Equal(t, 0, diff)
}

func TestPlanFirstMatchingEventCommits(t *testing.T) {
	def := &config.ServiceDefinition{
		MinTasks: 1,
		MaxTasks: 10,
		Events: []config.Event{
			{Metric: "util", Min: floatPtr(50), Action: 2},
			{Metric: "util", Max: floatPtr(100), Action: 1},
		},
		MetricSources: config.MetricSources{
			ThirdParty: []config.ThirdPartySource{
				{URL: "http://example.invalid/metrics", Statistics: []config.Statistic{{Alias: "util", Name: "util"}}},
			},
		},
	}

	registry := metricsources.NewRegistry(nil, fakeHTTPDoer{body: `{"util": 75}`})

	desired, diff, act, err := Plan(t.Context(), def, 3, registry)
	require.NoError(t, err)
	assert.True(t, act)
	assert.Equal(t, 5, desired)
	assert.Equal(t, 2, diff)
}

// A matching event with a zero net action commits with diff=0 and halts
// iteration rather than falling through to a later event, mirroring
// services.py's unconditional "return True" once an event's bounds match
// and no boundary-clamp forces a skip.
func TestPlanZeroNetEventCommitsAndStopsIteration(t *testing.T) {
	def := &config.ServiceDefinition{
		MinTasks: 1,
		MaxTasks: 10,
		Events: []config.Event{
			{Metric: "util", Min: floatPtr(50), Action: 0},
			{Metric: "util", Max: floatPtr(100), Action: 5},
		},
		MetricSources: config.MetricSources{
			ThirdParty: []config.ThirdPartySource{
				{URL: "http://example.invalid/metrics", Statistics: []config.Statistic{{Alias: "util", Name: "util"}}},
			},
		},
	}

	registry := metricsources.NewRegistry(nil, fakeHTTPDoer{body: `{"util": 75}`})

	desired, diff, act, err := Plan(t.Context(), def, 3, registry)
	require.NoError(t, err)
	assert.True(t, act)
	assert.Equal(t, 3, desired)
	assert.Equal(t, 0, diff)
}

// A matching event whose candidate falls below MinTasks, while
// currentTasks is NOT already sitting at that boundary, commits with the
// clamped value (7 - 10 clamps to 5) and does not fall through to later
// events.
func TestPlanEventClampNotAtBoundaryStillCommits(t *testing.T) {
	def := &config.ServiceDefinition{
		MinTasks: 5,
		MaxTasks: 10,
		Events: []config.Event{
			{Metric: "util", Min: floatPtr(0), Action: -10},
			{Metric: "util", Max: floatPtr(100), Action: 3},
		},
		MetricSources: config.MetricSources{
			ThirdParty: []config.ThirdPartySource{
				{URL: "http://example.invalid/metrics", Statistics: []config.Statistic{{Alias: "util", Name: "util"}}},
			},
		},
	}

	registry := metricsources.NewRegistry(nil, fakeHTTPDoer{body: `{"util": 10}`})

	desired, diff, act, err := Plan(t.Context(), def, 7, registry)
	require.NoError(t, err)
	assert.True(t, act)
	assert.Equal(t, 5, desired)
	assert.Equal(t, -2, diff)
}

func TestPlanAbsentAliasSkipsWholeService(t *testing.T) {
	def := &config.ServiceDefinition{
		MinTasks: 1,
		MaxTasks: 10,
		Events: []config.Event{
			{Metric: "nonexistent", Action: 1},
		},
	}

	desired, diff, act, err := Plan(t.Context(), def, 3, metricsources.NewRegistry(nil, nil))
	require.NoError(t, err)
	assert.False(t, act)
	assert.Equal(t, 3, desired)
	assert.Equal(t, 0, diff)
}

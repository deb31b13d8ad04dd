// Package metricsources adapts heterogeneous external metric sources into
// a uniform alias -> value environment for the Expression Evaluator.
package metricsources

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/structurely/ecs-autoscaler/config"
	"github.com/structurely/ecs-autoscaler/ecserrors"
)

const (
	defaultMetricName    = "MemoryUtilization"
	defaultNamespace     = "AWS/ECS"
	defaultPeriodSeconds = 300
)

// CloudWatchAPI is the subset of the generated CloudWatch client this
// adapter calls; *cloudwatch.Client satisfies it.
type CloudWatchAPI interface {
	GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// nowFn is overridden in tests.
var nowFn = time.Now

// CloudWatchAdapter is the cloud-metrics adapter: requests datapoints for
// the window [now-period, now] and reads the first one back.
type CloudWatchAdapter struct {
	Client CloudWatchAPI
}

// Fetch returns one value per requested statistic, keyed by alias. Fails
// with MetricsUnavailable if the window contains no datapoints.
func (a *CloudWatchAdapter) Fetch(ctx context.Context, src config.CloudWatchSource) (map[string]float64, error) {
	metricName := src.MetricName
	if metricName == "" {
		metricName = defaultMetricName
	}
	namespace := src.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}
	period := src.PeriodSeconds
	if period == 0 {
		period = defaultPeriodSeconds
	}

	end := nowFn()
	start := end.Add(-time.Duration(period) * time.Second)

	dims := make([]cwtypes.Dimension, 0, len(src.Dimensions))
	for _, d := range src.Dimensions {
		dims = append(dims, cwtypes.Dimension{Name: aws.String(d.Name), Value: aws.String(d.Value)})
	}

	statSet := map[cwtypes.Statistic]struct{}{}
	for _, s := range src.Statistics {
		statSet[cwtypes.Statistic(s.Name)] = struct{}{}
	}
	stats := make([]cwtypes.Statistic, 0, len(statSet))
	for s := range statSet {
		stats = append(stats, s)
	}

	errContext := map[string]any{
		"namespace":  namespace,
		"metric":     metricName,
		"dimensions": src.Dimensions,
		"period":     period,
		"statistics": src.Statistics,
	}

	out, err := a.Client.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(namespace),
		MetricName: aws.String(metricName),
		Dimensions: dims,
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(int32(period)),
		Statistics: stats,
	})
	if err != nil {
		return nil, ecserrors.New(ecserrors.KindMetricsUnavailable, fmt.Errorf("GetMetricStatistics: %w", err), errContext)
	}
	if len(out.Datapoints) == 0 {
		return nil, ecserrors.New(ecserrors.KindMetricsUnavailable, fmt.Errorf("no datapoints in window"), errContext)
	}

	dp := out.Datapoints[0]
	result := make(map[string]float64, len(src.Statistics))
	for _, s := range src.Statistics {
		if v, ok := datapointValue(dp, s.Name); ok {
			result[s.Alias] = v
		}
	}
	return result, nil
}

func datapointValue(dp cwtypes.Datapoint, statName string) (float64, bool) {
	switch cwtypes.Statistic(statName) {
	case cwtypes.StatisticAverage:
		return derefFloat(dp.Average)
	case cwtypes.StatisticSum:
		return derefFloat(dp.Sum)
	case cwtypes.StatisticMaximum:
		return derefFloat(dp.Maximum)
	case cwtypes.StatisticMinimum:
		return derefFloat(dp.Minimum)
	case cwtypes.StatisticSampleCount:
		return derefFloat(dp.SampleCount)
	default:
		return 0, false
	}
}

func derefFloat(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

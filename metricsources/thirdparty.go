package metricsources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/structurely/ecs-autoscaler/config"
	"github.com/structurely/ecs-autoscaler/ecserrors"
)

// HTTPDoer is the subset of *http.Client this adapter calls, so tests can
// substitute a fake transport without standing up a real listener.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ThirdPartyAdapter is the HTTP-JSON metric adapter: calls an arbitrary
// third-party endpoint and extracts requested fields by dotted JSON path.
type ThirdPartyAdapter struct {
	Client HTTPDoer
}

// Fetch issues the configured request and resolves each requested
// statistic's dotted path against the JSON response body. Fails with
// UpstreamHTTP when the response status is not 200.
func (a *ThirdPartyAdapter) Fetch(ctx context.Context, src config.ThirdPartySource) (map[string]float64, error) {
	method := strings.ToUpper(src.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if method == http.MethodPost && src.Payload != "" {
		body = strings.NewReader(src.Payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, src.URL, body)
	if err != nil {
		return nil, ecserrors.New(ecserrors.KindUpstreamHTTP, err, map[string]any{"url": src.URL})
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, ecserrors.New(ecserrors.KindUpstreamHTTP, err, map[string]any{"url": src.URL})
	}
	defer resp.Body.Close()

	errContext := map[string]any{"url": src.URL, "status": resp.StatusCode}
	if resp.StatusCode != http.StatusOK {
		return nil, ecserrors.New(ecserrors.KindUpstreamHTTP, fmt.Errorf("unexpected status %d", resp.StatusCode), errContext)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ecserrors.New(ecserrors.KindUpstreamHTTP, fmt.Errorf("reading response body: %w", err), errContext)
	}

	var doc any
	if err := jsoniter.Unmarshal(raw, &doc); err != nil {
		return nil, ecserrors.New(ecserrors.KindUpstreamHTTP, fmt.Errorf("decoding JSON response: %w", err), errContext)
	}

	result := make(map[string]float64, len(src.Statistics))
	for _, s := range src.Statistics {
		v, ok := dottedLookup(doc, s.Name)
		if !ok {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			continue
		}
		result[s.Alias] = f
	}
	return result, nil
}

// dottedLookup walks doc (as decoded by jsoniter: map[string]any,
// []any, or a scalar) following a dotted path such as "data.0.value".
// A purely numeric segment indexes into a JSON array.
func dottedLookup(doc any, path string) (any, bool) {
	cur := doc
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			continue
		}
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[segment]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/valyala/fasthttp"

	"github.com/medreport/medreport/config"
	"github.com/medreport/medreport/logger"
	"github.com/medreport/medreport/util/metrics"
)

// testKeys are the response fields the prediction service may use for the
// suggested tests, in order of preference.
var testKeys = []string{"tests", "predicted_tests", "recommended_tests", "test_by_model"}

// Prediction is the decoded answer of the prediction service.
type Prediction struct {
	Tests []string
	Raw   json.RawMessage
}

// PredictionService forwards symptoms to the external prediction API.
type PredictionService struct {
	client  *fasthttp.Client
	url     string
	timeout time.Duration
}

func NewPredictionService(cfg config.PredictionConfig) *PredictionService {
	return &PredictionService{
		client: &fasthttp.Client{
			Name:                "medreport",
			MaxConnsPerHost:     64,
			MaxIdleConnDuration: time.Minute,
		},
		url:     cfg.URL,
		timeout: cfg.Timeout,
	}
}

type predictRequest struct {
	Symptoms []string `json:"symptoms"`
}

// Predict posts the symptoms with the caller's bearer token. It gives up at
// the earlier of ctx's deadline and the configured timeout. Any failure is
// an *UpstreamError.
func (s *PredictionService) Predict(ctx context.Context, bearer string, symptoms []string) (*Prediction, error) {
	payload, err := json.Marshal(predictRequest{Symptoms: symptoms})
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.SetBody(payload)

	if err := s.client.DoDeadline(req, resp, deadline); err != nil {
		result := "unavailable"
		if errors.Is(err, fasthttp.ErrTimeout) {
			result = "timeout"
		}
		metrics.PredictionRequests.WithLabelValues(result).Inc()
		logger.Warningf("Prediction service call failed: %v", err)
		return nil, &UpstreamError{Err: err}
	}

	body := append([]byte(nil), resp.Body()...)
	status := resp.StatusCode()
	if status < 200 || status > 299 {
		metrics.PredictionRequests.WithLabelValues("bad_status").Inc()
		logger.Warningf("Prediction service returned status %d", status)
		return nil, &UpstreamError{StatusCode: status, Body: body}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		metrics.PredictionRequests.WithLabelValues("bad_body").Inc()
		return nil, &UpstreamError{Err: err}
	}

	metrics.PredictionRequests.WithLabelValues("ok").Inc()
	return &Prediction{Tests: extractTests(fields), Raw: body}, nil
}

// extractTests reads the suggested tests either as a JSON array of strings or
// as a comma separated string.
func extractTests(fields map[string]json.RawMessage) []string {
	for _, key := range testKeys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var list []string
		if err := json.Unmarshal(raw, &list); err == nil {
			return cleanList(list)
		}
		var joined string
		if err := json.Unmarshal(raw, &joined); err == nil {
			return cleanList(strings.Split(joined, ","))
		}
	}
	return nil
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

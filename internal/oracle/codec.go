package oracle

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"
)

// EncodeRequest converts a request into its wire form
func EncodeRequest(req Request) (*structpb.Struct, error) {
	candidate := make(map[string]any, len(req.Candidate))
	for name, w := range req.Candidate {
		candidate[name] = map[string]any{"total": w.Total, "integer": w.Integer}
	}
	return structpb.NewStruct(map[string]any{
		"label": req.Label,
		"scenario": map[string]any{
			"name":        req.Scenario.Name,
			"size":        req.Scenario.Size,
			"complexity":  req.Scenario.Complexity,
			"noise_level": req.Scenario.NoiseLevel,
		},
		"candidate": candidate,
	})
}

// DecodeRequest parses the wire form of a request
func DecodeRequest(s *structpb.Struct) (Request, error) {
	if s == nil {
		return Request{}, fmt.Errorf("empty request")
	}
	m := s.AsMap()
	var req Request
	req.Label, _ = m["label"].(string)

	if sc, ok := m["scenario"].(map[string]any); ok {
		req.Scenario.Name, _ = sc["name"].(string)
		req.Scenario.NoiseLevel, _ = sc["noise_level"].(float64)
		var err error
		if req.Scenario.Size, err = intField(sc, "size"); err != nil {
			return Request{}, fmt.Errorf("scenario: %w", err)
		}
		if req.Scenario.Complexity, err = intField(sc, "complexity"); err != nil {
			return Request{}, fmt.Errorf("scenario: %w", err)
		}
	} else {
		return Request{}, fmt.Errorf("scenario is required")
	}

	cand, ok := m["candidate"].(map[string]any)
	if !ok || len(cand) == 0 {
		return Request{}, fmt.Errorf("candidate is required")
	}
	req.Candidate = make(models.Candidate, len(cand))
	for name, raw := range cand {
		wm, ok := raw.(map[string]any)
		if !ok {
			return Request{}, fmt.Errorf("candidate %s: expected object", name)
		}
		total, err := intField(wm, "total")
		if err != nil {
			return Request{}, fmt.Errorf("candidate %s: %w", name, err)
		}
		integer, err := intField(wm, "integer")
		if err != nil {
			return Request{}, fmt.Errorf("candidate %s: %w", name, err)
		}
		w := models.Width{Total: total, Integer: integer}
		if !w.Valid() {
			return Request{}, fmt.Errorf("candidate %s: %s violates the structural floor", name, w)
		}
		req.Candidate[name] = w
	}
	return req, nil
}

// EncodeResponse converts a response into its wire form
func EncodeResponse(resp Response) (*structpb.Struct, error) {
	if resp.Failure != nil {
		return structpb.NewStruct(map[string]any{
			"failure_kind": string(resp.Failure.Kind),
			"diagnostic":   resp.Failure.Diagnostic,
		})
	}
	return structpb.NewStruct(map[string]any{"metric": resp.Metric})
}

// DecodeResponse parses the wire form of a response
func DecodeResponse(s *structpb.Struct) (Response, error) {
	if s == nil {
		return Response{}, fmt.Errorf("empty response")
	}
	m := s.AsMap()
	if kind, ok := m["failure_kind"].(string); ok {
		fk := models.FailureKind(kind)
		if !fk.Valid() {
			return Response{}, fmt.Errorf("unknown failure kind %q", kind)
		}
		diag, _ := m["diagnostic"].(string)
		return Response{Failure: &Failure{Kind: fk, Diagnostic: diag}}, nil
	}
	v, ok := m["metric"].(float64)
	if !ok {
		return Response{}, fmt.Errorf("response carries neither metric nor failure")
	}
	return Response{Metric: v}, nil
}

func intField(m map[string]any, key string) (int, error) {
	f, ok := m[key].(float64)
	if !ok {
		return 0, fmt.Errorf("%s is required", key)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%s must be an integer, got %v", key, f)
	}
	return int(f), nil
}

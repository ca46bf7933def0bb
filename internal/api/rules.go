package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/JakeFAU/subsidy-portal/internal/normalize"
	"github.com/JakeFAU/subsidy-portal/internal/record"
	"github.com/JakeFAU/subsidy-portal/internal/ruleset"
	"github.com/JakeFAU/subsidy-portal/internal/telemetry"
	"github.com/JakeFAU/subsidy-portal/internal/validate"
)

const errUnsupportedAction = "지원하지 않는 액션입니다."

// ruleRequest is the POST body shared by /api/normalize and /api/validate.
type ruleRequest struct {
	Action string          `json:"action"`
	Source string          `json:"source"`
	Data   any             `json:"data"`
	Rules  json.RawMessage `json:"rules"`
}

func (r ruleRequest) hasRules() bool {
	return len(r.Rules) > 0 && string(r.Rules) != "null"
}

// resolveRules prefers inline rules over the registry entry for source.
func resolveRules[R any](req ruleRequest, reg *ruleset.Registry[R], check func([]R) error) ([]R, error) {
	if req.hasRules() {
		var rules []R
		if err := json.Unmarshal(req.Rules, &rules); err != nil {
			return nil, badRequest("rules must be an array of rule objects: %v", err)
		}
		if err := check(rules); err != nil {
			return nil, badRequest("invalid rules: %v", err)
		}
		return rules, nil
	}
	if req.Source == "" {
		return nil, badRequest("source 또는 rules 파라미터가 필요합니다.")
	}
	rules, err := reg.Get(req.Source)
	if err != nil {
		return nil, badRequest("지원하지 않는 데이터 소스입니다: %s", req.Source)
	}
	return rules, nil
}

// ruleListing answers GET action=rules|sources for either registry.
func ruleListing[R any](reg *ruleset.Registry[R], action, source, description string) any {
	switch action {
	case "rules":
		if source != "" {
			if rules, err := reg.Get(source); err == nil {
				return map[string]any{"source": source, "rules": rules}
			}
		}
		return map[string]any{"sources": reg.Sources(), "rules": reg.All()}
	case "sources":
		return map[string]any{"sources": reg.Sources(), "descriptions": reg.Descriptions()}
	default:
		return map[string]any{"actions": []string{"rules", "sources"}, "description": description}
	}
}

func addRules[R any](req ruleRequest, reg *ruleset.Registry[R], check func([]R) error) ([]R, error) {
	if req.Source == "" || !req.hasRules() {
		return nil, badRequest("source와 rules 파라미터가 필요합니다.")
	}
	rules, err := resolveRules(req, reg, check)
	if err != nil {
		return nil, err
	}
	reg.Replace(req.Source, rules)
	return rules, nil
}

func dataArray(data any) ([]any, error) {
	items, ok := data.([]any)
	if !ok {
		return nil, badRequest("data는 배열 형태여야 합니다.")
	}
	return items, nil
}

func (s *Server) normalizeInfo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.ok(w, ruleListing(s.deps.NormalizeRules, q.Get("action"), q.Get("source"), "데이터 정규화/표준화 API"), "")
}

func (s *Server) validateInfo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.ok(w, ruleListing(s.deps.ValidateRules, q.Get("action"), q.Get("source"), "크롤링 결과 검증 API"), "")
}

func (s *Server) normalize(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	check := s.deps.Normalizer.CheckRules

	switch req.Action {
	case "normalize":
		rules, err := resolveRules(req, s.deps.NormalizeRules, check)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		obj, ok := req.Data.(map[string]any)
		if !ok {
			s.fail(w, r, badRequest("data 파라미터가 필요합니다."))
			return
		}
		normalized, warnings, err := s.deps.Normalizer.Normalize(record.Ingest(obj, normalize.Fields(rules)), rules)
		if err != nil {
			telemetry.ObserveNormalized(req.Source, 0, 1)
			s.writeJSON(w, statusForError(err), map[string]any{"success": false, "error": err.Error(), "data": obj})
			return
		}
		telemetry.ObserveNormalized(req.Source, 1, 0)
		s.ok(w, map[string]any{
			"source":     req.Source,
			"original":   obj,
			"normalized": normalized,
			"warnings":   warnings,
		}, "")

	case "batch":
		rules, err := resolveRules(req, s.deps.NormalizeRules, check)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		items, err := dataArray(req.Data)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		res := s.deps.Normalizer.NormalizeBatch(record.IngestAll(items, normalize.Fields(rules)), rules)
		telemetry.ObserveNormalized(req.Source, res.SuccessCount, res.ErrorCount)
		s.ok(w, map[string]any{
			"source":       req.Source,
			"totalItems":   res.TotalItems,
			"successCount": res.SuccessCount,
			"errorCount":   res.ErrorCount,
			"results":      res.Results,
			"items":        res.Items,
		}, "")

	case "add_rule":
		rules, err := addRules(req, s.deps.NormalizeRules, check)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.ok(w, rules, fmt.Sprintf("소스 '%s'의 정규화 규칙이 추가되었습니다.", req.Source))

	default:
		s.fail(w, r, badRequest("%s", errUnsupportedAction))
	}
}

func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	check := s.deps.Validator.CheckRules

	switch req.Action {
	case "validate":
		rules, err := resolveRules(req, s.deps.ValidateRules, check)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if !record.Truthy(req.Data) {
			s.fail(w, r, badRequest("data 파라미터가 필요합니다."))
			return
		}
		items, isArray := req.Data.([]any)
		if !isArray {
			items = []any{req.Data}
		}
		res := s.deps.Validator.ValidateDataset(record.IngestAll(items, validate.Fields(rules)), rules)
		telemetry.ObserveValidated(req.Source, res.Stats.ValidItems, res.Stats.InvalidItems)
		s.ok(w, map[string]any{"source": req.Source, "validation": res, "originalData": req.Data}, "")

	case "batch":
		rules, err := resolveRules(req, s.deps.ValidateRules, check)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		items, err := dataArray(req.Data)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		res := s.deps.Validator.ValidateDataset(record.IngestAll(items, validate.Fields(rules)), rules)
		telemetry.ObserveValidated(req.Source, res.Stats.ValidItems, res.Stats.InvalidItems)
		s.ok(w, map[string]any{"source": req.Source, "validation": res, "totalItems": len(items)}, "")

	case "analyze":
		items, err := dataArray(req.Data)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		dataset := make([]map[string]any, 0, len(items))
		for _, item := range items {
			m, _ := item.(map[string]any)
			dataset = append(dataset, m)
		}
		analysis, summary := validate.Analyze(dataset)
		s.ok(w, map[string]any{"analysis": analysis, "summary": summary}, "")

	case "add_rule":
		rules, err := addRules(req, s.deps.ValidateRules, check)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.ok(w, rules, fmt.Sprintf("소스 '%s'의 검증 규칙이 추가되었습니다.", req.Source))

	default:
		s.fail(w, r, badRequest("%s", errUnsupportedAction))
	}
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/JakeFAU/subsidy-portal/internal/workflow"
)

type workflowRequest struct {
	Action      string          `json:"action"`
	WorkflowID  string          `json:"workflowId"`
	ExecutionID string          `json:"executionId"`
	Params      map[string]any  `json:"params"`
	Workflow    json.RawMessage `json:"workflow"`
}

type runResponse struct {
	ExecutionID string `json:"executionId"`
	Message     string `json:"message"`
	StatusURL   string `json:"statusUrl"`
}

func workflowNotFound(id string) string { return "워크플로우를 찾을 수 없습니다: " + id }

func executionNotFound(id string) string { return "실행을 찾을 수 없습니다: " + id }

func missingParam(name string) error { return badRequest("%s 파라미터가 필요합니다.", name) }

// notFoundOr swaps in msg for not-found errors and keeps other messages.
func notFoundOr(err error, msg string) string {
	if errors.Is(err, workflow.ErrNotFound) {
		return msg
	}
	return err.Error()
}

func (s *Server) workflowQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	id, executionID := q.Get("id"), q.Get("executionId")

	switch q.Get("action") {
	case "list":
		wfs, err := s.deps.Workflows.Workflows(ctx)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.ok(w, map[string]any{"workflows": wfs, "count": len(wfs)}, "")

	case "get":
		if id == "" {
			s.fail(w, r, missingParam("id"))
			return
		}
		wf, err := s.deps.Workflows.Workflow(ctx, id)
		if err != nil {
			s.failAs(w, r, err, notFoundOr(err, workflowNotFound(id)))
			return
		}
		s.ok(w, wf, "")

	case "executions":
		execs, err := s.deps.Workflows.Executions(ctx, workflow.ExecutionFilter{
			ID:         executionID,
			WorkflowID: q.Get("workflowId"),
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.ok(w, map[string]any{"executions": execs, "count": len(execs)}, "")

	case "status":
		if executionID == "" {
			s.fail(w, r, missingParam("executionId"))
			return
		}
		exec, err := s.deps.Workflows.Execution(ctx, executionID)
		if err != nil {
			s.failAs(w, r, err, notFoundOr(err, executionNotFound(executionID)))
			return
		}
		s.ok(w, exec, "")

	default:
		summaries, err := s.deps.Workflows.Summaries(ctx)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.ok(w, map[string]any{
			"actions":             []string{"list", "get", "executions", "status"},
			"description":         "워크플로우 관리 API",
			"predefinedWorkflows": summaries,
		}, "")
	}
}

func (s *Server) workflowCommand(w http.ResponseWriter, r *http.Request) {
	var req workflowRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	ctx := r.Context()

	switch req.Action {
	case "run":
		if req.WorkflowID == "" {
			s.fail(w, r, missingParam("workflowId"))
			return
		}
		h, err := s.deps.Workflows.Start(ctx, req.WorkflowID, req.Params)
		if err != nil {
			s.failAs(w, r, err, notFoundOr(err, workflowNotFound(req.WorkflowID)))
			return
		}
		s.ok(w, runResponse{
			ExecutionID: h.ExecutionID,
			Message:     "워크플로우 실행이 시작되었습니다.",
			StatusURL:   h.StatusURL,
		}, "")

	case "create":
		if len(req.Workflow) == 0 || string(req.Workflow) == "null" {
			s.fail(w, r, missingParam("workflow"))
			return
		}
		wf, err := s.deps.Workflows.CreateWorkflow(ctx, req.Workflow)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.ok(w, wf, "워크플로우가 생성되었습니다.")

	case "cancel":
		if req.ExecutionID == "" {
			s.fail(w, r, missingParam("executionId"))
			return
		}
		exec, err := s.deps.Workflows.Cancel(ctx, req.ExecutionID)
		if err != nil {
			s.failAs(w, r, err, notFoundOr(err, executionNotFound(req.ExecutionID)))
			return
		}
		s.ok(w, exec, "워크플로우 실행이 취소되었습니다.")

	default:
		s.fail(w, r, badRequest("%s", errUnsupportedAction))
	}
}

func (s *Server) deleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		s.fail(w, r, missingParam("id"))
		return
	}
	err := s.deps.Workflows.DeleteWorkflow(r.Context(), id)
	switch {
	case errors.Is(err, workflow.ErrProtected):
		s.failAs(w, r, err, "사전 정의된 워크플로우는 삭제할 수 없습니다.")
	case err != nil:
		s.failAs(w, r, err, notFoundOr(err, workflowNotFound(id)))
	default:
		s.ok(w, nil, fmt.Sprintf("워크플로우 '%s'가 삭제되었습니다.", id))
	}
}

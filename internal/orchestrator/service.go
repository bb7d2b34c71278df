package orchestrator

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"

	"github.com/google/uuid"

	"github.com/EchoingVesper/vespera-atelier-sub002/internal/version"
	"github.com/EchoingVesper/vespera-atelier-sub002/pkg/models"
)

// AgentScheduler is the slice of the scheduler the service facade
// exposes. The scheduler package implements it.
type AgentScheduler interface {
	// RegisterHookAgent registers a hook and returns its id.
	RegisterHookAgent(hook *models.HookAgentDefinition) (string, error)
	// RegisterTimedAgent registers a timed agent and returns its id.
	RegisterTimedAgent(agent *models.TimedAgentDefinition) (string, error)
	// TriggerHook fires a hook against an event context, returning the
	// background job id when the hook fired.
	TriggerHook(ctx context.Context, hookID string, eventCtx map[string]string) (string, error)
	// SetAgentActive pauses or resumes an agent.
	SetAgentActive(agentID string, active bool) error
	// Snapshot reports registered agents and execution history.
	Snapshot() AgentStatusSnapshot
}

// AgentStatusSnapshot is the scheduler half of a comprehensive status.
type AgentStatusSnapshot struct {
	// TimedAgents are the registered timed agents.
	TimedAgents []*models.TimedAgentDefinition `json:"timed_agents"`
	// HookAgents are the registered hooks.
	HookAgents []*models.HookAgentDefinition `json:"hook_agents"`
	// History is the bounded execution history, oldest first.
	History []models.AgentExecution `json:"history"`
}

// Capabilities describes what the engine offers. Returned by
// InitializeSession so clients can discover the operation set.
type Capabilities struct {
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	Operations []string `json:"operations"`
}

// Service is the operation set the protocol layer calls. Every method
// returns a response object; panics and errors degrade to structured
// failures with a correlation id, never an escaping exception.
type Service struct {
	coord *Coordinator
	sched AgentScheduler
}

// NewService wires the facade. sched may be nil when the process runs
// without a scheduler (e.g. one-shot CLI commands); agent operations
// then fail with a structured response.
func NewService(coord *Coordinator, sched AgentScheduler) *Service {
	return &Service{coord: coord, sched: sched}
}

// run executes op under panic recovery and builds the response shell.
func (s *Service) run(op, taskID string, fn func() (string, error)) (resp Response) {
	resp.TaskID = taskID
	resp.CorrelationID = uuid.New().String()[:8]

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[service] %s (%s) panicked: %v\n%s", op, resp.CorrelationID, r, debug.Stack())
			resp.OK = false
			resp.Message = fmt.Sprintf("unexpected error (correlation id %s)", resp.CorrelationID)
		}
	}()

	msg, err := fn()
	if err != nil {
		log.Printf("[service] %s (%s) failed: %v", op, resp.CorrelationID, err)
		resp.OK = false
		resp.Message = err.Error()
		return resp
	}
	resp.OK = true
	resp.Message = msg
	return resp
}

// InitializeSession describes the engine's capabilities.
func (s *Service) InitializeSession() Capabilities {
	return Capabilities{
		Name:    "vespera",
		Version: version.Get(),
		Operations: []string{
			"initialize_session", "plan_task", "get_specialist_context",
			"complete_subtask", "synthesize_results", "get_status",
			"register_hook_agent", "register_timed_agent", "trigger_hook_agent",
			"pause_timed_agent", "resume_timed_agent", "get_comprehensive_status",
		},
	}
}

// PlanResult carries a breakdown with its response shell.
type PlanResult struct {
	Response
	Breakdown *Breakdown `json:"breakdown,omitempty"`
}

// PlanTask plans a breakdown from subtask specs.
func (s *Service) PlanTask(ctx context.Context, description, complexity, subtaskSpecs string, taskCtx map[string]string) PlanResult {
	var result PlanResult
	result.Response = s.run("plan_task", "", func() (string, error) {
		breakdown, err := s.coord.PlanTask(ctx, description, complexity, subtaskSpecs, taskCtx)
		if err != nil {
			return "", err
		}
		result.Breakdown = breakdown
		return fmt.Sprintf("planned %d subtasks", len(breakdown.Subtasks)), nil
	})
	if result.Breakdown != nil {
		result.Response.TaskID = result.Breakdown.Root.ID
	}
	return result
}

// ContextResult carries a rendered specialist context.
type ContextResult struct {
	Response
	Context string `json:"context,omitempty"`
}

// GetSpecialistContext renders the context bundle for a task.
func (s *Service) GetSpecialistContext(ctx context.Context, taskID string) ContextResult {
	var result ContextResult
	result.Response = s.run("get_specialist_context", taskID, func() (string, error) {
		bundle, err := s.coord.GetSpecialistContext(ctx, taskID)
		if err != nil {
			return "", err
		}
		result.Context = bundle
		return "context rendered", nil
	})
	return result
}

// CompleteResult carries completion outcome and derived progress.
type CompleteResult struct {
	Response
	NextRecommended *TaskSummary `json:"next_recommended_task,omitempty"`
}

// CompleteSubtask records a subtask's results and derives parent
// progress. Parent progress is populated on the response when it was
// computable, even if the overall operation failed.
func (s *Service) CompleteSubtask(ctx context.Context, taskID, results string, artifacts []models.TaskArtifact) CompleteResult {
	var result CompleteResult
	var progress *ParentProgress
	result.Response = s.run("complete_subtask", taskID, func() (string, error) {
		completion, err := s.coord.CompleteSubtask(ctx, taskID, results, artifacts)
		if completion != nil {
			progress = completion.ParentProgress
		}
		if err != nil {
			return "", err
		}
		if completion.NextRecommended != nil {
			next := completion.NextRecommended
			result.NextRecommended = &TaskSummary{
				ID:            next.ID,
				Title:         next.Title,
				Status:        next.Status,
				Stage:         next.LifecycleStage,
				HierarchyPath: next.HierarchyPath,
			}
		}
		return "subtask completed", nil
	})
	result.ParentProgress = progress
	return result
}

// SynthesisResult carries a produced synthesis.
type SynthesisResult struct {
	Response
	Synthesis string `json:"synthesis,omitempty"`
}

// SynthesizeResults combines completed children into one summary.
func (s *Service) SynthesizeResults(ctx context.Context, parentID string) SynthesisResult {
	var result SynthesisResult
	result.Response = s.run("synthesize_results", parentID, func() (string, error) {
		text, err := s.coord.SynthesizeResults(ctx, parentID)
		if err != nil {
			return "", err
		}
		result.Synthesis = text
		return "synthesis produced", nil
	})
	return result
}

// StatusResult carries the aggregate status report.
type StatusResult struct {
	Response
	Report *StatusReport `json:"report,omitempty"`
}

// GetStatus reports aggregate and per-task status.
func (s *Service) GetStatus(ctx context.Context, includeCompleted bool) StatusResult {
	var result StatusResult
	result.Response = s.run("get_status", "", func() (string, error) {
		report, err := s.coord.GetStatus(ctx, includeCompleted)
		if err != nil {
			return "", err
		}
		result.Report = report
		return fmt.Sprintf("%d tasks reported", len(report.Tasks)), nil
	})
	return result
}

// RegisterResult carries a newly registered agent or hook id.
type RegisterResult struct {
	Response
	ID string `json:"id,omitempty"`
}

// RegisterHookAgent registers an event-triggered agent.
func (s *Service) RegisterHookAgent(hook *models.HookAgentDefinition) RegisterResult {
	var result RegisterResult
	result.Response = s.run("register_hook_agent", "", func() (string, error) {
		if s.sched == nil {
			return "", fmt.Errorf("no scheduler running")
		}
		id, err := s.sched.RegisterHookAgent(hook)
		if err != nil {
			return "", err
		}
		result.ID = id
		return "hook registered", nil
	})
	return result
}

// RegisterTimedAgent registers a wall-clock-scheduled agent.
func (s *Service) RegisterTimedAgent(agent *models.TimedAgentDefinition) RegisterResult {
	var result RegisterResult
	result.Response = s.run("register_timed_agent", "", func() (string, error) {
		if s.sched == nil {
			return "", fmt.Errorf("no scheduler running")
		}
		id, err := s.sched.RegisterTimedAgent(agent)
		if err != nil {
			return "", err
		}
		result.ID = id
		return "timed agent registered", nil
	})
	return result
}

// TriggerResult carries the background job id of a fired hook.
type TriggerResult struct {
	Response
	BackgroundJobID string `json:"background_task_id,omitempty"`
}

// TriggerHookAgent fires a hook against an event context.
func (s *Service) TriggerHookAgent(ctx context.Context, hookID string, eventCtx map[string]string) TriggerResult {
	var result TriggerResult
	result.Response = s.run("trigger_hook_agent", "", func() (string, error) {
		if s.sched == nil {
			return "", fmt.Errorf("no scheduler running")
		}
		jobID, err := s.sched.TriggerHook(ctx, hookID, eventCtx)
		if err != nil {
			return "", err
		}
		if jobID == "" {
			return "conditions not met, hook not fired", nil
		}
		result.BackgroundJobID = jobID
		return "hook fired", nil
	})
	return result
}

// PauseTimedAgent stops an agent from firing without clearing history.
func (s *Service) PauseTimedAgent(agentID string) Response {
	return s.run("pause_timed_agent", "", func() (string, error) {
		if s.sched == nil {
			return "", fmt.Errorf("no scheduler running")
		}
		if err := s.sched.SetAgentActive(agentID, false); err != nil {
			return "", err
		}
		return "agent paused", nil
	})
}

// ResumeTimedAgent re-enables a paused agent.
func (s *Service) ResumeTimedAgent(agentID string) Response {
	return s.run("resume_timed_agent", "", func() (string, error) {
		if s.sched == nil {
			return "", fmt.Errorf("no scheduler running")
		}
		if err := s.sched.SetAgentActive(agentID, true); err != nil {
			return "", err
		}
		return "agent resumed", nil
	})
}

// ComprehensiveStatusResult joins task status with agent status.
type ComprehensiveStatusResult struct {
	Response
	Report *StatusReport        `json:"report,omitempty"`
	Agents *AgentStatusSnapshot `json:"agents,omitempty"`
}

// GetComprehensiveStatus reports task, agent, and history status in one
// call.
func (s *Service) GetComprehensiveStatus(ctx context.Context) ComprehensiveStatusResult {
	var result ComprehensiveStatusResult
	result.Response = s.run("get_comprehensive_status", "", func() (string, error) {
		report, err := s.coord.GetStatus(ctx, true)
		if err != nil {
			return "", err
		}
		result.Report = report
		if s.sched != nil {
			snapshot := s.sched.Snapshot()
			result.Agents = &snapshot
		}
		return "status collected", nil
	})
	return result
}

// Package scheduler decouples "when to act" from "what to do": timed
// agents fire on wall-clock schedules, hook agents fire on named
// lifecycle events after condition evaluation. Both kinds submit their
// work into the shared background executor and record every firing in a
// bounded history.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/EchoingVesper/vespera-atelier-sub002/internal/orchestrator"
	"github.com/EchoingVesper/vespera-atelier-sub002/internal/state"
	"github.com/EchoingVesper/vespera-atelier-sub002/pkg/models"
)

const (
	// defaultTick is how often the loop checks for due timed agents.
	defaultTick = 30 * time.Second
	// defaultBackoff is how long the loop sleeps after a tick error.
	defaultBackoff = 60 * time.Second
	// defaultHistorySize bounds the execution history ring.
	defaultHistorySize = 1000
)

// Submitter is the slice of the background executor the scheduler uses.
type Submitter interface {
	Submit(name string, fn func(ctx context.Context) error, priority int) (*orchestrator.Handle, error)
}

// AgentRunner executes a fired agent's work. The engine treats agent
// execution as external; the default runner only logs the firing.
type AgentRunner func(ctx context.Context, kind models.AgentKind, templateID string, agentCtx map[string]string) error

// Config tunes a Scheduler. Zero fields take defaults.
type Config struct {
	// Tick is the polling period for timed agents.
	Tick time.Duration
	// Backoff is the sleep after a failed tick.
	Backoff time.Duration
	// HistorySize bounds the execution history.
	HistorySize int
	// Clock supplies time; tests inject a fake.
	Clock Clock
	// Runner executes fired agents.
	Runner AgentRunner
}

// Scheduler maintains the timed and hook agent registries and runs the
// polling loop. Definitions persist through the repository's agent store
// and are reloaded on startup, so registrations survive restarts.
type Scheduler struct {
	store  state.AgentStore
	exec   Submitter
	clock  Clock
	runner AgentRunner

	tick    time.Duration
	backoff time.Duration

	mu          sync.Mutex
	history     []models.AgentExecution
	historySize int
}

// New creates a scheduler over the given agent store and executor.
func New(store state.AgentStore, exec Submitter, cfg Config) *Scheduler {
	s := &Scheduler{
		store:       store,
		exec:        exec,
		clock:       cfg.Clock,
		runner:      cfg.Runner,
		tick:        cfg.Tick,
		backoff:     cfg.Backoff,
		historySize: cfg.HistorySize,
	}
	if s.clock == nil {
		s.clock = realClock{}
	}
	if s.runner == nil {
		s.runner = func(_ context.Context, kind models.AgentKind, templateID string, _ map[string]string) error {
			log.Printf("[scheduler] %s agent fired for template %s (no runner configured)", kind, templateID)
			return nil
		}
	}
	if s.tick <= 0 {
		s.tick = defaultTick
	}
	if s.backoff <= 0 {
		s.backoff = defaultBackoff
	}
	if s.historySize <= 0 {
		s.historySize = defaultHistorySize
	}
	return s
}

// RegisterTimedAgent registers a wall-clock-scheduled agent and computes
// its first NextExecution. Returns the agent id.
func (s *Scheduler) RegisterTimedAgent(agent *models.TimedAgentDefinition) (string, error) {
	if agent.TemplateID == "" {
		return "", fmt.Errorf("register timed agent: template id is required")
	}
	if !agent.ScheduleType.Valid() {
		return "", fmt.Errorf("register timed agent: unknown schedule type %q", agent.ScheduleType)
	}
	if agent.AgentID == "" {
		agent.AgentID = uuid.New().String()
	}
	agent.IsActive = true
	agent.NextExecution = NextExecution(agent.ScheduleType, agent.Schedule, s.clock.Now())

	if err := s.store.SaveTimedAgent(agent); err != nil {
		return "", fmt.Errorf("persist timed agent: %w", err)
	}
	log.Printf("[scheduler] registered timed agent %s (%s), next execution %v",
		agent.AgentID, agent.ScheduleType, agent.NextExecution)
	return agent.AgentID, nil
}

// RegisterHookAgent registers an event-triggered agent. Returns the hook
// id.
func (s *Scheduler) RegisterHookAgent(hook *models.HookAgentDefinition) (string, error) {
	if hook.TemplateID == "" {
		return "", fmt.Errorf("register hook agent: template id is required")
	}
	if hook.EventName == "" {
		return "", fmt.Errorf("register hook agent: event name is required")
	}
	for _, cond := range hook.Conditions {
		if !cond.Op.Valid() {
			return "", fmt.Errorf("register hook agent: unknown condition op %q", cond.Op)
		}
	}
	if hook.Mode == "" {
		hook.Mode = models.ConditionAll
	}
	if hook.HookID == "" {
		hook.HookID = uuid.New().String()
	}
	hook.IsActive = true

	if err := s.store.SaveHookAgent(hook); err != nil {
		return "", fmt.Errorf("persist hook agent: %w", err)
	}
	log.Printf("[scheduler] registered hook agent %s on %s", hook.HookID, hook.EventName)
	return hook.HookID, nil
}

// TriggerHook fires one hook against an event context. Conditions are
// evaluated first; a hook whose conditions do not hold returns an empty
// job id and no error. Inactive hooks never fire.
func (s *Scheduler) TriggerHook(ctx context.Context, hookID string, eventCtx map[string]string) (string, error) {
	hook, err := s.store.GetHookAgent(hookID)
	if err != nil {
		return "", err
	}
	if !hook.IsActive {
		return "", nil
	}
	if !EvalConditions(hook.Conditions, hook.Mode, eventCtx) {
		return "", nil
	}
	return s.fireHook(hook, eventCtx)
}

// DispatchEvent fires every active hook registered for an event whose
// conditions hold. Returns the job ids of the hooks that fired.
func (s *Scheduler) DispatchEvent(ctx context.Context, eventName string, eventCtx map[string]string) ([]string, error) {
	hooks, err := s.store.ListHookAgents(eventName)
	if err != nil {
		return nil, err
	}

	var jobIDs []string
	for _, hook := range hooks {
		if !hook.IsActive || !EvalConditions(hook.Conditions, hook.Mode, eventCtx) {
			continue
		}
		jobID, err := s.fireHook(hook, eventCtx)
		if err != nil {
			return jobIDs, err
		}
		jobIDs = append(jobIDs, jobID)
	}
	return jobIDs, nil
}

func (s *Scheduler) fireHook(hook *models.HookAgentDefinition, eventCtx map[string]string) (string, error) {
	merged := make(map[string]string, len(hook.Context)+len(eventCtx))
	for k, v := range hook.Context {
		merged[k] = v
	}
	for k, v := range eventCtx {
		merged[k] = v
	}

	templateID := hook.TemplateID
	handle, err := s.exec.Submit("hook:"+hook.HookID, func(ctx context.Context) error {
		return s.runner(ctx, models.AgentHook, templateID, merged)
	}, 0)
	if err != nil {
		return "", fmt.Errorf("submit hook %s: %w", hook.HookID, err)
	}

	s.record(models.AgentExecution{
		AgentID:   hook.HookID,
		Kind:      models.AgentHook,
		JobID:     handle.ID,
		EventName: hook.EventName,
		FiredAt:   s.clock.Now(),
	})
	return handle.ID, nil
}

// FireDue fires every active timed agent whose NextExecution has passed,
// then recomputes NextExecution from the firing time and bumps the
// execution bookkeeping immediately. Cadence is therefore independent of
// how long the fired execution takes. Returns how many agents fired.
func (s *Scheduler) FireDue(now time.Time) (int, error) {
	agents, err := s.store.ListTimedAgents(true)
	if err != nil {
		return 0, fmt.Errorf("list timed agents: %w", err)
	}

	fired := 0
	for _, agent := range agents {
		if agent.NextExecution == nil || agent.NextExecution.After(now) {
			continue
		}

		templateID, agentCtx := agent.TemplateID, agent.Context
		handle, err := s.exec.Submit("timed:"+agent.AgentID, func(ctx context.Context) error {
			return s.runner(ctx, models.AgentTimed, templateID, agentCtx)
		}, 0)
		if err != nil {
			return fired, fmt.Errorf("submit timed agent %s: %w", agent.AgentID, err)
		}

		firedAt := now
		agent.LastExecution = &firedAt
		agent.ExecutionCount++
		agent.NextExecution = NextExecution(agent.ScheduleType, agent.Schedule, firedAt)
		if err := s.store.SaveTimedAgent(agent); err != nil {
			return fired, fmt.Errorf("update timed agent %s: %w", agent.AgentID, err)
		}

		s.record(models.AgentExecution{
			AgentID: agent.AgentID,
			Kind:    models.AgentTimed,
			JobID:   handle.ID,
			FiredAt: firedAt,
		})
		fired++
	}
	return fired, nil
}

// Run polls for due timed agents until the context is cancelled. Tick
// errors log and back off; the loop never exits on error. In-flight
// executions are not cancelled by Run returning.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("[scheduler] loop started, tick %s", s.tick)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[scheduler] loop stopped: %v", ctx.Err())
			return
		case <-s.clock.After(s.tick):
		}

		if fired, err := s.FireDue(s.clock.Now()); err != nil {
			log.Printf("[scheduler] tick failed, backing off %s: %v", s.backoff, err)
			select {
			case <-ctx.Done():
				log.Printf("[scheduler] loop stopped: %v", ctx.Err())
				return
			case <-s.clock.After(s.backoff):
			}
		} else if fired > 0 {
			log.Printf("[scheduler] fired %d timed agents", fired)
		}
	}
}

// SetAgentActive pauses or resumes an agent. History is untouched.
func (s *Scheduler) SetAgentActive(agentID string, active bool) error {
	return s.store.SetAgentActive(agentID, active)
}

// record appends to the bounded history ring, evicting the oldest entry
// when full.
func (s *Scheduler) record(exec models.AgentExecution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) >= s.historySize {
		s.history = s.history[1:]
	}
	s.history = append(s.history, exec)
}

// History returns a copy of the execution history, oldest first.
func (s *Scheduler) History() []models.AgentExecution {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AgentExecution, len(s.history))
	copy(out, s.history)
	return out
}

// Snapshot reports registered agents and the execution history.
func (s *Scheduler) Snapshot() orchestrator.AgentStatusSnapshot {
	snapshot := orchestrator.AgentStatusSnapshot{History: s.History()}

	timed, err := s.store.ListTimedAgents(false)
	if err != nil {
		log.Printf("[scheduler] snapshot: list timed agents failed: %v", err)
	} else {
		snapshot.TimedAgents = timed
	}
	hooks, err := s.store.ListHookAgents("")
	if err != nil {
		log.Printf("[scheduler] snapshot: list hook agents failed: %v", err)
	} else {
		snapshot.HookAgents = hooks
	}
	return snapshot
}

var _ orchestrator.AgentScheduler = (*Scheduler)(nil)

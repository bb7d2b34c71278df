package models

import "time"

// ScheduleType differentiates how a timed agent decides when to fire.
type ScheduleType string

const (
	// ScheduleInterval fires every IntervalSeconds.
	ScheduleInterval ScheduleType = "interval"
	// ScheduleOneTime fires once at RunAt.
	ScheduleOneTime ScheduleType = "one_time"
	// ScheduleCron fires per the CronExpr cron expression.
	ScheduleCron ScheduleType = "cron"
)

// Valid returns true if the schedule type is a known value.
func (s ScheduleType) Valid() bool {
	switch s {
	case ScheduleInterval, ScheduleOneTime, ScheduleCron:
		return true
	default:
		return false
	}
}

// ScheduleConfig holds the parameters for a schedule. Only the fields
// relevant to the ScheduleType are consulted.
type ScheduleConfig struct {
	// IntervalSeconds is the firing period for interval schedules.
	// Zero means the 3600s default.
	IntervalSeconds int `json:"interval_seconds,omitempty"`
	// RunAt is the RFC 3339 firing time for one-time schedules.
	RunAt string `json:"run_at,omitempty"`
	// CronExpr is the cron expression for cron schedules.
	CronExpr string `json:"cron_expr,omitempty"`
}

// TimedAgentDefinition is a registered wall-clock-triggered agent. The
// scheduler polls active definitions and fires any whose NextExecution has
// passed. Pausing sets IsActive to false without losing history.
type TimedAgentDefinition struct {
	// AgentID is the unique identifier for this agent.
	AgentID string `json:"agent_id"`
	// TemplateID names the template the agent instantiates.
	TemplateID string `json:"template_id"`
	// ScheduleType selects the schedule computation.
	ScheduleType ScheduleType `json:"schedule_type"`
	// Schedule holds the schedule parameters.
	Schedule ScheduleConfig `json:"schedule_config"`
	// Context is the template-context snapshot the agent acts on.
	Context map[string]string `json:"context,omitempty"`
	// LastExecution is when the agent last fired, if ever.
	LastExecution *time.Time `json:"last_execution,omitempty"`
	// NextExecution is when the agent is next due. Nil means never,
	// which is how an expired one-time schedule is represented.
	NextExecution *time.Time `json:"next_execution,omitempty"`
	// ExecutionCount is how many times the agent has fired.
	ExecutionCount int `json:"execution_count"`
	// IsActive controls whether the scheduler considers the agent.
	IsActive bool `json:"is_active"`
	// CreatedAt is when the agent was registered.
	CreatedAt time.Time `json:"created_at"`
}

// ConditionOp is a comparison operator in a hook trigger condition.
type ConditionOp string

const (
	OpEquals      ConditionOp = "eq"
	OpNotEquals   ConditionOp = "ne"
	OpGreaterThan ConditionOp = "gt"
	OpLessThan    ConditionOp = "lt"
	OpContains    ConditionOp = "contains"
	OpExists      ConditionOp = "exists"
)

// Valid returns true if the operator is a known value.
func (o ConditionOp) Valid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpContains, OpExists:
		return true
	default:
		return false
	}
}

// TriggerCondition is one predicate evaluated against an event context.
// Conditions are plain field/op/value triples; there is no expression
// language and no code evaluation.
type TriggerCondition struct {
	// Field is the event-context key to test.
	Field string `json:"field"`
	// Op is the comparison operator.
	Op ConditionOp `json:"op"`
	// Value is the comparand, unused for the exists operator.
	Value string `json:"value,omitempty"`
}

// ConditionMode selects how multiple conditions combine.
type ConditionMode string

const (
	// ConditionAll requires every condition to pass.
	ConditionAll ConditionMode = "all"
	// ConditionAny requires at least one condition to pass.
	ConditionAny ConditionMode = "any"
)

// HookAgentDefinition is a registered event-triggered agent. Hook agents
// are not polled; callers invoke them by event name and the scheduler
// evaluates the trigger conditions before spawning work.
type HookAgentDefinition struct {
	// HookID is the unique identifier for this hook.
	HookID string `json:"hook_id"`
	// TemplateID names the template the hook instantiates.
	TemplateID string `json:"template_id"`
	// EventName is the lifecycle event the hook listens for,
	// e.g. "pre_task_execution" or "post_task_execution".
	EventName string `json:"event_name"`
	// Conditions gate the hook against the event context.
	Conditions []TriggerCondition `json:"conditions,omitempty"`
	// Mode selects all/any combination of Conditions. Defaults to all.
	Mode ConditionMode `json:"condition_mode,omitempty"`
	// Context is the template-context snapshot the hook acts on.
	Context map[string]string `json:"context,omitempty"`
	// IsActive controls whether the hook fires at all.
	IsActive bool `json:"is_active"`
	// CreatedAt is when the hook was registered.
	CreatedAt time.Time `json:"created_at"`
}

// AgentKind separates the two agent registries in shared records.
type AgentKind string

const (
	// AgentTimed is a wall-clock-scheduled agent.
	AgentTimed AgentKind = "timed"
	// AgentHook is an event-triggered agent.
	AgentHook AgentKind = "hook"
)

// AgentExecution is one entry in the scheduler's bounded execution
// history, covering both timed and hook firings.
type AgentExecution struct {
	// AgentID is the timed agent or hook that fired.
	AgentID string `json:"agent_id"`
	// Kind says which registry the agent belongs to.
	Kind AgentKind `json:"kind"`
	// JobID is the background job the firing submitted.
	JobID string `json:"job_id"`
	// EventName is set for hook firings.
	EventName string `json:"event_name,omitempty"`
	// FiredAt is when the scheduler triggered the execution.
	FiredAt time.Time `json:"fired_at"`
}

package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/EchoingVesper/vespera-atelier-sub002/pkg/models"
)

// SaveTimedAgent inserts or replaces a timed agent definition.
func (db *DB) SaveTimedAgent(agent *models.TimedAgentDefinition) error {
	if agent.AgentID == "" {
		return &ValidationError{Field: "agent_id", Message: "must not be empty"}
	}
	schedule, err := json.Marshal(agent.Schedule)
	if err != nil {
		return &ValidationError{Field: "schedule_config", Message: err.Error()}
	}
	ctx, err := encodeMap(agent.Context)
	if err != nil {
		return &ValidationError{Field: "context", Message: err.Error()}
	}
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = time.Now()
	}

	_, err = db.Exec(`
		INSERT INTO timed_agents (agent_id, template_id, schedule_type, schedule_config,
			context, last_execution, next_execution, execution_count, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET
			template_id = excluded.template_id,
			schedule_type = excluded.schedule_type,
			schedule_config = excluded.schedule_config,
			context = excluded.context,
			last_execution = excluded.last_execution,
			next_execution = excluded.next_execution,
			execution_count = excluded.execution_count,
			is_active = excluded.is_active
	`, agent.AgentID, agent.TemplateID, string(agent.ScheduleType), string(schedule),
		ctx, formatNullableTime(agent.LastExecution), formatNullableTime(agent.NextExecution),
		agent.ExecutionCount, boolInt(agent.IsActive), formatTime(agent.CreatedAt))
	if err != nil {
		return infraErr("SaveTimedAgent", err)
	}
	return nil
}

// GetTimedAgent retrieves a timed agent definition by ID.
func (db *DB) GetTimedAgent(agentID string) (*models.TimedAgentDefinition, error) {
	row := db.QueryRow(`
		SELECT agent_id, template_id, schedule_type, schedule_config, context,
			last_execution, next_execution, execution_count, is_active, created_at
		FROM timed_agents WHERE agent_id = ?
	`, agentID)
	agent, err := scanTimedAgent(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("timed agent %s: %w", agentID, ErrNotFound)
	}
	if err != nil {
		return nil, infraErr("GetTimedAgent", err)
	}
	return agent, nil
}

// ListTimedAgents returns timed agent definitions, optionally only the
// active firing set.
func (db *DB) ListTimedAgents(activeOnly bool) ([]*models.TimedAgentDefinition, error) {
	query := `SELECT agent_id, template_id, schedule_type, schedule_config, context,
		last_execution, next_execution, execution_count, is_active, created_at
		FROM timed_agents`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY created_at, agent_id`

	rows, err := db.Query(query)
	if err != nil {
		return nil, infraErr("ListTimedAgents", err)
	}
	defer rows.Close()

	var agents []*models.TimedAgentDefinition
	for rows.Next() {
		agent, err := scanTimedAgent(rows)
		if err != nil {
			return nil, infraErr("ListTimedAgents", err)
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, infraErr("ListTimedAgents", err)
	}
	return agents, nil
}

func scanTimedAgent(row rowScanner) (*models.TimedAgentDefinition, error) {
	var a models.TimedAgentDefinition
	var schedule string
	var ctx sql.NullString
	var lastExec, nextExec sql.NullString
	var active int
	var createdAt string

	err := row.Scan(&a.AgentID, &a.TemplateID, &a.ScheduleType, &schedule, &ctx,
		&lastExec, &nextExec, &a.ExecutionCount, &active, &createdAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(schedule), &a.Schedule); err != nil {
		return nil, fmt.Errorf("decode agent %s schedule: %w", a.AgentID, err)
	}
	if ctx.Valid && ctx.String != "" {
		if err := json.Unmarshal([]byte(ctx.String), &a.Context); err != nil {
			return nil, fmt.Errorf("decode agent %s context: %w", a.AgentID, err)
		}
	}
	a.LastExecution = parseNullableTime(lastExec)
	a.NextExecution = parseNullableTime(nextExec)
	a.IsActive = active != 0
	a.CreatedAt, _ = parseTime(createdAt)
	return &a, nil
}

// SaveHookAgent inserts or replaces a hook agent definition.
func (db *DB) SaveHookAgent(hook *models.HookAgentDefinition) error {
	if hook.HookID == "" {
		return &ValidationError{Field: "hook_id", Message: "must not be empty"}
	}
	if hook.EventName == "" {
		return &ValidationError{Field: "event_name", Message: "must not be empty"}
	}
	conditions, err := json.Marshal(hook.Conditions)
	if err != nil {
		return &ValidationError{Field: "conditions", Message: err.Error()}
	}
	ctx, err := encodeMap(hook.Context)
	if err != nil {
		return &ValidationError{Field: "context", Message: err.Error()}
	}
	if hook.CreatedAt.IsZero() {
		hook.CreatedAt = time.Now()
	}

	_, err = db.Exec(`
		INSERT INTO hook_agents (hook_id, template_id, event_name, conditions,
			condition_mode, context, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hook_id) DO UPDATE SET
			template_id = excluded.template_id,
			event_name = excluded.event_name,
			conditions = excluded.conditions,
			condition_mode = excluded.condition_mode,
			context = excluded.context,
			is_active = excluded.is_active
	`, hook.HookID, hook.TemplateID, hook.EventName, string(conditions),
		string(hook.Mode), ctx, boolInt(hook.IsActive), formatTime(hook.CreatedAt))
	if err != nil {
		return infraErr("SaveHookAgent", err)
	}
	return nil
}

// GetHookAgent retrieves a hook agent definition by ID.
func (db *DB) GetHookAgent(hookID string) (*models.HookAgentDefinition, error) {
	row := db.QueryRow(`
		SELECT hook_id, template_id, event_name, conditions, condition_mode,
			context, is_active, created_at
		FROM hook_agents WHERE hook_id = ?
	`, hookID)
	hook, err := scanHookAgent(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("hook agent %s: %w", hookID, ErrNotFound)
	}
	if err != nil {
		return nil, infraErr("GetHookAgent", err)
	}
	return hook, nil
}

// ListHookAgents returns hook agent definitions, optionally filtered by
// event name. Empty eventName means all hooks.
func (db *DB) ListHookAgents(eventName string) ([]*models.HookAgentDefinition, error) {
	query := `SELECT hook_id, template_id, event_name, conditions, condition_mode,
		context, is_active, created_at FROM hook_agents`
	var args []any
	if eventName != "" {
		query += ` WHERE event_name = ?`
		args = append(args, eventName)
	}
	query += ` ORDER BY created_at, hook_id`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, infraErr("ListHookAgents", err)
	}
	defer rows.Close()

	var hooks []*models.HookAgentDefinition
	for rows.Next() {
		hook, err := scanHookAgent(rows)
		if err != nil {
			return nil, infraErr("ListHookAgents", err)
		}
		hooks = append(hooks, hook)
	}
	if err := rows.Err(); err != nil {
		return nil, infraErr("ListHookAgents", err)
	}
	return hooks, nil
}

func scanHookAgent(row rowScanner) (*models.HookAgentDefinition, error) {
	var h models.HookAgentDefinition
	var conditions, mode, ctx sql.NullString
	var active int
	var createdAt string

	err := row.Scan(&h.HookID, &h.TemplateID, &h.EventName, &conditions, &mode, &ctx, &active, &createdAt)
	if err != nil {
		return nil, err
	}
	if conditions.Valid && conditions.String != "" && conditions.String != "null" {
		if err := json.Unmarshal([]byte(conditions.String), &h.Conditions); err != nil {
			return nil, fmt.Errorf("decode hook %s conditions: %w", h.HookID, err)
		}
	}
	h.Mode = models.ConditionMode(mode.String)
	if ctx.Valid && ctx.String != "" {
		if err := json.Unmarshal([]byte(ctx.String), &h.Context); err != nil {
			return nil, fmt.Errorf("decode hook %s context: %w", h.HookID, err)
		}
	}
	h.IsActive = active != 0
	h.CreatedAt, _ = parseTime(createdAt)
	return &h, nil
}

// SetAgentActive toggles a timed or hook agent's firing flag without
// touching its history or schedule fields.
func (db *DB) SetAgentActive(agentID string, active bool) error {
	res, err := db.Exec(`UPDATE timed_agents SET is_active = ? WHERE agent_id = ?`, boolInt(active), agentID)
	if err != nil {
		return infraErr("SetAgentActive", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	res, err = db.Exec(`UPDATE hook_agents SET is_active = ? WHERE hook_id = ?`, boolInt(active), agentID)
	if err != nil {
		return infraErr("SetAgentActive", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("agent %s: %w", agentID, ErrNotFound)
	}
	return nil
}

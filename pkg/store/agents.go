package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/omnichat/relay/pkg/apperrors"
	"github.com/omnichat/relay/pkg/domain"
)

// AgentRepo persists tenant-defined custom agents (spec §4.5). Built-in
// agents never touch this repo; they are compiled into the registry.
type AgentRepo struct {
	db *sql.DB
}

// NewAgentRepo builds an AgentRepo over the shared pool.
func NewAgentRepo(db *sql.DB) *AgentRepo { return &AgentRepo{db: db} }

// Upsert creates or replaces a custom agent definition.
func (r *AgentRepo) Upsert(ctx context.Context, tenantID string, a domain.AgentDefinition) error {
	toolsJSON, err := json.Marshal(a.AllowedTools)
	if err != nil {
		return fmt.Errorf("marshal allowed tools: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO custom_agent_definitions (key, display_name, emoji, system_prompt, allowed_tools, credential_id, provider_label, tenant_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (key) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			emoji = EXCLUDED.emoji,
			system_prompt = EXCLUDED.system_prompt,
			allowed_tools = EXCLUDED.allowed_tools,
			credential_id = EXCLUDED.credential_id,
			provider_label = EXCLUDED.provider_label`,
		a.Key, a.DisplayName, a.Emoji, a.SystemPrompt, toolsJSON, a.CredentialID, a.ProviderLabel, tenantID)
	if err != nil {
		return fmt.Errorf("upsert custom agent: %w", err)
	}
	return nil
}

// ByKey looks up a custom agent definition by key.
func (r *AgentRepo) ByKey(ctx context.Context, key string) (domain.AgentDefinition, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT key, display_name, emoji, system_prompt, allowed_tools, credential_id, provider_label
		FROM custom_agent_definitions WHERE key = $1`, key)
	return scanAgent(row)
}

// ForTenant lists every custom agent defined for a tenant.
func (r *AgentRepo) ForTenant(ctx context.Context, tenantID string) ([]domain.AgentDefinition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT key, display_name, emoji, system_prompt, allowed_tools, credential_id, provider_label
		FROM custom_agent_definitions WHERE tenant_id = $1 ORDER BY key`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query custom agents: %w", err)
	}
	defer rows.Close()

	var out []domain.AgentDefinition
	for rows.Next() {
		a, err := scanAgentRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Delete removes a custom agent definition.
func (r *AgentRepo) Delete(ctx context.Context, key string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM custom_agent_definitions WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete custom agent: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: custom agent", apperrors.NotFound)
	}
	return nil
}

func scanAgent(row *sql.Row) (domain.AgentDefinition, error) {
	a, err := scanAgentColumns(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AgentDefinition{}, fmt.Errorf("%w: custom agent", apperrors.NotFound)
	}
	return a, err
}

func scanAgentRows(rows *sql.Rows) (domain.AgentDefinition, error) {
	return scanAgentColumns(rows)
}

func scanAgentColumns(s rowScanner) (domain.AgentDefinition, error) {
	var a domain.AgentDefinition
	var toolsJSON []byte

	err := s.Scan(&a.Key, &a.DisplayName, &a.Emoji, &a.SystemPrompt, &toolsJSON, &a.CredentialID, &a.ProviderLabel)
	if err != nil {
		return domain.AgentDefinition{}, fmt.Errorf("scan custom agent: %w", err)
	}
	a.Category = domain.CategoryCustom
	if len(toolsJSON) > 0 {
		if err := json.Unmarshal(toolsJSON, &a.AllowedTools); err != nil {
			return domain.AgentDefinition{}, fmt.Errorf("unmarshal allowed tools: %w", err)
		}
	}
	return a, nil
}

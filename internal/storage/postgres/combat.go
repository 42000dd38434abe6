package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/arbiter/internal/game/combat"
)

// CombatRepository persists combat encounters as JSONB documents. It
// implements combat.Persistence: the engine hands over dirty combats on
// flush, reloads active ones on restore, and deletes ended ones.
type CombatRepository struct {
	db *pgxpool.Pool
}

// NewCombatRepository creates a CombatRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCombatRepository(db *pgxpool.Pool) *CombatRepository {
	return &CombatRepository{db: db}
}

// SaveCombat upserts the combat's full state under (tenant, id).
//
// Precondition: cbt must be non-nil with a non-empty ID.
// Postcondition: A later LoadActive for the tenant returns this state if the
// combat is active.
func (r *CombatRepository) SaveCombat(ctx context.Context, tenant string, cbt *combat.Combat) error {
	payload, err := json.Marshal(cbt)
	if err != nil {
		return fmt.Errorf("encoding combat %q: %w", cbt.ID, err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO combats (tenant, id, active, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant, id)
		DO UPDATE SET active = EXCLUDED.active, payload = EXCLUDED.payload, updated_at = NOW()`,
		tenant, cbt.ID, cbt.Active, payload,
	)
	if err != nil {
		return fmt.Errorf("upserting combat %q: %w", cbt.ID, err)
	}
	return nil
}

// LoadActive returns every active combat stored for the tenant, oldest first.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *CombatRepository) LoadActive(ctx context.Context, tenant string) ([]*combat.Combat, error) {
	rows, err := r.db.Query(ctx, `
		SELECT payload FROM combats
		WHERE tenant = $1 AND active = TRUE
		ORDER BY created_at ASC`,
		tenant,
	)
	if err != nil {
		return nil, fmt.Errorf("listing active combats: %w", err)
	}
	defer rows.Close()

	combats := make([]*combat.Combat, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning combat row: %w", err)
		}
		var cbt combat.Combat
		if err := json.Unmarshal(payload, &cbt); err != nil {
			return nil, fmt.Errorf("decoding combat payload: %w", err)
		}
		combats = append(combats, &cbt)
	}
	return combats, rows.Err()
}

// DeleteCombat removes the combat record. Deleting a combat that was never
// flushed is not an error.
//
// Postcondition: No row for (tenant, combatID) remains.
func (r *CombatRepository) DeleteCombat(ctx context.Context, tenant, combatID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM combats WHERE tenant = $1 AND id = $2`, tenant, combatID)
	if err != nil {
		return fmt.Errorf("deleting combat %q: %w", combatID, err)
	}
	return nil
}

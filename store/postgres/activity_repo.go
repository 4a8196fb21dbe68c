package postgres

import (
	"context"
	"encoding/json"

	"github.com/MrEthical07/goIdentity/store"
)

// ActivityLogRepo implements store.ActivityLogStore.
type ActivityLogRepo struct{ db *DB }

// NewActivityLogRepo constructs an activity log repository.
func NewActivityLogRepo(db *DB) *ActivityLogRepo { return &ActivityLogRepo{db: db} }

const (
	qInsertActivity = `
INSERT INTO activity_logs (id, actor_id, actor_snapshot, action_type, status, entity_type, entity_id, changes, context, failure_reason, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	qCountActivity = `SELECT count(*) FROM activity_logs`
	qListActivity  = `
SELECT id, actor_id, actor_snapshot, action_type, status, entity_type, entity_id, changes, context, failure_reason, created_at
FROM activity_logs
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2`
)

// InsertActivityLog appends one entry. A system actor is stored as NULL.
func (r *ActivityLogRepo) InsertActivityLog(ctx context.Context, e *store.ActivityLog) error {
	snapshot, err := json.Marshal(e.ActorSnapshot)
	if err != nil {
		return err
	}
	reqCtx, err := json.Marshal(e.Context)
	if err != nil {
		return err
	}
	var changes []byte
	if len(e.Changes) > 0 {
		if changes, err = json.Marshal(e.Changes); err != nil {
			return err
		}
	}
	var actorID *string
	if e.ActorID != "" {
		actorID = &e.ActorID
	}

	_, err = r.db.Pool.Exec(ctx, qInsertActivity,
		e.ID, actorID, snapshot, string(e.ActionType), string(e.Status), e.EntityType, e.EntityID,
		changes, reqCtx, e.FailureReason, e.CreatedAt,
	)
	return err
}

// ListActivityLogs returns one page, newest first, with the total count.
func (r *ActivityLogRepo) ListActivityLogs(ctx context.Context, page, limit int) ([]store.ActivityLog, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, qCountActivity).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Pool.Query(ctx, qListActivity, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]store.ActivityLog, 0, limit)
	for rows.Next() {
		var (
			e                        store.ActivityLog
			actorID                  *string
			actionType, status       string
			snapshot, changes, reqCx []byte
		)
		if err := rows.Scan(&e.ID, &actorID, &snapshot, &actionType, &status, &e.EntityType, &e.EntityID,
			&changes, &reqCx, &e.FailureReason, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		if actorID != nil {
			e.ActorID = *actorID
		}
		e.ActionType = store.ActionType(actionType)
		e.Status = store.Status(status)
		if err := json.Unmarshal(snapshot, &e.ActorSnapshot); err != nil {
			return nil, 0, err
		}
		if len(reqCx) > 0 {
			if err := json.Unmarshal(reqCx, &e.Context); err != nil {
				return nil, 0, err
			}
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &e.Changes); err != nil {
				return nil, 0, err
			}
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/parleyhq/parley/store"
)

func (d *DB) CreateConversation(ctx context.Context, conversation *store.Conversation) error {
	turns, err := json.Marshal(conversation.Turns)
	if err != nil {
		return errors.Wrap(err, "failed to marshal turns")
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO conversation (uid, model_id, preferred_language, created_ts, updated_ts, turn_count, turns)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		conversation.UID,
		conversation.ModelID,
		conversation.PreferredLanguage,
		conversation.CreatedTs,
		conversation.UpdatedTs,
		len(conversation.Turns),
		string(turns),
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert conversation")
	}
	return nil
}

func (d *DB) GetConversation(ctx context.Context, uid string) (*store.Conversation, error) {
	var conversation store.Conversation
	var turns string
	err := d.db.QueryRowContext(ctx, `
		SELECT uid, model_id, preferred_language, created_ts, updated_ts, turns
		FROM conversation WHERE uid = ?`, uid,
	).Scan(
		&conversation.UID,
		&conversation.ModelID,
		&conversation.PreferredLanguage,
		&conversation.CreatedTs,
		&conversation.UpdatedTs,
		&turns,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query conversation")
	}

	if err := json.Unmarshal([]byte(turns), &conversation.Turns); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal turns")
	}
	if conversation.Turns == nil {
		conversation.Turns = []store.Turn{}
	}
	return &conversation, nil
}

func (d *DB) SaveConversation(ctx context.Context, conversation *store.Conversation) error {
	turns, err := json.Marshal(conversation.Turns)
	if err != nil {
		return errors.Wrap(err, "failed to marshal turns")
	}

	result, err := d.db.ExecContext(ctx, `
		UPDATE conversation
		SET model_id = ?, preferred_language = ?, updated_ts = ?, turn_count = ?, turns = ?
		WHERE uid = ?`,
		conversation.ModelID,
		conversation.PreferredLanguage,
		conversation.UpdatedTs,
		len(conversation.Turns),
		string(turns),
		conversation.UID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update conversation")
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return errors.Errorf("conversation vanished during save: %s", conversation.UID)
	}
	return nil
}

func (d *DB) ListConversations(ctx context.Context) ([]*store.ConversationSummary, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT uid, model_id, preferred_language, turn_count, created_ts, updated_ts
		FROM conversation
		ORDER BY updated_ts DESC, uid ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}
	defer rows.Close()

	summaries := []*store.ConversationSummary{}
	for rows.Next() {
		var summary store.ConversationSummary
		if err := rows.Scan(
			&summary.UID,
			&summary.ModelID,
			&summary.PreferredLanguage,
			&summary.TurnCount,
			&summary.CreatedTs,
			&summary.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan conversation row")
		}
		summaries = append(summaries, &summary)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate conversations")
	}
	return summaries, nil
}

func (d *DB) DeleteConversation(ctx context.Context, uid string) (bool, error) {
	result, err := d.db.ExecContext(ctx, `DELETE FROM conversation WHERE uid = ?`, uid)
	if err != nil {
		return false, errors.Wrap(err, "failed to delete conversation")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read rows affected")
	}
	return affected > 0, nil
}

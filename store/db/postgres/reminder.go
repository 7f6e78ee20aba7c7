package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/hrygo/strawbean/store"
)

func (d *DB) CreateReminder(ctx context.Context, create *store.Reminder) (*store.Reminder, error) {
	fields := []string{"uid", "owner_id", "remove_id", "fire_ts", "set_time", "name", "content"}
	args := []any{create.UID, create.OwnerID, create.RemoveID, create.Time, create.SetTime, create.Name, create.Content}

	if create.CreatedTs != 0 {
		fields = append(fields, "created_ts", "updated_ts")
		args = append(args, create.CreatedTs, create.CreatedTs)
	}

	stmt := `INSERT INTO reminder (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id, created_ts, updated_ts`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&create.ID,
		&create.CreatedTs,
		&create.UpdatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to create reminder: %w", err)
	}
	return create, nil
}

func (d *DB) ListReminders(ctx context.Context, find *store.FindReminder) ([]*store.Reminder, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.OwnerID; v != nil {
		where, args = append(where, "owner_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.RemoveID; v != nil {
		where, args = append(where, "remove_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.DueBefore; v != nil {
		where, args = append(where, "fire_ts <= "+placeholder(len(args)+1)), append(args, *v)
	}

	direction := "ASC"
	if find.OrderDesc {
		direction = "DESC"
	}
	orderBy := fmt.Sprintf("ORDER BY owner_id %s, remove_id %s", direction, direction)
	if find.OrderByTime {
		orderBy = fmt.Sprintf("ORDER BY fire_ts %s, id %s", direction, direction)
	}

	query := `
		SELECT id, uid, owner_id, remove_id, fire_ts, set_time, name, content, created_ts, updated_ts
		FROM reminder
		WHERE ` + strings.Join(where, " AND ") + ` ` + orderBy
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Reminder, 0)
	for rows.Next() {
		var reminder store.Reminder
		if err := rows.Scan(
			&reminder.ID,
			&reminder.UID,
			&reminder.OwnerID,
			&reminder.RemoveID,
			&reminder.Time,
			&reminder.SetTime,
			&reminder.Name,
			&reminder.Content,
			&reminder.CreatedTs,
			&reminder.UpdatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		list = append(list, &reminder)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) UpdateReminder(ctx context.Context, update *store.UpdateReminder) (bool, error) {
	set, args := []string{}, []any{}
	if v := update.Name; v != nil {
		set, args = append(set, "name = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Time; v != nil {
		set, args = append(set, "fire_ts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.UpdatedTs; v != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(set) == 0 {
		return false, nil
	}

	args = append(args, update.OwnerID, update.RemoveID)
	stmt := `UPDATE reminder SET ` + strings.Join(set, ", ") +
		` WHERE owner_id = ` + placeholder(len(args)-1) + ` AND remove_id = ` + placeholder(len(args))
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update reminder: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (d *DB) DeleteReminders(ctx context.Context, delete *store.DeleteReminder) (int64, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := delete.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := delete.OwnerID; v != nil {
		where, args = append(where, "owner_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := delete.RemoveID; v != nil {
		where, args = append(where, "remove_id = "+placeholder(len(args)+1)), append(args, *v)
	}

	result, err := d.db.ExecContext(ctx, `DELETE FROM reminder WHERE `+strings.Join(where, " AND "), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete reminders: %w", err)
	}
	return result.RowsAffected()
}

// NextRemoveID bumps the owner's counter row and returns the number it held.
// A missing row is seeded past the owner's highest existing remove_id.
func (d *DB) NextRemoveID(ctx context.Context, ownerID string) (int32, error) {
	stmt := `INSERT INTO reminder_counter (owner_id, next_id)
		VALUES ($1, COALESCE((SELECT MAX(remove_id) FROM reminder WHERE owner_id = $1), -1) + 2)
		ON CONFLICT(owner_id) DO UPDATE SET next_id = reminder_counter.next_id + 1
		RETURNING next_id - 1`
	var removeID int32
	if err := d.db.QueryRowContext(ctx, stmt, ownerID).Scan(&removeID); err != nil {
		return 0, fmt.Errorf("failed to allocate remove_id: %w", err)
	}
	return removeID, nil
}

package queries

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/cristianemoyano/swarm-autoscaler/pkg/models"
)

// ScalingEventRepository persists the scaling audit trail in Postgres.
// It satisfies the same store contract as the in-memory history, so the
// event logger does not care which one it writes to.
type ScalingEventRepository struct {
	db *sql.DB

	// maxEvents caps the table size; rows beyond it are pruned
	// oldest-first after each insert. Zero disables pruning.
	maxEvents int
}

func NewScalingEventRepository(db *sql.DB, maxEvents int) *ScalingEventRepository {
	return &ScalingEventRepository{db: db, maxEvents: maxEvents}
}

const eventColumns = `id, service_id, service_name, metric, aggregate,
	from_replicas, to_replicas, direction, reason, status, error, "timestamp"`

func (r *ScalingEventRepository) Insert(ctx context.Context, event *models.ScalingEvent) error {
	query := `
		INSERT INTO scaling_events
			(service_id, service_name, metric, aggregate, from_replicas,
			 to_replicas, direction, reason, status, error, "timestamp")
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		event.ServiceID,
		event.ServiceName,
		string(event.Metric),
		event.Aggregate,
		event.FromReplicas,
		event.ToReplicas,
		string(event.Direction),
		event.Reason,
		string(event.Status),
		event.Error,
		event.Timestamp,
	).Scan(&event.ID)
	if err != nil {
		return err
	}

	if r.maxEvents > 0 {
		return r.prune(ctx)
	}
	return nil
}

func (r *ScalingEventRepository) prune(ctx context.Context) error {
	query := `
		DELETE FROM scaling_events
		WHERE id <= (
			SELECT id FROM scaling_events
			ORDER BY id DESC
			OFFSET $1 LIMIT 1
		)`
	_, err := r.db.ExecContext(ctx, query, r.maxEvents)
	return err
}

func (r *ScalingEventRepository) List(ctx context.Context, query models.EventQuery) ([]models.ScalingEvent, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 100
	}

	where, args := buildFilter(query)
	sqlQuery := `SELECT ` + eventColumns + `
		FROM scaling_events` + where + `
		ORDER BY "timestamp" DESC, id DESC
		LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, query.Offset)

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.ScalingEvent
	for rows.Next() {
		var e models.ScalingEvent
		var metric, direction, status string
		err := rows.Scan(
			&e.ID, &e.ServiceID, &e.ServiceName, &metric, &e.Aggregate,
			&e.FromReplicas, &e.ToReplicas, &direction, &e.Reason,
			&status, &e.Error, &e.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		e.Metric = models.Metric(metric)
		e.Direction = models.ScaleDirection(direction)
		e.Status = models.ScalingEventStatus(status)
		events = append(events, e)
	}

	return events, rows.Err()
}

func (r *ScalingEventRepository) Count(ctx context.Context, query models.EventQuery) (int, error) {
	where, args := buildFilter(query)

	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scaling_events`+where, args...).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ScalingEventRepository) Clear(ctx context.Context, service string) (int64, error) {
	var result sql.Result
	var err error
	if service == "" {
		result, err = r.db.ExecContext(ctx, `DELETE FROM scaling_events`)
	} else {
		result, err = r.db.ExecContext(ctx, `DELETE FROM scaling_events WHERE service_name = $1`, service)
	}
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func buildFilter(query models.EventQuery) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if query.Service != "" {
		args = append(args, query.Service)
		clauses = append(clauses, `service_name = $`+strconv.Itoa(len(args)))
	}
	if !query.Since.IsZero() {
		args = append(args, query.Since)
		clauses = append(clauses, `"timestamp" >= $`+strconv.Itoa(len(args)))
	}
	if !query.Until.IsZero() {
		args = append(args, query.Until)
		clauses = append(clauses, `"timestamp" <= $`+strconv.Itoa(len(args)))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

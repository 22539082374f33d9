package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rutadirecta/boleteria/internal/model"
)

// AssignmentRepo manages the assignment ledger: bindings of a schedule
// template to one calendar date and one vehicle.  The table carries a
// unique key on (schedule_id, date) so a template runs at most once per
// day; vehicle swaps are recorded in assignment_changes rather than by
// rewriting history.
type AssignmentRepo struct {
	db *sql.DB
}

// NewAssignmentRepo constructs an AssignmentRepo with the given DB handle.
func NewAssignmentRepo(db *sql.DB) *AssignmentRepo { return &AssignmentRepo{db: db} }

// dateOnly formats a timestamp as the DATE column value, in UTC.
func dateOnly(t time.Time) string { return t.UTC().Format("2006-01-02") }

// Create inserts a new assignment.  Returns ErrDuplicateAssignment when
// the template already has an assignment on that date.
func (r *AssignmentRepo) Create(ctx context.Context, a *model.Assignment) error {
	const q = `INSERT INTO assignments (schedule_id, vehicle_id, driver_id, date) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, a.ScheduleID, a.VehicleID, a.DriverID, dateOnly(a.Date))
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateAssignment
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	const sel = `SELECT created_at, updated_at FROM assignments WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, a.ID).Scan(&a.CreatedAt, &a.UpdatedAt)
}

// GetByID retrieves an assignment by its ID.  Returns ErrNotFound when
// no row exists.
func (r *AssignmentRepo) GetByID(ctx context.Context, id uint64) (*model.Assignment, error) {
	const q = `SELECT id, schedule_id, vehicle_id, driver_id, date, created_at, updated_at FROM assignments WHERE id = ?`
	a, err := scanAssignment(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAssignment(row rowScanner) (*model.Assignment, error) {
	var a model.Assignment
	var vehicleID, driverID sql.NullInt64
	err := row.Scan(&a.ID, &a.ScheduleID, &vehicleID, &driverID, &a.Date, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if vehicleID.Valid {
		v := uint64(vehicleID.Int64)
		a.VehicleID = &v
	}
	if driverID.Valid {
		d := uint64(driverID.Int64)
		a.DriverID = &d
	}
	return &a, nil
}

// ListByDate returns all assignments whose date equals the given
// calendar date (UTC).  Ordering by schedule ID keeps generation output
// deterministic.
func (r *AssignmentRepo) ListByDate(ctx context.Context, date time.Time) ([]model.Assignment, error) {
	const q = `SELECT id, schedule_id, vehicle_id, driver_id, date, created_at, updated_at
	           FROM assignments WHERE date = ? ORDER BY schedule_id`
	rows, err := r.db.QueryContext(ctx, q, dateOnly(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Assignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// ChangeVehicle swaps the vehicle on an existing assignment and writes
// the audit row in the same transaction.  Reason and actor are required:
// a vehicle swap without a paper trail is indistinguishable from data
// corruption when operators investigate a departure later.  Returns
// ErrNotFound when the assignment does not exist.
func (r *AssignmentRepo) ChangeVehicle(ctx context.Context, assignmentID, newVehicleID, actorID uint64, reason string) (*model.AssignmentChange, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Read the current vehicle inside the transaction so concurrent swaps
	// serialize on the row lock and each audit row records the true
	// predecessor.
	const sel = `SELECT vehicle_id FROM assignments WHERE id = ? FOR UPDATE`
	var oldVehicle sql.NullInt64
	if err := tx.QueryRowContext(ctx, sel, assignmentID).Scan(&oldVehicle); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	const upd = `UPDATE assignments SET vehicle_id = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, upd, newVehicleID, assignmentID); err != nil {
		return nil, err
	}

	change := &model.AssignmentChange{
		AssignmentID: assignmentID,
		NewVehicleID: newVehicleID,
		Reason:       reason,
		ActorID:      actorID,
	}
	if oldVehicle.Valid {
		ov := uint64(oldVehicle.Int64)
		change.OldVehicleID = &ov
	}
	const ins = `INSERT INTO assignment_changes (assignment_id, old_vehicle_id, new_vehicle_id, reason, actor_id) VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, ins, change.AssignmentID, change.OldVehicleID, change.NewVehicleID, change.Reason, change.ActorID)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	change.ID = uint64(id)

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return change, nil
}

// ListChanges returns the audit history for an assignment, newest first.
func (r *AssignmentRepo) ListChanges(ctx context.Context, assignmentID uint64) ([]model.AssignmentChange, error) {
	const q = `SELECT id, assignment_id, old_vehicle_id, new_vehicle_id, reason, actor_id, created_at
	           FROM assignment_changes WHERE assignment_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.AssignmentChange, 0)
	for rows.Next() {
		var c model.AssignmentChange
		var oldVehicle sql.NullInt64
		if err := rows.Scan(&c.ID, &c.AssignmentID, &oldVehicle, &c.NewVehicleID, &c.Reason, &c.ActorID, &c.CreatedAt); err != nil {
			return nil, err
		}
		if oldVehicle.Valid {
			ov := uint64(oldVehicle.Int64)
			c.OldVehicleID = &ov
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/rutadirecta/boleteria/internal/model"
)

// SeatLockRepo manages the advisory seat locks used during interactive
// selection.  Locks live in a table with a primary key on
// (trip_id, seat_id); acquisition is a single INSERT ... ON DUPLICATE KEY
// UPDATE whose IF() expressions only overwrite an existing row when it
// has expired or already belongs to the caller.  That one statement is
// the atomic "insert-if-absent-or-expired" primitive the whole
// coordinator rests on — no application mutex is involved, and many
// concurrent callers for the same seat serialize inside MySQL.
//
// Expiry is cooperative: readers always filter on expires_at rather than
// trusting row presence, and the sweep below is an optimisation only.
type SeatLockRepo struct {
	db *sql.DB
}

// NewSeatLockRepo constructs a SeatLockRepo with the given DB handle.
func NewSeatLockRepo(db *sql.DB) *SeatLockRepo { return &SeatLockRepo{db: db} }

// Acquire takes or refreshes the lock on (trip, seat) for holder.  It
// succeeds when the slot is free, expired, or already held by the same
// holder (refresh).  Returns ErrSeatLocked when another holder owns an
// unexpired lock.
func (r *SeatLockRepo) Acquire(ctx context.Context, tripID, seatID uint64, holder string, ttl time.Duration) (*model.SeatLock, error) {
	expiresAt := time.Now().UTC().Add(ttl)
	// ROW_COUNT semantics: 1 = fresh insert, 2 = row overwritten, 0 = the
	// IF()s kept every column, i.e. a live foreign lock.  The 0 case is
	// re-read below because an identical same-holder refresh also reports
	// 0 affected rows.
	const q = `INSERT INTO seat_locks (trip_id, seat_id, holder, expires_at)
	           VALUES (?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE
	               holder     = IF(expires_at <= UTC_TIMESTAMP() OR holder = VALUES(holder), VALUES(holder), holder),
	               expires_at = IF(expires_at <= UTC_TIMESTAMP() OR holder = VALUES(holder), VALUES(expires_at), expires_at)`
	res, err := r.db.ExecContext(ctx, q, tripID, seatID, holder, expiresAt)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		current, err := r.Get(ctx, tripID, seatID)
		if err != nil {
			return nil, err
		}
		if current == nil || current.Holder != holder {
			return nil, ErrSeatLocked
		}
		return current, nil
	}
	return &model.SeatLock{TripID: tripID, SeatID: seatID, Holder: holder, ExpiresAt: expiresAt}, nil
}

// Release deletes the lock on (trip, seat) only when owned by holder.
// Releasing a lock you do not own — or one that no longer exists — is a
// no-op, not an error.  The returned bool reports whether a row was
// actually removed so callers know whether to broadcast.
func (r *SeatLockRepo) Release(ctx context.Context, tripID, seatID uint64, holder string) (bool, error) {
	const q = `DELETE FROM seat_locks WHERE trip_id = ? AND seat_id = ? AND holder = ?`
	res, err := r.db.ExecContext(ctx, q, tripID, seatID, holder)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Get returns the current lock row for (trip, seat) regardless of
// expiry, or nil when none exists.  Callers must check Expired
// themselves; this method exists for the acquire fallback path.
func (r *SeatLockRepo) Get(ctx context.Context, tripID, seatID uint64) (*model.SeatLock, error) {
	const q = `SELECT trip_id, seat_id, holder, expires_at, created_at FROM seat_locks WHERE trip_id = ? AND seat_id = ?`
	var l model.SeatLock
	err := r.db.QueryRowContext(ctx, q, tripID, seatID).Scan(&l.TripID, &l.SeatID, &l.Holder, &l.ExpiresAt, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListActiveByTrip returns all unexpired locks for a trip keyed by seat
// ID.  Expired rows are filtered in SQL; they grant no protection even
// if the sweep has not removed them yet.
func (r *SeatLockRepo) ListActiveByTrip(ctx context.Context, tripID uint64) (map[uint64]model.SeatLock, error) {
	const q = `SELECT trip_id, seat_id, holder, expires_at, created_at
	           FROM seat_locks WHERE trip_id = ? AND expires_at > UTC_TIMESTAMP()`
	rows, err := r.db.QueryContext(ctx, q, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64]model.SeatLock)
	for rows.Next() {
		var l model.SeatLock
		if err := rows.Scan(&l.TripID, &l.SeatID, &l.Holder, &l.ExpiresAt, &l.CreatedAt); err != nil {
			return nil, err
		}
		out[l.SeatID] = l
	}
	return out, rows.Err()
}

// DeleteTx removes the lock on (trip, seat) unconditionally, within the
// caller's transaction.  Used when a completed booking consumes the
// buyer's lock.
func (r *SeatLockRepo) DeleteTx(ctx context.Context, tx *sql.Tx, tripID, seatID uint64) error {
	const q = `DELETE FROM seat_locks WHERE trip_id = ? AND seat_id = ?`
	_, err := tx.ExecContext(ctx, q, tripID, seatID)
	return err
}

// SweepExpired physically deletes expired rows.  Purely housekeeping —
// readers never depend on it having run — so failures are returned for
// logging but never block anything.
func (r *SeatLockRepo) SweepExpired(ctx context.Context) (int64, error) {
	const q = `DELETE FROM seat_locks WHERE expires_at <= UTC_TIMESTAMP()`
	res, err := r.db.ExecContext(ctx, q)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

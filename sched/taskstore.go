package sched

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/moot/value"
	"github.com/chazu/moot/vm"
)

var taskEnc cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	taskEnc = em
}

// taskRecord is the durable form of a parked task.
type taskRecord struct {
	ID     int64       `cbor:"1,keyasint"`
	Player value.Objid `cbor:"2,keyasint"`
	Owner  value.Objid `cbor:"3,keyasint"`
	Verb   string      `cbor:"4,keyasint"`
	This   value.Objid `cbor:"5,keyasint"`
	State  uint8       `cbor:"6,keyasint"`
	Wake   uint8       `cbor:"7,keyasint"`
	WakeAt int64       `cbor:"8,keyasint"` // unix nanoseconds, 0 for none
	Ticks  int         `cbor:"9,keyasint"`
	Start  int64       `cbor:"10,keyasint"`
	Frames []*vm.Frame `cbor:"11,keyasint"`
}

// TaskStore persists queued and suspended task descriptors so they
// survive a restart. The running task's in-flight frames are
// deliberately not covered; a crash loses at most that one task.
type TaskStore struct {
	db  *sql.DB
	log commonlog.Logger
}

// OpenTaskStore opens (creating if needed) the task database at path.
// Each server boot is recorded with a fresh id so restored tasks can be
// traced to the run that parked them.
func OpenTaskStore(path string) (*TaskStore, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening task database: %w", err)
	}
	if _, err := d.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		d.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := d.Exec(`CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY,
		wake_at INTEGER NOT NULL,
		record BLOB NOT NULL
	)`); err != nil {
		d.Close()
		return nil, fmt.Errorf("creating tasks table: %w", err)
	}
	if _, err := d.Exec(`CREATE TABLE IF NOT EXISTS boots (
		id TEXT PRIMARY KEY,
		started INTEGER NOT NULL
	)`); err != nil {
		d.Close()
		return nil, fmt.Errorf("creating boots table: %w", err)
	}
	boot := uuid.NewString()
	if _, err := d.Exec("INSERT INTO boots (id, started) VALUES (?, ?)",
		boot, time.Now().Unix()); err != nil {
		d.Close()
		return nil, fmt.Errorf("recording boot: %w", err)
	}
	ts := &TaskStore{db: d, log: commonlog.GetLogger("sched.store")}
	ts.log.Infof("task store open at %s (boot %s)", path, boot)
	return ts, nil
}

// Close closes the underlying database.
func (ts *TaskStore) Close() error {
	return ts.db.Close()
}

// Save upserts one task descriptor.
func (ts *TaskStore) Save(t *Task) error {
	rec := taskRecord{
		ID:     t.ID,
		Player: t.Player,
		Owner:  t.Owner,
		Verb:   t.Verb,
		This:   t.This,
		State:  uint8(t.State),
		Wake:   uint8(t.Wake),
		Ticks:  t.TicksLeft,
		Start:  t.Start.Unix(),
		Frames: t.Frames,
	}
	if !t.WakeAt.IsZero() {
		rec.WakeAt = t.WakeAt.UnixNano()
	}
	blob, err := taskEnc.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding task %d: %w", t.ID, err)
	}
	_, err = ts.db.Exec(
		"INSERT OR REPLACE INTO tasks (id, wake_at, record) VALUES (?, ?, ?)",
		t.ID, rec.WakeAt, blob,
	)
	if err != nil {
		return fmt.Errorf("saving task %d: %w", t.ID, err)
	}
	return nil
}

// Delete removes a task descriptor.
func (ts *TaskStore) Delete(id int64) error {
	if _, err := ts.db.Exec("DELETE FROM tasks WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting task %d: %w", id, err)
	}
	return nil
}

// LoadAll reads every persisted task back. Undecodable rows are logged
// and skipped, never fatal.
func (ts *TaskStore) LoadAll() ([]*Task, error) {
	rows, err := ts.db.Query("SELECT id, record FROM tasks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		var rec taskRecord
		if err := cbor.Unmarshal(blob, &rec); err != nil {
			ts.log.Errorf("task %d: undecodable record, dropping: %s", id, err)
			continue
		}
		t := &Task{
			ID:        rec.ID,
			Player:    rec.Player,
			Owner:     rec.Owner,
			Verb:      rec.Verb,
			This:      rec.This,
			State:     TaskState(rec.State),
			Frames:    rec.Frames,
			TicksLeft: rec.Ticks,
			Start:     time.Unix(rec.Start, 0),
			Wake:      vm.WakeKind(rec.Wake),
		}
		if rec.WakeAt != 0 {
			t.WakeAt = time.Unix(0, rec.WakeAt)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

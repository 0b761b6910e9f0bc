// Package store keeps scan sessions and their results in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/XC-/bluing"
	"github.com/XC-/bluing/adv"
	"github.com/XC-/bluing/hci"
	"github.com/XC-/bluing/infer"
	"github.com/XC-/bluing/scan"
)

var logger = log.WithField("pkg", "store")

// Session kinds.
const (
	KindBR    = "br"
	KindLE    = "le"
	KindInfer = "infer"
)

// Session is one stored run.
type Session struct {
	ID       string
	Kind     string
	Started  time.Time
	Finished time.Time
	Partial  bool
}

// Candidates is one stored inference group.
type Candidates struct {
	Low          string
	Observations int
	Addrs        []bluing.BDAddr
}

// Store is a SQLite result store.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Open opens, or creates, the database at path and migrates its schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open result db")
	}
	if path == ":memory:" {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "set WAL mode")
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate result db")
	}
	now := time.Now()
	return &Store{
		db:      db,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(now.UnixNano())), 0),
	}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id       TEXT PRIMARY KEY,
			kind     TEXT NOT NULL,
			started  TEXT NOT NULL,
			finished TEXT NOT NULL,
			partial  INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS devices (
			session    TEXT NOT NULL REFERENCES sessions(id),
			seq        INTEGER NOT NULL,
			addr       TEXT NOT NULL,
			addr_type  INTEGER NOT NULL,
			rssi       INTEGER,
			class      INTEGER NOT NULL DEFAULT 0,
			name       TEXT NOT NULL DEFAULT '',
			first_seen TEXT NOT NULL,
			last_seen  TEXT NOT NULL,
			seen       INTEGER NOT NULL,
			event_type INTEGER,
			adv        BLOB,
			PRIMARY KEY (session, addr, addr_type)
		);
		CREATE TABLE IF NOT EXISTS candidates (
			session      TEXT NOT NULL REFERENCES sessions(id),
			grp          INTEGER NOT NULL,
			low          TEXT NOT NULL,
			observations INTEGER NOT NULL,
			rank         INTEGER NOT NULL,
			addr         TEXT,
			PRIMARY KEY (session, grp, rank)
		)
	`)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) newID(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

// SaveSession records a run and returns its ULID.
func (s *Store) SaveSession(ctx context.Context, kind string, started, finished time.Time, partial bool) (string, error) {
	id := s.newID(started)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, kind, started, finished, partial) VALUES (?, ?, ?, ?, ?)",
		id, kind, started.UTC().Format(time.RFC3339Nano), finished.UTC().Format(time.RFC3339Nano), partial,
	)
	if err != nil {
		return "", errors.Wrap(err, "save session")
	}
	logger.WithFields(log.Fields{"session": id, "kind": kind}).Debug("session saved")
	return id, nil
}

// Sessions lists stored runs, oldest first.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, kind, started, finished, partial FROM sessions ORDER BY id")
	if err != nil {
		return nil, errors.Wrap(err, "list sessions")
	}
	defer rows.Close()

	ss := []Session{}
	for rows.Next() {
		var se Session
		var started, finished string
		if err := rows.Scan(&se.ID, &se.Kind, &started, &finished, &se.Partial); err != nil {
			return nil, err
		}
		se.Started, _ = time.Parse(time.RFC3339Nano, started)
		se.Finished, _ = time.Parse(time.RFC3339Nano, finished)
		ss = append(ss, se)
	}
	return ss, rows.Err()
}

// SaveDevices stores the devices of a session in their given order.
func (s *Store) SaveDevices(ctx context.Context, session string, devs []scan.Device) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "save devices")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO devices
		(session, seq, addr, addr_type, rssi, class, name, first_seen, last_seen, seen, event_type, adv)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "save devices")
	}
	defer stmt.Close()

	for i, d := range devs {
		var rssi, evt sql.NullInt64
		if d.HasRSSI {
			rssi = sql.NullInt64{Int64: int64(d.RSSI), Valid: true}
		}
		var raw []byte
		if d.Report != nil {
			evt = sql.NullInt64{Int64: int64(d.Report.EventType), Valid: true}
			raw = d.Report.Raw
		}
		_, err := stmt.ExecContext(ctx,
			session, i, d.Addr.String(), int(d.AddrType), rssi, int64(d.Class), d.Name,
			d.FirstSeen.UTC().Format(time.RFC3339Nano), d.LastSeen.UTC().Format(time.RFC3339Nano), d.Seen,
			evt, raw,
		)
		if err != nil {
			return errors.Wrapf(err, "save device %s", d.Key)
		}
	}
	return errors.Wrap(tx.Commit(), "save devices")
}

// Devices loads the devices of a session. Advertising data is decoded again
// from the stored bytes.
func (s *Store) Devices(ctx context.Context, session string) ([]scan.Device, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT addr, addr_type, rssi, class, name, first_seen, last_seen, seen, event_type, adv
		FROM devices WHERE session = ? ORDER BY seq`, session)
	if err != nil {
		return nil, errors.Wrap(err, "load devices")
	}
	defer rows.Close()

	devs := []scan.Device{}
	for rows.Next() {
		var (
			d                 scan.Device
			addr, first, last string
			addrType          int
			class             int64
			rssi, evt         sql.NullInt64
			raw               []byte
		)
		if err := rows.Scan(&addr, &addrType, &rssi, &class, &d.Name, &first, &last, &d.Seen, &evt, &raw); err != nil {
			return nil, errors.Wrap(err, "load devices")
		}
		if d.Addr, err = bluing.ParseBDAddr(addr); err != nil {
			return nil, errors.Wrapf(err, "stored address %q", addr)
		}
		d.AddrType = bluing.AddrType(addrType)
		d.RSSI, d.HasRSSI = int8(rssi.Int64), rssi.Valid
		d.Class = scan.ClassOfDevice(class)
		d.NameResolved = d.Name != ""
		d.FirstSeen, _ = time.Parse(time.RFC3339Nano, first)
		d.LastSeen, _ = time.Parse(time.RFC3339Nano, last)
		if evt.Valid {
			d.Report = adv.NewReport(hci.AdvReport{
				EventType: hci.AdvEventType(evt.Int64),
				AddrType:  d.AddrType,
				Addr:      d.Addr,
				Data:      raw,
				RSSI:      d.RSSI,
			})
		}
		devs = append(devs, d)
	}
	return devs, rows.Err()
}

// SaveCandidates stores inference results. A group without candidates keeps
// one row with a NULL address so it is listed as empty.
func (s *Store) SaveCandidates(ctx context.Context, session string, groups []infer.GroupCandidates) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "save candidates")
	}
	defer tx.Rollback()

	const q = "INSERT INTO candidates (session, grp, low, observations, rank, addr) VALUES (?, ?, ?, ?, ?, ?)"
	for i, g := range groups {
		low, n := g.Low(), len(g.Observations)
		if len(g.Candidates) == 0 {
			if _, err := tx.ExecContext(ctx, q, session, i, low, n, 0, nil); err != nil {
				return errors.Wrapf(err, "save candidates of %s", low)
			}
			continue
		}
		for r, a := range g.Candidates {
			if _, err := tx.ExecContext(ctx, q, session, i, low, n, r, a.String()); err != nil {
				return errors.Wrapf(err, "save candidates of %s", low)
			}
		}
	}
	return errors.Wrap(tx.Commit(), "save candidates")
}

// Candidates loads the inference groups of a session in their stored order.
func (s *Store) Candidates(ctx context.Context, session string) ([]Candidates, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT grp, low, observations, addr FROM candidates WHERE session = ? ORDER BY grp, rank", session)
	if err != nil {
		return nil, errors.Wrap(err, "load candidates")
	}
	defer rows.Close()

	res := []Candidates{}
	last := -1
	for rows.Next() {
		var (
			grp, n int
			low    string
			addr   sql.NullString
		)
		if err := rows.Scan(&grp, &low, &n, &addr); err != nil {
			return nil, errors.Wrap(err, "load candidates")
		}
		if grp != last {
			res = append(res, Candidates{Low: low, Observations: n, Addrs: []bluing.BDAddr{}})
			last = grp
		}
		if !addr.Valid {
			continue
		}
		a, err := bluing.ParseBDAddr(addr.String)
		if err != nil {
			return nil, errors.Wrapf(err, "stored address %q", addr.String)
		}
		c := &res[len(res)-1]
		c.Addrs = append(c.Addrs, a)
	}
	return res, rows.Err()
}

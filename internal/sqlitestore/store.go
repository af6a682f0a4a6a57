// Package sqlitestore is the demo registration/ban persistence backend:
// a modernc.org/sqlite-backed implementation of collab.Registry and
// collab.BanList, using an ordered-migrations-slice pattern over
// registered-users and bans tables.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sirupsen/logrus"

	"vhub/internal/collab"
	"vhub/internal/identity"
)

// migrations holds the ordered list of DDL statements that bring the
// schema up to date. Index i corresponds to version i+1; never edit or
// reorder existing entries, only append.
var migrations = []string{
	// v1 — registered users
	`CREATE TABLE IF NOT EXISTS registered_users (
		nick            TEXT PRIMARY KEY,
		password_hash   TEXT NOT NULL DEFAULT '',
		crypt_method    INTEGER NOT NULL DEFAULT 0,
		class           INTEGER NOT NULL DEFAULT 0,
		class_protect   INTEGER NOT NULL DEFAULT 0,
		class_hide_kick INTEGER NOT NULL DEFAULT 0,
		hide_kick       INTEGER NOT NULL DEFAULT 0,
		hide_keys       INTEGER NOT NULL DEFAULT 0,
		show_keys       INTEGER NOT NULL DEFAULT 0,
		hide_share      INTEGER NOT NULL DEFAULT 0,
		hide_chat       INTEGER NOT NULL DEFAULT 0,
		hide_ctm_msg    INTEGER NOT NULL DEFAULT 0,
		enabled         INTEGER NOT NULL DEFAULT 1,
		pwd_change      INTEGER NOT NULL DEFAULT 0,
		auth_ip         TEXT NOT NULL DEFAULT '',
		alternate_ip    TEXT NOT NULL DEFAULT '',
		fake_ip         TEXT NOT NULL DEFAULT '',
		note_op         TEXT NOT NULL DEFAULT '',
		note_usr        TEXT NOT NULL DEFAULT '',
		created_at      INTEGER NOT NULL DEFAULT (unixepoch())
	)`,
	// v2 — bans
	`CREATE TABLE IF NOT EXISTS bans (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		kind       INTEGER NOT NULL,
		pattern    TEXT NOT NULL,
		reason     TEXT NOT NULL DEFAULT '',
		expires_at INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (unixepoch())
	)`,
	// v3 — lookup index for ban pattern matching by kind
	`CREATE INDEX IF NOT EXISTS idx_bans_kind_pattern ON bans(kind, pattern)`,
	// v4 — enable WAL mode
	`PRAGMA journal_mode=WAL`,
}

// Store wraps a SQLite database and implements collab.Registry and
// collab.BanList against it.
type Store struct {
	db  *sql.DB
	log *logrus.Entry
}

// New opens (or creates) the SQLite database at path and applies any
// pending migrations. Use ":memory:" for ephemeral storage in tests.
func New(path string, log *logrus.Entry) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		log.WithError(err).Warn("sqlitestore: set busy_timeout")
	}

	s := &Store{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: migrate: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRow(
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i, stmt := range migrations {
		v := i + 1
		if v <= current {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
		if _, err := s.db.Exec(`INSERT INTO schema_migrations(version) VALUES(?)`, v); err != nil {
			return fmt.Errorf("record migration %d: %w", v, err)
		}
		if s.log != nil {
			s.log.WithField("version", v).Info("sqlitestore: applied migration")
		}
	}
	return nil
}

// Lookup implements collab.Registry.
func (s *Store) Lookup(ctx context.Context, nick string) (*identity.RegData, error) {
	var r identity.RegData
	var crypt, class, classProtect, classHideKick int
	var hideKick, hideKeys, showKeys, hideShare, hideChat, hideCTM, enabled, pwdChange int

	err := s.db.QueryRowContext(ctx, `
		SELECT nick, password_hash, crypt_method, class, class_protect, class_hide_kick,
		       hide_kick, hide_keys, show_keys, hide_share, hide_chat, hide_ctm_msg,
		       enabled, pwd_change, auth_ip, alternate_ip, fake_ip, note_op, note_usr
		FROM registered_users WHERE nick = ?`, nick,
	).Scan(&r.Nick, &r.PasswordHash, &crypt, &class, &classProtect, &classHideKick,
		&hideKick, &hideKeys, &showKeys, &hideShare, &hideChat, &hideCTM,
		&enabled, &pwdChange, &r.AuthIP, &r.AlternateIP, &r.FakeIP, &r.NoteOp, &r.NoteUsr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: lookup %q: %w", nick, err)
	}

	r.CryptMethod = identity.CryptMethod(crypt)
	r.Class = identity.Class(class)
	r.ClassProtect = identity.Class(classProtect)
	r.ClassHideKick = identity.Class(classHideKick)
	r.HideKick = hideKick != 0
	r.HideKeys = hideKeys != 0
	r.ShowKeys = showKeys != 0
	r.HideShare = hideShare != 0
	r.HideChat = hideChat != 0
	r.HideCTMMsg = hideCTM != 0
	r.Enabled = enabled != 0
	r.PwdChange = pwdChange != 0
	return &r, nil
}

// VerifyPassword implements collab.Registry. Crypt method CryptNone
// compares the raw string; a record with any other crypt method
// (CryptMD5, CryptEncrypt) never verifies.
func (s *Store) VerifyPassword(ctx context.Context, reg *identity.RegData, attempt string) bool {
	if reg == nil {
		return false
	}
	switch reg.CryptMethod {
	case identity.CryptNone:
		return reg.PasswordHash == attempt
	default:
		return false
	}
}

// UpsertRegistration inserts or replaces a registered user's record.
// No vhubd subcommand calls it.
func (s *Store) UpsertRegistration(ctx context.Context, r *identity.RegData) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO registered_users(
			nick, password_hash, crypt_method, class, class_protect, class_hide_kick,
			hide_kick, hide_keys, show_keys, hide_share, hide_chat, hide_ctm_msg,
			enabled, pwd_change, auth_ip, alternate_ip, fake_ip, note_op, note_usr
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(nick) DO UPDATE SET
			password_hash=excluded.password_hash, crypt_method=excluded.crypt_method,
			class=excluded.class, class_protect=excluded.class_protect,
			class_hide_kick=excluded.class_hide_kick, hide_kick=excluded.hide_kick,
			hide_keys=excluded.hide_keys, show_keys=excluded.show_keys,
			hide_share=excluded.hide_share, hide_chat=excluded.hide_chat,
			hide_ctm_msg=excluded.hide_ctm_msg, enabled=excluded.enabled,
			pwd_change=excluded.pwd_change, auth_ip=excluded.auth_ip,
			alternate_ip=excluded.alternate_ip, fake_ip=excluded.fake_ip,
			note_op=excluded.note_op, note_usr=excluded.note_usr`,
		r.Nick, r.PasswordHash, int(r.CryptMethod), int(r.Class), int(r.ClassProtect), int(r.ClassHideKick),
		boolInt(r.HideKick), boolInt(r.HideKeys), boolInt(r.ShowKeys), boolInt(r.HideShare),
		boolInt(r.HideChat), boolInt(r.HideCTMMsg), boolInt(r.Enabled), boolInt(r.PwdChange),
		r.AuthIP, r.AlternateIP, r.FakeIP, r.NoteOp, r.NoteUsr,
	)
	return err
}

// InsertBan implements the write side backing collab.BanList lookups.
func (s *Store) InsertBan(ctx context.Context, kind collab.BanKind, pattern, reason string, expires time.Time) error {
	var exp int64
	if !expires.IsZero() {
		exp = expires.Unix()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bans(kind, pattern, reason, expires_at) VALUES(?,?,?,?)`,
		int(kind), pattern, reason, exp,
	)
	return err
}

// Check implements collab.BanList. Share-threshold bans (collab.BanShare)
// are evaluated against the numeric pattern as a minimum-required-share
// value; BanPrefix matches a nick prefix; every other kind matches by
// exact pattern (BanIP, BanIPRange and BanHost compare it to the IP).
func (s *Store) Check(ctx context.Context, nick, ip string, share int64) (*collab.BanRecord, bool) {
	now := time.Now().Unix()
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, pattern, reason, expires_at FROM bans
		 WHERE expires_at = 0 OR expires_at > ?`, now,
	)
	if err != nil {
		return nil, false
	}
	defer rows.Close()

	for rows.Next() {
		var kind int
		var pattern, reason string
		var expires int64
		if err := rows.Scan(&kind, &pattern, &reason, &expires); err != nil {
			continue
		}
		if matchesBan(collab.BanKind(kind), pattern, nick, ip, share) {
			rec := &collab.BanRecord{Kind: collab.BanKind(kind), Pattern: pattern, Reason: reason}
			if expires > 0 {
				rec.Expires = time.Unix(expires, 0)
			}
			return rec, true
		}
	}
	return nil, false
}

func matchesBan(kind collab.BanKind, pattern, nick, ip string, share int64) bool {
	switch kind {
	case collab.BanNick:
		return pattern == nick
	case collab.BanIP, collab.BanIPRange, collab.BanHost:
		return pattern == ip
	case collab.BanPrefix:
		return len(pattern) <= len(nick) && nick[:len(pattern)] == pattern
	case collab.BanShare:
		var min int64
		fmt.Sscanf(pattern, "%d", &min)
		return share < min
	default:
		return false
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

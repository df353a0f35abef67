// Package localstore is the durable key-value store of one device, shared by every tab
// (browsing context) on it, plus the notifier that tells the other tabs about each write.
package localstore

import (
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "modernc.org/sqlite"
)

// Device owns the SQLite database backing every tab on one device.
type Device struct {
	db     *sql.DB
	hub    *hub
	nextID atomic.Uint64
}

func Open(dbPath string) (*Device, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// one connection keeps ":memory:" databases shared and writes serialized
	db.SetMaxOpenConns(1)

	return &Device{db: db, hub: newHub()}, nil
}

func (d *Device) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(d.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (d *Device) Close() error {
	return d.db.Close()
}

// NewTab opens a browsing context on the device.
func (d *Device) NewTab(name string) *Tab {
	return &Tab{
		id:     d.nextID.Add(1),
		name:   name,
		device: d,
	}
}

// Tab is one browsing context. Reads and writes are synchronous; writes are announced
// to every other tab on the same device, never to the writing tab itself.
type Tab struct {
	id     uint64
	name   string
	device *Device
}

func (t *Tab) Name() string {
	return t.name
}

func (t *Tab) Get(key string) (string, bool, error) {
	var value string
	err := t.device.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key. Writing the value a key already holds is not announced.
func (t *Tab) Set(key, value string) error {
	_, err := t.SetIf(key, value, nil)
	return err
}

// SetIf is Set guarded by keep: when key already holds a value and keep(old) reports
// true, nothing is written. The check and the write are one transaction.
func (t *Tab) SetIf(key, value string, keep func(old string) bool) (bool, error) {
	tx, err := t.device.db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin set %q: %w", key, err)
	}
	defer tx.Rollback()

	var old string
	err = tx.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&old)
	existed := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("failed to read %q: %w", key, err)
	}
	if existed && (old == value || (keep != nil && keep(old))) {
		return false, nil
	}

	_, err = tx.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return false, fmt.Errorf("failed to set %q: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit set %q: %w", key, err)
	}

	t.device.hub.publish(t.id, Event{Key: key, NewValue: value})
	return true, nil
}

func (t *Tab) Remove(key string) error {
	res, err := t.device.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to remove %q: %w", key, err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		t.device.hub.publish(t.id, Event{Key: key, Removed: true})
	}
	return nil
}

// Take reads and removes key atomically. Of several tabs racing for the same key
// exactly one gets ok == true.
func (t *Tab) Take(key string) (value string, ok bool, err error) {
	tx, err := t.device.db.Begin()
	if err != nil {
		return "", false, fmt.Errorf("failed to begin take %q: %w", key, err)
	}
	defer tx.Rollback()

	err = tx.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %q: %w", key, err)
	}

	if _, err := tx.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return "", false, fmt.Errorf("failed to remove %q: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("failed to commit take %q: %w", key, err)
	}

	t.device.hub.publish(t.id, Event{Key: key, Removed: true})
	return value, true, nil
}

// Subscribe registers fn for writes made by other tabs. The returned func unsubscribes.
func (t *Tab) Subscribe(fn func(Event)) (unsubscribe func()) {
	return t.device.hub.subscribe(t.id, fn)
}

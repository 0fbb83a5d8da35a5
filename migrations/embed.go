// Package migrations embeds the worker's SQL schema migrations so the
// migrator binary and the integration-test harness apply the exact files
// compiled into them, with no on-disk path dependency.
package migrations

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"

	"embed"
)

//go:embed *.sql
var files embed.FS

// Migration filename standard: 001_migration_name.up.sql / 001_migration_name.down.sql.
var filenameRegex = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

// Static validation errors.
var (
	ErrBadFilename     = errors.New("migration filename does not match NNN_name.{up,down}.sql")
	ErrUnpaired        = errors.New("migration is missing its up or down counterpart")
	ErrSequenceGap     = errors.New("migration sequence numbers are not contiguous from 1")
	ErrEmptyMigrations = errors.New("no migration files embedded")
)

// FS returns the embedded migration files for use with a golang-migrate
// iofs source driver.
func FS() fs.FS { return files }

// List returns the embedded migration filenames, sorted.
func List() ([]string, error) {
	entries, err := files.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("read embedded migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}

// Validate checks every embedded file against the naming standard, that
// each sequence number has both an up and a down file, and that sequence
// numbers run contiguously from 1. The migrator runs this before any
// state-changing command.
func Validate() error {
	names, err := List()
	if err != nil {
		return err
	}

	return validateNames(names)
}

func validateNames(names []string) error {
	if len(names) == 0 {
		return ErrEmptyMigrations
	}

	directions := make(map[int]map[string]bool)

	for _, name := range names {
		m := filenameRegex.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("%w: %q", ErrBadFilename, name)
		}

		seq, err := strconv.Atoi(m[1])
		if err != nil || seq == 0 {
			return fmt.Errorf("%w: %q", ErrBadFilename, name)
		}

		if directions[seq] == nil {
			directions[seq] = make(map[string]bool)
		}

		directions[seq][m[3]] = true
	}

	for seq := 1; seq <= len(directions); seq++ {
		dirs, ok := directions[seq]
		if !ok {
			return fmt.Errorf("%w: missing sequence %03d", ErrSequenceGap, seq)
		}

		if !dirs["up"] || !dirs["down"] {
			return fmt.Errorf("%w: sequence %03d", ErrUnpaired, seq)
		}
	}

	return nil
}

// MaxVersion returns the highest embedded migration sequence number, or 0
// if none are embedded.
func MaxVersion() int {
	names, err := List()
	if err != nil {
		return 0
	}

	maxSeq := 0

	for _, name := range names {
		m := filenameRegex.FindStringSubmatch(name)
		if m == nil {
			continue
		}

		if seq, err := strconv.Atoi(m[1]); err == nil && seq > maxSeq {
			maxSeq = seq
		}
	}

	return maxSeq
}

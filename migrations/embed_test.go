package migrations

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList_ReturnsEmbeddedSQLFiles(t *testing.T) {
	names, err := List()
	require.NoError(t, err)
	require.NotEmpty(t, names, "at least the initial schema must be embedded")

	assert.Contains(t, names, "001_initial_schema.up.sql")
	assert.Contains(t, names, "001_initial_schema.down.sql")

	// Sorted output is part of the contract.
	for i := 1; i < len(names); i++ {
		assert.LessOrEqual(t, names[i-1], names[i])
	}
}

func TestValidate_EmbeddedMigrationsAreWellFormed(t *testing.T) {
	require.NoError(t, Validate())
}

func TestValidateNames(t *testing.T) {
	tests := []struct {
		name    string
		files   []string
		wantErr error
	}{
		{
			name:  "valid pair",
			files: []string{"001_initial_schema.up.sql", "001_initial_schema.down.sql"},
		},
		{
			name: "valid multi sequence",
			files: []string{
				"001_initial_schema.up.sql", "001_initial_schema.down.sql",
				"002_add_indexes.up.sql", "002_add_indexes.down.sql",
			},
		},
		{
			name:    "empty",
			files:   nil,
			wantErr: ErrEmptyMigrations,
		},
		{
			name:    "bad filename",
			files:   []string{"1_schema.up.sql", "1_schema.down.sql"},
			wantErr: ErrBadFilename,
		},
		{
			name:    "missing down counterpart",
			files:   []string{"001_initial_schema.up.sql"},
			wantErr: ErrUnpaired,
		},
		{
			name: "sequence gap",
			files: []string{
				"001_initial_schema.up.sql", "001_initial_schema.down.sql",
				"003_add_indexes.up.sql", "003_add_indexes.down.sql",
			},
			wantErr: ErrSequenceGap,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateNames(tt.files)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMaxVersion_MatchesHighestEmbeddedSequence(t *testing.T) {
	assert.GreaterOrEqual(t, MaxVersion(), 1)
}

func TestFS_FilesAreReadable(t *testing.T) {
	names, err := List()
	require.NoError(t, err)

	for _, name := range names {
		f, err := FS().Open(name)
		require.NoError(t, err, name)

		data, err := io.ReadAll(f)
		require.NoError(t, err, name)
		assert.NotEmpty(t, data, name)

		require.NoError(t, f.Close())
	}
}

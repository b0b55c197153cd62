package verifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tordrt/socialgraph/internal/apperr"
	"github.com/tordrt/socialgraph/internal/console"
	"github.com/tordrt/socialgraph/internal/schema"
)

func TestLifecycleAlreadyProvisioned(t *testing.T) {
	v, client := newSQLiteVerifier(t)
	exec(t, client, `CREATE TABLE files (name text, id bigint)`)

	ui := console.NewSilent()
	l := NewLifecycle(v, ui, filesOnly, "")
	require.Equal(t, StateDisconnected, l.State())

	require.NoError(t, l.Connect(context.Background()))
	require.Equal(t, StateConnected, l.State())
	require.Empty(t, ui.Prompts)
}

func TestLifecycleEmpty(t *testing.T) {
	tests := []struct {
		name    string
		answer  bool
		wantErr bool
		want    State
	}{
		{name: "accepted", answer: true, want: StateConnected},
		{name: "declined", answer: false, wantErr: true, want: StateDisconnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := newSQLiteVerifier(t)
			ui := console.NewSilent(tt.answer)
			l := NewLifecycle(v, ui, schema.Default(), "sg_")

			err := l.Connect(context.Background())
			require.Equal(t, []string{PromptInitialize}, ui.Prompts)
			require.Equal(t, tt.want, l.State())

			if tt.wantErr {
				require.Error(t, err)
				require.True(t, apperr.IsCode(err, apperr.CodeSchemaDrift))
				require.True(t, ui.Contains(console.SevereLevel, "empty"))
				return
			}
			require.NoError(t, err)
			require.Equal(t, StatusOK, l.Report().Status)
		})
	}
}

func TestLifecyclePartialKeepsExistingTables(t *testing.T) {
	v, client := newSQLiteVerifier(t)
	exec(t, client,
		`CREATE TABLE files (name text, id bigint, PRIMARY KEY (id))`,
		`INSERT INTO files (name, id) VALUES ('Team A', 1)`)

	// Re-initialize: yes, delete existing: no
	ui := console.NewSilent(true, false)
	l := NewLifecycle(v, ui, schema.Default(), "")

	require.NoError(t, l.Connect(context.Background()))
	require.Equal(t, []string{PromptReinitialize, PromptDropExisting}, ui.Prompts)
	require.Empty(t, ui.Messages(console.SevereLevel))

	var count int
	require.NoError(t, client.GetDB().QueryRow(`SELECT COUNT(*) FROM files`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestLifecyclePartialDropExisting(t *testing.T) {
	v, client := newSQLiteVerifier(t)
	exec(t, client,
		`CREATE TABLE files (name text, id bigint, PRIMARY KEY (id))`,
		`INSERT INTO files (name, id) VALUES ('Team A', 1)`)

	ui := console.NewSilent(true, true)
	l := NewLifecycle(v, ui, schema.Default(), "")

	require.NoError(t, l.Connect(context.Background()))

	var count int
	require.NoError(t, client.GetDB().QueryRow(`SELECT COUNT(*) FROM files`).Scan(&count))
	require.Equal(t, 0, count)
}

func TestLifecycleCorrupt(t *testing.T) {
	v, client := newSQLiteVerifier(t)
	exec(t, client, `CREATE TABLE files (name text, id bigint, extra text)`)

	ui := console.NewSilent(false)
	l := NewLifecycle(v, ui, filesOnly, "")

	err := l.Connect(context.Background())
	require.Error(t, err)
	require.True(t, apperr.IsCode(err, apperr.CodeSchemaDrift))
	require.Equal(t, []string{PromptRebuild}, ui.Prompts)
	require.True(t, ui.Contains(console.SevereLevel, "Schema problem"))
	require.True(t, ui.Contains(console.SevereLevel, "corrupt"))
	require.Equal(t, StateDisconnected, l.State())

	ui = console.NewSilent(true)
	l = NewLifecycle(v, ui, filesOnly, "")
	require.NoError(t, l.Connect(context.Background()))
	require.Equal(t, StateConnected, l.State())
}

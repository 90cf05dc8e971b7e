package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionStoreAddGetDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConnectionStore(dir)
	require.NoError(t, err)
	assert.Empty(t, store.Connections)

	conn := DefaultConnection()
	conn.Name = "shop"
	conn.Database = "shop"
	store.Add(conn)

	conn.Host = "db.internal"
	store.Add(conn)
	require.Len(t, store.Connections, 1, "same name updates in place")
	require.NoError(t, store.Save())

	reloaded, err := NewConnectionStore(dir)
	require.NoError(t, err)
	got, ok := reloaded.Get("shop")
	require.True(t, ok)
	assert.Equal(t, "db.internal", got.Host)
	assert.Equal(t, "5432", got.Port)

	reloaded.Delete("shop")
	_, ok = reloaded.Get("shop")
	assert.False(t, ok)
}

func TestConnectionStoreKeepsNamesSorted(t *testing.T) {
	store, err := NewConnectionStore(t.TempDir())
	require.NoError(t, err)
	for _, name := range []string{"warehouse", " crm ", "analytics", "   "} {
		store.Add(Connection{Name: name})
	}
	var names []string
	for _, c := range store.Connections {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"analytics", "crm", "warehouse"}, names)
	assert.Equal(t, 1, store.Index("crm"))
	assert.Equal(t, -1, store.Index("missing"))

	require.NoError(t, store.Save())
	assert.NoFileExists(t, store.path+".tmp")
}

func TestConnectionFromDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want Connection
	}{
		{
			name: "url",
			dsn:  "postgres://u:p@h:6543/d",
			want: Connection{DBType: "postgresql", Host: "h", Port: "6543", Username: "u", Password: "p", Database: "d"},
		},
		{
			name: "postgresql scheme",
			dsn:  "postgresql://u:p@h/d",
			want: Connection{DBType: "postgresql", Host: "h", Port: "5432", Username: "u", Password: "p", Database: "d"},
		},
		{
			name: "keyword value",
			dsn:  "host=h port=5432 user=u password=p dbname=d",
			want: Connection{DBType: "postgresql", Host: "h", Port: "5432", Username: "u", Password: "p", Database: "d"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConnectionFromDSN(tt.dsn)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConnectionFromDSNRejectsOtherSchemes(t *testing.T) {
	_, err := ConnectionFromDSN("mysql://u:p@h/d")
	assert.ErrorContains(t, err, "unsupported DSN scheme")
}

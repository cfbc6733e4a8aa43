package refdata

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "ref.duckdb"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.CreateSchema())
	return store
}

func TestStore_GeneNames(t *testing.T) {
	store := openTestStore(t)

	// Versioned ids are stored unversioned.
	require.NoError(t, store.InsertGene("ENSG00000229807.13", "XIST"))
	require.NoError(t, store.InsertGene("ENSG00000129824", "RPS4Y1"))

	n, err := store.GeneCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	table, err := store.GeneNames()
	require.NoError(t, err)

	name, ok := table.Name("ENSG00000229807.13")
	require.True(t, ok)
	assert.Equal(t, "XIST", name)

	name, ok = table.Name("ENSG00000129824.6")
	require.True(t, ok)
	assert.Equal(t, "RPS4Y1", name)

	_, ok = table.Name("ENSG00000000000")
	assert.False(t, ok)
}

func TestStore_TermSets(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.InsertTerm("GO:0006412", "translation",
		[]string{"ENSG00000129824.6", "ENSG00000111640"}))
	require.NoError(t, store.InsertTerm("GO:0008150", "biological_process",
		[]string{"ENSG00000111640"}))

	terms, err := store.TermSets()
	require.NoError(t, err)
	require.Len(t, terms, 2)

	assert.Equal(t, "GO:0006412", terms[0].ID)
	assert.Equal(t, "translation", terms[0].Name)
	assert.ElementsMatch(t, []string{"ENSG00000129824", "ENSG00000111640"}, terms[0].Genes)

	assert.Equal(t, "GO:0008150", terms[1].ID)
	assert.Equal(t, []string{"ENSG00000111640"}, terms[1].Genes)
}

func TestStore_EmptyTables(t *testing.T) {
	store := openTestStore(t)

	table, err := store.GeneNames()
	require.NoError(t, err)
	assert.Empty(t, table)

	terms, err := store.TermSets()
	require.NoError(t, err)
	assert.Empty(t, terms)
}

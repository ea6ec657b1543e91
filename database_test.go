package taxchat

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiscus/taxchat/ai/mock"
)

func TestNewDatabase(t *testing.T) {
	t.Run("create new database", func(t *testing.T) {
		tmpDir := filepath.Join(t.TempDir(), "test_db")
		db, err := NewDatabase(tmpDir)
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		// Verify components are initialized
		assert.NotNil(t, db.DocumentRepository())
		assert.NotNil(t, db.ChunkRepository())
		assert.NotNil(t, db.CheckpointRepository())
		assert.NotNil(t, db.Provider())
		assert.NotNil(t, db.backend)
		assert.NotNil(t, db.logger)
	})

	t.Run("error with invalid path", func(t *testing.T) {
		// Try to create a database at a file path instead of directory
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		err := os.WriteFile(tmpFile, []byte("test"), 0644)
		require.NoError(t, err)

		db, err := NewDatabase(tmpFile)
		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("injected provider is used", func(t *testing.T) {
		provider := mock.NewMockProvider()
		db, err := NewDatabase(t.TempDir(), WithProvider(provider))
		require.NoError(t, err)
		defer db.Close()

		assert.Same(t, provider, db.Provider())
	})
}

func TestDatabase_Close(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := NewDatabase(tmpDir)
	require.NoError(t, err)
	require.NotNil(t, db)

	// Close the database
	err = db.Close()
	assert.NoError(t, err)
}

func TestDatabase_FactoryMethods(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := NewDatabase(tmpDir, WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	require.NotNil(t, db)
	defer db.Close()

	t.Run("can create ingest manager", func(t *testing.T) {
		manager, err := db.NewIngestManager()
		require.NoError(t, err)
		require.NotNil(t, manager)
		require.NoError(t, manager.Close())
	})

	t.Run("can create retriever", func(t *testing.T) {
		retriever, err := db.NewRetriever()
		require.NoError(t, err)
		require.NotNil(t, retriever)
	})

	t.Run("can create chat session", func(t *testing.T) {
		session, err := db.NewChatSession()
		require.NoError(t, err)
		require.NotNil(t, session)
	})

	t.Run("can create reindexer", func(t *testing.T) {
		reindexer := db.NewReindexer(nil, io.Discard)
		require.NotNil(t, reindexer)
	})
}

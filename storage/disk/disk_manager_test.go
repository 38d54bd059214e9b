package disk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snokuda/HibariDB/common"
	"github.com/snokuda/HibariDB/types"
)

func managers(t *testing.T) map[string]DiskManager {
	t.Helper()
	return map[string]DiskManager{
		"os":      NewDiskManagerImpl(t.TempDir()),
		"virtual": NewVirtualDiskManagerImpl(),
	}
}

func TestCreateDestroy(t *testing.T) {
	for label, dm := range managers(t) {
		t.Run(label, func(t *testing.T) {
			defer dm.ShutDown()

			require.NoError(t, dm.CreateFile("rel.heap"))
			assert.ErrorIs(t, dm.CreateFile("rel.heap"), ErrFileExists)

			require.NoError(t, dm.DestroyFile("rel.heap"))
			assert.ErrorIs(t, dm.DestroyFile("rel.heap"), ErrFileNotFound)
			assert.ErrorIs(t, dm.DestroyFile("never-created"), ErrFileNotFound)
		})
	}
}

func TestDestroyRefusesOpenFile(t *testing.T) {
	for label, dm := range managers(t) {
		t.Run(label, func(t *testing.T) {
			defer dm.ShutDown()

			require.NoError(t, dm.CreateFile("rel.heap"))
			file, err := dm.OpenFile("rel.heap")
			require.NoError(t, err)

			assert.ErrorIs(t, dm.DestroyFile("rel.heap"), ErrFileOpen)

			require.NoError(t, dm.CloseFile(file))
			assert.NoError(t, dm.DestroyFile("rel.heap"))
		})
	}
}

func TestOpenIsRefCounted(t *testing.T) {
	for label, dm := range managers(t) {
		t.Run(label, func(t *testing.T) {
			defer dm.ShutDown()

			require.NoError(t, dm.CreateFile("rel.heap"))
			first, err := dm.OpenFile("rel.heap")
			require.NoError(t, err)
			second, err := dm.OpenFile("rel.heap")
			require.NoError(t, err)
			assert.Equal(t, first, second)
			assert.Equal(t, first.FileID(), second.FileID())

			require.NoError(t, dm.CloseFile(second))
			// still open through the first handle
			assert.ErrorIs(t, dm.DestroyFile("rel.heap"), ErrFileOpen)
			require.NoError(t, dm.CloseFile(first))
			assert.NoError(t, dm.DestroyFile("rel.heap"))
		})
	}
}

func TestReadWritePageRoundTrip(t *testing.T) {
	for label, dm := range managers(t) {
		t.Run(label, func(t *testing.T) {
			defer dm.ShutDown()

			require.NoError(t, dm.CreateFile("rel.heap"))
			file, err := dm.OpenFile("rel.heap")
			require.NoError(t, err)

			_, err = file.GetFirstPage()
			assert.ErrorIs(t, err, ErrEmptyFile)

			assert.Equal(t, types.PageID(0), file.AllocatePage())
			assert.Equal(t, types.PageID(1), file.AllocatePage())

			firstPage, err := file.GetFirstPage()
			require.NoError(t, err)
			assert.Equal(t, types.PageID(0), firstPage)

			content := make([]byte, common.PageSize)
			copy(content, "a heap page")
			require.NoError(t, file.WritePage(types.PageID(1), content))
			assert.Equal(t, uint64(1), file.GetNumWrites())
			assert.Equal(t, int64(2*common.PageSize), file.Size())

			readBack := make([]byte, common.PageSize)
			require.NoError(t, file.ReadPage(types.PageID(1), readBack))
			assert.Equal(t, content, readBack)

			// allocated but never written pages read back zeroed
			require.NoError(t, file.ReadPage(types.PageID(0), readBack))
			assert.Equal(t, make([]byte, common.PageSize), readBack)

			assert.ErrorIs(t, file.ReadPage(types.PageID(5), readBack), ErrInvalidPageID)
			assert.ErrorIs(t, file.WritePage(types.InvalidPageID, content), ErrInvalidPageID)

			require.NoError(t, dm.CloseFile(file))
		})
	}
}

func TestContentSurvivesReopen(t *testing.T) {
	for label, dm := range managers(t) {
		t.Run(label, func(t *testing.T) {
			defer dm.ShutDown()

			require.NoError(t, dm.CreateFile("rel.heap"))
			file, err := dm.OpenFile("rel.heap")
			require.NoError(t, err)

			file.AllocatePage()
			content := make([]byte, common.PageSize)
			copy(content, "persistent")
			require.NoError(t, file.WritePage(types.PageID(0), content))
			firstID := file.FileID()
			require.NoError(t, dm.CloseFile(file))

			reopened, err := dm.OpenFile("rel.heap")
			require.NoError(t, err)
			// a new open epoch gets a new id so stale buffer frames miss
			assert.NotEqual(t, firstID, reopened.FileID())

			readBack := make([]byte, common.PageSize)
			require.NoError(t, reopened.ReadPage(types.PageID(0), readBack))
			assert.Equal(t, content, readBack)
			require.NoError(t, dm.CloseFile(reopened))
		})
	}
}

func TestOpenMissingFile(t *testing.T) {
	for label, dm := range managers(t) {
		t.Run(label, func(t *testing.T) {
			defer dm.ShutDown()

			_, err := dm.OpenFile("no-such.heap")
			assert.ErrorIs(t, err, ErrFileNotFound)
		})
	}
}

// this code is derived from https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package disk

import (
	"os"
	"path/filepath"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"github.com/sasha-s/go-deadlock"

	"github.com/snokuda/HibariDB/common"
	"github.com/snokuda/HibariDB/types"
)

// DiskManagerImpl keeps each heap file as one os file under baseDir.
// Open handles are reference counted so that a scan and an insert handle
// over the same file share the underlying descriptor.
type DiskManagerImpl struct {
	baseDir    string
	openFiles  map[string]*openEntry
	openNames  mapset.Set[string]
	nextFileID uint32
	mutex      deadlock.Mutex
}

type openEntry struct {
	file   *DiskFileImpl
	refCnt int32
}

// NewDiskManagerImpl returns a DiskManager storing its files under baseDir
func NewDiskManagerImpl(baseDir string) DiskManager {
	return &DiskManagerImpl{
		baseDir:   baseDir,
		openFiles: make(map[string]*openEntry),
		openNames: mapset.NewSet[string](),
	}
}

func (d *DiskManagerImpl) path(name string) string {
	return filepath.Join(d.baseDir, name)
}

func (d *DiskManagerImpl) CreateFile(name string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if _, err := os.Stat(d.path(name)); err == nil {
		return ErrFileExists
	}
	file, err := os.OpenFile(d.path(name), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0666)
	if err != nil {
		return errors.Wrapf(err, "create file %s", name)
	}
	return errors.Wrapf(file.Close(), "close created file %s", name)
}

func (d *DiskManagerImpl) DestroyFile(name string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.openNames.Contains(name) {
		return ErrFileOpen
	}
	if _, err := os.Stat(d.path(name)); err != nil {
		return ErrFileNotFound
	}
	return errors.Wrapf(os.Remove(d.path(name)), "destroy file %s", name)
}

func (d *DiskManagerImpl) OpenFile(name string) (DBFile, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if entry, ok := d.openFiles[name]; ok {
		entry.refCnt++
		return entry.file, nil
	}

	file, err := os.OpenFile(d.path(name), os.O_RDWR, 0666)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, errors.Wrapf(err, "open file %s", name)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "stat file %s", name)
	}

	dbFile := &DiskFileImpl{
		db:         file,
		name:       name,
		fileID:     d.nextFileID,
		nextPageID: types.PageID(info.Size() / common.PageSize),
		size:       info.Size(),
	}
	d.nextFileID++
	d.openFiles[name] = &openEntry{file: dbFile, refCnt: 1}
	d.openNames.Add(name)
	return dbFile, nil
}

func (d *DiskManagerImpl) CloseFile(file DBFile) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	entry, ok := d.openFiles[file.Name()]
	if !ok || entry.file != file {
		return ErrFileNotFound
	}
	entry.refCnt--
	if entry.refCnt > 0 {
		return nil
	}
	delete(d.openFiles, file.Name())
	d.openNames.Remove(file.Name())
	return errors.Wrapf(entry.file.db.Close(), "close file %s", file.Name())
}

// ShutDown closes every file still open
func (d *DiskManagerImpl) ShutDown() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	for name, entry := range d.openFiles {
		entry.file.db.Close()
		delete(d.openFiles, name)
		d.openNames.Remove(name)
	}
}

// DiskFileImpl is the os.File-backed DBFile
type DiskFileImpl struct {
	db         *os.File
	name       string
	fileID     uint32
	nextPageID types.PageID
	size       int64
	numWrites  uint64
	mutex      deadlock.Mutex
}

// ReadPage reads a page into pageData. A page which was allocated but
// never written reads back as zeroes.
func (f *DiskFileImpl) ReadPage(pageID types.PageID, pageData []byte) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if !pageID.IsValid() || pageID >= f.nextPageID {
		return ErrInvalidPageID
	}
	offset := int64(pageID) * common.PageSize
	if offset >= f.size {
		for i := range pageData {
			pageData[i] = 0
		}
		return nil
	}
	if _, err := f.db.ReadAt(pageData, offset); err != nil {
		return errors.Wrapf(err, "read page %d of %s", pageID, f.name)
	}
	return nil
}

// WritePage writes pageData to the page's slot in the file
func (f *DiskFileImpl) WritePage(pageID types.PageID, pageData []byte) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if !pageID.IsValid() || pageID >= f.nextPageID {
		return ErrInvalidPageID
	}
	offset := int64(pageID) * common.PageSize
	if _, err := f.db.WriteAt(pageData, offset); err != nil {
		return errors.Wrapf(err, "write page %d of %s", pageID, f.name)
	}
	f.numWrites++
	if offset+common.PageSize > f.size {
		f.size = offset + common.PageSize
	}
	return nil
}

// AllocatePage hands out the next dense page number. The page
// materializes on disk at the first write.
func (f *DiskFileImpl) AllocatePage() types.PageID {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	pageID := f.nextPageID
	f.nextPageID++
	return pageID
}

// GetFirstPage returns the number of the file's first page
func (f *DiskFileImpl) GetFirstPage() (types.PageID, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.nextPageID == 0 {
		return types.InvalidPageID, ErrEmptyFile
	}
	return types.PageID(0), nil
}

func (f *DiskFileImpl) FileID() uint32 {
	return f.fileID
}

func (f *DiskFileImpl) Name() string {
	return f.name
}

func (f *DiskFileImpl) Size() int64 {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.size
}

func (f *DiskFileImpl) GetNumWrites() uint64 {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.numWrites
}

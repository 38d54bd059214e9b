package disk

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dsnet/golib/memfile"
	"github.com/pkg/errors"
	"github.com/sasha-s/go-deadlock"

	"github.com/snokuda/HibariDB/common"
	"github.com/snokuda/HibariDB/types"
)

// VirtualDiskManagerImpl keeps whole files on memory with memfile.
// Contents survive close/reopen of a file (but not process exit), which is
// what the tests need.
type VirtualDiskManagerImpl struct {
	files      map[string]*memfile.File
	openFiles  map[string]*virtualOpenEntry
	openNames  mapset.Set[string]
	nextFileID uint32
	mutex      deadlock.Mutex
}

type virtualOpenEntry struct {
	file   *VirtualDiskFileImpl
	refCnt int32
}

// NewVirtualDiskManagerImpl returns an on-memory DiskManager
func NewVirtualDiskManagerImpl() DiskManager {
	return &VirtualDiskManagerImpl{
		files:     make(map[string]*memfile.File),
		openFiles: make(map[string]*virtualOpenEntry),
		openNames: mapset.NewSet[string](),
	}
}

func (d *VirtualDiskManagerImpl) CreateFile(name string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if _, ok := d.files[name]; ok {
		return ErrFileExists
	}
	d.files[name] = memfile.New(make([]byte, 0))
	return nil
}

func (d *VirtualDiskManagerImpl) DestroyFile(name string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.openNames.Contains(name) {
		return ErrFileOpen
	}
	if _, ok := d.files[name]; !ok {
		return ErrFileNotFound
	}
	delete(d.files, name)
	return nil
}

func (d *VirtualDiskManagerImpl) OpenFile(name string) (DBFile, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if entry, ok := d.openFiles[name]; ok {
		entry.refCnt++
		return entry.file, nil
	}
	mf, ok := d.files[name]
	if !ok {
		return nil, ErrFileNotFound
	}

	size := int64(len(mf.Bytes()))
	dbFile := &VirtualDiskFileImpl{
		mf:         mf,
		name:       name,
		fileID:     d.nextFileID,
		nextPageID: types.PageID(size / common.PageSize),
		size:       size,
	}
	d.nextFileID++
	d.openFiles[name] = &virtualOpenEntry{file: dbFile, refCnt: 1}
	d.openNames.Add(name)
	return dbFile, nil
}

func (d *VirtualDiskManagerImpl) CloseFile(file DBFile) error {
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
	return nil
}

func (d *VirtualDiskManagerImpl) ShutDown() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	for name := range d.openFiles {
		delete(d.openFiles, name)
		d.openNames.Remove(name)
	}
}

// VirtualDiskFileImpl is the memfile-backed DBFile
type VirtualDiskFileImpl struct {
	mf         *memfile.File
	name       string
	fileID     uint32
	nextPageID types.PageID
	size       int64
	numWrites  uint64
	mutex      deadlock.Mutex
}

func (f *VirtualDiskFileImpl) ReadPage(pageID types.PageID, pageData []byte) error {
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
	if _, err := f.mf.ReadAt(pageData, offset); err != nil {
		return errors.Wrapf(err, "read page %d of %s", pageID, f.name)
	}
	return nil
}

func (f *VirtualDiskFileImpl) WritePage(pageID types.PageID, pageData []byte) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if !pageID.IsValid() || pageID >= f.nextPageID {
		return ErrInvalidPageID
	}
	offset := int64(pageID) * common.PageSize
	if _, err := f.mf.WriteAt(pageData, offset); err != nil {
		return errors.Wrapf(err, "write page %d of %s", pageID, f.name)
	}
	f.numWrites++
	if offset+common.PageSize > f.size {
		f.size = offset + common.PageSize
	}
	return nil
}

func (f *VirtualDiskFileImpl) AllocatePage() types.PageID {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	pageID := f.nextPageID
	f.nextPageID++
	return pageID
}

func (f *VirtualDiskFileImpl) GetFirstPage() (types.PageID, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.nextPageID == 0 {
		return types.InvalidPageID, ErrEmptyFile
	}
	return types.PageID(0), nil
}

func (f *VirtualDiskFileImpl) FileID() uint32 {
	return f.fileID
}

func (f *VirtualDiskFileImpl) Name() string {
	return f.name
}

func (f *VirtualDiskFileImpl) Size() int64 {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.size
}

func (f *VirtualDiskFileImpl) GetNumWrites() uint64 {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.numWrites
}

// this code is derived from https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package buffer

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/golang-collections/collections/stack"
	"github.com/sasha-s/go-deadlock"

	"github.com/snokuda/HibariDB/common"
	"github.com/snokuda/HibariDB/errors"
	"github.com/snokuda/HibariDB/storage/disk"
	"github.com/snokuda/HibariDB/storage/page"
	"github.com/snokuda/HibariDB/types"
)

const ErrNoAvailableFrame = errors.Error("all buffer pool frames are pinned")
const ErrPageNotInPool = errors.Error("page is not in the buffer pool")

// frames are keyed by (file epoch, page number) so pages of distinct heap
// files never collide, and a destroyed-and-recreated file can never hit a
// stale frame.
type frameKey struct {
	fileID uint32
	pageID types.PageID
}

// BufferPoolManager caches pages of any number of open DBFiles in a fixed
// set of frames. A pinned frame is never victimized; unpinning hands the
// frame to the clock replacer.
type BufferPoolManager struct {
	pages     []*page.Page
	files     []disk.DBFile
	replacer  *ClockReplacer
	freeList  *stack.Stack
	pageTable map[frameKey]FrameID
	mutex     deadlock.Mutex
}

// FetchPage pins the requested page, faulting it in from disk if needed.
func (b *BufferPoolManager) FetchPage(file disk.DBFile, pageID types.PageID) (*page.Page, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	key := frameKey{file.FileID(), pageID}
	if frameID, ok := b.pageTable[key]; ok {
		pg := b.pages[frameID]
		pg.IncPinCount()
		b.replacer.Pin(frameID)
		return pg, nil
	}

	frameID, err := b.grabFrame()
	if err != nil {
		return nil, err
	}

	var pageData [common.PageSize]byte
	if err := file.ReadPage(pageID, pageData[:]); err != nil {
		// hand the frame back untouched
		b.freeList.Push(*frameID)
		return nil, err
	}
	pg := page.New(pageID, false, &pageData)
	b.pageTable[key] = *frameID
	b.pages[*frameID] = pg
	b.files[*frameID] = file

	return pg, nil
}

// NewPage allocates a fresh page of the file and pins a zero-filled frame
// for it.
func (b *BufferPoolManager) NewPage(file disk.DBFile) (*page.Page, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	frameID, err := b.grabFrame()
	if err != nil {
		return nil, err
	}

	pageID := file.AllocatePage()
	pg := page.NewEmpty(pageID)

	b.pageTable[frameKey{file.FileID(), pageID}] = *frameID
	b.pages[*frameID] = pg
	b.files[*frameID] = file

	return pg, nil
}

// UnpinPage unpins the target page, recording whether the caller wrote to
// it. The dirty bit is sticky until the page is flushed.
func (b *BufferPoolManager) UnpinPage(file disk.DBFile, pageID types.PageID, isDirty bool) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	key := frameKey{file.FileID(), pageID}
	frameID, ok := b.pageTable[key]
	if !ok {
		return ErrPageNotInPool
	}

	pg := b.pages[frameID]
	pg.DecPinCount()

	if pg.PinCount() <= 0 {
		b.replacer.Unpin(frameID)
	}
	if pg.IsDirty() || isDirty {
		pg.SetIsDirty(true)
	} else {
		pg.SetIsDirty(false)
	}
	return nil
}

// FlushPage writes the target page to disk and clears its dirty bit. The
// pin count is left alone.
func (b *BufferPoolManager) FlushPage(file disk.DBFile, pageID types.PageID) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.flushFrame(frameKey{file.FileID(), pageID})
}

// FlushFile writes every dirty cached page of the file to disk.
func (b *BufferPoolManager) FlushFile(file disk.DBFile) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	var firstErr error
	for key := range b.pageTable {
		if key.fileID != file.FileID() {
			continue
		}
		if err := b.flushFrame(key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PinnedPageIDs reports which pages of the file are pinned right now.
func (b *BufferPoolManager) PinnedPageIDs(file disk.DBFile) mapset.Set[types.PageID] {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	pinned := mapset.NewSet[types.PageID]()
	for key, frameID := range b.pageTable {
		if key.fileID == file.FileID() && b.pages[frameID].PinCount() > 0 {
			pinned.Add(key.pageID)
		}
	}
	return pinned
}

func (b *BufferPoolManager) flushFrame(key frameKey) error {
	frameID, ok := b.pageTable[key]
	if !ok {
		return ErrPageNotInPool
	}
	pg := b.pages[frameID]
	if !pg.IsDirty() {
		return nil
	}
	data := pg.Data()
	if err := b.files[frameID].WritePage(key.pageID, data[:]); err != nil {
		return err
	}
	pg.SetIsDirty(false)
	return nil
}

// grabFrame takes a frame from the free list or victimizes one, writing
// back the evicted page when it is dirty.
func (b *BufferPoolManager) grabFrame() (*FrameID, error) {
	if b.freeList.Len() > 0 {
		frameID := b.freeList.Pop().(FrameID)
		return &frameID, nil
	}

	frameID := b.replacer.Victim()
	if frameID == nil {
		return nil, ErrNoAvailableFrame
	}

	currentPage := b.pages[*frameID]
	if currentPage != nil {
		currentFile := b.files[*frameID]
		if currentPage.IsDirty() {
			data := currentPage.Data()
			if err := currentFile.WritePage(currentPage.GetPageId(), data[:]); err != nil {
				// the frame stays out of the replacer; give it back as free
				b.freeList.Push(*frameID)
				return nil, err
			}
		}
		delete(b.pageTable, frameKey{currentFile.FileID(), currentPage.GetPageId()})
		b.pages[*frameID] = nil
		b.files[*frameID] = nil
	}
	return frameID, nil
}

// NewBufferPoolManager returns an empty buffer pool manager
func NewBufferPoolManager(poolSize uint32) *BufferPoolManager {
	freeList := stack.New()
	for i := int64(poolSize) - 1; i >= 0; i-- {
		freeList.Push(FrameID(i))
	}

	return &BufferPoolManager{
		pages:     make([]*page.Page, poolSize),
		files:     make([]disk.DBFile, poolSize),
		replacer:  NewClockReplacer(poolSize),
		freeList:  freeList,
		pageTable: make(map[frameKey]FrameID),
	}
}

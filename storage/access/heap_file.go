package access

import (
	"github.com/snokuda/HibariDB/common"
	"github.com/snokuda/HibariDB/storage/buffer"
	"github.com/snokuda/HibariDB/storage/disk"
	"github.com/snokuda/HibariDB/storage/page"
	"github.com/snokuda/HibariDB/storage/record"
	"github.com/snokuda/HibariDB/types"
)

// HeapFile is an open handle on an unordered record file: a chain of
// data pages rooted in a header page. The header page stays pinned for
// the lifetime of the handle; at most one data page is pinned besides it.
type HeapFile struct {
	bufMgr       *buffer.BufferPoolManager
	diskMgr      disk.DiskManager
	file         disk.DBFile
	headerPageID types.PageID
	headerPage   *FileHeaderPage
	hdrDirtyFlag bool
	curPageID    types.PageID
	curPage      *DataPage
	curDirtyFlag bool
	curRec       page.RID
}

// CreateHeapFile creates fileName on disk with an initialized header page
// and one empty data page, then flushes and closes it.
func CreateHeapFile(bufMgr *buffer.BufferPoolManager, diskMgr disk.DiskManager, fileName string) error {
	if err := diskMgr.CreateFile(fileName); err != nil {
		return err
	}
	file, err := diskMgr.OpenFile(fileName)
	if err != nil {
		return err
	}

	hdrPage, err := bufMgr.NewPage(file)
	if err != nil {
		diskMgr.CloseFile(file)
		return err
	}
	headerPageID := hdrPage.GetPageId()
	header := CastPageAsFileHeaderPage(hdrPage)
	header.Init(fileName)

	newPage, err := bufMgr.NewPage(file)
	if err != nil {
		bufMgr.UnpinPage(file, headerPageID, true)
		diskMgr.CloseFile(file)
		return err
	}
	dataPageID := newPage.GetPageId()
	dataPage := CastPageAsDataPage(newPage)
	dataPage.Init(dataPageID)

	header.SetPageCnt(1)
	header.SetFirstPage(dataPageID)
	header.SetLastPage(dataPageID)

	if err := bufMgr.UnpinPage(file, headerPageID, true); err != nil {
		bufMgr.UnpinPage(file, dataPageID, true)
		diskMgr.CloseFile(file)
		return err
	}
	if err := bufMgr.UnpinPage(file, dataPageID, true); err != nil {
		diskMgr.CloseFile(file)
		return err
	}
	if err := bufMgr.FlushFile(file); err != nil {
		diskMgr.CloseFile(file)
		return err
	}
	return diskMgr.CloseFile(file)
}

// DestroyHeapFile removes the file from disk. The disk manager refuses
// while the file is open.
func DestroyHeapFile(diskMgr disk.DiskManager, fileName string) error {
	return diskMgr.DestroyFile(fileName)
}

// NewHeapFile opens fileName and pins its header page and the first data
// page. On any failure every pin taken so far is released again.
func NewHeapFile(bufMgr *buffer.BufferPoolManager, diskMgr disk.DiskManager, fileName string) (*HeapFile, error) {
	file, err := diskMgr.OpenFile(fileName)
	if err != nil {
		return nil, err
	}

	headerPageID, err := file.GetFirstPage()
	if err != nil {
		diskMgr.CloseFile(file)
		return nil, err
	}
	hdrPage, err := bufMgr.FetchPage(file, headerPageID)
	if err != nil {
		diskMgr.CloseFile(file)
		return nil, err
	}
	header := CastPageAsFileHeaderPage(hdrPage)
	if err := header.Validate(); err != nil {
		bufMgr.UnpinPage(file, headerPageID, false)
		diskMgr.CloseFile(file)
		return nil, err
	}

	curPageID := header.GetFirstPage()
	curPage, err := bufMgr.FetchPage(file, curPageID)
	if err != nil {
		bufMgr.UnpinPage(file, headerPageID, false)
		diskMgr.CloseFile(file)
		return nil, err
	}

	return &HeapFile{
		bufMgr:       bufMgr,
		diskMgr:      diskMgr,
		file:         file,
		headerPageID: headerPageID,
		headerPage:   header,
		hdrDirtyFlag: false,
		curPageID:    curPageID,
		curPage:      CastPageAsDataPage(curPage),
		curDirtyFlag: false,
		curRec:       page.NullRID,
	}, nil
}

// Close unpins whatever the handle still holds, flushes the file's dirty
// pages and closes it. Teardown failures are logged, not propagated.
func (h *HeapFile) Close() {
	if h.file == nil {
		return
	}

	if h.curPage != nil {
		if err := h.bufMgr.UnpinPage(h.file, h.curPageID, h.curDirtyFlag); err != nil {
			common.HbPrintf(common.ERROR, "heap file %s: unpin of data page %d failed: %v\n", h.file.Name(), h.curPageID, err)
		}
		h.curPage = nil
		h.curPageID = types.InvalidPageID
		h.curDirtyFlag = false
	}

	if h.headerPage != nil {
		if err := h.bufMgr.UnpinPage(h.file, h.headerPageID, h.hdrDirtyFlag); err != nil {
			common.HbPrintf(common.ERROR, "heap file %s: unpin of header page failed: %v\n", h.file.Name(), err)
		}
		h.headerPage = nil
	}

	if err := h.bufMgr.FlushFile(h.file); err != nil {
		common.HbPrintf(common.ERROR, "heap file %s: flush on close failed: %v\n", h.file.Name(), err)
	}
	if err := h.diskMgr.CloseFile(h.file); err != nil {
		common.HbPrintf(common.ERROR, "heap file %s: close failed: %v\n", h.file.Name(), err)
	}
	h.file = nil
}

// Name returns the file name recorded in the header page
func (h *HeapFile) Name() string {
	return h.headerPage.GetFileName()
}

// GetRecCnt returns the number of live records in the file
func (h *HeapFile) GetRecCnt() int32 {
	return h.headerPage.GetRecCnt()
}

// GetPageCnt returns the number of data pages in the file
func (h *HeapFile) GetPageCnt() int32 {
	return h.headerPage.GetPageCnt()
}

// GetRecord fetches an arbitrary record by id. If the record lives on a
// different page than the currently pinned one, the current page is
// swapped out for it.
func (h *HeapFile) GetRecord(rid page.RID) (*record.Record, error) {
	if h.curPage == nil || rid.GetPageId() != h.curPageID {
		if h.curPage != nil {
			if err := h.bufMgr.UnpinPage(h.file, h.curPageID, h.curDirtyFlag); err != nil {
				// do not keep claiming a pin that may be gone
				h.curPage = nil
				h.curPageID = types.InvalidPageID
				h.curDirtyFlag = false
				return nil, err
			}
			h.curPage = nil
		}
		pg, err := h.bufMgr.FetchPage(h.file, rid.GetPageId())
		if err != nil {
			h.curPageID = types.InvalidPageID
			h.curDirtyFlag = false
			return nil, err
		}
		h.curPage = CastPageAsDataPage(pg)
		h.curPageID = rid.GetPageId()
		h.curDirtyFlag = false
	}

	rec, err := h.curPage.GetRecord(rid)
	if err != nil {
		return nil, err
	}
	h.curRec = rid
	return rec, nil
}

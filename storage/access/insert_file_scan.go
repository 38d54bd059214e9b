package access

import (
	"github.com/snokuda/HibariDB/errors"
	"github.com/snokuda/HibariDB/storage/buffer"
	"github.com/snokuda/HibariDB/storage/disk"
	"github.com/snokuda/HibariDB/storage/page"
	"github.com/snokuda/HibariDB/storage/record"
	"github.com/snokuda/HibariDB/types"
)

const ErrInvalidRecLen = errors.Error("record is larger than a page's payload capacity")

// InsertFileScan appends records to the tail of the page chain, growing
// the chain with a fresh page whenever the tail fills up.
type InsertFileScan struct {
	*HeapFile
}

// NewInsertFileScan opens fileName for appending. The first data page the
// base handle pinned is released right away: inserts always position on
// the tail page, so linking a fresh page can never orphan part of the
// chain.
func NewInsertFileScan(bufMgr *buffer.BufferPoolManager, diskMgr disk.DiskManager, fileName string) (*InsertFileScan, error) {
	heapFile, err := NewHeapFile(bufMgr, diskMgr, fileName)
	if err != nil {
		return nil, err
	}
	if heapFile.curPage != nil {
		if err := bufMgr.UnpinPage(heapFile.file, heapFile.curPageID, false); err != nil {
			heapFile.curPage = nil
			heapFile.Close()
			return nil, err
		}
		heapFile.curPage = nil
		heapFile.curPageID = types.InvalidPageID
	}
	return &InsertFileScan{HeapFile: heapFile}, nil
}

// InsertRecord appends rec and returns the id it landed on
func (i *InsertFileScan) InsertRecord(rec *record.Record) (page.RID, error) {
	if int32(rec.Size()) > MaxRecordSize {
		return page.NullRID, ErrInvalidRecLen
	}

	if i.curPage == nil {
		// position on the tail page the first time around
		lastPageID := i.headerPage.GetLastPage()
		pg, err := i.bufMgr.FetchPage(i.file, lastPageID)
		if err != nil {
			return page.NullRID, err
		}
		i.curPage = CastPageAsDataPage(pg)
		i.curPageID = lastPageID
		i.curDirtyFlag = false
	}

	rid, err := i.curPage.InsertRecord(rec.Data())
	if err == nil {
		i.headerPage.SetRecCnt(i.headerPage.GetRecCnt() + 1)
		i.hdrDirtyFlag = true
		i.curDirtyFlag = true
		rec.SetRID(rid)
		return rid, nil
	}
	if err != ErrNotEnoughSpace {
		return page.NullRID, err
	}

	// the tail is full: allocate a fresh page and link it in
	newPage_, err := i.bufMgr.NewPage(i.file)
	if err != nil {
		return page.NullRID, err
	}
	newPageID := newPage_.GetPageId()
	newPage := CastPageAsDataPage(newPage_)
	newPage.Init(newPageID)

	i.curPage.SetNextPageId(newPageID)
	i.curDirtyFlag = true

	i.headerPage.SetLastPage(newPageID)
	i.headerPage.SetPageCnt(i.headerPage.GetPageCnt() + 1)
	i.hdrDirtyFlag = true

	if err := i.bufMgr.UnpinPage(i.file, i.curPageID, i.curDirtyFlag); err != nil {
		i.bufMgr.UnpinPage(i.file, newPageID, true)
		i.curPage = nil
		i.curPageID = types.InvalidPageID
		i.curDirtyFlag = false
		return page.NullRID, err
	}

	i.curPage = newPage
	i.curPageID = newPageID
	i.curDirtyFlag = true

	rid, err = i.curPage.InsertRecord(rec.Data())
	if err != nil {
		// a record within MaxRecordSize always fits a fresh page
		return page.NullRID, err
	}
	i.headerPage.SetRecCnt(i.headerPage.GetRecCnt() + 1)
	rec.SetRID(rid)
	return rid, nil
}

// Close unpins the tail page, conservatively treating it as written, and
// tears down the underlying heap file handle.
func (i *InsertFileScan) Close() {
	if i.curPage != nil {
		i.curDirtyFlag = true
	}
	i.HeapFile.Close()
}

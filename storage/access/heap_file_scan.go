package access

import (
	"bytes"

	pair "github.com/notEpsilon/go-pair"

	"github.com/snokuda/HibariDB/common"
	"github.com/snokuda/HibariDB/errors"
	"github.com/snokuda/HibariDB/storage/buffer"
	"github.com/snokuda/HibariDB/storage/disk"
	"github.com/snokuda/HibariDB/storage/page"
	"github.com/snokuda/HibariDB/storage/record"
	"github.com/snokuda/HibariDB/types"
)

const ErrFileEOF = errors.Error("scan advanced past the last record of the file")
const ErrBadScanParam = errors.Error("invalid scan filter parameter")
const ErrScanNotPositioned = errors.Error("scan is not positioned on a record")

// Operator is the relational comparison a scan filter applies
type Operator int32

const (
	LT Operator = iota
	LTE
	EQ
	GTE
	GT
	NE
)

func (op Operator) isValid() bool {
	return op >= LT && op <= NE
}

// scanState is the scan cursor state machine
type scanState int8

const (
	// no data page pinned; the next advance starts at the chain head
	scanFresh scanState = iota
	// a data page is pinned and curRec points into it (or is NullRID)
	scanPositioned
	// a fresh start found no first page, or no records on the first data
	// page; later pages are not looked at
	scanExhausted
)

// scanPredicate is the filter decoded once at StartScan: a typed
// comparison value plus the operator. Comparisons happen in the value's
// own domain.
type scanPredicate struct {
	offset   int32
	length   int32
	typeID   types.TypeID
	op       Operator
	intVal   int32
	floatVal float32
	strVal   []byte
}

// HeapFileScan walks the page chain lazily and yields the ids of records
// matching its predicate. With no predicate every record matches.
type HeapFileScan struct {
	*HeapFile
	pred   *scanPredicate
	state  scanState
	marked *pair.Pair[types.PageID, page.RID]
}

// NewHeapFileScan opens fileName for scanning. The handle starts out
// positioned before the first record of the first page.
func NewHeapFileScan(bufMgr *buffer.BufferPoolManager, diskMgr disk.DiskManager, fileName string) (*HeapFileScan, error) {
	heapFile, err := NewHeapFile(bufMgr, diskMgr, fileName)
	if err != nil {
		return nil, err
	}
	return &HeapFileScan{HeapFile: heapFile, state: scanPositioned}, nil
}

// StartScan installs the filter. A nil filter clears filtering; every
// record matches from then on.
func (s *HeapFileScan) StartScan(offset int32, length int32, typeID types.TypeID, filter []byte, op Operator) error {
	if filter == nil {
		s.pred = nil
		return nil
	}

	if offset < 0 || length < 1 {
		return ErrBadScanParam
	}
	switch typeID {
	case types.Integer, types.Float:
		if length != typeID.Size() {
			return ErrBadScanParam
		}
	case types.Varchar:
		// any positive length
	default:
		return ErrBadScanParam
	}
	if !op.isValid() {
		return ErrBadScanParam
	}
	if int32(len(filter)) < length {
		return ErrBadScanParam
	}

	pred := &scanPredicate{offset: offset, length: length, typeID: typeID, op: op}
	switch typeID {
	case types.Integer:
		pred.intVal = int32(types.NewInt32FromBytes(filter))
	case types.Float:
		pred.floatVal = float32(types.NewFloat32FromBytes(filter))
	case types.Varchar:
		pred.strVal = make([]byte, length)
		copy(pred.strVal, filter[:length])
	}
	s.pred = pred
	return nil
}

// matchRec evaluates the predicate against one record. A record too
// short to contain the filtered column never matches.
func (s *HeapFileScan) matchRec(rec *record.Record) bool {
	if s.pred == nil {
		return true
	}
	if s.pred.offset+s.pred.length > int32(rec.Size()) {
		return false
	}

	data := rec.Data()
	var diff int
	switch s.pred.typeID {
	case types.Integer:
		attr := int32(types.NewInt32FromBytes(data[s.pred.offset:]))
		switch {
		case attr < s.pred.intVal:
			diff = -1
		case attr > s.pred.intVal:
			diff = 1
		}
	case types.Float:
		attr := float32(types.NewFloat32FromBytes(data[s.pred.offset:]))
		switch {
		case attr < s.pred.floatVal:
			diff = -1
		case attr > s.pred.floatVal:
			diff = 1
		}
	case types.Varchar:
		diff = bytes.Compare(data[s.pred.offset:s.pred.offset+s.pred.length], s.pred.strVal)
	}

	switch s.pred.op {
	case LT:
		return diff < 0
	case LTE:
		return diff <= 0
	case EQ:
		return diff == 0
	case GTE:
		return diff >= 0
	case GT:
		return diff > 0
	case NE:
		return diff != 0
	}
	return false
}

// ScanNext advances the cursor to the next matching record and returns
// its id. ErrFileEOF reports an exhausted scan. When the walk runs off the
// tail page, that page stays pinned and the cursor stays on the last
// record examined there (NullRID if the page held none), which is not
// necessarily the last record yielded.
func (s *HeapFileScan) ScanNext() (page.RID, error) {
	if s.state == scanExhausted {
		return page.NullRID, ErrFileEOF
	}

	if s.state == scanFresh {
		firstPageID := s.headerPage.GetFirstPage()
		if !firstPageID.IsValid() {
			s.state = scanExhausted
			return page.NullRID, ErrFileEOF
		}
		pg, err := s.bufMgr.FetchPage(s.file, firstPageID)
		if err != nil {
			return page.NullRID, err
		}
		s.curPage = CastPageAsDataPage(pg)
		s.curPageID = firstPageID
		s.curDirtyFlag = false
		s.curRec = page.NullRID
		s.state = scanPositioned

		rid, err := s.curPage.FirstRecord()
		if err == ErrNoRecords {
			unpinErr := s.bufMgr.UnpinPage(s.file, s.curPageID, s.curDirtyFlag)
			s.curPage = nil
			s.curPageID = types.InvalidPageID
			s.state = scanExhausted
			if unpinErr != nil {
				return page.NullRID, unpinErr
			}
			return page.NullRID, ErrFileEOF
		} else if err != nil {
			return page.NullRID, err
		}
		s.curRec = rid

		rec, err := s.curPage.GetRecord(s.curRec)
		if err != nil {
			return page.NullRID, err
		}
		if s.matchRec(rec) {
			return s.curRec, nil
		}
	}

	for {
		nextRid, err := s.curPage.NextRecord(s.curRec)
		switch err {
		case nil:
			s.curRec = nextRid
			rec, err := s.curPage.GetRecord(s.curRec)
			if err != nil {
				return page.NullRID, err
			}
			if s.matchRec(rec) {
				return s.curRec, nil
			}

		case ErrEndOfPage, ErrNoRecords:
			nextPageID := s.curPage.GetNextPageId()
			if !nextPageID.IsValid() {
				return page.NullRID, ErrFileEOF
			}
			if err := s.bufMgr.UnpinPage(s.file, s.curPageID, s.curDirtyFlag); err != nil {
				s.curPage = nil
				s.curPageID = types.InvalidPageID
				return page.NullRID, err
			}
			s.curPage = nil
			pg, err := s.bufMgr.FetchPage(s.file, nextPageID)
			if err != nil {
				s.curPageID = types.InvalidPageID
				return page.NullRID, err
			}
			s.curPage = CastPageAsDataPage(pg)
			s.curPageID = nextPageID
			s.curDirtyFlag = false
			s.curRec = page.NullRID

		default:
			return page.NullRID, err
		}
	}
}

// GetRecord returns the record the cursor is on; the page stays pinned
func (s *HeapFileScan) GetRecord() (*record.Record, error) {
	if s.curPage == nil || !s.curRec.IsValid() {
		return nil, ErrScanNotPositioned
	}
	return s.curPage.GetRecord(s.curRec)
}

// DeleteRecord removes the record the cursor is on. The cursor itself
// stays put; the next advance continues after the deleted slot.
func (s *HeapFileScan) DeleteRecord() error {
	if s.curPage == nil || !s.curRec.IsValid() {
		return ErrScanNotPositioned
	}
	if err := s.curPage.DeleteRecord(s.curRec); err != nil {
		return err
	}
	s.curDirtyFlag = true
	s.headerPage.SetRecCnt(s.headerPage.GetRecCnt() - 1)
	s.hdrDirtyFlag = true
	return nil
}

// MarkDirty flags the current page as mutated, for callers writing
// through the payload returned by GetRecord.
func (s *HeapFileScan) MarkDirty() {
	s.curDirtyFlag = true
}

// MarkScan snapshots the cursor position
func (s *HeapFileScan) MarkScan() {
	s.marked = &pair.Pair[types.PageID, page.RID]{First: s.curPageID, Second: s.curRec}
}

// ResetScan rewinds the cursor to the marked position. When the mark
// points at a different page the current one is swapped out for it.
func (s *HeapFileScan) ResetScan() error {
	if s.marked == nil {
		return nil
	}
	if !s.marked.First.IsValid() {
		// the mark was taken while no data page was pinned
		if err := s.EndScan(); err != nil {
			return err
		}
		s.curRec = s.marked.Second
		return nil
	}
	if s.marked.First == s.curPageID {
		s.curRec = s.marked.Second
		return nil
	}

	if s.curPage != nil {
		if err := s.bufMgr.UnpinPage(s.file, s.curPageID, s.curDirtyFlag); err != nil {
			return err
		}
		s.curPage = nil
	}
	s.curPageID = s.marked.First
	s.curRec = s.marked.Second
	pg, err := s.bufMgr.FetchPage(s.file, s.curPageID)
	if err != nil {
		return err
	}
	s.curPage = CastPageAsDataPage(pg)
	s.curDirtyFlag = false
	s.state = scanPositioned
	return nil
}

// EndScan releases the scan's data page. Calling it again is a no-op.
func (s *HeapFileScan) EndScan() error {
	if s.curPage == nil {
		return nil
	}
	err := s.bufMgr.UnpinPage(s.file, s.curPageID, s.curDirtyFlag)
	s.curPage = nil
	s.curPageID = types.InvalidPageID
	s.curDirtyFlag = false
	s.curRec = page.NullRID
	s.state = scanFresh
	return err
}

// Close ends the scan and tears down the underlying heap file handle
func (s *HeapFileScan) Close() {
	if err := s.EndScan(); err != nil {
		common.HbPrintf(common.ERROR, "heap file scan: unpin on close failed: %v\n", err)
	}
	s.HeapFile.Close()
}

// this code is derived from https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package access

import (
	"unsafe"

	"github.com/snokuda/HibariDB/common"
	"github.com/snokuda/HibariDB/errors"
	"github.com/snokuda/HibariDB/storage/page"
	"github.com/snokuda/HibariDB/storage/record"
	"github.com/snokuda/HibariDB/types"
)

const sizeDataPageHeader = uint32(16)
const sizeSlot = uint32(8)
const offsetPageId = uint32(0)
const offsetNextPageId = uint32(4)
const offsetFreeSpace = uint32(8)
const offsetSlotCount = uint32(12)
const offsetSlotArray = uint32(16)

// DPFixed is the page overhead a record can never use: the fixed header
// plus the slot entry the record itself needs.
const DPFixed = int32(sizeDataPageHeader + sizeSlot)

// MaxRecordSize is the largest payload a freshly initialized page holds.
const MaxRecordSize = int32(common.PageSize) - DPFixed

const ErrEmptyRecord = errors.Error("record cannot be empty")
const ErrNotEnoughSpace = errors.Error("there is not enough space on the page")
const ErrNoRecords = errors.Error("page holds no records")
const ErrEndOfPage = errors.Error("no records after the cursor on this page")
const ErrRecordNotFound = errors.Error("no record at the given slot")

// Slotted page format:
//
//	---------------------------------------------------------
//	| HEADER | SLOTS ... FREE SPACE ... INSERTED RECORDS ... |
//	---------------------------------------------------------
//	                                  ^ free space pointer
//
//	Header (little-endian, 4 bytes each):
//	--------------------------------------------------------
//	| PageId | NextPageId | FreeSpacePointer | SlotCount |
//	--------------------------------------------------------
//
// Each slot is a (record offset, record size) pair. A deleted slot keeps
// its position with size zero, so the RIDs of surviving records on the
// page never move.
type DataPage struct {
	page.Page
}

// CastPageAsDataPage casts the abstract page frame into a DataPage
func CastPageAsDataPage(page *page.Page) *DataPage {
	if page == nil {
		return nil
	}
	return (*DataPage)(unsafe.Pointer(page))
}

// Init stamps the page with its own number and an empty slot directory.
// The next-link starts out as "no next page".
func (dp *DataPage) Init(pageId types.PageID) {
	dp.setDataPageId(pageId)
	dp.SetNextPageId(types.InvalidPageID)
	dp.setSlotCount(0)
	dp.setFreeSpacePointer(common.PageSize)
}

func (dp *DataPage) setDataPageId(pageId types.PageID) {
	dp.Copy(offsetPageId, pageId.Serialize())
}

// GetDataPageId returns the page number stored on the page itself
func (dp *DataPage) GetDataPageId() types.PageID {
	return types.NewPageIDFromBytes(dp.Data()[offsetPageId:])
}

// SetNextPageId links the page to its successor in the chain
func (dp *DataPage) SetNextPageId(pageId types.PageID) {
	dp.Copy(offsetNextPageId, pageId.Serialize())
}

// GetNextPageId returns the successor link, InvalidPageID at the tail
func (dp *DataPage) GetNextPageId() types.PageID {
	return types.NewPageIDFromBytes(dp.Data()[offsetNextPageId:])
}

func (dp *DataPage) setFreeSpacePointer(fsp uint32) {
	dp.Copy(offsetFreeSpace, types.UInt32(fsp).Serialize())
}

func (dp *DataPage) getFreeSpacePointer() uint32 {
	return uint32(types.NewUInt32FromBytes(dp.Data()[offsetFreeSpace:]))
}

func (dp *DataPage) setSlotCount(count uint32) {
	dp.Copy(offsetSlotCount, types.UInt32(count).Serialize())
}

// GetSlotCount returns the slot directory length, deleted slots included
func (dp *DataPage) GetSlotCount() uint32 {
	return uint32(types.NewUInt32FromBytes(dp.Data()[offsetSlotCount:]))
}

func (dp *DataPage) getSlotOffset(slot uint32) uint32 {
	return uint32(types.NewUInt32FromBytes(dp.Data()[offsetSlotArray+sizeSlot*slot:]))
}

func (dp *DataPage) setSlotOffset(slot uint32, offset uint32) {
	dp.Copy(offsetSlotArray+sizeSlot*slot, types.UInt32(offset).Serialize())
}

func (dp *DataPage) getSlotSize(slot uint32) uint32 {
	return uint32(types.NewUInt32FromBytes(dp.Data()[offsetSlotArray+sizeSlot*slot+4:]))
}

func (dp *DataPage) setSlotSize(slot uint32, size uint32) {
	dp.Copy(offsetSlotArray+sizeSlot*slot+4, types.UInt32(size).Serialize())
}

func (dp *DataPage) getFreeSpaceRemaining() uint32 {
	return dp.getFreeSpacePointer() - sizeDataPageHeader - sizeSlot*dp.GetSlotCount()
}

// InsertRecord places data on the page and returns its record id
func (dp *DataPage) InsertRecord(data []byte) (page.RID, error) {
	size := uint32(len(data))
	if size == 0 {
		return page.NullRID, ErrEmptyRecord
	}
	if dp.getFreeSpaceRemaining() < size+sizeSlot {
		return page.NullRID, ErrNotEnoughSpace
	}

	// reuse a deleted slot when one exists
	var slot uint32
	slotCount := dp.GetSlotCount()
	for slot = uint32(0); slot < slotCount; slot++ {
		if dp.getSlotSize(slot) == 0 {
			break
		}
	}

	fsp := dp.getFreeSpacePointer() - size
	dp.setFreeSpacePointer(fsp)
	dp.Copy(fsp, data)
	dp.setSlotOffset(slot, fsp)
	dp.setSlotSize(slot, size)
	if slot == slotCount {
		dp.setSlotCount(slotCount + 1)
	}

	rid := page.RID{}
	rid.Set(dp.GetDataPageId(), slot)
	return rid, nil
}

// DeleteRecord removes the record at rid, compacting the payload area.
// The slot itself is kept with size zero so other slot numbers stay put.
func (dp *DataPage) DeleteRecord(rid page.RID) error {
	slot := rid.GetSlotNum()
	if slot >= dp.GetSlotCount() || dp.getSlotSize(slot) == 0 {
		return ErrRecordNotFound
	}

	offset := dp.getSlotOffset(slot)
	size := dp.getSlotSize(slot)
	fsp := dp.getFreeSpacePointer()
	common.HB_Assert(offset >= fsp, "record payload must sit above the free space pointer")

	// slide every payload below the victim up by its size
	copy(dp.Data()[fsp+size:], dp.Data()[fsp:offset])

	dp.setFreeSpacePointer(fsp + size)
	dp.setSlotSize(slot, 0)
	dp.setSlotOffset(slot, 0)

	slotCount := dp.GetSlotCount()
	for ii := uint32(0); ii < slotCount; ii++ {
		offsetII := dp.getSlotOffset(ii)
		if dp.getSlotSize(ii) != 0 && offsetII < offset {
			dp.setSlotOffset(ii, offsetII+size)
		}
	}
	return nil
}

// GetRecord copies out the record at rid
func (dp *DataPage) GetRecord(rid page.RID) (*record.Record, error) {
	slot := rid.GetSlotNum()
	if slot >= dp.GetSlotCount() || dp.getSlotSize(slot) == 0 {
		return nil, ErrRecordNotFound
	}

	offset := dp.getSlotOffset(slot)
	size := dp.getSlotSize(slot)
	data := make([]byte, size)
	copy(data, dp.Data()[offset:offset+size])
	return record.NewRecordWithRID(rid, data), nil
}

// FirstRecord returns the id of the first live record on the page
func (dp *DataPage) FirstRecord() (page.RID, error) {
	slotCount := dp.GetSlotCount()
	for ii := uint32(0); ii < slotCount; ii++ {
		if dp.getSlotSize(ii) > 0 {
			rid := page.RID{}
			rid.Set(dp.GetDataPageId(), ii)
			return rid, nil
		}
	}
	return page.NullRID, ErrNoRecords
}

// NextRecord returns the first live record after cur. A NullRID cursor
// starts at slot zero, and a cursor on a just-deleted slot is fine: the
// walk only looks at the slots after it.
func (dp *DataPage) NextRecord(cur page.RID) (page.RID, error) {
	var start uint32
	if cur.IsValid() {
		start = cur.GetSlotNum() + 1
	}
	slotCount := dp.GetSlotCount()
	for ii := start; ii < slotCount; ii++ {
		if dp.getSlotSize(ii) > 0 {
			rid := page.RID{}
			rid.Set(dp.GetDataPageId(), ii)
			return rid, nil
		}
	}
	if _, err := dp.FirstRecord(); err == ErrNoRecords {
		return page.NullRID, ErrNoRecords
	}
	return page.NullRID, ErrEndOfPage
}

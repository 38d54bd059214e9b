// this code is derived from https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package page

import "github.com/snokuda/HibariDB/types"

const invalidSlotNum = ^uint32(0)

// RID is the record identifier for the given page identifier and slot number
type RID struct {
	pageId  types.PageID
	slotNum uint32
}

// NullRID denotes "no record". A scan cursor starts out here.
var NullRID = RID{types.InvalidPageID, invalidSlotNum}

// Set sets the record identifier
func (r *RID) Set(pageId types.PageID, slot uint32) {
	r.pageId = pageId
	r.slotNum = slot
}

// GetPageId gets the page id
func (r *RID) GetPageId() types.PageID {
	return r.pageId
}

// GetSlotNum gets the slot number
func (r *RID) GetSlotNum() uint32 {
	return r.slotNum
}

// IsValid reports whether the identifier denotes an actual record
func (r *RID) IsValid() bool {
	return r.pageId.IsValid() && r.slotNum != invalidSlotNum
}

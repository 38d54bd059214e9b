// this code is derived from https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package record

import (
	"github.com/snokuda/HibariDB/storage/page"
)

// Record is an opaque variable-length byte payload. The heap file layer
// never interprets the bytes except when a scan predicate asks it to.
type Record struct {
	rid  page.RID
	data []byte
}

// NewRecord wraps data into a record which is not yet placed on a page
func NewRecord(data []byte) *Record {
	return &Record{page.NullRID, data}
}

// NewRecordWithRID wraps data placed at rid
func NewRecordWithRID(rid page.RID, data []byte) *Record {
	return &Record{rid, data}
}

// Size returns the payload length in bytes
func (r *Record) Size() uint32 {
	return uint32(len(r.data))
}

// Data returns the payload
func (r *Record) Data() []byte {
	return r.data
}

// GetRID returns the record's position on disk
func (r *Record) GetRID() page.RID {
	return r.rid
}

// SetRID pins the record to a position on disk
func (r *Record) SetRID(rid page.RID) {
	r.rid = rid
}

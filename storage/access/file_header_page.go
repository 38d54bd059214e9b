package access

import (
	"bytes"
	"unsafe"

	"github.com/spaolacci/murmur3"

	"github.com/snokuda/HibariDB/common"
	"github.com/snokuda/HibariDB/errors"
	"github.com/snokuda/HibariDB/storage/page"
	"github.com/snokuda/HibariDB/types"
)

const offsetChecksum = uint32(0)
const offsetRecCnt = uint32(4)
const offsetPageCnt = uint32(8)
const offsetFirstPage = uint32(12)
const offsetLastPage = uint32(16)
const offsetNameLength = uint32(20)
const offsetFileName = uint32(24)
const sizeHeaderMeta = offsetFileName + common.MaxNameSize

const ErrHeaderCorrupt = errors.Error("heap file header page failed checksum validation")

// FileHeaderPage is the first page of every heap file:
//
//	-----------------------------------------------------------------------
//	| Checksum | RecCnt | PageCnt | FirstPage | LastPage | NameLen | Name |
//	-----------------------------------------------------------------------
//
// PageCnt counts data pages only; the header itself is excluded. The
// checksum is a murmur3 sum over the meta region and is refreshed by
// every mutator, so the header is self-validating on open.
type FileHeaderPage struct {
	page.Page
}

// CastPageAsFileHeaderPage casts the abstract page frame into a FileHeaderPage
func CastPageAsFileHeaderPage(page *page.Page) *FileHeaderPage {
	if page == nil {
		return nil
	}
	return (*FileHeaderPage)(unsafe.Pointer(page))
}

// Init writes a pristine header: no records, no data pages, both chain
// endpoints unset.
func (hp *FileHeaderPage) Init(fileName string) {
	hp.SetFileName(fileName)
	hp.SetRecCnt(0)
	hp.SetPageCnt(0)
	hp.SetFirstPage(types.InvalidPageID)
	hp.SetLastPage(types.InvalidPageID)
}

// SetFileName stores the heap file's name, truncated to MaxNameSize
func (hp *FileHeaderPage) SetFileName(fileName string) {
	name := []byte(fileName)
	if len(name) > common.MaxNameSize {
		name = name[:common.MaxNameSize]
	}
	hp.Copy(offsetNameLength, types.UInt32(len(name)).Serialize())
	padded := make([]byte, common.MaxNameSize)
	copy(padded, name)
	hp.Copy(offsetFileName, padded)
	hp.updateChecksum()
}

// GetFileName returns the stored heap file name
func (hp *FileHeaderPage) GetFileName() string {
	length := uint32(types.NewUInt32FromBytes(hp.Data()[offsetNameLength:]))
	if length > common.MaxNameSize {
		length = common.MaxNameSize
	}
	return string(bytes.TrimRight(hp.Data()[offsetFileName:offsetFileName+length], "\x00"))
}

// SetRecCnt stores the number of live records in the file
func (hp *FileHeaderPage) SetRecCnt(recCnt int32) {
	hp.Copy(offsetRecCnt, types.Int32(recCnt).Serialize())
	hp.updateChecksum()
}

// GetRecCnt returns the number of live records in the file
func (hp *FileHeaderPage) GetRecCnt() int32 {
	return int32(types.NewInt32FromBytes(hp.Data()[offsetRecCnt:]))
}

// SetPageCnt stores the number of data pages in the file
func (hp *FileHeaderPage) SetPageCnt(pageCnt int32) {
	hp.Copy(offsetPageCnt, types.Int32(pageCnt).Serialize())
	hp.updateChecksum()
}

// GetPageCnt returns the number of data pages in the file
func (hp *FileHeaderPage) GetPageCnt() int32 {
	return int32(types.NewInt32FromBytes(hp.Data()[offsetPageCnt:]))
}

// SetFirstPage stores the head of the page chain
func (hp *FileHeaderPage) SetFirstPage(pageId types.PageID) {
	hp.Copy(offsetFirstPage, pageId.Serialize())
	hp.updateChecksum()
}

// GetFirstPage returns the head of the page chain
func (hp *FileHeaderPage) GetFirstPage() types.PageID {
	return types.NewPageIDFromBytes(hp.Data()[offsetFirstPage:])
}

// SetLastPage stores the tail of the page chain
func (hp *FileHeaderPage) SetLastPage(pageId types.PageID) {
	hp.Copy(offsetLastPage, pageId.Serialize())
	hp.updateChecksum()
}

// GetLastPage returns the tail of the page chain
func (hp *FileHeaderPage) GetLastPage() types.PageID {
	return types.NewPageIDFromBytes(hp.Data()[offsetLastPage:])
}

func (hp *FileHeaderPage) updateChecksum() {
	sum := murmur3.Sum32(hp.Data()[offsetRecCnt:sizeHeaderMeta])
	hp.Copy(offsetChecksum, types.UInt32(sum).Serialize())
}

// Validate recomputes the checksum and compares it with the stored one
func (hp *FileHeaderPage) Validate() error {
	stored := uint32(types.NewUInt32FromBytes(hp.Data()[offsetChecksum:]))
	if stored != murmur3.Sum32(hp.Data()[offsetRecCnt:sizeHeaderMeta]) {
		return ErrHeaderCorrupt
	}
	return nil
}

package disk

import (
	"github.com/snokuda/HibariDB/errors"
	"github.com/snokuda/HibariDB/types"
)

const ErrFileExists = errors.Error("file already exists")
const ErrFileNotFound = errors.Error("file does not exist")
const ErrFileOpen = errors.Error("file is currently open")
const ErrEmptyFile = errors.Error("file has no pages")
const ErrInvalidPageID = errors.Error("page id is out of range")

// DiskManager is the named-file layer: it creates, destroys and opens
// paged files and tracks which of them are currently open.
type DiskManager interface {
	CreateFile(name string) error
	DestroyFile(name string) error
	OpenFile(name string) (DBFile, error)
	CloseFile(file DBFile) error
	ShutDown()
}

// DBFile is one open paged file. Page numbers are dense and allocated by
// the file itself; the first allocated page of a heap file is its header.
type DBFile interface {
	ReadPage(types.PageID, []byte) error
	WritePage(types.PageID, []byte) error
	AllocatePage() types.PageID
	GetFirstPage() (types.PageID, error)
	FileID() uint32
	Name() string
	Size() int64
	GetNumWrites() uint64
}

// this code is derived from https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package disk

// NewDiskManagerTest returns a DiskManager for testing purposes. It is
// backed by memory so test runs leave nothing behind.
func NewDiskManagerTest() DiskManager {
	return NewVirtualDiskManagerImpl()
}

package page

import (
	"testing"

	testingpkg "github.com/snokuda/HibariDB/testing/testing_assert"
	"github.com/snokuda/HibariDB/types"
)

func TestRID(t *testing.T) {
	rid := RID{}
	rid.Set(types.PageID(0), uint32(0))
	testingpkg.Equals(t, types.PageID(0), rid.GetPageId())
	testingpkg.Equals(t, uint32(0), rid.GetSlotNum())
	testingpkg.Equals(t, true, rid.IsValid())
}

func TestNullRID(t *testing.T) {
	testingpkg.Equals(t, false, NullRID.IsValid())

	rid := RID{}
	rid.Set(types.InvalidPageID, uint32(3))
	testingpkg.Equals(t, false, rid.IsValid())
}

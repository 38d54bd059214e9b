package access

import (
	"bytes"
	"testing"

	"github.com/snokuda/HibariDB/common"
	"github.com/snokuda/HibariDB/storage/buffer"
	testingpkg "github.com/snokuda/HibariDB/testing/testing_assert"
	"github.com/snokuda/HibariDB/types"
)

func newScanOver(t *testing.T, payloads [][]byte) (*HeapFileScan, *buffer.BufferPoolManager) {
	t.Helper()
	bpm, dm := testSetup(t)
	testingpkg.Ok(t, CreateHeapFile(bpm, dm, "scan.heap"))
	insertAll(t, bpm, dm, "scan.heap", payloads)

	scan, err := NewHeapFileScan(bpm, dm, "scan.heap")
	testingpkg.Ok(t, err)
	t.Cleanup(scan.Close)
	return scan, bpm
}

func intPayload(key int32, tail string) []byte {
	return append(types.Int32(key).Serialize(), []byte(tail)...)
}

func TestStartScanRejectsBadParameters(t *testing.T) {
	scan, _ := newScanOver(t, [][]byte{[]byte("anything")})

	filter := types.Int32(1).Serialize()
	testingpkg.Equals(t, ErrBadScanParam, scan.StartScan(-1, 4, types.Integer, filter, EQ))
	testingpkg.Equals(t, ErrBadScanParam, scan.StartScan(0, 0, types.Integer, filter, EQ))
	testingpkg.Equals(t, ErrBadScanParam, scan.StartScan(0, 8, types.Integer, filter, EQ))
	testingpkg.Equals(t, ErrBadScanParam, scan.StartScan(0, 8, types.Float, filter, EQ))
	testingpkg.Equals(t, ErrBadScanParam, scan.StartScan(0, 4, types.Invalid, filter, EQ))
	testingpkg.Equals(t, ErrBadScanParam, scan.StartScan(0, 4, types.Integer, filter, Operator(42)))
	// the comparison value must cover the declared length
	testingpkg.Equals(t, ErrBadScanParam, scan.StartScan(0, 8, types.Varchar, filter[:4], EQ))

	// a nil filter is always fine and means "match everything"
	testingpkg.Ok(t, scan.StartScan(-1, 0, types.Invalid, nil, Operator(42)))
}

func TestScanEmptyFile(t *testing.T) {
	scan, _ := newScanOver(t, nil)

	_, err := scan.ScanNext()
	testingpkg.Equals(t, ErrFileEOF, err)
	_, err = scan.ScanNext()
	testingpkg.Equals(t, ErrFileEOF, err)
}

func TestScanIntegerFilter(t *testing.T) {
	payloads := [][]byte{
		intPayload(5, "five"),
		intPayload(10, "ten"),
		intPayload(15, "fifteen"),
		intPayload(20, "twenty"),
	}
	scan, _ := newScanOver(t, payloads)

	testingpkg.Ok(t, scan.StartScan(0, 4, types.Integer, types.Int32(10).Serialize(), GTE))

	var keys []int32
	for {
		_, err := scan.ScanNext()
		if err == ErrFileEOF {
			break
		}
		testingpkg.Ok(t, err)
		rec, err := scan.GetRecord()
		testingpkg.Ok(t, err)
		keys = append(keys, int32(types.NewInt32FromBytes(rec.Data())))
	}
	testingpkg.Equals(t, []int32{10, 15, 20}, keys)
}

func TestScanIntegerOperators(t *testing.T) {
	var payloads [][]byte
	for key := int32(0); key < 10; key++ {
		payloads = append(payloads, intPayload(key, "row"))
	}
	scan, _ := newScanOver(t, payloads)

	cases := []struct {
		op       Operator
		expected int
	}{
		{LT, 4}, {LTE, 5}, {EQ, 1}, {GTE, 6}, {GT, 5}, {NE, 9},
	}
	for _, c := range cases {
		testingpkg.Ok(t, scan.EndScan())
		testingpkg.Ok(t, scan.StartScan(0, 4, types.Integer, types.Int32(4).Serialize(), c.op))
		testingpkg.Equals(t, c.expected, len(scanAll(t, scan)))
	}
}

func TestScanFloatFilter(t *testing.T) {
	var payloads [][]byte
	for _, v := range []float32{0.5, 1.25, 2.75, 4.0} {
		payloads = append(payloads, types.Float32(v).Serialize())
	}
	scan, _ := newScanOver(t, payloads)

	testingpkg.Ok(t, scan.StartScan(0, 4, types.Float, types.Float32(2.75).Serialize(), LT))
	testingpkg.Equals(t, 2, len(scanAll(t, scan)))

	testingpkg.Ok(t, scan.EndScan())
	testingpkg.Ok(t, scan.StartScan(0, 4, types.Float, types.Float32(2.75).Serialize(), EQ))
	testingpkg.Equals(t, 1, len(scanAll(t, scan)))
}

func TestScanStringFilter(t *testing.T) {
	scan, _ := newScanOver(t, [][]byte{
		[]byte("alpha"),
		[]byte("beta"),
		[]byte("gamma"),
		[]byte("xy"), // too short for the column: never matches
	})

	testingpkg.Ok(t, scan.StartScan(0, 4, types.Varchar, []byte("beta"), EQ))
	rids := scanAll(t, scan)
	testingpkg.Equals(t, 1, len(rids))

	testingpkg.Ok(t, scan.EndScan())
	testingpkg.Ok(t, scan.StartScan(0, 4, types.Varchar, []byte("beta"), NE))
	testingpkg.Equals(t, 2, len(scanAll(t, scan)))
}

func TestScanAcrossPages(t *testing.T) {
	// two records per page, so the scan has to cross page boundaries
	var payloads [][]byte
	for key := int32(0); key < 9; key++ {
		payloads = append(payloads, append(types.Int32(key).Serialize(), bytes.Repeat([]byte{'f'}, common.PageSize/3)...))
	}
	scan, bpm := newScanOver(t, payloads)

	var keys []int32
	for {
		_, err := scan.ScanNext()
		if err == ErrFileEOF {
			break
		}
		testingpkg.Ok(t, err)
		rec, err := scan.GetRecord()
		testingpkg.Ok(t, err)
		keys = append(keys, int32(types.NewInt32FromBytes(rec.Data())))
		testingpkg.Assert(t, bpm.PinnedPageIDs(scan.file).Cardinality() <= 2, "pin discipline violated")
	}
	testingpkg.Equals(t, []int32{0, 1, 2, 3, 4, 5, 6, 7, 8}, keys)
	testingpkg.Assert(t, scan.GetPageCnt() >= 4, "records should span several pages")
}

func TestMarkAndResetSamePage(t *testing.T) {
	var payloads [][]byte
	for key := int32(0); key < 8; key++ {
		payloads = append(payloads, intPayload(key, "mark"))
	}
	scan, _ := newScanOver(t, payloads)

	// walk three records, then remember the position
	for i := 0; i < 3; i++ {
		_, err := scan.ScanNext()
		testingpkg.Ok(t, err)
	}
	scan.MarkScan()

	fourth, err := scan.ScanNext()
	testingpkg.Ok(t, err)
	_, err = scan.ScanNext()
	testingpkg.Ok(t, err)

	testingpkg.Ok(t, scan.ResetScan())
	replayed, err := scan.ScanNext()
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, fourth, replayed)
}

func TestMarkAndResetAcrossPages(t *testing.T) {
	var payloads [][]byte
	for key := int32(0); key < 6; key++ {
		payloads = append(payloads, append(types.Int32(key).Serialize(), bytes.Repeat([]byte{'m'}, common.PageSize/3)...))
	}
	scan, _ := newScanOver(t, payloads)

	first, err := scan.ScanNext()
	testingpkg.Ok(t, err)
	scan.MarkScan()

	// run ahead onto a later page
	for i := 0; i < 3; i++ {
		_, err := scan.ScanNext()
		testingpkg.Ok(t, err)
	}
	testingpkg.Ok(t, scan.ResetScan())

	second, err := scan.ScanNext()
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, first.GetPageId(), scanCurrentPage(scan))
	testingpkg.Assert(t, second != first, "reset must resume after the marked record")
	testingpkg.Equals(t, first.GetSlotNum()+1, second.GetSlotNum())
}

func scanCurrentPage(scan *HeapFileScan) types.PageID {
	return scan.curPageID
}

func TestDeleteDuringScan(t *testing.T) {
	payloads := [][]byte{
		intPayload(1, "one"),
		intPayload(2, "two"),
		intPayload(3, "three"),
	}
	scan, _ := newScanOver(t, payloads)

	before := scan.GetRecCnt()

	// position on the record with key 2 and delete it
	testingpkg.Ok(t, scan.StartScan(0, 4, types.Integer, types.Int32(2).Serialize(), EQ))
	deleted, err := scan.ScanNext()
	testingpkg.Ok(t, err)
	testingpkg.Ok(t, scan.DeleteRecord())
	testingpkg.Equals(t, before-1, scan.GetRecCnt())

	// the cursor sits on the deleted slot; advancing past it still works
	_, err = scan.ScanNext()
	testingpkg.Equals(t, ErrFileEOF, err)

	// a fresh unfiltered pass no longer yields the deleted rid
	testingpkg.Ok(t, scan.EndScan())
	testingpkg.Ok(t, scan.StartScan(0, 0, types.Invalid, nil, EQ))
	for _, rid := range scanAll(t, scan) {
		testingpkg.Assert(t, rid != deleted, "deleted record must not be yielded")
	}
}

func TestDeleteWithoutPositionFails(t *testing.T) {
	scan, _ := newScanOver(t, [][]byte{[]byte("solo")})

	testingpkg.Equals(t, ErrScanNotPositioned, scan.DeleteRecord())
	_, err := scan.GetRecord()
	testingpkg.Equals(t, ErrScanNotPositioned, err)
}

func TestEndScanIsIdempotentAndRestarts(t *testing.T) {
	payloads := [][]byte{[]byte("one"), []byte("two")}
	scan, _ := newScanOver(t, payloads)

	firstPass := scanAll(t, scan)
	testingpkg.Equals(t, 2, len(firstPass))

	testingpkg.Ok(t, scan.EndScan())
	testingpkg.Ok(t, scan.EndScan())

	// after EndScan the next advance starts over from the chain head
	secondPass := scanAll(t, scan)
	testingpkg.Equals(t, firstPass, secondPass)
}

func TestMarkDirtyIsSticky(t *testing.T) {
	scan, _ := newScanOver(t, [][]byte{[]byte("rec")})

	_, err := scan.ScanNext()
	testingpkg.Ok(t, err)
	scan.MarkDirty()
	testingpkg.Equals(t, true, scan.curDirtyFlag)
	testingpkg.Ok(t, scan.EndScan())
}

package main

import (
	"flag"

	"github.com/sirupsen/logrus"

	"github.com/snokuda/HibariDB/common"
	"github.com/snokuda/HibariDB/storage/access"
	"github.com/snokuda/HibariDB/storage/buffer"
	"github.com/snokuda/HibariDB/storage/disk"
	"github.com/snokuda/HibariDB/storage/record"
	"github.com/snokuda/HibariDB/types"
)

// demo driver: create a heap file, load it through an InsertFileScan,
// read it back with an unfiltered and a filtered HeapFileScan.
func main() {
	confPath := flag.String("conf", "", "path to an ini config file")
	flag.Parse()

	cfg := common.NewConfig()
	if *confPath != "" {
		loaded, err := common.LoadConfig(*confPath)
		if err != nil {
			logrus.Fatalf("config: %v", err)
		}
		cfg = loaded
	}
	common.InitLogger(cfg)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	diskMgr := disk.NewDiskManagerImpl(cfg.DataDir)
	defer diskMgr.ShutDown()
	bufMgr := buffer.NewBufferPoolManager(cfg.PoolSize)

	const fileName = "demo.heap"
	if err := access.CreateHeapFile(bufMgr, diskMgr, fileName); err != nil {
		logrus.Fatalf("create %s: %v", fileName, err)
	}

	ifs, err := access.NewInsertFileScan(bufMgr, diskMgr, fileName)
	if err != nil {
		logrus.Fatalf("open for insert: %v", err)
	}
	for i := int32(0); i < 1000; i++ {
		payload := append(types.Int32(i).Serialize(), []byte("hibari demo record")...)
		if _, err := ifs.InsertRecord(record.NewRecord(payload)); err != nil {
			logrus.Fatalf("insert %d: %v", i, err)
		}
	}
	ifs.Close()

	scan, err := access.NewHeapFileScan(bufMgr, diskMgr, fileName)
	if err != nil {
		logrus.Fatalf("open for scan: %v", err)
	}
	logrus.Infof("%s: %d records on %d data pages", scan.Name(), scan.GetRecCnt(), scan.GetPageCnt())

	total := 0
	for {
		if _, err := scan.ScanNext(); err != nil {
			if err != access.ErrFileEOF {
				logrus.Fatalf("scan: %v", err)
			}
			break
		}
		total++
	}
	logrus.Infof("unfiltered scan yielded %d records", total)

	if err := scan.EndScan(); err != nil {
		logrus.Fatalf("end scan: %v", err)
	}
	if err := scan.StartScan(0, 4, types.Integer, types.Int32(900).Serialize(), access.GTE); err != nil {
		logrus.Fatalf("start filtered scan: %v", err)
	}
	matched := 0
	for {
		if _, err := scan.ScanNext(); err != nil {
			if err != access.ErrFileEOF {
				logrus.Fatalf("filtered scan: %v", err)
			}
			break
		}
		matched++
	}
	logrus.Infof("records with key >= 900: %d", matched)
	scan.Close()

	if err := access.DestroyHeapFile(diskMgr, fileName); err != nil {
		logrus.Fatalf("destroy %s: %v", fileName, err)
	}
	logrus.Infof("destroyed %s", fileName)
}

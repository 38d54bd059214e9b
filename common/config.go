package common

import (
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

const (
	// invalid page id
	InvalidPageID = -1
	// the header page id of a heap file
	HeaderPageID = 0
	// size of a page in byte
	PageSize = 4096
	// bound on the file name stored in a heap file header page
	MaxNameSize = 32
	// default number of frames in the buffer pool
	DefaultPoolSize = 32
)

var EnableDebug bool = false

var LogLevelSetting LogLevel = INFO | WARN | ERROR | FATAL

// Config carries the runtime knobs which are not compile-time constants.
type Config struct {
	PoolSize uint32
	DataDir  string
	LogLevel string
}

func NewConfig() *Config {
	return &Config{
		PoolSize: DefaultPoolSize,
		DataDir:  ".",
		LogLevel: "info",
	}
}

// LoadConfig reads an ini file of the form
//
//	[storage]
//	pool_size = 64
//	data_dir  = /var/lib/hibari
//
//	[log]
//	level = debug
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()
	file, err := ini.Load(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load config %s", path)
	}

	storage := file.Section("storage")
	if key, err := storage.GetKey("pool_size"); err == nil {
		v, err := key.Uint()
		if err != nil {
			return nil, errors.Wrap(err, "pool_size must be an unsigned integer")
		}
		cfg.PoolSize = uint32(v)
	}
	if key, err := storage.GetKey("data_dir"); err == nil {
		cfg.DataDir = key.String()
	}
	if key, err := file.Section("log").GetKey("level"); err == nil {
		cfg.LogLevel = key.String()
	}
	return cfg, nil
}

package inmemdb

import (
	"sync"

	"github.com/trezcool/certstudio/core/certificate"
)

type (
	// DB keeps every table in memory. Used in DEV without a database and in tests.
	DB struct {
		design *designTable
	}

	designTable struct {
		mutex sync.RWMutex
		table map[string]*certificate.Design
	}
)

func Open() *DB {
	return &DB{
		design: &designTable{table: make(map[string]*certificate.Design)},
	}
}

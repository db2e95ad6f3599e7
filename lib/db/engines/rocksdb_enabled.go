//go:build rocksdb
// +build rocksdb

package engines

import (
	_ "github.com/ValentinKolb/aKV/lib/db/engines/rocksdb"
)

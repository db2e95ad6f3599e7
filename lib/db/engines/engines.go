// Package engines registers the storage engines compiled into the binary.
// Import it for its side effects:
//
//	import _ "github.com/ValentinKolb/aKV/lib/db/engines"
//
// pebble, sqlite and maple are always available, rocksdb only with -tags rocksdb.
package engines

import (
	_ "github.com/ValentinKolb/aKV/lib/db/engines/maple"
	_ "github.com/ValentinKolb/aKV/lib/db/engines/pebble"
	_ "github.com/ValentinKolb/aKV/lib/db/engines/sqlite"
)

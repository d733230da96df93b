// Package pebblestore wraps Pebble behind a small surface: open with an
// fsync policy, point ops, atomic batches, range deletes and raw iterators.
//
// Every component shares one DB and builds its keyspace on top; the policy
// chosen at Open decides whether commits wait for the WAL, coalesce syncs
// over an interval, or skip them (tests).
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: dataDir,
//	    Fsync:   pebblestore.FsyncModeInterval,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	b := db.NewBatch()
//	defer b.Close()
//	_ = b.Set(key, val, nil)
//	if err := db.CommitBatch(ctx, b); err != nil {
//	    return err
//	}
package pebblestore

// Package runtime owns the shared state of one streamd process: the Pebble
// store, the effective configuration, and the session logs, queues and
// namespaces every service opens through it. Open builds that state once;
// Close tears it down in reverse.
//
//	rt, err := runtime.Open(runtime.Options{
//	    DataDir: dataDir,
//	    Fsync:   pebblestore.FsyncModeAlways,
//	    Config:  config.Default(),
//	})
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	l, _ := rt.SharedLog("default", "stream:search:chat-1", 0)
//	_, _ = l.Append(ctx, []eventlog.AppendRecord{{Payload: frame}})
package runtime

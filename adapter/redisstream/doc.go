// Package redisstream provides a Redis Streams exporter for xtap.
//
// Exporter name: "redis-streams"
//
// Every finished notification becomes one stream entry (XADD) whose payload
// is the codec-encoded xtap.Record.
//
// Minimal config keys:
// - addr: "host:port" (default "127.0.0.1:6379")
// - stream: stream key records are appended to (default "xtap")
// - max_len_approx: approximate MAXLEN trimming (default 0 = unbounded)
// - codec: record codec name (default "json")
// - workers: dispatcher export goroutines (default 4)
// - buffer_size: dispatcher queue capacity (default 4096)
// - export_timeout: bound on one XADD round trip (default 2s)
//
// Example:
//
//	listener, closeFn, err := redisstream.Use(ctx, redisstream.Config{
//	    Addr:   "localhost:6379",
//	    Stream: "orders-debug",
//	}, redisstream.WithLogger(logger))
package redisstream

package redisstream

// Field constants (avoid typos/allocs)
const (
	fieldID         = "id"
	fieldRunID      = "run"
	fieldKind       = "kind"
	fieldPayload    = "payload"   // raw codec bytes (no base64)
	fieldStartedAt  = "startedAt" // int64 ns
	fieldCodec      = "codec"
	fieldMetaPrefix = "meta:"
)

package mongo

// Config holds MongoDB connection settings.
type Config struct {
	URI      string
	Database string // empty = current db in the URI
}

// KeyField is an ordered index key element.
type KeyField struct {
	Field     string `json:"field"`
	Direction int    `json:"direction"` // 1 (asc) or -1 (desc); 0 for non-ordered (2d/2dsphere/text/hashed)
}

// IndexInfo describes a single index on a collection.
type IndexInfo struct {
	Name   string     `json:"name"`
	Key    []KeyField `json:"key"`
	Unique bool       `json:"unique,omitempty"`
	Sparse bool       `json:"sparse,omitempty"`
	TTL    *int32     `json:"ttl,omitempty"` // TTL seconds, nil if not a TTL index
}

// ServerInfo holds basic server metadata.
type ServerInfo struct {
	Version string `json:"version"`
}

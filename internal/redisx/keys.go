package redisx

import "time"

const (
	// Nomor urut kode movement: seq:{movement:PXK:2025} -> INCR
	KeySequence = "seq:%s"

	// Snapshot order untuk tracking publik: track:{ORDER_CODE} -> JSON order
	KeyTracking = "track:%s"

	// Generasi snapshot, naik tiap evict: trackgen:{ORDER_CODE} -> INCR
	KeyTrackingGen = "trackgen:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLTracking    = 5 * time.Minute
	TTLTrackingGen = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
)

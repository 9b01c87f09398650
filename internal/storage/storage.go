package storage

import "swapEngine/internal/model"

// Storage defines a sink for log records.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}

// SnapshotSink receives pair state snapshots.
type SnapshotSink interface {
	PutSnapshots(snapshots []model.PoolSnapshot) error
}

package indexer

import (
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"swapEngine/internal/storage"
)

// Checkpoint tracks the last processed block.
type Checkpoint struct {
	LastProcessedBlock uint64 `json:"last_processed_block"`
	// Filter fingerprints the address and topic set the checkpoint was taken
	// for. A resume with a different filter starts over from the configured
	// block.
	Filter    string `json:"filter,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

// CheckpointStore persists checkpoints to disk. A disabled store loads
// nothing and discards saves.
type CheckpointStore struct {
	path    string
	enabled bool
}

func NewCheckpointStore(path string, enabled bool) *CheckpointStore {
	return &CheckpointStore{path: path, enabled: enabled && path != ""}
}

func (c *CheckpointStore) Load() (Checkpoint, bool, error) {
	if !c.enabled {
		return Checkpoint{}, false, nil
	}
	var cp Checkpoint
	ok, err := storage.ReadJSONFile(c.path, &cp)
	if err != nil || !ok {
		return Checkpoint{}, false, err
	}
	return cp, true, nil
}

func (c *CheckpointStore) Save(lastProcessed uint64, filter string) error {
	if !c.enabled {
		return nil
	}
	return storage.WriteJSONFile(c.path, Checkpoint{
		LastProcessedBlock: lastProcessed,
		Filter:             filter,
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// FilterFingerprint hashes an address and topic set independent of order.
func FilterFingerprint(addresses []common.Address, topics []common.Hash) string {
	parts := make([]string, 0, len(addresses)+len(topics))
	for _, addr := range addresses {
		parts = append(parts, "a:"+strings.ToLower(addr.Hex()))
	}
	for _, topic := range topics {
		parts = append(parts, "t:"+topic.Hex())
	}
	sort.Strings(parts)
	return crypto.Keccak256Hash([]byte(strings.Join(parts, ","))).Hex()
}

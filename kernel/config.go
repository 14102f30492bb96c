package kernel

import (
	"encoding/json"
	"os"
	"time"

	"github.com/evanphx/tinyos/memory"
	"github.com/pkg/errors"
)

// Config holds the machine and scheduler constants. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	MemSize       int `json:"mem_size"`
	PageSize      int `json:"page_size"`
	TLBSize       int `json:"tlb_size"`
	PageTableSize int `json:"page_table_size"`
	HandleSlots   int `json:"handle_slots"`
	VFSSlots      int `json:"vfs_slots"`
	QuantumMillis int `json:"quantum_ms"`
	DemoteAfter   int `json:"demote_after"`
}

func DefaultConfig() Config {
	return Config{
		MemSize:       1024 * 1024,
		PageSize:      1024,
		TLBSize:       2,
		PageTableSize: 100,
		HandleSlots:   10,
		VFSSlots:      16,
		QuantumMillis: 250,
		DemoteAfter:   6,
	}
}

// LoadConfig decodes a JSON file over DefaultConfig, so a file only needs
// the fields it changes.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "opening config %s", path)
	}

	defer f.Close()

	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, errors.Wrapf(err, "decoding config %s", path)
	}

	return cfg, cfg.Validate()
}

func (c Config) Quantum() time.Duration {
	return time.Duration(c.QuantumMillis) * time.Millisecond
}

func (c Config) Geometry() memory.Geometry {
	return memory.Geometry{
		MemSize:       c.MemSize,
		PageSize:      c.PageSize,
		TLBSize:       c.TLBSize,
		PageTableSize: c.PageTableSize,
	}
}

func (c Config) Validate() error {
	switch {
	case c.HandleSlots <= 0:
		return errors.Errorf("handle_slots must be positive, got %d", c.HandleSlots)
	case c.QuantumMillis <= 0:
		return errors.Errorf("quantum_ms must be positive, got %d", c.QuantumMillis)
	case c.DemoteAfter <= 0:
		return errors.Errorf("demote_after must be positive, got %d", c.DemoteAfter)
	}

	return nil
}

package fs

import (
	"fmt"
	"path/filepath"
	"strings"

	logging "memez-terminal/internal/infra/log"

	"go.uber.org/zap"
)

const MutedPoolsFile = "muted_pools.json"

type MutedPoolsData struct {
	Pools []string `json:"pools"`
}

// MutedPools is the list of pool addresses the monitor never alerts on,
// stored under the output directory.
type MutedPools struct {
	path string
}

func NewMutedPools(outDir string) *MutedPools {
	return &MutedPools{path: filepath.Join(outDir, MutedPoolsFile)}
}

func (m *MutedPools) Load() ([]string, error) {
	var data MutedPoolsData
	ok, err := ReadJSON(m.path, &data)
	if err != nil {
		return nil, err
	}
	if !ok {
		logging.LogDebug("Muted pools file missing or empty, returning empty list", zap.String("file", m.path))
		return []string{}, nil
	}
	return data.Pools, nil
}

func (m *MutedPools) Add(pool string) error {
	pool = strings.TrimSpace(pool)
	if pool == "" {
		return fmt.Errorf("pool address cannot be empty")
	}

	pools, err := m.Load()
	if err != nil {
		return fmt.Errorf("failed to load muted pools: %w", err)
	}
	if IsMuted(pool, pools) {
		logging.LogDebug("Pool already muted", zap.String("pool", pool))
		return nil
	}

	pools = append(pools, pool)
	if err := WriteJSON(m.path, MutedPoolsData{Pools: pools}); err != nil {
		return fmt.Errorf("failed to save muted pools: %w", err)
	}

	logging.LogInfo("Muted pool",
		zap.String("pool", pool),
		zap.Int("totalCount", len(pools)))
	return nil
}

func (m *MutedPools) Remove(pool string) error {
	pool = strings.TrimSpace(pool)
	pools, err := m.Load()
	if err != nil {
		return fmt.Errorf("failed to load muted pools: %w", err)
	}

	found := false
	updated := make([]string, 0, len(pools))
	for _, p := range pools {
		if strings.TrimSpace(p) == pool {
			found = true
			continue
		}
		updated = append(updated, p)
	}
	if !found {
		return fmt.Errorf("pool not found in list")
	}

	if err := WriteJSON(m.path, MutedPoolsData{Pools: updated}); err != nil {
		return fmt.Errorf("failed to save muted pools: %w", err)
	}

	logging.LogInfo("Unmuted pool",
		zap.String("pool", pool),
		zap.Int("totalCount", len(updated)))
	return nil
}

func IsMuted(pool string, muted []string) bool {
	if pool == "" {
		return false
	}
	for _, p := range muted {
		if strings.TrimSpace(p) == pool {
			return true
		}
	}
	return false
}

package rewards

import (
	"fmt"
	"sync"

	"memez-terminal/internal/infra/fs"
	"memez-terminal/internal/infra/log"
	"memez-terminal/internal/sui"

	"go.uber.org/zap"
)

// KeyStore maps a user address to the keypair of their memez wallet.
type KeyStore struct {
	mu   sync.RWMutex
	keys map[string]*sui.Keypair
}

func NewKeyStore() *KeyStore {
	return &KeyStore{keys: make(map[string]*sui.Keypair)}
}

// LoadKeyStore reads a JSON object of user address -> private key (hex seed or
// base64). A missing file yields an empty store.
func LoadKeyStore(path string) (*KeyStore, error) {
	var raw map[string]string
	ok, err := fs.ReadJSON(path, &raw)
	if err != nil {
		return nil, err
	}
	ks := NewKeyStore()
	if !ok {
		log.LogWarn("Memez wallets file not found, claims disabled", zap.String("file", path))
		return ks, nil
	}
	for user, key := range raw {
		kp, err := sui.ParseKeypair(key)
		if err != nil {
			return nil, fmt.Errorf("wallet for %s: %w", sui.ShortAddress(user), err)
		}
		if err := ks.Add(user, kp); err != nil {
			return nil, err
		}
	}
	log.LogInfo("Loaded memez wallets", zap.String("file", path), zap.Int("count", ks.Len()))
	return ks, nil
}

func (k *KeyStore) Add(user string, kp *sui.Keypair) error {
	addr, err := sui.NormalizeAddress(user)
	if err != nil {
		return err
	}
	k.mu.Lock()
	k.keys[addr] = kp
	k.mu.Unlock()
	return nil
}

func (k *KeyStore) Wallet(user string) (*sui.Keypair, error) {
	addr, err := sui.NormalizeAddress(user)
	if err != nil {
		return nil, err
	}
	k.mu.RLock()
	kp, ok := k.keys[addr]
	k.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWallet, sui.ShortAddress(addr))
	}
	return kp, nil
}

func (k *KeyStore) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys)
}

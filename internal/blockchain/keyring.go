package blockchain

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"quest-launchpad/pkg/errors"
)

// NewTransactor 由十六进制私钥创建交易签名器
func NewTransactor(hexKey string, chainID *big.Int) (*bind.TransactOpts, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.New(errors.ErrSignerMissing, "私钥格式错误", err)
	}
	return bind.NewKeyedTransactorWithChainID(key, chainID)
}

// Keyring 服务端托管的内嵌钱包
type Keyring struct {
	mu      sync.RWMutex
	chainID *big.Int
	keys    map[common.Address]*ecdsa.PrivateKey
}

func NewKeyring(chainID *big.Int, hexKeys []string) (*Keyring, error) {
	k := &Keyring{
		chainID: chainID,
		keys:    make(map[common.Address]*ecdsa.PrivateKey, len(hexKeys)),
	}
	for i, hexKey := range hexKeys {
		if strings.TrimSpace(hexKey) == "" {
			continue
		}
		if _, err := k.Add(hexKey); err != nil {
			return nil, fmt.Errorf("wallet key #%d: %w", i, err)
		}
	}
	return k, nil
}

func (k *Keyring) Add(hexKey string) (common.Address, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return common.Address{}, errors.New(errors.ErrSignerMissing, "私钥格式错误", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)

	k.mu.Lock()
	k.keys[addr] = key
	k.mu.Unlock()
	return addr, nil
}

func (k *Keyring) Has(addr common.Address) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.keys[addr]
	return ok
}

func (k *Keyring) Addresses() []common.Address {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]common.Address, 0, len(k.keys))
	for addr := range k.keys {
		out = append(out, addr)
	}
	return out
}

// Transactor 返回指定钱包的签名器；钱包不在托管范围内时返回 SIGNER_MISSING
func (k *Keyring) Transactor(addr common.Address) (*bind.TransactOpts, error) {
	k.mu.RLock()
	key, ok := k.keys[addr]
	k.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.ErrSignerMissing,
			fmt.Sprintf("钱包 %s 未托管在服务端", strings.ToLower(addr.Hex())), nil)
	}
	return bind.NewKeyedTransactorWithChainID(key, k.chainID)
}

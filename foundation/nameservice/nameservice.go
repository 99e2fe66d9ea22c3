// Package nameservice reads a folder of ECDSA key files and creates a name
// service lookup for the addresses they control.
package nameservice

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

// keyExt is the file extension of a private key file.
const keyExt = ".ecdsa"

// NameService maintains a map of addresses for name lookup.
type NameService struct {
	root      string
	mu        sync.RWMutex
	addresses map[database.Address]string
}

// New constructs a name service with the key files found under root. A
// missing root folder is created.
func New(root string) (*NameService, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating key folder: %w", err)
	}

	ns := NameService{
		root:      root,
		addresses: make(map[database.Address]string),
	}

	fn := func(fileName string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if d.IsDir() || filepath.Ext(fileName) != keyExt {
			return nil
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return fmt.Errorf("loading %s: %w", fileName, err)
		}

		ns.addresses[signature.KeyAddress(privateKey)] = strings.TrimSuffix(filepath.Base(fileName), keyExt)

		return nil
	}

	if err := filepath.WalkDir(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// LoadOrCreate returns the private key stored under the specified name. When
// no such key exists a new one is generated, saved and registered.
func (ns *NameService) LoadOrCreate(name string) (*ecdsa.PrivateKey, error) {
	path := filepath.Join(ns.root, name+keyExt)

	privateKey, err := crypto.LoadECDSA(path)
	switch {
	case err == nil:
		return privateKey, nil

	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	privateKey, err = crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}

	if err := crypto.SaveECDSA(path, privateKey); err != nil {
		return nil, fmt.Errorf("saving %s: %w", path, err)
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	ns.addresses[signature.KeyAddress(privateKey)] = name

	return privateKey, nil
}

// Lookup returns the name for the specified address.
func (ns *NameService) Lookup(addr database.Address) string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	name, exists := ns.addresses[addr]
	if !exists {
		return addr.Hex()
	}
	return name
}

// Addresses returns the known addresses ordered by name.
func (ns *NameService) Addresses() []database.Address {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	addrs := make([]database.Address, 0, len(ns.addresses))
	for addr := range ns.addresses {
		addrs = append(addrs, addr)
	}

	slices.SortFunc(addrs, func(a, b database.Address) int {
		return strings.Compare(ns.addresses[a], ns.addresses[b])
	})

	return addrs
}

// Copy returns a copy of the map of names and addresses.
func (ns *NameService) Copy() map[database.Address]string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	cpy := make(map[database.Address]string, len(ns.addresses))
	for addr, name := range ns.addresses {
		cpy[addr] = name
	}
	return cpy
}

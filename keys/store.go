package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// KeyStore is a simple local-first store for operator signing keys.
//
// Keys are Ed25519 seeds held as 0600 files under a per-name directory, with
// deterministic role subkeys (e.g. a "release" role key derived from the
// operator root key). It has no external dependencies and is designed to be
// straightforward and explicit.
type KeyStore struct {
	Directory string
}

type KeyEntry struct {
	Name  string
	Roles []string
}

// DefaultDirectory is ~/.daugherty/keys.
func DefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".daugherty", "keys"), nil
}

// Open returns a keystore rooted at directory, or the default directory when
// empty.
func Open(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = DefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) rootKeyPath(name string) string {
	return filepath.Join(ks.Directory, name, "root.key")
}

func (ks *KeyStore) roleKeyPath(name, role string) string {
	return filepath.Join(ks.Directory, name, "roles", role+".key")
}

// CheckName validates a key or role name: letters, digits, - and _ only.
func CheckName(name string) error {
	if name == "" {
		return errors.New("name cannot be empty")
	}
	for _, c := range name {
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in name", c)
	}
	return nil
}

// ParseSeedHex decodes a 32-byte Ed25519 seed from hex, with or without an
// 0x prefix.
func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimSpace(seedHex)
	seedHex = strings.TrimPrefix(seedHex, "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != ed25519.SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", ed25519.SeedSize, len(data))
	}
	return data, nil
}

// IssuerKeyFromSeed returns the issuer-key string for an Ed25519 seed.
func IssuerKeyFromSeed(seed []byte) string {
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return "ed25519:" + base64.StdEncoding.EncodeToString(pub)
}

// DeriveRoleSeed deterministically derives a role-specific Ed25519 seed from
// an operator root seed.
func DeriveRoleSeed(rootSeed []byte, role string) ([]byte, error) {
	if len(rootSeed) != ed25519.SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", ed25519.SeedSize)
	}
	if err := CheckName(role); err != nil {
		return nil, err
	}

	h := sha256.New()
	_, _ = h.Write(rootSeed)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("daugherty-certify-kms-v1"))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("role:"))
	_, _ = h.Write([]byte(role))
	sum := h.Sum(nil)
	out := make([]byte, ed25519.SeedSize)
	copy(out, sum[:ed25519.SeedSize])
	return out, nil
}

func (ks *KeyStore) saveSeed(path string, seed []byte, overwrite bool) error {
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("expected seed length of %d bytes", ed25519.SeedSize)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		return err
	}
	return f.Close()
}

func (ks *KeyStore) loadSeed(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(strings.TrimSpace(string(data)))
}

// InitRootKey stores seed as the root key for name and returns the issuer key.
func (ks *KeyStore) InitRootKey(name string, seed []byte, overwrite bool) (issuerKey, path string, err error) {
	if err := CheckName(name); err != nil {
		return "", "", err
	}
	path = ks.rootKeyPath(name)
	if err := ks.saveSeed(path, seed, overwrite); err != nil {
		return "", "", err
	}
	return IssuerKeyFromSeed(seed), path, nil
}

// DeriveRoleKey derives and stores a role subkey for name.
func (ks *KeyStore) DeriveRoleKey(name, role string, overwrite bool) (issuerKey, path string, err error) {
	if err := CheckName(name); err != nil {
		return "", "", err
	}
	rootSeed, err := ks.loadSeed(ks.rootKeyPath(name))
	if err != nil {
		return "", "", err
	}
	roleSeed, err := DeriveRoleSeed(rootSeed, role)
	if err != nil {
		return "", "", err
	}
	path = ks.roleKeyPath(name, role)
	if err := ks.saveSeed(path, roleSeed, overwrite); err != nil {
		return "", "", err
	}
	return IssuerKeyFromSeed(roleSeed), path, nil
}

// LoadSeed resolves a signing seed from, in priority order: an explicit hex
// seed, a key file path, or a named (and optionally role-scoped) stored key.
func (ks *KeyStore) LoadSeed(seedHex, name, role, keyFile string) ([]byte, error) {
	if seedHex != "" {
		return ParseSeedHex(seedHex)
	}
	if keyFile != "" {
		return ks.loadSeed(keyFile)
	}
	if name != "" {
		if err := CheckName(name); err != nil {
			return nil, err
		}
		if role == "" {
			return ks.loadSeed(ks.rootKeyPath(name))
		}
		if err := CheckName(role); err != nil {
			return nil, err
		}
		return ks.loadSeed(ks.roleKeyPath(name, role))
	}
	return nil, errors.New("no signer provided")
}

// ExportIssuerKey returns the issuer-key string for a stored key without
// exposing the seed.
func (ks *KeyStore) ExportIssuerKey(name, role string) (string, error) {
	if err := CheckName(name); err != nil {
		return "", err
	}
	var seed []byte
	var err error
	if role == "" {
		seed, err = ks.loadSeed(ks.rootKeyPath(name))
	} else {
		if err := CheckName(role); err != nil {
			return "", err
		}
		seed, err = ks.loadSeed(ks.roleKeyPath(name, role))
	}
	if err != nil {
		return "", err
	}
	return IssuerKeyFromSeed(seed), nil
}

// List enumerates stored keys and their derived roles, sorted by name.
func (ks *KeyStore) List() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []KeyEntry
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		e := KeyEntry{Name: name}
		roles, err := os.ReadDir(filepath.Join(ks.Directory, name, "roles"))
		if err == nil {
			for _, r := range roles {
				e.Roles = append(e.Roles, strings.TrimSuffix(r.Name(), ".key"))
			}
			sort.Strings(e.Roles)
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

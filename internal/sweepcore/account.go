package sweepcore

import (
	"bufio"
	"crypto/ecdsa"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Account is one source wallet: the secret plus its derived address.
// Immutable once loaded.
type Account struct {
	key     *ecdsa.PrivateKey
	Address common.Address
}

// NewAccount parses a hex private key (0x optional) and derives its address.
func NewAccount(hexKey string) (Account, error) {
	prv, err := hexToECDSAPriv(hexKey)
	if err != nil {
		return Account{}, err
	}
	return Account{key: prv, Address: gethcrypto.PubkeyToAddress(prv.PublicKey)}, nil
}

// ReadAccounts loads one hex key per line, skipping blanks and # comments.
// A malformed key is a hard error: a silently dropped wallet would simply
// keep its funds, which is worse than failing loudly before the run.
func ReadAccounts(r io.Reader) ([]Account, error) {
	var out []Account
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		acc, err := NewAccount(s)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, acc)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadAccounts reads a key file and drops any wallet whose address equals
// the destination: the destination is never a source.
func LoadAccounts(path string, dest common.Address) ([]Account, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	accs, err := ReadAccounts(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	out := accs[:0]
	for _, a := range accs {
		if a.Address == dest {
			continue
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: no usable accounts", path)
	}
	return out, nil
}

// ParseDestination validates and normalizes the sweep target address.
func ParseDestination(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid destination address %q", s)
	}
	return common.HexToAddress(s), nil
}

// LoadDestination reads the target address from a one-line file.
func LoadDestination(path string) (common.Address, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return common.Address{}, err
	}
	addr, err := ParseDestination(string(b))
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", path, err)
	}
	return addr, nil
}

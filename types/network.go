package types

import "fmt"

// NetworkIdentity names a chain.
type NetworkIdentity struct {
	ChainID uint64 `cramberry:"1"`
	Name    string `cramberry:"2"`
}

// SameChain reports whether both identities refer to the same chain id.
// Names are informational and never compared.
func (n NetworkIdentity) SameChain(o NetworkIdentity) bool {
	return n.ChainID == o.ChainID
}

func (n NetworkIdentity) String() string {
	if n.Name == "" {
		return fmt.Sprintf("chain %d", n.ChainID)
	}
	return fmt.Sprintf("%s (%d)", n.Name, n.ChainID)
}

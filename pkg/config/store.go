package config

import (
	"fmt"
	"strings"
)

const (
	StoreBackendMemory   = "memory"
	StoreBackendPostgres = "postgres"
)

// StoreConfig selects the order store backend and its policies.
type StoreConfig struct {
	// Backend is "memory" (default) or "postgres".
	Backend string `koanf:"backend"`
	// OnePerOwner rejects a second live order for the same owner.
	OnePerOwner bool `koanf:"onePerOwner"`
	// StrictTransitions enforces forward-only status transitions.
	StrictTransitions bool `koanf:"strictTransitions"`
}

// String returns a string representation of the store configuration.
func (c *StoreConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Store ---\n")
	b.WriteString(fmt.Sprintf("  backend: %s\n", c.Backend))
	b.WriteString(fmt.Sprintf("  onePerOwner: %t\n", c.OnePerOwner))
	b.WriteString(fmt.Sprintf("  strictTransitions: %t\n", c.StrictTransitions))
	return b.String()
}

func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case "", StoreBackendMemory, StoreBackendPostgres:
		return nil
	}
	return fmt.Errorf("unknown store backend: %s", c.Backend)
}

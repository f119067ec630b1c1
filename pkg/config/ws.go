package config

import (
	"fmt"
	"strings"
	"time"
)

// WSConfig holds the WebSocket endpoint settings.
type WSConfig struct {
	// SendBuffer is the per-subscriber outbound queue length. A
	// subscriber that falls this far behind is disconnected.
	SendBuffer int `koanf:"sendBuffer"`
	// WriteTimeout bounds a single frame write to a subscriber.
	WriteTimeout time.Duration `koanf:"writeTimeout"`
}

// String returns a string representation of the WebSocket configuration.
func (c *WSConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- WebSocket ---\n")
	b.WriteString(fmt.Sprintf("  sendBuffer: %d\n", c.SendBuffer))
	b.WriteString(fmt.Sprintf("  writeTimeout: %s\n", c.WriteTimeout))
	return b.String()
}

func (c *WSConfig) Validate() error {
	if c.SendBuffer <= 0 {
		return fmt.Errorf("websocket send buffer is not configured")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("websocket write timeout is not configured")
	}
	return nil
}

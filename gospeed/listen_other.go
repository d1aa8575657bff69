//go:build !unix

package main

import (
	"context"
	"fmt"
	"net"
)

// listen falls back to the runtime's listener; the backlog is the system's.
func listen(p protocol, app *config) (net.Listener, error) {
	var lc net.ListenConfig

	network, address := app.listenAddr(p)
	l, err := lc.Listen(context.Background(), network, address)
	if err != nil {
		return nil, fmt.Errorf("failed binding socket {%s}: %w", p.tag(), err)
	}

	return l, nil
}

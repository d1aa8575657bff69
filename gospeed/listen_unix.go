//go:build unix

package main

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// listen binds the wildcard address of p with a backlog of listenBacklog.
// net.Listen always uses the system maximum, so the socket is set up by hand
// and then handed over to the runtime poller.
func listen(p protocol, app *config) (net.Listener, error) {
	var (
		family int
		sa     unix.Sockaddr
	)

	switch p {
	case protoLocal:
		family, sa = unix.AF_UNIX, &unix.SockaddrUnix{Name: app.socketPath}
	case protoIPv4:
		family, sa = unix.AF_INET, &unix.SockaddrInet4{Port: app.ipv4Port}
	case protoIPv6:
		family, sa = unix.AF_INET6, &unix.SockaddrInet6{Port: app.ipv6Port}
	default:
		return nil, fmt.Errorf("%w: %v", errUnknownProtocol, p)
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("failed in socket creation {%s}: %w", p.tag(), err)
	}
	unix.CloseOnExec(fd)

	if family != unix.AF_UNIX {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("failed trying to set port as reusable {%s}: %w", p.tag(), err)
		}
	}

	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed binding socket {%s}: %w", p.tag(), err)
	}

	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed trying to listen to socket {%s}: %w", p.tag(), err)
	}

	_, name := app.listenAddr(p)
	f := os.NewFile(uintptr(fd), name)
	defer f.Close()

	l, err := net.FileListener(f)
	if err != nil {
		return nil, fmt.Errorf("failed trying to listen to socket {%s}: %w", p.tag(), err)
	}

	return l, nil
}

package pgnative

import "io"

// Transport is the reliable bidirectional byte stream a Connection is built
// on. A net.Conn satisfies this directly; establishing it (TCP dial, DNS
// resolution, TLS) is the caller's responsibility, not the core's.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

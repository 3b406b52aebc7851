package wire

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"time"

	"github.com/tokshard/clustermap-go/internal/cluster/clustererr"
	"github.com/tokshard/clustermap-go/pool"
)

// Conn is a control connection to one cluster node, used only to issue
// CLUSTER NODES and read back its gossip snapshot.
type Conn struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

// Dial opens a control connection to addr. sni overrides the TLS
// server name presented during the handshake, for deployments where a
// NAT-mapped address differs from the certificate's subject.
func Dial(ctx context.Context, addr pool.NodeAddress, tlsConfig *tls.Config, sni string, timeout time.Duration) (*Conn, error) {
	d := net.Dialer{Timeout: timeout}
	hostPort := net.JoinHostPort(addr.Host, strconv.Itoa(addr.Port))

	var (
		conn net.Conn
		err  error
	)
	if addr.TLS {
		cfg := tlsConfig.Clone()
		if cfg == nil {
			cfg = &tls.Config{}
		}
		if sni != "" {
			cfg.ServerName = sni
		}
		rawConn, dialErr := d.DialContext(ctx, "tcp", hostPort)
		if dialErr != nil {
			return nil, clustererr.NewWithAddr(clustererr.Connect, addr.String(), "dial", dialErr)
		}
		tlsConn := tls.Client(rawConn, cfg)
		if err = tlsConn.HandshakeContext(ctx); err != nil {
			rawConn.Close()
			return nil, clustererr.NewWithAddr(clustererr.Connect, addr.String(), "tls handshake", err)
		}
		conn = tlsConn
	} else {
		conn, err = d.DialContext(ctx, "tcp", hostPort)
		if err != nil {
			return nil, clustererr.NewWithAddr(clustererr.Connect, addr.String(), "dial", err)
		}
	}

	return &Conn{conn: conn, r: bufio.NewReader(conn), w: bufio.NewWriter(conn)}, nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// writeCommand sends a command as a RESP array of bulk strings.
func (c *Conn) writeCommand(args ...string) error {
	if err := writeArrayHeader(c.w, len(args)); err != nil {
		return err
	}
	for _, a := range args {
		if err := writeBulkString(c.w, a); err != nil {
			return err
		}
	}
	return c.w.Flush()
}

// FetchClusterNodes issues CLUSTER NODES and returns the raw snapshot
// text, unparsed.
func (c *Conn) FetchClusterNodes(deadline time.Time) (string, error) {
	if err := c.conn.SetDeadline(deadline); err != nil {
		return "", err
	}
	defer c.conn.SetDeadline(time.Time{})

	if err := c.writeCommand("CLUSTER", "NODES"); err != nil {
		return "", clustererr.New(clustererr.Protocol, "write CLUSTER NODES", err)
	}
	reply, err := readReply(c.r)
	if err != nil {
		return "", clustererr.New(clustererr.Protocol, "read CLUSTER NODES reply", err)
	}
	return reply, nil
}

// Package nntp holds a minimal single-connection client: enough to
// fetch one article body as the line-oriented stream the yEnc decoder
// consumes. Connection pooling and retry policy belong to callers.
package nntp

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strings"

	"github.com/tahirrasheed89/newsreap/internal/infra/config"
)

type Client struct {
	conf config.ServerConfig
	conn *textproto.Conn
}

func NewClient(c config.ServerConfig) *Client {
	return &Client{conf: c}
}

func (c *Client) ensureConnected() error {
	if c.conn != nil {
		return nil
	}

	address := fmt.Sprintf("%s:%d", c.conf.Host, c.conf.Port)

	var conn *textproto.Conn
	if c.conf.TLS {
		tlsConn, err := tls.Dial("tcp", address, &tls.Config{ServerName: c.conf.Host})
		if err != nil {
			return err
		}
		conn = textproto.NewConn(tlsConn)
	} else {
		tcpConn, err := net.Dial("tcp", address)
		if err != nil {
			return err
		}
		conn = textproto.NewConn(tcpConn)
	}

	// Server greeting: 200 (posting allowed) or 201 (read-only)
	if _, _, err := conn.ReadCodeLine(20); err != nil {
		conn.Close()
		return fmt.Errorf("unexpected greeting: %w", err)
	}

	c.conn = conn

	if c.conf.Username != "" {
		if err := c.authenticate(); err != nil {
			c.Close()
			return err
		}
	}
	return nil
}

func (c *Client) authenticate() error {
	if _, err := c.conn.Cmd("AUTHINFO USER %s", c.conf.Username); err != nil {
		return err
	}
	code, _, err := c.conn.ReadCodeLine(-1)
	if err != nil {
		return err
	}
	if code == 281 {
		return nil
	}
	if code != 381 {
		return ErrAuthFailed
	}

	if _, err := c.conn.Cmd("AUTHINFO PASS %s", c.conf.Password); err != nil {
		return err
	}
	if _, _, err := c.conn.ReadCodeLine(281); err != nil {
		return ErrAuthFailed
	}
	return nil
}

// Body issues BODY for the given message-id and returns a reader over
// the article body. The reader strips NNTP dot-stuffing and ends at
// the terminating dot line; it must be drained or the connection is
// unusable for further commands.
func (c *Client) Body(messageID string) (io.Reader, error) {
	if err := c.ensureConnected(); err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}

	formattedID := messageID
	if !strings.HasPrefix(formattedID, "<") {
		formattedID = "<" + formattedID + ">"
	}

	if _, err := c.conn.Cmd("BODY %s", formattedID); err != nil {
		return nil, err
	}

	// Expecting 222 Body follows
	code, _, err := c.conn.ReadCodeLine(222)
	if err != nil {
		if code == 430 {
			return nil, ErrArticleNotFound
		}
		return nil, err
	}

	return c.conn.DotReader(), nil
}

// Group selects a newsgroup and reports its article counts.
func (c *Client) Group(name string) (count, low, high int64, err error) {
	if err = c.ensureConnected(); err != nil {
		return 0, 0, 0, err
	}
	if _, err = c.conn.Cmd("GROUP %s", name); err != nil {
		return 0, 0, 0, err
	}
	_, line, err := c.conn.ReadCodeLine(211)
	if err != nil {
		return 0, 0, 0, err
	}
	if _, serr := fmt.Sscanf(line, "%d %d %d", &count, &low, &high); serr != nil {
		return 0, 0, 0, fmt.Errorf("unparsable GROUP response %q", line)
	}
	return count, low, high, nil
}

func (c *Client) Close() error {
	if c.conn != nil {
		// QUIT lets the server release the slot immediately
		c.conn.Cmd("QUIT")
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

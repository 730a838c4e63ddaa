package remote

import (
	"context"
	"net"
	"sync"

	"github.com/jingkaihe/padlock/internal/errx"
	"github.com/jingkaihe/padlock/pkg/api"
	"github.com/jingkaihe/padlock/pkg/backend"
)

// Client implements the backend capability interfaces over a single
// connection to a Server. Exchanges are serialized with a mutex; one client
// is one in-flight request at a time.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
}

func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn}
}

func Dial(network, addr string) (*Client, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, errx.Wrap(errDial, err)
	}
	return NewClient(conn), nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) roundTrip(req *Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := writeFrame(c.conn, req); err != nil {
		return nil, errx.Wrap(errWriteRequest, err)
	}
	var resp Response
	if err := readFrame(c.conn, &resp); err != nil {
		return nil, errx.Wrap(errReadResponse, err)
	}
	if resp.ErrCode != "" {
		return nil, errorFromWire(resp.ErrCode, resp.ErrMsg)
	}
	return &resp, nil
}

func (c *Client) Ping() error {
	_, err := c.roundTrip(&Request{Op: OpPing})
	return err
}

func (c *Client) Read(path string) (*api.FileRecord, error) {
	resp, err := c.roundTrip(&Request{Op: OpRead, Path: path})
	if err != nil {
		return nil, err
	}
	return resp.Record, nil
}

func (c *Client) Write(path string, content []byte) error {
	_, err := c.roundTrip(&Request{Op: OpWrite, Path: path, Content: content})
	return err
}

func (c *Client) List(path string) ([]api.Entry, error) {
	resp, err := c.roundTrip(&Request{Op: OpList, Path: path})
	if err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *Client) Delete(path string) error {
	_, err := c.roundTrip(&Request{Op: OpDelete, Path: path})
	return err
}

func (c *Client) Move(src, dst string) error {
	_, err := c.roundTrip(&Request{Op: OpMove, Path: src, NewPath: dst})
	return err
}

// Execute forwards a command. Cancelling ctx closes the connection, which
// is the only way to interrupt a remote exchange mid-flight; the client is
// unusable afterwards.
func (c *Client) Execute(ctx context.Context, command string) (*api.ExecuteResponse, error) {
	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer stop()

	resp, err := c.roundTrip(&Request{Op: OpExecute, Command: command})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return resp.Exec, nil
}

var _ backend.Backend = (*Client)(nil)

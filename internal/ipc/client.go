package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Req, Resp any](c *Client, method string, req Req) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(ServiceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusRequest, StatusResponse](c, "Status", StatusRequest{})
}

// Pause suspends periodic capture.
func (c *Client) Pause() (*PauseResponse, error) {
	return call[PauseRequest, PauseResponse](c, "Pause", PauseRequest{})
}

// Resume re-enables periodic capture.
func (c *Client) Resume() (*ResumeResponse, error) {
	return call[ResumeRequest, ResumeResponse](c, "Resume", ResumeRequest{})
}

// CaptureNow captures every display immediately.
func (c *Client) CaptureNow() (*CaptureNowResponse, error) {
	return call[CaptureNowRequest, CaptureNowResponse](c, "CaptureNow", CaptureNowRequest{})
}

// ArchiveNow runs one archive pass in the daemon.
func (c *Client) ArchiveNow() (*ArchiveNowResponse, error) {
	return call[ArchiveNowRequest, ArchiveNowResponse](c, "ArchiveNow", ArchiveNowRequest{})
}

// Entries lists entries matching req.
func (c *Client) Entries(req EntriesRequest) (*EntriesResponse, error) {
	return call[EntriesRequest, EntriesResponse](c, "Entries", req)
}

// Search lists the newest entries containing text.
func (c *Client) Search(text string, limit int) (*EntriesResponse, error) {
	return call[SearchRequest, EntriesResponse](c, "Search", SearchRequest{Text: text, Limit: limit})
}

// Entry fetches one entry by id.
func (c *Client) Entry(id string) (*EntryResponse, error) {
	return call[EntryRequest, EntryResponse](c, "Entry", EntryRequest{ID: id})
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	return call[LogTailRequest, LogTailResponse](c, "LogTail", req)
}

package mailbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/ecatcheck/internal/channel"
	"github.com/muurk/ecatcheck/internal/logging"
)

// Client issues SDO reads and writes to one node over a channel.
type Client struct {
	ch   channel.Channel
	node uint8
}

// NewClient returns a client addressing node over ch.
func NewClient(ch channel.Channel, node uint8) *Client {
	return &Client{ch: ch, node: node}
}

// Node returns the node identifier placed in every request.
func (c *Client) Node() uint8 {
	return c.node
}

// ReadRaw sends a read request and returns the unparsed response.
// Only channel failures are errors; the caller interprets the bytes.
func (c *Client) ReadRaw(ctx context.Context, index uint16, subIndex uint8) ([]byte, error) {
	resp, err := c.ch.Exchange(ctx, BuildReadRequest(c.node, index, subIndex))
	if err != nil {
		return nil, fmt.Errorf("SDO read 0x%04X:%02X: %w", index, subIndex, err)
	}
	return resp, nil
}

// Read reads index/subindex and returns the decoded response.
func (c *Client) Read(ctx context.Context, index uint16, subIndex uint8) (*Response, error) {
	raw, err := c.ReadRaw(ctx, index, subIndex)
	if err != nil {
		return nil, err
	}

	resp, err := ParseResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("SDO read 0x%04X:%02X: %w", index, subIndex, err)
	}

	logging.Debug("SDO read",
		zap.String("object", fmt.Sprintf("0x%04X:%02X", index, subIndex)),
		zap.Int("data_len", len(resp.Data)),
	)
	return resp, nil
}

// Write writes data to index/subindex.
func (c *Client) Write(ctx context.Context, index uint16, subIndex uint8, data []byte) error {
	req, err := BuildWriteRequest(c.node, index, subIndex, data)
	if err != nil {
		return err
	}

	raw, err := c.ch.Exchange(ctx, req)
	if err != nil {
		return fmt.Errorf("SDO write 0x%04X:%02X: %w", index, subIndex, err)
	}
	if _, err := ParseResponse(raw); err != nil {
		return fmt.Errorf("SDO write 0x%04X:%02X: %w", index, subIndex, err)
	}

	logging.Debug("SDO write",
		zap.String("object", fmt.Sprintf("0x%04X:%02X", index, subIndex)),
		zap.Int("data_len", len(data)),
	)
	return nil
}

// TestRead reports whether the device accepts a read of index/subindex.
// Channel failures are returned as errors; a rejection is false.
func (c *Client) TestRead(ctx context.Context, index uint16, subIndex uint8) (bool, error) {
	raw, err := c.ReadRaw(ctx, index, subIndex)
	if err != nil {
		return false, err
	}
	return IsSuccess(raw), nil
}

// TestWrite reports whether the device accepts a write of data to
// index/subindex.
func (c *Client) TestWrite(ctx context.Context, index uint16, subIndex uint8, data []byte) (bool, error) {
	req, err := BuildWriteRequest(c.node, index, subIndex, data)
	if err != nil {
		return false, err
	}
	raw, err := c.ch.Exchange(ctx, req)
	if err != nil {
		return false, fmt.Errorf("SDO write 0x%04X:%02X: %w", index, subIndex, err)
	}
	return IsSuccess(raw), nil
}

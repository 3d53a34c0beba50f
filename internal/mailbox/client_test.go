package mailbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/muurk/ecatcheck/internal/ecaterr"
)

type stubChannel struct{ mock.Mock }

func (s *stubChannel) Exchange(ctx context.Context, cmd []byte) ([]byte, error) {
	ret := s.Called(ctx, cmd)
	var resp []byte
	if ret.Get(0) != nil {
		resp = ret.Get(0).([]byte)
	}
	return resp, ret.Error(1)
}

func TestClientRead(t *testing.T) {
	ch := &stubChannel{}
	ch.On("Exchange", mock.Anything, BuildReadRequest(2, 0x1008, 0x00)).
		Return(BuildResponse(StatusSuccess, 0x1008, 0, []byte("EK1100"), 0), nil).Once()

	c := NewClient(ch, 2)
	resp, err := c.Read(context.Background(), 0x1008, 0x00)
	require.NoError(t, err)
	assert.Equal(t, []byte("EK1100"), resp.Data)
	assert.Equal(t, uint8(2), c.Node())
	ch.AssertExpectations(t)
}

func TestClientReadNack(t *testing.T) {
	ch := &stubChannel{}
	ch.On("Exchange", mock.Anything, mock.Anything).
		Return(BuildAbortResponse(0x6000, 0, AbortObjectMissing), nil).Once()

	_, err := NewClient(ch, 0).Read(context.Background(), 0x6000, 0)
	require.Error(t, err)
	assert.True(t, ecaterr.IsProtocolNack(err))
	assert.Contains(t, err.Error(), "SDO read 0x6000:00")
}

func TestClientReadChannelError(t *testing.T) {
	ch := &stubChannel{}
	ch.On("Exchange", mock.Anything, mock.Anything).
		Return(nil, ecaterr.NewChannelError(ecaterr.ChannelTimeout, "no response", nil)).Once()

	_, err := NewClient(ch, 0).Read(context.Background(), 0x1000, 0)
	assert.True(t, ecaterr.IsTimeout(err))
	ch.AssertNumberOfCalls(t, "Exchange", 1)
}

func TestClientWrite(t *testing.T) {
	want, err := BuildWriteRequest(0, 0x1600, 0x01, []byte{0x10, 0x00, 0x00, 0x60})
	require.NoError(t, err)

	ch := &stubChannel{}
	ch.On("Exchange", mock.Anything, want).
		Return(BuildResponse(StatusSuccess, 0x1600, 0x01, nil, 0), nil).Once()

	require.NoError(t, NewClient(ch, 0).Write(context.Background(), 0x1600, 0x01, []byte{0x10, 0x00, 0x00, 0x60}))
	ch.AssertExpectations(t)
}

func TestClientWriteRejected(t *testing.T) {
	ch := &stubChannel{}
	ch.On("Exchange", mock.Anything, mock.Anything).
		Return(BuildAbortResponse(0x1000, 0, AbortReadOnly), nil).Once()

	err := NewClient(ch, 0).Write(context.Background(), 0x1000, 0, []byte{1})
	assert.True(t, ecaterr.IsProtocolNack(err))
}

func TestClientWriteTooLargeNeverSends(t *testing.T) {
	ch := &stubChannel{}
	err := NewClient(ch, 0).Write(context.Background(), 0x2000, 0, make([]byte, MaxFrameSize))
	assert.True(t, ecaterr.IsValidationError(err))
	ch.AssertNotCalled(t, "Exchange", mock.Anything, mock.Anything)
}

func TestClientTestRead(t *testing.T) {
	ch := &stubChannel{}
	ch.On("Exchange", mock.Anything, BuildReadRequest(0, 0x1000, 0)).
		Return([]byte{0x00, 0x10, 0x00, 0x00, 0x92}, nil).Once()
	ch.On("Exchange", mock.Anything, BuildReadRequest(0, 0x2000, 0)).
		Return([]byte{0x01, 0x20, 0x00, 0x00, 0x00}, nil).Once()
	ch.On("Exchange", mock.Anything, BuildReadRequest(0, 0x3000, 0)).
		Return([]byte{0x00}, nil).Once()

	c := NewClient(ch, 0)
	ok, err := c.TestRead(context.Background(), 0x1000, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.TestRead(context.Background(), 0x2000, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.TestRead(context.Background(), 0x3000, 0)
	require.NoError(t, err)
	assert.False(t, ok, "short responses are not a success")
}

func TestClientTestWrite(t *testing.T) {
	ch := &stubChannel{}
	ch.On("Exchange", mock.Anything, mock.Anything).
		Return([]byte{0x00, 0x10, 0x00, 0x00, 0x00}, nil).Once()

	ok, err := NewClient(ch, 0).TestWrite(context.Background(), 0x1000, 0, []byte{0})
	require.NoError(t, err)
	assert.True(t, ok)
}

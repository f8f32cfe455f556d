package realtime

import (
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipe(t *testing.T) (server, client *Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return &Conn{conn: a}, &Conn{conn: b}
}

func TestComputeAcceptKey(t *testing.T) {
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", computeAcceptKey("dGhlIHNhbXBsZSBub25jZQ=="))
}

func TestHubPublishReachesWorkspaceSubscribers(t *testing.T) {
	hub := NewHub()
	server, client := pipe(t)
	other, otherClient := pipe(t)
	hub.Register("ws-1", server)
	hub.Register("ws-2", other)
	assert.Equal(t, 1, hub.Subscribers("ws-1"))

	go hub.Publish("ws-1", "message", map[string]string{"body": "hello"})

	var ev struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, client.ReadJSON(&ev))
	assert.Equal(t, "message", ev.Type)
	assert.Equal(t, "hello", ev.Data["body"])

	go hub.Unregister("ws-2", other)
	_, err := otherClient.readFrame()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 0, hub.Subscribers("ws-2"))
	assert.Equal(t, 1, hub.Subscribers("ws-1"))
}

func TestUnregisterClosesOnce(t *testing.T) {
	hub := NewHub()
	server, client := pipe(t)
	hub.Register("ws-1", server)

	go hub.Unregister("ws-1", server)
	_, err := client.readFrame()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.Subscribers("ws-1"))
	assert.NoError(t, server.Close())
	assert.ErrorIs(t, server.WriteJSON("late"), net.ErrClosed)
}

func TestReadFrameRejectsOversizedPayload(t *testing.T) {
	server, client := pipe(t)
	header := []byte{0x80 | opText, 127}
	header = binary.BigEndian.AppendUint64(header, maxFrameSize+1)
	go func() { _, _ = client.conn.Write(header) }()

	_, err := server.readFrame()
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadJSONUnmasksClientFrames(t *testing.T) {
	server, client := pipe(t)
	payload := []byte(`{"type":"ping"}`)
	mask := [4]byte{1, 2, 3, 4}
	frame := []byte{0x80 | opText, 0x80 | byte(len(payload))}
	frame = append(frame, mask[:]...)
	for i, b := range payload {
		frame = append(frame, b^mask[i%4])
	}
	go func() { _, _ = client.conn.Write(frame) }()

	var got map[string]string
	require.NoError(t, server.ReadJSON(&got))
	assert.Equal(t, "ping", got["type"])
}

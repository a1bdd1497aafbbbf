package transport

import (
	"io"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittodir/internal/protocol/ber"
)

func pipePair(t *testing.T) (*Framer, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return NewFramer(client, 0), server
}

func TestReadPDUWholeFrame(t *testing.T) {
	framer, server := pipePair(t)

	pdu := ber.NewSequence(ber.NewInteger(1), ber.NewString("cn=admin")).Encode()
	go func() {
		server.Write(pdu)
	}()

	got, err := framer.ReadPDU()
	require.NoError(t, err)
	assert.Equal(t, pdu, got)
}

func TestReadPDUReassemblesPartialWrites(t *testing.T) {
	framer, server := pipePair(t)

	pdu := ber.NewSequence(ber.NewInteger(2), ber.NewString("ou=People,dc=example,dc=org")).Encode()
	go func() {
		// Dribble the PDU one byte at a time.
		for _, b := range pdu {
			server.Write([]byte{b})
		}
	}()

	got, err := framer.ReadPDU()
	require.NoError(t, err)
	assert.Equal(t, pdu, got)
}

func TestReadPDUSplitsCoalescedFrames(t *testing.T) {
	framer, server := pipePair(t)

	first := ber.NewSequence(ber.NewInteger(1)).Encode()
	second := ber.NewSequence(ber.NewInteger(2)).Encode()
	go func() {
		joined := append(append([]byte{}, first...), second...)
		server.Write(joined)
	}()

	got, err := framer.ReadPDU()
	require.NoError(t, err)
	assert.Equal(t, first, got)

	got, err = framer.ReadPDU()
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestReadPDUEOF(t *testing.T) {
	framer, server := pipePair(t)
	server.Close()

	_, err := framer.ReadPDU()
	assert.Equal(t, io.EOF, err)
}

func TestReadPDUTruncatedBody(t *testing.T) {
	framer, server := pipePair(t)

	pdu := ber.NewSequence(ber.NewInteger(1), ber.NewString("abc")).Encode()
	go func() {
		server.Write(pdu[:len(pdu)-2])
		server.Close()
	}()

	_, err := framer.ReadPDU()
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadPDUSizeLimit(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	framer := NewFramer(client, 16)

	big := ber.NewOctetString(make([]byte, 64)).Encode()
	go func() {
		server.Write(big)
	}()

	_, err := framer.ReadPDU()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum")
}

func TestWritePDUSerialized(t *testing.T) {
	framer, server := pipePair(t)

	const writers = 8
	pdu := ber.NewSequence(ber.NewInteger(42), ber.NewString("payload")).Encode()

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			framer.WritePDU(pdu)
		}()
	}

	// Every frame read off the wire must be a whole, valid PDU.
	peer := NewFramer(server, 0)
	for i := 0; i < writers; i++ {
		got, err := peer.ReadPDU()
		require.NoError(t, err)
		assert.Equal(t, pdu, got)
	}
	wg.Wait()
}

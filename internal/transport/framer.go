// Package transport frames LDAP PDUs over a full-duplex byte stream.
//
// A PDU on the wire is one BER element (the LDAPMessage SEQUENCE). The
// framer peeks the outermost tag and length octets to size the read, buffers
// partial reads, and guarantees outbound PDUs are written without
// interleaving. TLS is layered by swapping the underlying net.Conn in place;
// the connection driver quiesces both directions before asking for the swap.
package transport

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/marmos91/dittodir/internal/protocol/ber"
)

// DefaultMaxPDUSize is the inbound PDU size limit. Large enough for bulky
// search entries, small enough to stop a corrupt length octet from
// allocating gigabytes.
const DefaultMaxPDUSize = 8 << 20 // 8MB

// maxHeaderLen bounds the identifier+length octets of a sane LDAP PDU.
const maxHeaderLen = 16

// Framer splits an inbound byte stream into whole PDUs and writes outbound
// PDUs atomically. Reads and writes may proceed concurrently; writes are
// serialized against each other.
type Framer struct {
	wmu sync.Mutex

	// cmu guards conn/br replacement during a TLS upgrade.
	cmu  sync.RWMutex
	conn net.Conn
	br   *bufio.Reader

	maxPDU int
}

// NewFramer wraps conn. maxPDU bounds inbound PDU size; zero selects
// DefaultMaxPDUSize.
func NewFramer(conn net.Conn, maxPDU int) *Framer {
	if maxPDU <= 0 {
		maxPDU = DefaultMaxPDUSize
	}
	return &Framer{
		conn:   conn,
		br:     bufio.NewReader(conn),
		maxPDU: maxPDU,
	}
}

// ReadPDU reads exactly one PDU and returns its full encoding (header plus
// contents). EOF is returned unwrapped so the driver can tell an orderly
// close from a protocol failure.
func (f *Framer) ReadPDU() ([]byte, error) {
	f.cmu.RLock()
	br := f.br
	f.cmu.RUnlock()

	// Accumulate header octets until the tag and length parse.
	hdr := make([]byte, 0, maxHeaderLen)
	var parsed ber.Header
	for {
		b, err := br.ReadByte()
		if err != nil {
			if len(hdr) == 0 && err == io.EOF {
				return nil, io.EOF
			}
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		hdr = append(hdr, b)

		parsed, err = ber.ParseHeader(hdr)
		if err == nil {
			break
		}
		if err == ber.ErrTruncated {
			if len(hdr) >= maxHeaderLen {
				return nil, fmt.Errorf("pdu header exceeds %d octets", maxHeaderLen)
			}
			continue
		}
		return nil, fmt.Errorf("parse pdu header: %w", err)
	}

	if parsed.TotalLen() > f.maxPDU {
		return nil, fmt.Errorf("pdu size %d exceeds maximum %d", parsed.TotalLen(), f.maxPDU)
	}

	pdu := make([]byte, parsed.TotalLen())
	copy(pdu, hdr)
	if _, err := io.ReadFull(br, pdu[len(hdr):]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read pdu body: %w", err)
	}
	return pdu, nil
}

// WritePDU writes one encoded PDU. The write mutex keeps concurrent PDUs
// from interleaving on the wire.
func (f *Framer) WritePDU(pdu []byte) error {
	f.wmu.Lock()
	defer f.wmu.Unlock()

	f.cmu.RLock()
	conn := f.conn
	f.cmu.RUnlock()

	if _, err := conn.Write(pdu); err != nil {
		return fmt.Errorf("write pdu: %w", err)
	}
	return nil
}

// Upgrade hands the underlying stream to fn (typically a TLS client
// handshake) and installs the returned stream. The caller must guarantee no
// concurrent ReadPDU or WritePDU is in flight; buffered but unconsumed
// inbound bytes are a protocol violation and rejected.
func (f *Framer) Upgrade(fn func(net.Conn) (net.Conn, error)) error {
	f.wmu.Lock()
	defer f.wmu.Unlock()
	f.cmu.Lock()
	defer f.cmu.Unlock()

	if n := f.br.Buffered(); n > 0 {
		return fmt.Errorf("cannot upgrade stream: %d unconsumed inbound bytes", n)
	}

	upgraded, err := fn(f.conn)
	if err != nil {
		return err
	}
	f.conn = upgraded
	f.br = bufio.NewReader(upgraded)
	return nil
}

// CloseWrite shuts down the write half when the stream supports it (TCP,
// UDS). Used by Unbind to signal the server while draining the reader.
func (f *Framer) CloseWrite() error {
	f.cmu.RLock()
	defer f.cmu.RUnlock()

	type closeWriter interface{ CloseWrite() error }
	if cw, ok := f.conn.(closeWriter); ok {
		return cw.CloseWrite()
	}
	return nil
}

// Close closes the underlying stream. Safe to call more than once.
func (f *Framer) Close() error {
	f.cmu.RLock()
	defer f.cmu.RUnlock()
	return f.conn.Close()
}

// RemoteAddr reports the peer address for logging.
func (f *Framer) RemoteAddr() net.Addr {
	f.cmu.RLock()
	defer f.cmu.RUnlock()
	return f.conn.RemoteAddr()
}

// Package ldap is an asynchronous LDAPv3 client. A single connection
// multiplexes any number of concurrent operations over one byte stream: the
// driver allocates message IDs, writes request PDUs, and routes each inbound
// PDU to the waiter registered for its message ID. Search responses stream
// through a bounded channel; every other operation completes with a single
// typed result.
package ldap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/dittodir/internal/logger"
	"github.com/marmos91/dittodir/internal/metrics"
	"github.com/marmos91/dittodir/internal/protocol/ber"
	"github.com/marmos91/dittodir/internal/transport"
)

// maxOutstanding bounds the waiter registry. Submissions beyond this fail
// with ErrTooManyOutstanding rather than queueing unbounded state.
const maxOutstanding = 1024

// unbindDrainTimeout bounds how long Unbind waits for the server to close
// its half after we close ours.
const unbindDrainTimeout = 5 * time.Second

// Conn is a caller-visible handle on one LDAP connection. Handles are cheap
// to copy: WithControls and WithTimeout return derived views sharing the
// same underlying driver, so a Conn may be used from any number of
// goroutines.
type Conn struct {
	d *driver

	// Per-view request modifiers.
	reqControls []Control
	reqTimeout  time.Duration
}

// WithControls returns a view that attaches the given controls to each
// subsequent operation issued through it.
func (c *Conn) WithControls(controls ...Control) *Conn {
	view := *c
	view.reqControls = controls
	return &view
}

// WithTimeout returns a view whose operations carry the given per-operation
// deadline. On expiry the driver abandons the operation server-side and the
// caller observes ErrTimeout.
func (c *Conn) WithTimeout(d time.Duration) *Conn {
	view := *c
	view.reqTimeout = d
	return &view
}

// Unsolicited returns the channel carrying unsolicited notifications
// (message ID 0, RFC 4511 4.4), such as the Notice of Disconnection. The
// channel is buffered; notifications beyond the buffer are logged and
// dropped rather than stalling the driver.
func (c *Conn) Unsolicited() <-chan UnsolicitedNotification {
	return c.d.unsolicited
}

// UnsolicitedNotification is a server-initiated extended response not tied
// to any request.
type UnsolicitedNotification struct {
	ResponseName  string
	ResponseValue []byte
	Result        *Result
}

// NoticeOfDisconnectionOID identifies the unsolicited notification a server
// sends before terminating a connection (RFC 4511 4.4.1).
const NoticeOfDisconnectionOID = "1.3.6.1.4.1.1466.20036"

// ============================================================================
// Dialing
// ============================================================================

// Dial connects over the given network ("tcp", "unix") and address and
// starts the driver. The stream is plaintext; use StartTLS or DialURL with
// an ldaps URL for TLS.
func Dial(network, addr string, settings *Settings) (*Conn, error) {
	s := resolveSettings(settings)
	if err := s.Validate(); err != nil {
		return nil, err
	}

	nc, err := dialStream(s, network, addr)
	if err != nil {
		return nil, &Error{Kind: KindIO, Err: err}
	}
	return NewConn(nc, &s), nil
}

// DialURL connects per an RFC 4516 URL: ldap:// (plain, optionally upgraded
// when settings.StartTLS is set), ldaps:// (implicit TLS) and ldapi://
// (Unix domain socket).
func DialURL(rawURL string, settings *Settings) (*Conn, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	s := resolveSettings(settings)
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var nc net.Conn
	switch u.Scheme {
	case "ldapi":
		nc, err = dialStream(s, "unix", u.SocketPath)
	default:
		nc, err = dialStream(s, "tcp", u.Addr())
	}
	if err != nil {
		return nil, &Error{Kind: KindIO, Err: err}
	}

	if u.UseTLS() {
		tlsConn := tls.Client(nc, s.tlsConfig(u.Host))
		if err := tlsConn.Handshake(); err != nil {
			nc.Close()
			return nil, &Error{Kind: KindTLS, Err: err}
		}
		nc = tlsConn
	}

	conn := NewConn(nc, &s)
	if s.StartTLS && u.Scheme == "ldap" {
		if err := conn.StartTLS(s.tlsConfig(u.Host)); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

func resolveSettings(settings *Settings) Settings {
	if settings == nil {
		return Settings{}.withDefaults()
	}
	return settings.withDefaults()
}

func dialStream(s Settings, network, addr string) (net.Conn, error) {
	if s.DialFunc != nil {
		return s.DialFunc(network, addr)
	}
	dialer := net.Dialer{Timeout: s.ConnTimeout, Resolver: s.Resolver}
	return dialer.Dial(network, addr)
}

// NewConn wraps an established stream in a driver and starts its reader and
// actor goroutines. Useful for tests and custom transports; most callers
// use Dial or DialURL.
func NewConn(nc net.Conn, settings *Settings) *Conn {
	s := resolveSettings(settings)

	d := &driver{
		settings:    s,
		framer:      transport.NewFramer(nc, s.MaxPDUSize),
		id:          uuid.NewString(),
		nextID:      1,
		waiters:     make(map[uint32]*waiter),
		submitCh:    make(chan *submission),
		abandonCh:   make(chan uint32),
		expireCh:    make(chan uint32),
		fatalCh:     make(chan error, 1),
		unbindCh:    make(chan chan error),
		inboundCh:   make(chan *envelope),
		resumeCh:    make(chan struct{}),
		closed:      make(chan struct{}),
		readerDone:  make(chan struct{}),
		actorDone:   make(chan struct{}),
		unsolicited: make(chan UnsolicitedNotification, 4),
	}
	d.log = logger.With(logger.KeyConnID, d.id)
	if s.MetricsRegisterer != nil {
		d.metrics = metrics.New(s.MetricsRegisterer)
	}

	go d.readLoop()
	go d.run()

	d.log.Debug("connection started", logger.KeyServerAddr, remoteAddr(nc))
	return &Conn{d: d}
}

func remoteAddr(nc net.Conn) string {
	if addr := nc.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// ============================================================================
// Driver
// ============================================================================

// driver owns the framed transport, the message-ID counter and the waiter
// registry. The counter and the registry are touched only by the actor
// goroutine (run); the framer is written by the actor, read by the reader
// goroutine and upgraded by StartTLS while the reader is parked. The outside
// world communicates through channels, which keeps cancellation composable
// and the registry free of locks.
type driver struct {
	settings Settings
	framer   *transport.Framer
	log      interface {
		Debug(msg string, args ...any)
		Warn(msg string, args ...any)
	}
	id      string
	metrics *metrics.Metrics

	submitCh  chan *submission
	abandonCh chan uint32
	expireCh  chan uint32
	fatalCh   chan error
	unbindCh  chan chan error
	inboundCh chan *envelope

	closed     chan struct{}
	closeOnce  sync.Once
	readerDone chan struct{}
	actorDone  chan struct{}

	unsolicited chan UnsolicitedNotification

	// StartTLS reader pause: when a delivered PDU's message ID equals
	// pauseID, the reader parks on resumeCh so the handshake can take
	// over the raw stream.
	pauseID  atomic.Uint32
	resumeCh chan struct{}

	// Actor-owned state below; never touched outside run().
	nextID     uint32
	waiters    map[uint32]*waiter
	gate       string // "" or the op holding the exclusive gate (bind, starttls)
	closing    bool
	readerErr  error
	readerErrM sync.Mutex
}

// submission is one operation handed to the actor.
type submission struct {
	opName   string
	op       ber.Element
	controls []Control
	timeout  time.Duration

	// exclusive submissions (bind, StartTLS) close the gate: concurrent
	// submissions fail until the response arrives.
	exclusive bool

	// pause asks the reader to park after delivering this submission's
	// response PDU (StartTLS).
	pause bool

	// Exactly one of resp (single response) or stream (search) is set.
	resp   chan *opOutcome
	stream *SearchStream

	idCh chan submitResult
}

type submitResult struct {
	id  uint32
	err error
}

type opOutcome struct {
	env *envelope
	err error
}

// waiter is the per-message-ID registry entry.
type waiter struct {
	id        uint32
	opName    string
	exclusive bool
	resp      chan *opOutcome
	stream    *SearchStream
	timer     *time.Timer
	start     time.Time
}

func (d *driver) run() {
	defer close(d.actorDone)
	for {
		select {
		case sub := <-d.submitCh:
			if !d.handleSubmit(sub) {
				return
			}
		case env, ok := <-d.inboundCh:
			if !ok {
				d.teardown(d.takeReaderErr())
				return
			}
			d.handleInbound(env)
		case id := <-d.abandonCh:
			d.handleAbandon(id, ErrAborted)
		case id := <-d.expireCh:
			d.handleAbandon(id, ErrTimeout)
		case err := <-d.fatalCh:
			d.teardown(err)
			return
		case reply := <-d.unbindCh:
			d.handleUnbind(reply)
			return
		}
	}
}

// handleSubmit allocates a message ID, writes the PDU and registers the
// waiter. Returns false when a write failure tears the connection down.
func (d *driver) handleSubmit(sub *submission) bool {
	if d.closing {
		sub.idCh <- submitResult{err: ErrConnClosed}
		return true
	}
	if d.gate != "" {
		if d.gate == "bind" {
			sub.idCh <- submitResult{err: ErrBindInProgress}
		} else {
			sub.idCh <- submitResult{err: protocolErr(sub.opName, "%s in progress", d.gate)}
		}
		return true
	}
	if sub.exclusive && len(d.waiters) > 0 {
		sub.idCh <- submitResult{err: protocolErr(sub.opName, "%d operations outstanding", len(d.waiters))}
		return true
	}
	if len(d.waiters) >= maxOutstanding || d.nextID > maxMessageID {
		sub.idCh <- submitResult{err: ErrTooManyOutstanding}
		return true
	}

	id := d.nextID
	d.nextID++

	if sub.pause {
		d.pauseID.Store(id)
	}

	pdu := encodeMessage(id, sub.op, sub.controls)
	if err := d.framer.WritePDU(pdu); err != nil {
		if sub.pause {
			d.pauseID.Store(0)
		}
		sub.idCh <- submitResult{err: &Error{Kind: KindIO, Op: sub.opName, Err: err}}
		d.teardown(err)
		return false
	}
	d.countWrite(sub.opName, len(pdu))

	w := &waiter{
		id:        id,
		opName:    sub.opName,
		exclusive: sub.exclusive,
		resp:      sub.resp,
		stream:    sub.stream,
		start:     time.Now(),
	}
	if sub.stream != nil {
		sub.stream.id = id
	}
	if sub.timeout > 0 {
		w.timer = time.AfterFunc(sub.timeout, func() {
			select {
			case d.expireCh <- id:
			case <-d.closed:
			}
		})
	}
	d.waiters[id] = w
	if sub.exclusive {
		d.gate = sub.opName
	}
	if d.metrics != nil {
		d.metrics.OperationsInFlight.Inc()
	}

	d.log.Debug("request submitted", logger.KeyOp, sub.opName, logger.KeyMessageID, id)
	sub.idCh <- submitResult{id: id}
	return true
}

// handleInbound routes one decoded PDU to its waiter.
func (d *driver) handleInbound(env *envelope) {
	opName := opNames[env.opTag()]
	d.countRead(opName)

	if env.MessageID == 0 {
		d.handleUnsolicited(env)
		return
	}

	w, ok := d.waiters[env.MessageID]
	if !ok {
		// Reference behavior: late responses for abandoned or unknown
		// IDs are logged and dropped, never fatal.
		d.log.Warn("response for unknown message id",
			logger.KeyMessageID, env.MessageID, logger.KeyOp, opName)
		return
	}

	if w.stream != nil {
		d.handleSearchInbound(w, env)
		return
	}

	d.completeWaiter(w, &opOutcome{env: env})
}

// handleSearchInbound feeds one search PDU into the stream state machine.
func (d *driver) handleSearchInbound(w *waiter, env *envelope) {
	switch env.opTag() {
	case appSearchResultEntry:
		entry, err := decodeEntry(env.Op)
		if err != nil {
			d.failSearch(w, err)
			return
		}
		d.pushSearchItem(w, SearchItem{Entry: entry})

	case appSearchResultReference:
		d.pushSearchItem(w, SearchItem{Referrals: decodeReferral(env.Op)})

	case appSearchResultDone:
		result, err := decodeResult(env.Op)
		if err != nil {
			d.failSearch(w, err)
			return
		}
		result.Controls = env.Controls
		d.removeWaiter(w, result.Code)
		w.stream.finish(result, nil)

	default:
		d.failSearch(w, protocolErr("search", "unexpected response tag %s", env.Op.Tag))
	}
}

// pushSearchItem delivers an item, blocking when the stream's queue is
// full: backpressure propagates to the socket rather than shedding entries.
// An abandoned stream unblocks the push immediately.
func (d *driver) pushSearchItem(w *waiter, item SearchItem) {
	select {
	case w.stream.items <- item:
	case <-w.stream.aborted:
		// Consumer is gone; the abandon command is already on its way.
	case <-d.closed:
	}
}

func (d *driver) failSearch(w *waiter, err error) {
	d.removeWaiter(w, 0)
	w.stream.finish(nil, err)
}

// completeWaiter delivers a single-shot outcome and unregisters.
func (d *driver) completeWaiter(w *waiter, out *opOutcome) {
	rc := uint32(0)
	if out.env != nil {
		if res, err := decodeResult(out.env.Op); err == nil {
			rc = res.Code
		}
	}
	d.removeWaiter(w, rc)
	w.resp <- out
}

// removeWaiter unregisters a waiter and updates gate, timer and metrics.
func (d *driver) removeWaiter(w *waiter, rc uint32) {
	if w.timer != nil {
		w.timer.Stop()
	}
	delete(d.waiters, w.id)
	if w.exclusive {
		d.gate = ""
	}
	if d.metrics != nil {
		d.metrics.OperationsInFlight.Dec()
		d.metrics.OperationResults.WithLabelValues(w.opName, fmt.Sprint(rc)).Inc()
		d.metrics.OperationDuration.WithLabelValues(w.opName).Observe(time.Since(w.start).Seconds())
	}
}

// handleAbandon cancels a waiter: informs the server, then delivers the
// terminal error (ErrAborted for explicit abandons, ErrTimeout for deadline
// expiry).
func (d *driver) handleAbandon(id uint32, terminal *Error) {
	w, ok := d.waiters[id]
	if !ok {
		return
	}

	d.writeAbandon(id)
	d.removeWaiter(w, 0)
	if w.stream != nil {
		w.stream.finish(nil, terminal)
	} else {
		w.resp <- &opOutcome{err: terminal}
	}
	d.log.Debug("operation abandoned",
		logger.KeyOp, w.opName, logger.KeyMessageID, id, logger.KeyError, terminal.Kind.String())
}

// writeAbandon sends an AbandonRequest for the target ID. Abandon itself
// has no response, so no waiter is registered for it.
func (d *driver) writeAbandon(target uint32) {
	if d.nextID > maxMessageID {
		return
	}
	id := d.nextID
	d.nextID++

	op := ber.Primitive(ber.Application(appAbandonRequest, false), ber.IntContents(int64(target)))
	pdu := encodeMessage(id, op, nil)
	if err := d.framer.WritePDU(pdu); err != nil {
		d.log.Warn("abandon write failed", logger.KeyMessageID, target, logger.KeyError, err.Error())
		return
	}
	d.countWrite("abandon", len(pdu))
}

// handleUnsolicited routes a message-ID-0 extended response.
func (d *driver) handleUnsolicited(env *envelope) {
	if env.opTag() != appExtendedResponse {
		d.log.Warn("unsolicited message with unexpected tag", logger.KeyOp, env.Op.Tag.String())
		return
	}
	resp, err := decodeExtendedResponse(env.Op, env.Controls)
	if err != nil {
		d.log.Warn("undecodable unsolicited notification", logger.KeyError, err.Error())
		return
	}

	note := UnsolicitedNotification{
		ResponseName:  resp.Name,
		ResponseValue: resp.Value,
		Result:        &resp.Result,
	}
	if note.ResponseName == NoticeOfDisconnectionOID {
		d.log.Warn("server sent notice of disconnection",
			logger.KeyResultCode, note.Result.Code, logger.KeyDiagnostic, note.Result.DiagnosticMessage)
	}
	select {
	case d.unsolicited <- note:
	default:
		d.log.Warn("unsolicited notification dropped, channel full", logger.KeyOID, note.ResponseName)
	}
}

// handleUnbind writes the UnbindRequest, stops intake, closes the write
// half, waits briefly for the server to drain, then closes the stream.
// Closing both halves is a deliberate departure from older clients that
// left the socket dangling after Unbind.
func (d *driver) handleUnbind(reply chan error) {
	d.closing = true

	var writeErr error
	if d.nextID <= maxMessageID {
		id := d.nextID
		d.nextID++
		op := ber.Primitive(ber.Application(appUnbindRequest, false), nil)
		pdu := encodeMessage(id, op, nil)
		writeErr = d.framer.WritePDU(pdu)
		if writeErr == nil {
			d.countWrite("unbind", len(pdu))
		}
	}

	d.failAllWaiters(ErrAborted)
	d.markClosed()
	d.framer.CloseWrite()

	select {
	case <-d.readerDone:
	case <-time.After(unbindDrainTimeout):
	}
	d.framer.Close()

	d.log.Debug("connection unbound")
	reply <- writeErr
}

// teardown fails everything after a transport-level error.
func (d *driver) teardown(cause error) {
	ioErr := &Error{Kind: KindIO, Err: cause}
	if cause == nil {
		ioErr.Err = ErrConnClosed
	}
	d.closing = true
	d.failAllWaiters(ioErr)
	d.markClosed()
	d.framer.Close()
	d.drainSubmissions()

	d.log.Debug("connection torn down", logger.KeyError, ioErr.Error())
}

func (d *driver) failAllWaiters(err *Error) {
	for _, w := range d.waiters {
		if w.timer != nil {
			w.timer.Stop()
		}
		if w.stream != nil {
			w.stream.finish(nil, err)
		} else {
			w.resp <- &opOutcome{err: err}
		}
	}
	d.waiters = make(map[uint32]*waiter)
	d.gate = ""
	if d.metrics != nil {
		d.metrics.OperationsInFlight.Set(0)
	}
}

// drainSubmissions rejects submissions that were queued while the actor was
// exiting.
func (d *driver) drainSubmissions() {
	for {
		select {
		case sub := <-d.submitCh:
			sub.idCh <- submitResult{err: ErrConnClosed}
		default:
			return
		}
	}
}

func (d *driver) markClosed() {
	d.closeOnce.Do(func() { close(d.closed) })
}

func (d *driver) setReaderErr(err error) {
	d.readerErrM.Lock()
	d.readerErr = err
	d.readerErrM.Unlock()
}

func (d *driver) takeReaderErr() error {
	d.readerErrM.Lock()
	defer d.readerErrM.Unlock()
	return d.readerErr
}

func (d *driver) countRead(op string) {
	if d.metrics == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	d.metrics.PDUsRead.WithLabelValues(op).Inc()
}

func (d *driver) countWrite(op string, n int) {
	if d.metrics == nil {
		return
	}
	d.metrics.PDUsWritten.WithLabelValues(op).Inc()
	d.metrics.BytesWritten.Add(float64(n))
}

// ============================================================================
// Reader
// ============================================================================

// readLoop pulls PDUs off the transport and hands them to the actor. On EOF
// or transport error the inbound channel closes, which makes the actor fail
// all waiters. After delivering the PDU a StartTLS exchange is waiting on,
// the loop parks until the handshake has swapped the stream underneath.
func (d *driver) readLoop() {
	defer close(d.readerDone)
	defer close(d.inboundCh)
	for {
		pdu, err := d.framer.ReadPDU()
		if err != nil {
			d.setReaderErr(err)
			return
		}
		if d.metrics != nil {
			d.metrics.BytesRead.Add(float64(len(pdu)))
		}

		env, err := parseEnvelope(pdu)
		if err != nil {
			// The message ID cannot be trusted if the envelope does
			// not parse, so this is fatal for the connection.
			d.setReaderErr(err)
			return
		}

		select {
		case d.inboundCh <- env:
		case <-d.closed:
			return
		}

		if id := d.pauseID.Load(); id != 0 && id == env.MessageID {
			select {
			case <-d.resumeCh:
				// The pause is cleared here, not by the resumer:
				// clearing it earlier would let this check race past
				// the park and strand the resume send.
				d.pauseID.Store(0)
			case <-d.closed:
				return
			}
		}
	}
}

// ============================================================================
// Submission helpers
// ============================================================================

// submit hands a submission to the actor and waits for ID allocation.
func (d *driver) submit(ctx context.Context, sub *submission) (uint32, error) {
	select {
	case d.submitCh <- sub:
	case <-d.closed:
		return 0, &Error{Kind: KindIO, Op: sub.opName, Err: ErrConnClosed}
	case <-ctx.Done():
		return 0, &Error{Kind: KindAborted, Op: sub.opName, Err: ctx.Err()}
	}

	select {
	case res := <-sub.idCh:
		if res.err != nil {
			return 0, res.err
		}
		return res.id, nil
	case <-d.closed:
		// The actor may have replied just before exiting.
		select {
		case res := <-sub.idCh:
			if res.err != nil {
				return 0, res.err
			}
			return res.id, nil
		default:
			return 0, &Error{Kind: KindIO, Op: sub.opName, Err: ErrConnClosed}
		}
	}
}

// abandonID asks the actor to abandon a message ID. Best-effort once the
// connection is closing.
func (d *driver) abandonID(id uint32) {
	select {
	case d.abandonCh <- id:
	case <-d.closed:
	}
}

// do runs a single-response operation to completion.
func (c *Conn) do(ctx context.Context, opName string, op ber.Element, controls []Control) (*envelope, error) {
	return c.doSubmission(ctx, &submission{
		opName:   opName,
		op:       op,
		controls: c.mergeControls(controls),
		timeout:  c.reqTimeout,
		resp:     make(chan *opOutcome, 1),
		idCh:     make(chan submitResult, 1),
	})
}

func (c *Conn) doSubmission(ctx context.Context, sub *submission) (*envelope, error) {
	if sub.timeout == 0 {
		sub.timeout = c.d.settings.Timeout
	}

	id, err := c.d.submit(ctx, sub)
	if err != nil {
		return nil, err
	}

	select {
	case out := <-sub.resp:
		return out.env, out.err
	case <-ctx.Done():
		// Cancel the wait and inform the server.
		c.d.abandonID(id)
		// A response that arrived before the abandon is still returned;
		// any other outcome is reported as the context error.
		select {
		case out := <-sub.resp:
			if out.err != nil {
				return nil, &Error{Kind: KindAborted, Op: sub.opName, Err: ctx.Err()}
			}
			return out.env, nil
		default:
			return nil, &Error{Kind: KindAborted, Op: sub.opName, Err: ctx.Err()}
		}
	}
}

func (c *Conn) mergeControls(controls []Control) []Control {
	if len(c.reqControls) == 0 {
		return controls
	}
	merged := make([]Control, 0, len(c.reqControls)+len(controls))
	merged = append(merged, c.reqControls...)
	merged = append(merged, controls...)
	return merged
}

// ============================================================================
// Connection lifecycle
// ============================================================================

// Abandon instructs the server to stop processing the operation with the
// given message ID. The abandoned operation's caller observes ErrAborted.
func (c *Conn) Abandon(id uint32) error {
	select {
	case c.d.abandonCh <- id:
		return nil
	case <-c.d.closed:
		return ErrConnClosed
	}
}

// Unbind sends the UnbindRequest, stops accepting submissions, and closes
// the connection after the server drains. Outstanding operations fail with
// ErrAborted.
func (c *Conn) Unbind() error {
	reply := make(chan error, 1)
	select {
	case c.d.unbindCh <- reply:
		return <-reply
	case <-c.d.closed:
		return ErrConnClosed
	}
}

// Close unbinds if the connection is still up. Always safe to defer.
func (c *Conn) Close() error {
	err := c.Unbind()
	if err == ErrConnClosed {
		return nil
	}
	return err
}

// ConnID returns the client-generated UUID identifying this connection in
// logs.
func (c *Conn) ConnID() string { return c.d.id }

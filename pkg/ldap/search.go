package ldap

import (
	"context"
	"sync"
	"unicode/utf8"

	"github.com/marmos91/dittodir/internal/protocol/ber"
)

// Scope selects how much of the tree a search covers (RFC 4511 4.5.1.2).
type Scope int

const (
	ScopeBaseObject   Scope = 0
	ScopeSingleLevel  Scope = 1
	ScopeWholeSubtree Scope = 2
)

func (s Scope) String() string {
	switch s {
	case ScopeBaseObject:
		return "base"
	case ScopeSingleLevel:
		return "one"
	case ScopeWholeSubtree:
		return "sub"
	default:
		return "unknown"
	}
}

// DerefAliases selects alias dereferencing behavior (RFC 4511 4.5.1.3).
type DerefAliases int

const (
	NeverDerefAliases   DerefAliases = 0
	DerefInSearching    DerefAliases = 1
	DerefFindingBaseObj DerefAliases = 2
	DerefAlways         DerefAliases = 3
)

// SearchRequest describes one search operation.
type SearchRequest struct {
	BaseDN       string
	Scope        Scope
	DerefAliases DerefAliases
	SizeLimit    int
	TimeLimit    int
	TypesOnly    bool
	Filter       Filter
	Attributes   []string
	Controls     []Control
}

// NewSearchRequest compiles the filter string and assembles a request.
func NewSearchRequest(baseDN string, scope Scope, deref DerefAliases, sizeLimit, timeLimit int, typesOnly bool, filter string, attributes ...string) (*SearchRequest, error) {
	compiled, err := CompileFilter(filter)
	if err != nil {
		return nil, err
	}
	return &SearchRequest{
		BaseDN:       baseDN,
		Scope:        scope,
		DerefAliases: deref,
		SizeLimit:    sizeLimit,
		TimeLimit:    timeLimit,
		TypesOnly:    typesOnly,
		Filter:       compiled,
		Attributes:   attributes,
	}, nil
}

func (r *SearchRequest) encode() (ber.Element, error) {
	if r.Filter == nil {
		return ber.Element{}, protocolErr("search", "search request without filter")
	}
	attrs := make([]ber.Element, len(r.Attributes))
	for i, attr := range r.Attributes {
		attrs[i] = ber.NewString(attr)
	}
	return ber.Constructed(ber.Application(appSearchRequest, true),
		ber.NewString(r.BaseDN),
		ber.NewEnumerated(int64(r.Scope)),
		ber.NewEnumerated(int64(r.DerefAliases)),
		ber.NewInteger(int64(r.SizeLimit)),
		ber.NewInteger(int64(r.TimeLimit)),
		ber.NewBoolean(r.TypesOnly),
		r.Filter.encode(),
		ber.NewSequence(attrs...),
	), nil
}

// ============================================================================
// Entries
// ============================================================================

// EntryAttribute is one attribute of a search result entry. ByteValues
// always carries every value as raw bytes; Values carries only those values
// that are valid UTF-8. Callers reading text go through Values, callers
// reading binary data (certificates, GUIDs, photos) go through ByteValues —
// check both when an attribute may be either.
type EntryAttribute struct {
	Name       string
	Values     []string
	ByteValues [][]byte
}

// Entry is a single search result entry.
type Entry struct {
	DN         string
	Attributes []*EntryAttribute
}

// GetAttributeValues returns the UTF-8 values for the named attribute, or
// an empty list.
func (e *Entry) GetAttributeValues(name string) []string {
	for _, attr := range e.Attributes {
		if attr.Name == name {
			return attr.Values
		}
	}
	return nil
}

// GetAttributeValue returns the first UTF-8 value for the named attribute,
// or "".
func (e *Entry) GetAttributeValue(name string) string {
	values := e.GetAttributeValues(name)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// GetRawAttributeValues returns every value for the named attribute as raw
// bytes, or an empty list.
func (e *Entry) GetRawAttributeValues(name string) [][]byte {
	for _, attr := range e.Attributes {
		if attr.Name == name {
			return attr.ByteValues
		}
	}
	return nil
}

// decodeEntry decodes a SearchResultEntry op:
//
//	SearchResultEntry ::= [APPLICATION 4] SEQUENCE {
//	     objectName LDAPDN,
//	     attributes PartialAttributeList }
func decodeEntry(op ber.Element) (*Entry, error) {
	if len(op.Children) != 2 {
		return nil, protocolErr("search", "entry has %d children, want 2", len(op.Children))
	}
	entry := &Entry{DN: op.Children[0].Str()}

	for _, attrElem := range op.Children[1].Children {
		if len(attrElem.Children) != 2 {
			return nil, protocolErr("search", "partial attribute has %d children, want 2", len(attrElem.Children))
		}
		attr := &EntryAttribute{Name: attrElem.Children[0].Str()}
		for _, valElem := range attrElem.Children[1].Children {
			raw := valElem.Bytes()
			attr.ByteValues = append(attr.ByteValues, raw)
			if utf8.Valid(raw) {
				attr.Values = append(attr.Values, string(raw))
			}
		}
		entry.Attributes = append(entry.Attributes, attr)
	}
	return entry, nil
}

// decodeReferral decodes a SearchResultReference op into its URIs.
func decodeReferral(op ber.Element) []string {
	uris := make([]string, 0, len(op.Children))
	for _, child := range op.Children {
		uris = append(uris, child.Str())
	}
	return uris
}

// ============================================================================
// Streaming
// ============================================================================

// SearchItem is one element of a search stream: an entry or a referral
// bundle, never both.
type SearchItem struct {
	Entry     *Entry
	Referrals []string
}

// SearchStream is the caller's handle on a streaming search. Items arrive
// on Items() in server order; after the channel closes, Result() reports
// the trailing SearchResultDone (or the terminal error).
//
// Dropping a stream without draining it must go through Abandon, which
// tells the server to stop and unblocks the driver.
type SearchStream struct {
	driver *driver
	id     uint32

	items   chan SearchItem
	aborted chan struct{}
	done    chan struct{}

	abortOnce sync.Once

	mu     sync.Mutex
	result *Result
	err    error
}

// Items returns the stream channel. It closes after the terminal item
// (Done, Abandon, timeout or connection teardown).
func (s *SearchStream) Items() <-chan SearchItem { return s.items }

// Result blocks until the stream terminates, then returns the trailing
// LdapResult. A nil Result with non-nil error means the search ended
// without a Done PDU (abandoned, timed out, or the connection failed).
func (s *SearchStream) Result() (*Result, error) {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

// Abandon cancels the search server-side. Safe to call repeatedly and
// after termination.
func (s *SearchStream) Abandon() error {
	s.abortOnce.Do(func() { close(s.aborted) })
	select {
	case s.driver.abandonCh <- s.id:
		return nil
	case <-s.done:
		return nil
	case <-s.driver.closed:
		return ErrConnClosed
	}
}

// MessageID returns the search's message ID, usable with Conn.Abandon.
func (s *SearchStream) MessageID() uint32 { return s.id }

// finish records the terminal state and closes the stream. Called exactly
// once by the driver actor.
func (s *SearchStream) finish(result *Result, err error) {
	s.mu.Lock()
	s.result = result
	s.err = err
	s.mu.Unlock()
	close(s.items)
	close(s.done)
}

// SearchAsync submits a search and returns its stream. The context governs
// submission only; cancel a running search through Abandon or a per-op
// timeout.
func (c *Conn) SearchAsync(ctx context.Context, req *SearchRequest) (*SearchStream, error) {
	op, err := req.encode()
	if err != nil {
		return nil, err
	}

	stream := &SearchStream{
		driver:  c.d,
		items:   make(chan SearchItem, c.d.settings.SearchQueueDepth),
		aborted: make(chan struct{}),
		done:    make(chan struct{}),
	}
	sub := &submission{
		opName:   "search",
		op:       op,
		controls: c.mergeControls(req.Controls),
		timeout:  c.reqTimeout,
		stream:   stream,
		idCh:     make(chan submitResult, 1),
	}
	if sub.timeout == 0 {
		sub.timeout = c.d.settings.Timeout
	}

	// The actor stores the allocated message ID on the stream before
	// acknowledging the submission, so the ID is visible here through the
	// channel's happens-before edge.
	if _, err := c.d.submit(ctx, sub); err != nil {
		return nil, err
	}
	return stream, nil
}

// SearchResult is a fully-drained search.
type SearchResult struct {
	Entries   []*Entry
	Referrals []string
	Controls  []Control
	Result    *Result
}

// Search runs a search to completion and collects entries and referrals.
// Returns a KindResult error when the trailing Done carries a non-success
// code; collected entries are returned alongside the error.
func (c *Conn) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	stream, err := c.SearchAsync(ctx, req)
	if err != nil {
		return nil, err
	}

	sr := &SearchResult{}
	for {
		select {
		case item, ok := <-stream.Items():
			if !ok {
				result, err := stream.Result()
				if err != nil {
					return sr, err
				}
				sr.Result = result
				sr.Referrals = append(sr.Referrals, result.Referrals...)
				sr.Controls = result.Controls
				return sr, result.Success("search")
			}
			if item.Entry != nil {
				sr.Entries = append(sr.Entries, item.Entry)
			}
			sr.Referrals = append(sr.Referrals, item.Referrals...)
		case <-ctx.Done():
			stream.Abandon()
			// Drain so the driver is not left pushing into a dead
			// stream.
			for range stream.Items() {
			}
			return sr, &Error{Kind: KindAborted, Op: "search", Err: ctx.Err()}
		}
	}
}

// SearchWithPaging drives the paged-results control (RFC 2696): it reissues
// the search with the server's continuation cookie until the cookie comes
// back empty, merging pages into one result.
func (c *Conn) SearchWithPaging(ctx context.Context, req *SearchRequest, pageSize uint32) (*SearchResult, error) {
	merged := &SearchResult{}
	var cookie []byte

	baseControls := req.Controls
	for {
		paged := *req
		paged.Controls = append(append([]Control{}, baseControls...), PagedResultsControl(pageSize, cookie))

		page, err := c.Search(ctx, &paged)
		if err != nil {
			return merged, err
		}
		merged.Entries = append(merged.Entries, page.Entries...)
		merged.Referrals = append(merged.Referrals, page.Referrals...)
		merged.Result = page.Result

		ctrl := FindControl(page.Controls, ControlPagedResults)
		if ctrl == nil {
			// Server ignored the control; all results arrived in one
			// shot.
			return merged, nil
		}
		_, cookie, err = ParsePagedResults(ctrl)
		if err != nil {
			return merged, err
		}
		if len(cookie) == 0 {
			return merged, nil
		}
	}
}

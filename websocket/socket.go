package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vitalvas/lilya/mux"
)

// State is the state of one side of a WebSocket session.
type State int

// Session states. Transitions only move forward.
const (
	Connecting State = iota
	Connected
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	case Disconnected:
		return "DISCONNECTED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// StatusCode is a close code per RFC 6455, section 7.4.1.
type StatusCode = websocket.StatusCode

// Close codes used by this package.
const (
	StatusNormalClosure   = websocket.StatusNormalClosure
	StatusGoingAway       = websocket.StatusGoingAway
	StatusPolicyViolation = websocket.StatusPolicyViolation
	StatusInternalError   = websocket.StatusInternalError
	StatusAbnormalClosure = websocket.StatusAbnormalClosure
)

var (
	// ErrInvalidState is returned when a call is not allowed in the
	// current state of the session.
	ErrInvalidState = errors.New("websocket: invalid state")

	// ErrUnexpectedMessage is returned when a received message does not
	// have the requested type.
	ErrUnexpectedMessage = errors.New("websocket: unexpected message type")
)

// CloseError reports a close frame received from the client.
type CloseError struct {
	Code   StatusCode
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("websocket: closed with status %d", int(e.Code))
	}
	return fmt.Sprintf("websocket: closed with status %d: %s", int(e.Code), e.Reason)
}

// IsCloseError reports whether err is a CloseError with one of codes.
// Without codes any CloseError matches.
func IsCloseError(err error, codes ...StatusCode) bool {
	var closeErr *CloseError
	if !errors.As(err, &closeErr) {
		return false
	}
	if len(codes) == 0 {
		return true
	}
	for _, c := range codes {
		if closeErr.Code == c {
			return true
		}
	}
	return false
}

// Options configures the handshake.
type Options struct {
	// OriginPatterns lists host patterns accepted in the Origin header in
	// addition to the request host. Patterns use path.Match syntax.
	OriginPatterns []string

	// InsecureSkipVerify disables Origin verification.
	InsecureSkipVerify bool

	// Compression enables permessage-deflate (RFC 7692) without context
	// takeover.
	Compression bool

	// ReadLimit is the maximum size of a received message in bytes.
	// Zero keeps the library default of 32 KiB.
	ReadLimit int64
}

// Socket is one WebSocket session bound to the request that opened it.
type Socket struct {
	w    http.ResponseWriter
	r    *http.Request
	opts Options

	mu     sync.Mutex
	client State
	app    State
	conn   *websocket.Conn
}

// NewSocket returns a socket for the upgrade request r. Nothing is written
// to w until Accept or Close is called.
func NewSocket(w http.ResponseWriter, r *http.Request, opts Options) *Socket {
	return &Socket{w: w, r: r, opts: opts}
}

// Request returns the upgrade request.
func (s *Socket) Request() *http.Request {
	return s.r
}

// Context returns the context of the upgrade request.
func (s *Socket) Context() context.Context {
	return s.r.Context()
}

// Subprotocols returns the subprotocols offered by the client.
func (s *Socket) Subprotocols() []string {
	var out []string
	for _, v := range s.r.Header.Values("Sec-WebSocket-Protocol") {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Subprotocol returns the subprotocol selected by Accept.
func (s *Socket) Subprotocol() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ""
	}
	return s.conn.Subprotocol()
}

// ClientState returns the state of the client side.
func (s *Socket) ClientState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// ApplicationState returns the state of the application side.
func (s *Socket) ApplicationState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.app
}

func (s *Socket) stateError(op string) error {
	return fmt.Errorf("%w: %s with client %s and application %s", ErrInvalidState, op, s.client, s.app)
}

// Accept completes the handshake, selecting subprotocol when the client
// offered it. It is only allowed while the application is Connecting.
func (s *Socket) Accept(_ context.Context, subprotocol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.app != Connecting {
		return s.stateError("accept")
	}

	opts := &websocket.AcceptOptions{
		OriginPatterns:     s.opts.OriginPatterns,
		InsecureSkipVerify: s.opts.InsecureSkipVerify,
		CompressionMode:    websocket.CompressionDisabled,
	}
	if subprotocol != "" {
		opts.Subprotocols = []string{subprotocol}
	}
	if s.opts.Compression {
		opts.CompressionMode = websocket.CompressionNoContextTakeover
	}

	conn, err := websocket.Accept(s.w, s.r, opts)
	if err != nil {
		s.app, s.client = Disconnected, Disconnected
		return fmt.Errorf("websocket: accept: %w", err)
	}
	if s.opts.ReadLimit > 0 {
		conn.SetReadLimit(s.opts.ReadLimit)
	}
	s.conn = conn
	s.app, s.client = Connected, Connected
	return nil
}

// receiveConn checks the states and returns the connection to read from.
// The lock is not held during the read, so Close can interrupt it.
func (s *Socket) receiveConn() (*websocket.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.app != Connected || s.client != Connected {
		return nil, s.stateError("receive")
	}
	return s.conn, nil
}

// Receive reads the next message. A close frame from the client moves the
// client to Disconnected and is returned as a *CloseError.
func (s *Socket) Receive(ctx context.Context) (websocket.MessageType, []byte, error) {
	conn, err := s.receiveConn()
	if err != nil {
		return 0, nil, err
	}

	typ, data, err := conn.Read(ctx)
	if err != nil {
		return 0, nil, s.readFailed(err)
	}
	return typ, data, nil
}

func (s *Socket) readFailed(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = Disconnected

	var ce websocket.CloseError
	if errors.As(err, &ce) {
		return &CloseError{Code: ce.Code, Reason: ce.Reason}
	}
	return fmt.Errorf("websocket: receive: %w", err)
}

// ReceiveText reads the next message and requires it to be text.
func (s *Socket) ReceiveText(ctx context.Context) (string, error) {
	typ, data, err := s.Receive(ctx)
	if err != nil {
		return "", err
	}
	if typ != websocket.MessageText {
		return "", fmt.Errorf("%w: got %s, want %s", ErrUnexpectedMessage, typ, websocket.MessageText)
	}
	return string(data), nil
}

// ReceiveBytes reads the next message and requires it to be binary.
func (s *Socket) ReceiveBytes(ctx context.Context) ([]byte, error) {
	typ, data, err := s.Receive(ctx)
	if err != nil {
		return nil, err
	}
	if typ != websocket.MessageBinary {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrUnexpectedMessage, typ, websocket.MessageBinary)
	}
	return data, nil
}

// ReceiveJSON reads the next text message and decodes it into v. A
// decode failure leaves the session connected.
func (s *Socket) ReceiveJSON(ctx context.Context, v any) error {
	data, err := s.ReceiveText(ctx)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("websocket: receive json: %w", err)
	}
	return nil
}

func (s *Socket) sendConn() (*websocket.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.app != Connected {
		return nil, s.stateError("send")
	}
	return s.conn, nil
}

// Send writes one message of type typ.
func (s *Socket) Send(ctx context.Context, typ websocket.MessageType, data []byte) error {
	conn, err := s.sendConn()
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, typ, data); err != nil {
		return fmt.Errorf("websocket: send: %w", err)
	}
	return nil
}

// SendText writes a text message.
func (s *Socket) SendText(ctx context.Context, text string) error {
	return s.Send(ctx, websocket.MessageText, []byte(text))
}

// SendBytes writes a binary message.
func (s *Socket) SendBytes(ctx context.Context, data []byte) error {
	return s.Send(ctx, websocket.MessageBinary, data)
}

// SendJSON writes v as a JSON text message.
func (s *Socket) SendJSON(ctx context.Context, v any) error {
	conn, err := s.sendConn()
	if err != nil {
		return err
	}
	if err := wsjson.Write(ctx, conn, v); err != nil {
		return fmt.Errorf("websocket: send json: %w", err)
	}
	return nil
}

// Close ends the session. Before Accept it rejects the handshake with
// 403 Forbidden; after Accept it performs the closing handshake with code
// and reason. Closing a disconnected session is an error.
func (s *Socket) Close(code StatusCode, reason string) error {
	s.mu.Lock()

	switch s.app {
	case Connecting:
		s.app, s.client = Disconnected, Disconnected
		s.mu.Unlock()
		mux.RenderError(s.w, s.r, mux.Forbidden(""))
		return nil

	case Connected:
		s.app = Disconnected
		conn := s.conn
		s.mu.Unlock()
		err := conn.Close(code, reason)
		s.mu.Lock()
		s.client = Disconnected
		s.mu.Unlock()
		if err != nil && !isClosed(err) {
			return fmt.Errorf("websocket: close: %w", err)
		}
		return nil
	}

	err := s.stateError("close")
	s.mu.Unlock()
	return err
}

// isClosed reports errors from closing a connection the peer already
// closed.
func isClosed(err error) bool {
	return websocket.CloseStatus(err) != -1 || errors.Is(err, net.ErrClosed)
}

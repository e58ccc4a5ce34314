// ABOUTME: Source RCON protocol client for the game server's command port.
// ABOUTME: Length-prefixed little-endian framing with a single-round auth handshake.

package rcon

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// Packet types used by the game's RCON implementation.
const (
	packetAuth        int32 = 3
	packetExecCommand int32 = 2
)

// frameOverhead is the request id, packet type, and two NUL trailers that
// surround the body inside a frame. body length = frame length - frameOverhead.
const frameOverhead = 10

// ErrAuthFailed indicates the server rejected the RCON password.
var ErrAuthFailed = errors.New("rcon authentication failed")

// ErrConnClosed indicates the server closed the connection mid-frame.
var ErrConnClosed = errors.New("rcon connection closed")

// ioTimeout bounds every socket read and write.
const ioTimeout = 30 * time.Second

// Executor is the command surface shared by Client and SafeClient.
// Callers hold an Executor and are agnostic to whether access is guarded.
type Executor interface {
	Execute(command string) (string, error)
	Close() error
}

// Client is a minimal RCON client. It is not safe for concurrent use;
// wrap it in a SafeClient when multiple goroutines share the connection.
type Client struct {
	password string
	conn     net.Conn
	nextID   int32

	// dial opens a fresh TCP connection. Swappable in tests.
	dial func() (net.Conn, error)
}

// Dial connects to the RCON endpoint and performs the auth handshake.
// An authentication rejection returns ErrAuthFailed.
func Dial(host string, port int, password string) (*Client, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	c := &Client{
		password: password,
		dial: func() (net.Conn, error) {
			return net.DialTimeout("tcp", addr, ioTimeout)
		},
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// newClientWithDialer builds an unconnected client around a custom dialer.
// Used by tests to substitute in-memory connections.
func newClientWithDialer(password string, dial func() (net.Conn, error)) *Client {
	return &Client{password: password, dial: dial}
}

// connect establishes a fresh connection and authenticates on it.
func (c *Client) connect() error {
	conn, err := c.dial()
	if err != nil {
		return fmt.Errorf("dialing rcon: %w", err)
	}
	c.conn = conn
	c.nextID = 0

	if err := c.authenticate(); err != nil {
		_ = conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// authenticate sends the password and reads the single auth response.
// The game sends one auth response, not two like the stock Source engine.
func (c *Client) authenticate() error {
	if _, err := c.sendPacket(packetAuth, c.password); err != nil {
		return fmt.Errorf("sending auth: %w", err)
	}
	id, _, _, err := c.recvPacket()
	if err != nil {
		return fmt.Errorf("reading auth response: %w", err)
	}
	if id == -1 {
		return ErrAuthFailed
	}
	return nil
}

// Execute sends a command and reads exactly one response frame.
// On a connection-level failure it reconnects once and retries the same
// command; a second failure is returned to the caller.
func (c *Client) Execute(command string) (string, error) {
	body, err := c.roundTrip(command)
	if err == nil {
		return body, nil
	}
	if errors.Is(err, ErrAuthFailed) {
		return "", err
	}
	if !isConnError(err) {
		// A protocol violation arrived on a live connection; retrying the
		// same command would not help.
		return "", err
	}

	// One silent reconnect-and-retry.
	if c.conn != nil {
		_ = c.conn.Close()
	}
	if cerr := c.connect(); cerr != nil {
		return "", cerr
	}
	return c.roundTrip(command)
}

// roundTrip performs one strictly request/response exchange.
func (c *Client) roundTrip(command string) (string, error) {
	if c.conn == nil {
		return "", ErrConnClosed
	}
	if _, err := c.sendPacket(packetExecCommand, command); err != nil {
		return "", err
	}
	_, _, body, err := c.recvPacket()
	if err != nil {
		return "", err
	}
	return body, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// sendPacket assigns the next request id and writes one frame.
func (c *Client) sendPacket(packetType int32, body string) (int32, error) {
	c.nextID++
	id := c.nextID

	frame := encodeFrame(id, packetType, body)
	_ = c.conn.SetWriteDeadline(time.Now().Add(ioTimeout))
	if _, err := c.conn.Write(frame); err != nil {
		return 0, fmt.Errorf("writing frame: %w", err)
	}
	return id, nil
}

// recvPacket reads one frame off the connection.
func (c *Client) recvPacket() (id, packetType int32, body string, err error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(ioTimeout))
	return decodeFrame(c.conn)
}

// encodeFrame builds a wire frame: length-prefixed little-endian request id,
// packet type, UTF-8 body, and two NUL trailers.
func encodeFrame(id, packetType int32, body string) []byte {
	bodyBytes := []byte(body)
	length := int32(len(bodyBytes) + frameOverhead)

	buf := bytes.NewBuffer(make([]byte, 0, 4+length))
	_ = binary.Write(buf, binary.LittleEndian, length)
	_ = binary.Write(buf, binary.LittleEndian, id)
	_ = binary.Write(buf, binary.LittleEndian, packetType)
	buf.Write(bodyBytes)
	buf.Write([]byte{0, 0})
	return buf.Bytes()
}

// decodeFrame reads one frame from r and returns its fields.
func decodeFrame(r io.Reader) (id, packetType int32, body string, err error) {
	var length int32
	if err = binary.Read(r, binary.LittleEndian, &length); err != nil {
		return 0, 0, "", wrapReadErr(err)
	}
	if length < frameOverhead {
		return 0, 0, "", fmt.Errorf("short frame: length %d", length)
	}

	data := make([]byte, length)
	if _, err = io.ReadFull(r, data); err != nil {
		return 0, 0, "", wrapReadErr(err)
	}

	id = int32(binary.LittleEndian.Uint32(data[0:4]))
	packetType = int32(binary.LittleEndian.Uint32(data[4:8]))
	body = string(data[8 : length-2])
	return id, packetType, body, nil
}

func wrapReadErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrConnClosed
	}
	return fmt.Errorf("reading frame: %w", err)
}

// isConnError reports whether err is a connection-level failure, as opposed
// to a protocol violation read off a healthy connection. Only the former
// warrants a reconnect.
func isConnError(err error) bool {
	if errors.Is(err, ErrConnClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

package realtime

import (
	"io"
	"sync"
)

// testConn records writes and replays scripted reads.
type testConn struct {
	mu           sync.Mutex
	writes       []writeCall
	readMessages []readCall
	closeCalls   int
}

type writeCall struct {
	messageType int
	payload     []byte
}

type readCall struct {
	messageType int
	payload     []byte
	err         error
}

func (c *testConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, writeCall{messageType: messageType, payload: append([]byte(nil), data...)})
	return nil
}

func (c *testConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.readMessages) == 0 {
		return 0, nil, io.EOF
	}
	msg := c.readMessages[0]
	c.readMessages = c.readMessages[1:]
	return msg.messageType, append([]byte(nil), msg.payload...), msg.err
}

func (c *testConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
	return nil
}

func (c *testConn) WriteCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func (c *testConn) Write(i int) writeCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes[i]
}

func (c *testConn) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

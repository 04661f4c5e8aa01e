package simscope

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/hud"
)

// PassHeader carries the HUD pass on the upgrade request.
const PassHeader = "X-HUD-Pass"

const pongWait = 90 * time.Second

// Feed streams HUD snapshots from a running sim host.
type Feed struct {
	conn  *websocket.Conn
	snaps chan hud.Snapshot
	done  chan struct{}
	once  sync.Once

	mu  sync.Mutex
	err error
}

// HUDURL turns an admin base address into the websocket HUD endpoint.
func HUDURL(base string) (string, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		return "", errors.New("hud address must be provided")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "ws://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse hud address: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported hud scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/hud"
	}
	return u.String(), nil
}

// Dial connects to the HUD endpoint. An empty pass connects as an observer.
func Dial(ctx context.Context, rawURL, pass string) (*Feed, error) {
	header := http.Header{}
	if pass = strings.TrimSpace(pass); pass != "" {
		header.Set(PassHeader, pass)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, rawURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial hud: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial hud: %w", err)
	}
	f := &Feed{conn: conn, snaps: make(chan hud.Snapshot, 4), done: make(chan struct{})}
	go f.read()
	return f, nil
}

// Snapshots delivers decoded frames. Older frames are dropped when the reader lags.
// The channel closes when the connection ends.
func (f *Feed) Snapshots() <-chan hud.Snapshot { return f.snaps }

// Err reports why the feed stopped, or nil after Close.
func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Close ends the feed.
func (f *Feed) Close() error {
	var err error
	f.once.Do(func() {
		close(f.done)
		_ = f.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = f.conn.Close()
	})
	return err
}

func (f *Feed) read() {
	defer close(f.snaps)
	f.conn.SetReadDeadline(time.Now().Add(pongWait))
	f.conn.SetPingHandler(func(data string) error {
		f.conn.SetReadDeadline(time.Now().Add(pongWait))
		return f.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	for {
		_, msg, err := f.conn.ReadMessage()
		if err != nil {
			f.fail(err)
			return
		}
		f.conn.SetReadDeadline(time.Now().Add(pongWait))
		var snap hud.Snapshot
		if err := json.Unmarshal(msg, &snap); err != nil {
			f.fail(fmt.Errorf("decode snapshot: %w", err))
			return
		}
		//1.- Keep the newest frame: drop the oldest queued one when full.
		for {
			select {
			case f.snaps <- snap:
			case <-f.done:
				return
			default:
				select {
				case <-f.snaps:
				default:
				}
				continue
			}
			break
		}
	}
}

func (f *Feed) fail(err error) {
	select {
	case <-f.done:
		return
	default:
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

package firehose

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"Astrofeed/internal/metrics"
)

const (
	subscribeEndpoint = "com.atproto.sync.subscribeRepos"
	readTimeout       = 60 * time.Second
	pingInterval      = 30 * time.Second
	pingWriteTimeout  = 10 * time.Second
)

// Client is the long-lived consumer of the relay's repo-event subscription.
// It reads raw frames off the websocket and pushes them onto the queue;
// parsing is the workers' job. The shared cursor cell is written by the
// workers as they acknowledge progress, and read back here when building
// the subscription URL for a reconnect.
type Client struct {
	baseURI string
	queue   *FrameQueue
	cursor  *atomic.Int64
	hb      *Heartbeat
}

// NewClient creates a firehose client. cursor must already hold the start
// position (persisted cursor or override).
func NewClient(baseURI string, queue *FrameQueue, cursor *atomic.Int64, hb *Heartbeat) *Client {
	return &Client{
		baseURI: baseURI,
		queue:   queue,
		cursor:  cursor,
		hb:      hb,
	}
}

// Run consumes the subscription until the context is cancelled or a fatal
// transport error occurs. The one error it recovers from is the relay's
// ConsumerTooSlow disconnect, after which it redials from the shared cursor.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.subscribe(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err == nil:
			// subscribe only returns on error or cancellation
			return nil
		default:
			var relayErr *RelayError
			if errors.As(err, &relayErr) && relayErr.TooSlow() {
				log.Printf("Relay dropped us as too slow, reconnecting from cursor %d", c.cursor.Load())
				continue
			}
			return fmt.Errorf("firehose subscription failed: %w", err)
		}
	}
}

func (c *Client) subscribe(ctx context.Context) error {
	wsURL, err := c.subscribeURL()
	if err != nil {
		return err
	}
	log.Printf("Connecting to firehose: %s", wsURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial firehose: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			log.Printf("Failed to close firehose connection: %v", closeErr)
		}
	}()

	log.Println("Connected to firehose")

	if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	// Keepalive pings; a dead connection surfaces as a read deadline error.
	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingWriteTimeout)); err != nil {
					log.Printf("Failed to send ping: %v", err)
					return
				}
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, frame, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}

		// Relay error frames never reach the queue; they decide the fate of
		// the connection right here.
		if err := CheckFrame(frame); err != nil {
			var relayErr *RelayError
			if errors.As(err, &relayErr) {
				return relayErr
			}
			log.Printf("Dropping undecodable frame: %v", err)
			metrics.ParseErrors.Inc()
			continue
		}

		if err := c.queue.Put(ctx, frame); err != nil {
			return err
		}

		metrics.FirehoseEvents.Inc()
		metrics.QueueFrames.Set(float64(c.queue.Len()))
		metrics.QueueBytes.Set(float64(c.queue.Bytes()))
		c.hb.Beat()
	}
}

// subscribeURL builds the subscription URL from the shared cursor cell, so
// every (re)connect resumes at the workers' acknowledged position.
func (c *Client) subscribeURL() (string, error) {
	u, err := url.Parse(c.baseURI)
	if err != nil {
		return "", fmt.Errorf("parse firehose base URI %q: %w", c.baseURI, err)
	}
	u = u.JoinPath(subscribeEndpoint)

	if cursor := c.cursor.Load(); cursor > 0 {
		q := u.Query()
		q.Set("cursor", fmt.Sprintf("%d", cursor))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

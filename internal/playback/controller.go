package playback

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Controller is the audio playback controller: given an audio resource
// URL it fetches the bytes and streams them through the sink, then
// signals completion or error. Playing while a previous playback is
// active replaces it; Stop aborts immediately.
//
// The completion/error callbacks fire from the fetch goroutine and are
// suppressed for any playback superseded by a later Play or Stop.
type Controller struct {
	client  *http.Client
	sink    Sink
	onDone  func()
	onError func(error)

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
}

// NewController wires the controller to a sink and its signal handlers.
func NewController(sink Sink, onDone func(), onError func(error)) *Controller {
	return &Controller{
		client:  &http.Client{Timeout: 60 * time.Second},
		sink:    sink,
		onDone:  onDone,
		onError: onError,
	}
}

// Play starts playback of the given resource, replacing any active one.
func (c *Controller) Play(url string) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.sink.Reset()
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.gen++
	gen := c.gen
	c.mu.Unlock()
	go c.fetch(ctx, gen, url)
}

// Stop aborts the active playback and drops queued audio. No completion
// or error signal follows.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	c.mu.Unlock()
	c.sink.Reset()
}

// current reports whether the given playback generation is still the
// active one.
func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

func (c *Controller) fetch(ctx context.Context, gen uint64, url string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.fail(gen, err)
		return
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.fail(gen, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.fail(gen, fmt.Errorf("audio fetch: status=%d", resp.StatusCode))
		return
	}

	buf := make([]byte, 4096)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if !c.current(gen) {
				return
			}
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			c.sink.Write(chunk)
		}
		if rerr != nil {
			if rerr == io.EOF {
				break
			}
			c.fail(gen, rerr)
			return
		}
	}

	if !c.current(gen) {
		return
	}
	c.sink.FlushTail()
	if d, ok := c.sink.(interface{ WaitDrain(context.Context) }); ok {
		d.WaitDrain(ctx)
	}
	if !c.current(gen) {
		return
	}
	if c.onDone != nil {
		c.onDone()
	}
}

func (c *Controller) fail(gen uint64, err error) {
	if !c.current(gen) {
		return
	}
	if c.onError != nil {
		c.onError(err)
	}
}

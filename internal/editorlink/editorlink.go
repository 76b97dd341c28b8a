// Package editorlink streams tree events to a live editor over socket.io.
//
// A Link subscribes to trees and forwards every graph.Event as a
// "tree_event" message. Evaluation results are sent as "pass" messages so
// the editor can redraw node states once a pass commits. The editor asks
// for an update by sending "tag" with a tree name, or an object with a
// "tree" field.
package editorlink

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/vk/nodeweave/internal/ctxlog"
	"github.com/vk/nodeweave/internal/graph"
	"github.com/vk/nodeweave/internal/scheduler"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

const (
	// TreeEvent carries one graph.Event.
	TreeEvent = "tree_event"
	// PassEvent carries the summary of an evaluation pass.
	PassEvent = "pass"
	// TagEvent is sent by the editor with a tree name to request an update.
	TagEvent = "tag"

	defaultTimeout = 15 * time.Second
)

// ErrConnect is returned when the editor cannot be reached.
var ErrConnect = errors.New("editor connection failed")

// Config describes the editor endpoint.
type Config struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	// Timeout bounds the connection handshake. Zero means 15s.
	Timeout time.Duration
	// OnTag is called with the tree name of every TagEvent.
	OnTag func(tree string)
}

// Emitter sends one named message.
type Emitter interface {
	Emit(event string, payload any)
}

// Link forwards tree events to an emitter.
type Link struct {
	out   Emitter
	close func()

	mu      sync.Mutex
	cancels map[graph.TreeID]func()
	sent    int
}

// New wraps an emitter. Dial is the usual way to get a Link.
func New(out Emitter) *Link {
	return &Link{out: out, close: func() {}, cancels: map[graph.TreeID]func(){}}
}

type socketEmitter struct{ io *socket.Socket }

func (s socketEmitter) Emit(event string, payload any) { s.io.Emit(event, payload) }

// Dial connects to the editor and waits for the handshake.
func Dial(ctx context.Context, cfg Config) (*Link, error) {
	logger := ctxlog.FromContext(ctx).With("component", "editorlink", "url", cfg.URL)

	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse editor url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: url %q needs a scheme and host", ErrConnect, cfg.URL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsed.Path)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host), opts)
	io := manager.Socket(cfg.Namespace, opts)

	connected := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		connected <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		var err error = ErrConnect
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connected <- err
	})
	if cfg.OnTag != nil {
		io.On(types.EventName(TagEvent), func(args ...any) {
			if name, ok := tagArg(args); ok {
				logger.Debug("Editor tagged tree.", "tree", name)
				cfg.OnTag(name)
			}
		})
	}
	io.Connect()

	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("%w: %w", ErrConnect, err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("%w: %w", ErrConnect, ctx.Err())
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("%w: timed out after %v", ErrConnect, timeout)
	}
	logger.Info("Connected to editor.", "sid", io.Id())

	l := New(socketEmitter{io: io})
	l.close = func() { io.Disconnect() }
	return l, nil
}

func tagArg(args []any) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	switch v := args[0].(type) {
	case string:
		return v, v != ""
	case map[string]any:
		name, ok := v["tree"].(string)
		return name, ok && name != ""
	}
	return "", false
}

// Watch forwards the events of a tree until Unwatch or Close. Watching a
// tree twice is a no-op.
func (l *Link) Watch(t *graph.Tree) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.cancels[t.ID()]; ok {
		return
	}
	l.cancels[t.ID()] = t.Subscribe(l)
}

// Unwatch stops forwarding a tree's events.
func (l *Link) Unwatch(t *graph.Tree) {
	l.mu.Lock()
	cancel, ok := l.cancels[t.ID()]
	delete(l.cancels, t.ID())
	l.mu.Unlock()
	if ok {
		cancel()
	}
}

// Observe implements graph.Observer.
func (l *Link) Observe(ev graph.Event) {
	l.send(TreeEvent, ev)
}

// PassMessage is the payload of a PassEvent.
type PassMessage struct {
	Tree       string   `json:"tree"`
	Outcome    string   `json:"outcome"`
	Evaluated  int      `json:"evaluated"`
	Cleaned    int      `json:"cleaned"`
	Failed     []string `json:"failed,omitempty"`
	Skipped    []string `json:"skipped,omitempty"`
	DurationMS float64  `json:"duration_ms"`
}

// PublishPass sends the summary of an evaluation pass.
func (l *Link) PublishPass(res *scheduler.Result, err error) {
	if res == nil {
		return
	}
	msg := PassMessage{
		Tree:       res.Tree,
		Outcome:    scheduler.OutcomeOf(err),
		Evaluated:  res.Evaluated,
		Cleaned:    res.Cleaned,
		Skipped:    res.Skipped,
		DurationMS: float64(res.Duration.Microseconds()) / 1000,
	}
	for _, f := range res.Failures {
		msg.Failed = append(msg.Failed, f.Node)
	}
	l.send(PassEvent, msg)
}

func (l *Link) send(event string, payload any) {
	l.mu.Lock()
	l.sent++
	l.mu.Unlock()
	l.out.Emit(event, payload)
}

// Sent returns the number of messages emitted so far.
func (l *Link) Sent() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sent
}

// Close stops watching every tree and disconnects.
func (l *Link) Close() {
	l.mu.Lock()
	cancels := l.cancels
	l.cancels = map[graph.TreeID]func(){}
	l.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	l.close()
}

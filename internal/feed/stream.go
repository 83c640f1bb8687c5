package feed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/crop_advisor/internal/log"
)

var (
	errStreamCancelled = errors.New("stream cancelled by server")
	errAuthRevoked     = errors.New("stream auth revoked")
)

// StreamConfig configures a realtime-database REST stream.
type StreamConfig struct {
	BaseURL string // e.g. https://<project>-default-rtdb.firebaseio.com
	Auth    string // database secret or ID token, sent as ?auth=

	BreakerFailures int
	BreakerOpenFor  time.Duration
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration

	HTTPClient *http.Client // must not set a Timeout: streams are long lived
}

// StreamSource follows each path over a server-sent-events stream
// (GET <base>/<path>.json with Accept: text/event-stream) and reconnects on failure.
type StreamSource struct {
	cfg     StreamConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	subs   map[string]*subscription
	wg     sync.WaitGroup
}

// subscription is one follow goroutine; a resubscribe replaces it, so a
// finishing predecessor cannot flip the state of its successor.
type subscription struct {
	stop context.CancelFunc
	open bool
}

var _ Source = (*StreamSource)(nil)

func NewStreamSource(cfg StreamConfig) *StreamSource {
	if cfg.BreakerFailures < 1 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerOpenFor <= 0 {
		cfg.BreakerOpenFor = 30 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Minute
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	failures := uint32(cfg.BreakerFailures)
	return &StreamSource{
		cfg:    cfg,
		client: client,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "rtdb-stream",
			Timeout: cfg.BreakerOpenFor,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warnf("feed: breaker %s %s -> %s", name, from, to)
			},
		}),
		now:  time.Now,
		subs: make(map[string]*subscription),
	}
}

// Connect validates the endpoint; streams are opened per subscription.
func (s *StreamSource) Connect(ctx context.Context) error {
	u, err := url.Parse(s.cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("feed: invalid realtime database url %q", s.cfg.BaseURL)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		s.ctx, s.cancel = context.WithCancel(ctx)
	}
	return nil
}

// Connected reports whether every subscribed path has an open stream.
func (s *StreamSource) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil || s.ctx.Err() != nil || len(s.subs) == 0 {
		return false
	}
	for _, sub := range s.subs {
		if !sub.open {
			return false
		}
	}
	return true
}

// Subscribe starts following path in the background.
func (s *StreamSource) Subscribe(path string, h Handler) error {
	if _, ok := schema[path]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPath, path)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil || s.ctx.Err() != nil {
		return ErrNotConnected
	}
	if old, ok := s.subs[path]; ok {
		old.stop()
	}
	ctx, stop := context.WithCancel(s.ctx)
	sub := &subscription{stop: stop}
	s.subs[path] = sub
	s.wg.Add(1)
	go s.follow(ctx, sub, path, h)
	return nil
}

func (s *StreamSource) Unsubscribe(path string) error {
	s.mu.Lock()
	sub, ok := s.subs[path]
	delete(s.subs, path)
	s.mu.Unlock()
	if ok {
		sub.stop()
	}
	return nil
}

// Close stops every stream and waits for them to finish.
func (s *StreamSource) Close() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.subs = make(map[string]*subscription)
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *StreamSource) streamURL(path string) string {
	u := strings.TrimRight(s.cfg.BaseURL, "/") + "/" + url.PathEscape(path) + ".json"
	if s.cfg.Auth != "" {
		u += "?auth=" + url.QueryEscape(s.cfg.Auth)
	}
	return u
}

func (s *StreamSource) setOpen(sub *subscription, open bool) {
	s.mu.Lock()
	sub.open = open
	s.mu.Unlock()
}

func (s *StreamSource) follow(ctx context.Context, sub *subscription, path string, h Handler) {
	defer s.wg.Done()
	defer s.setOpen(sub, false)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.InitialBackoff
	bo.MaxInterval = s.cfg.MaxBackoff
	bo.MaxElapsedTime = 0 // retry until unsubscribed
	bo.Reset()

	for {
		opened, err := s.streamOnce(ctx, sub, path, h)
		if ctx.Err() != nil {
			return
		}
		if opened {
			bo.Reset()
		}
		wait := bo.NextBackOff()
		log.Warnf("feed: stream %s ended: %v (retry in %s)", path, err, wait)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (s *StreamSource) openStream(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.streamURL(path), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("stream %s: HTTP %d: %s", path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return resp, nil
}

func (s *StreamSource) streamOnce(ctx context.Context, sub *subscription, path string, h Handler) (bool, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		return s.openStream(ctx, path)
	})
	if err != nil {
		return false, err
	}
	resp := res.(*http.Response)
	defer resp.Body.Close()

	s.setOpen(sub, true)
	defer s.setOpen(sub, false)
	log.Infof("feed: stream %s open", path)

	err = readEvents(resp.Body, func(event string, data []byte) error {
		return s.handleEvent(path, event, data, h)
	})
	if err == nil {
		err = io.EOF
	}
	return true, err
}

func (s *StreamSource) handleEvent(path, event string, data []byte, h Handler) error {
	switch event {
	case "put", "patch":
	case "cancel":
		return errStreamCancelled
	case "auth_revoked":
		return errAuthRevoked
	default: // keep-alive and anything newer
		return nil
	}
	var ev struct {
		Path string          `json:"path"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Warnf("feed: %s: bad %s event: %v", path, event, err)
		return nil
	}
	payload, err := payloadAt(ev.Path, ev.Data)
	if err != nil {
		log.Warnf("feed: %s: %v", path, err)
		return nil
	}
	if payload == nil {
		return nil
	}
	u, err := Decode(path, payload, s.now())
	if err != nil {
		return err
	}
	h(u)
	return nil
}

// payloadAt turns an event relative to the subscribed node into a key/value payload.
// "/" carries the node (merged key by key), "/<key>" a single child; deeper paths
// are not sensor values.
func payloadAt(p string, data json.RawMessage) (map[string]any, error) {
	p = strings.Trim(p, "/")
	if strings.Contains(p, "/") {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("event data: %w", err)
	}
	if p != "" {
		return map[string]any{p: v}, nil
	}
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("event data at / is %T, want object", v)
	}
	return m, nil
}

// readEvents parses a text/event-stream body and calls fn once per dispatched event.
func readEvents(r io.Reader, fn func(event string, data []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var (
		event string
		data  bytes.Buffer
	)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if event != "" || data.Len() > 0 {
				if event == "" {
					event = "message"
				}
				if err := fn(event, bytes.TrimSuffix(data.Bytes(), []byte("\n"))); err != nil {
					return err
				}
			}
			event = ""
			data.Reset()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		name, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch name {
		case "event":
			event = value
		case "data":
			data.WriteString(value)
			data.WriteByte('\n')
		}
	}
	return sc.Err()
}

package evallog

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LevelFatalSlog is the slog level mapped to the service's "fatal" level.
const LevelFatalSlog = slog.LevelError + 4

const (
	defaultBufferSize = 256
	defaultPackage    = "service"
	packageKey        = "package"
)

type sender interface {
	Send(ctx context.Context, e Entry) (string, error)
}

// HandlerOptions configure a Handler.
type HandlerOptions struct {
	// Level is the minimum level shipped to the service. Defaults to info.
	Level slog.Leveler
	// BufferSize bounds the queue of entries waiting to be shipped.
	BufferSize int
	// Stack is reported with every entry. Defaults to backend.
	Stack string
	// DefaultPackage is used when a record has no valid "package" attribute.
	DefaultPackage string
}

type queue struct {
	ch        chan Entry
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Handler is a slog.Handler that passes records to the wrapped handler and
// ships a copy of them to the log service in the background. Records are
// dropped when the queue is full; Handle never waits on the network.
type Handler struct {
	next    slog.Handler
	opts    HandlerOptions
	attrs   []slog.Attr
	grouped bool
	q       *queue
}

func NewHandler(next slog.Handler, client sender, opts *HandlerOptions) *Handler {
	var o HandlerOptions
	if opts != nil {
		o = *opts
	}
	if o.Level == nil {
		o.Level = slog.LevelInfo
	}
	if o.BufferSize <= 0 {
		o.BufferSize = defaultBufferSize
	}
	if o.Stack == "" {
		o.Stack = StackBackend
	}
	if !IsValidPackage(o.DefaultPackage) {
		o.DefaultPackage = defaultPackage
	}

	h := &Handler{
		next: next,
		opts: o,
		q: &queue{
			ch:   make(chan Entry, o.BufferSize),
			done: make(chan struct{}),
		},
	}

	h.q.wg.Add(1)
	go h.worker(client)

	return h
}

func (h *Handler) worker(client sender) {
	defer h.q.wg.Done()

	for {
		select {
		case e := <-h.q.ch:
			h.ship(client, e)
		case <-h.q.done:
			for {
				select {
				case e := <-h.q.ch:
					h.ship(client, e)
				default:
					return
				}
			}
		}
	}
}

func (h *Handler) ship(client sender, e Entry) {
	if _, err := client.Send(context.Background(), e); err != nil {
		ctx := context.Background()
		if !h.next.Enabled(ctx, slog.LevelDebug) {
			return
		}

		r := slog.NewRecord(time.Now(), slog.LevelDebug, "failed to ship log entry", 0)
		r.AddAttrs(slog.Any("err", err))
		_ = h.next.Handle(ctx, r)
	}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level) || level >= h.opts.Level.Level()
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.next.Enabled(ctx, r.Level) {
		err = h.next.Handle(ctx, r)
	}

	if r.Level >= h.opts.Level.Level() {
		h.enqueue(h.toEntry(r))
	}

	return err
}

func (h *Handler) enqueue(e Entry) {
	select {
	case <-h.q.done:
		return
	default:
	}

	select {
	case h.q.ch <- e:
	default:
	}
}

func (h *Handler) toEntry(r slog.Record) Entry {
	pkg := ""
	for _, a := range h.attrs {
		if a.Key == packageKey {
			pkg = a.Value.String()
		}
	}

	var b strings.Builder
	b.WriteString(r.Message)

	r.Attrs(func(a slog.Attr) bool {
		if a.Key == packageKey && !h.grouped {
			pkg = a.Value.String()
			return true
		}
		b.WriteString(" ")
		b.WriteString(a.Key)
		b.WriteString("=")
		b.WriteString(a.Value.String())
		return true
	})

	if !IsValidPackage(pkg) {
		pkg = h.opts.DefaultPackage
	}

	return Entry{
		Stack:   h.opts.Stack,
		Level:   levelName(r.Level),
		Package: pkg,
		Message: b.String(),
	}
}

func levelName(l slog.Level) string {
	switch {
	case l >= LevelFatalSlog:
		return LevelFatal
	case l >= slog.LevelError:
		return LevelError
	case l >= slog.LevelWarn:
		return LevelWarn
	default:
		return LevelInfo
	}
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.next = h.next.WithAttrs(attrs)
	if !h.grouped {
		nh.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	}
	return &nh
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.next = h.next.WithGroup(name)
	nh.grouped = true
	return &nh
}

// Close stops accepting records and ships whatever is still queued, giving
// up when ctx is done.
func (h *Handler) Close(ctx context.Context) error {
	h.q.closeOnce.Do(func() {
		close(h.q.done)
	})

	finished := make(chan struct{})
	go func() {
		h.q.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

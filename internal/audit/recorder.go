package audit

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stafflane/access/internal/authn"
	"github.com/stafflane/access/internal/ids"
	"github.com/stafflane/access/internal/obs"
)

const (
	defaultQueueSize   = 1024
	defaultWriteWindow = 5 * time.Second
)

type ctxKey string

const requestMetaKey ctxKey = "audit_request_meta"

// RequestMeta carries per-request fields stamped onto audit entries.
type RequestMeta struct {
	RequestID string
	IP        string
	UserAgent string
}

// WithRequestMeta attaches request metadata to the context for audit logging.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey, meta)
}

func requestMetaFromContext(ctx context.Context) RequestMeta {
	if ctx == nil {
		return RequestMeta{}
	}
	if v, ok := ctx.Value(requestMetaKey).(RequestMeta); ok {
		return v
	}
	return RequestMeta{}
}

// Notifier receives a copy of security-relevant entries, for example to
// mirror them onto a message bus. The background writer invokes it, so a
// slow implementation delays audit persistence but never a request.
type Notifier interface {
	Notify(ctx context.Context, entry Entry)
}

// Recorder appends audit entries asynchronously. Enqueueing never blocks
// the caller and never fails the audited operation: when the queue is full
// the entry is dropped with a warning, and persistence errors are logged
// and swallowed by the background writer.
type Recorder struct {
	store    Store
	notifier Notifier
	queue    chan Entry

	closeOnce sync.Once
	closed    atomic.Bool
	stop      chan struct{}
	done      chan struct{}
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithQueueSize overrides the queue capacity.
func WithQueueSize(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan Entry, n)
		}
	}
}

// WithNotifier mirrors denied and failed entries to the given notifier.
func WithNotifier(n Notifier) RecorderOption {
	return func(r *Recorder) { r.notifier = n }
}

// NewRecorder starts the background writer goroutine.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store: store,
		queue: make(chan Entry, defaultQueueSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.run()
	return r
}

// Record enqueues an entry, filling id, timestamp, actor identity and
// request metadata from the context. The enqueue is best-effort: a full
// queue drops the entry rather than delaying the request.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	entry.Action = strings.TrimSpace(entry.Action)
	if entry.Action == "" {
		return
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Status == "" {
		entry.Status = StatusSuccess
	}
	if id, ok := authn.IdentityFromContext(ctx); ok {
		if entry.ActorUserID == "" {
			entry.ActorUserID = id.UserID
		}
		if entry.ActorEmployeeID == "" {
			entry.ActorEmployeeID = id.EmployeeID
		}
		if entry.OrganizationID == "" {
			entry.OrganizationID = id.OrganizationID
		}
	}
	meta := requestMetaFromContext(ctx)
	if entry.RequestID == "" {
		entry.RequestID = meta.RequestID
	}
	if entry.IP == "" {
		entry.IP = meta.IP
	}
	if entry.UserAgent == "" {
		entry.UserAgent = meta.UserAgent
	}

	if r.closed.Load() {
		obs.AuditEntryDropped("recorder_closed")
		return
	}

	select {
	case r.queue <- entry:
		obs.SetAuditQueueDepth(len(r.queue))
	default:
		obs.AuditEntryDropped("queue_full")
		obs.LogEvent(map[string]any{
			"ts":     time.Now().UTC().Format(time.RFC3339Nano),
			"level":  "warn",
			"msg":    "audit queue full, entry dropped",
			"action": entry.Action,
		})
	}
}

// PrivilegeEscalation records a denied attempt to reach an endpoint or
// permission above the caller's grant. Severity is stamped into metadata so
// downstream alerting can key off it.
func (r *Recorder) PrivilegeEscalation(ctx context.Context, resource, detail string) {
	meta := map[string]any{"severity": "HIGH"}
	if detail != "" {
		meta["detail"] = detail
	}
	obs.LogEvent(map[string]any{
		"ts":       time.Now().UTC().Format(time.RFC3339Nano),
		"level":    "warn",
		"msg":      "privilege escalation attempt",
		"resource": resource,
		"detail":   detail,
	})
	r.Record(ctx, Entry{
		Action:   ActionPrivilegeEscalated,
		Resource: resource,
		Status:   StatusDenied,
		Metadata: meta,
	})
}

// Close stops accepting entries and drains the queue before returning. The
// queue channel itself is never closed, so a Record racing Close drops its
// entry instead of panicking.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.stop)
		<-r.done
	})
}

func (r *Recorder) run() {
	defer close(r.done)
	for {
		select {
		case entry := <-r.queue:
			r.write(entry)
		case <-r.stop:
			for {
				select {
				case entry := <-r.queue:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry Entry) {
	obs.SetAuditQueueDepth(len(r.queue))
	ctx, cancel := context.WithTimeout(context.Background(), defaultWriteWindow)
	defer cancel()

	if r.notifier != nil && entry.Status != StatusSuccess {
		r.notifier.Notify(ctx, entry)
	}

	if err := r.store.Append(ctx, entry); err != nil {
		obs.AuditEntryDropped("store_error")
		obs.LogEvent(map[string]any{
			"ts":     time.Now().UTC().Format(time.RFC3339Nano),
			"level":  "error",
			"msg":    "audit append failed",
			"action": entry.Action,
			"error":  err.Error(),
		})
		return
	}
	obs.AuditEntryWritten()
}

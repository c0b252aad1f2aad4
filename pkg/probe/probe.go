package probe

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Prober performs one administrative round trip against the external
// datastore. Implementations never retry; the gate owns all retry policy.
type Prober interface {
	// Ping checks reachability. When the target carries credentials the
	// round trip also exercises authentication, so an auth failure and a
	// connectivity failure look the same to the caller.
	Ping(ctx context.Context) error

	// Smoke inserts a marker carrying a timestamp and message into the
	// scratch collection/table and deletes it again, proving write+delete
	// capability rather than mere socket reachability. A failed cleanup
	// delete is reported as a probe failure; the leaked marker is
	// tolerated and recognizable by its timestamp.
	Smoke(ctx context.Context) error

	// Target returns the probed endpoint with credentials redacted
	Target() string

	Close(ctx context.Context) error
}

// Kind identifies the datastore backend behind a connection URI
type Kind string

const (
	KindMongo    Kind = "mongodb"
	KindPostgres Kind = "postgres"
	KindSQLite   Kind = "sqlite"
)

// Scratch collection/table names end up in query text, so they are held
// to plain identifier characters.
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DetectKind maps a connection URI to a backend kind. A bare filesystem
// path is treated as a SQLite database file.
func DetectKind(uri string) (Kind, error) {
	switch {
	case strings.HasPrefix(uri, "mongodb://"), strings.HasPrefix(uri, "mongodb+srv://"):
		return KindMongo, nil
	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"):
		return KindPostgres, nil
	case strings.HasPrefix(uri, "sqlite://"):
		return KindSQLite, nil
	}
	if !strings.Contains(uri, "://") && uri != "" {
		return KindSQLite, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("unparseable datastore URI: %w", err)
	}
	return "", fmt.Errorf("unsupported datastore scheme %q", u.Scheme)
}

// New constructs the prober for the given connection URI
func New(uri, smokeCollection string) (Prober, error) {
	if !identRe.MatchString(smokeCollection) {
		return nil, fmt.Errorf("invalid smoke collection name %q", smokeCollection)
	}

	kind, err := DetectKind(uri)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindMongo:
		return NewMongo(uri, smokeCollection)
	case KindPostgres:
		return NewPostgres(uri, smokeCollection)
	case KindSQLite:
		return NewSQLite(strings.TrimPrefix(uri, "sqlite://"), smokeCollection)
	default:
		return nil, fmt.Errorf("unsupported datastore kind %q", kind)
	}
}

// Result captures the outcome of a one-shot diagnostic probe
type Result struct {
	Target    string    `json:"target"`
	Kind      Kind      `json:"kind"`
	OK        bool      `json:"ok"`
	Smoke     bool      `json:"smoke"`
	LatencyMs int64     `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Check runs one ping (and, when requested, one smoke test) and reports
// the outcome. It never retries.
func Check(ctx context.Context, p Prober, smoke bool) Result {
	res := Result{
		Target:    p.Target(),
		Smoke:     smoke,
		CheckedAt: time.Now().UTC(),
	}
	if kind, err := DetectKind(p.Target()); err == nil {
		res.Kind = kind
	}

	start := time.Now()
	err := p.Ping(ctx)
	if err == nil && smoke {
		err = p.Smoke(ctx)
	}
	res.LatencyMs = time.Since(start).Milliseconds()

	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.OK = true
	return res
}

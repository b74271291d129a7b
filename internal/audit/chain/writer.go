package chain

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event kinds written by the services.
const (
	KindAccessDenied     = "access.denied"
	KindLifecycle        = "simulation.lifecycle"
	KindCollaborator     = "simulation.collaborator"
	KindPaymentCompleted = "payment.completed"
	KindPaymentFailed    = "payment.failed"
	KindCallbackRejected = "payment.callback_rejected"
)

// ErrBroken is returned by Verify when a record does not link to its predecessor.
var ErrBroken = errors.New("audit chain broken")

// Writer appends hash-chained JSON lines. Each record's hash covers the previous
// hash plus the record body, so any edit invalidates every later line.
type Writer struct {
	mu   sync.Mutex
	f    *os.File
	prev []byte
	now  func() time.Time
}

// NewWriter opens (or creates) path and resumes the chain from its last record.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	prev := make([]byte, sha256.Size)
	if b, err := os.ReadFile(path); err == nil {
		if last := lastLine(b); len(last) > 0 {
			var ev Event
			if err := json.Unmarshal(last, &ev); err != nil {
				return nil, fmt.Errorf("audit: resume %s: %w", path, err)
			}
			h, err := hex.DecodeString(ev.Hash)
			if err != nil || len(h) != sha256.Size {
				return nil, fmt.Errorf("audit: resume %s: bad hash", path)
			}
			prev = h
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Writer{f: f, prev: prev, now: time.Now}, nil
}

func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	return w.f.Close()
}

type Event struct {
	Time   time.Time         `json:"time"`
	Kind   string            `json:"kind"`
	Actor  string            `json:"actor"`
	Target string            `json:"target"`
	Meta   map[string]string `json:"meta,omitempty"`
	Prev   string            `json:"prev"`
	Hash   string            `json:"hash"`
}

// Log appends one record. A nil writer discards.
func (w *Writer) Log(kind, actor, target string, meta map[string]string) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	ev := Event{Time: w.now().UTC(), Kind: kind, Actor: actor, Target: target, Meta: meta, Prev: hex.EncodeToString(w.prev)}
	h := digest(w.prev, ev)
	ev.Hash = hex.EncodeToString(h)
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := w.f.Write(append(b, '\n')); err != nil {
		return err
	}
	w.prev = h
	return nil
}

// Verify walks a chain and returns the number of valid records.
func Verify(r io.Reader) (int, error) {
	prev := make([]byte, sha256.Size)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	n := 0
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return n, fmt.Errorf("%w: line %d: %v", ErrBroken, n+1, err)
		}
		if ev.Prev != hex.EncodeToString(prev) {
			return n, fmt.Errorf("%w: line %d: prev mismatch", ErrBroken, n+1)
		}
		want := digest(prev, ev)
		if ev.Hash != hex.EncodeToString(want) {
			return n, fmt.Errorf("%w: line %d: hash mismatch", ErrBroken, n+1)
		}
		prev = want
		n++
	}
	return n, sc.Err()
}

// digest hashes prev || json(ev without its hash).
func digest(prev []byte, ev Event) []byte {
	ev.Hash = ""
	b, _ := json.Marshal(ev)
	h := sha256.Sum256(append(append([]byte{}, prev...), b...))
	return h[:]
}

func lastLine(b []byte) []byte {
	b = bytes.TrimRight(b, "\n")
	if i := bytes.LastIndexByte(b, '\n'); i >= 0 {
		return b[i+1:]
	}
	return b
}

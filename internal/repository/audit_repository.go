// Package repository persists audit records and the chunk catalog.
package repository

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"advisor-gpt-go/internal/model"
	"advisor-gpt-go/pkg/log"
)

// AuditRepository is the append-only record of responses and feedback.
type AuditRepository interface {
	AppendResponse(ctx context.Context, resp *model.Response) error
	AppendFeedback(ctx context.Context, fb *model.Feedback) error
	ListResponses(ctx context.Context) ([]model.Response, error)
	ListFeedback(ctx context.Context) ([]model.Feedback, error)
}

// AuditLog keeps one JSON object per line in two files. Records are never
// rewritten. Each append is a single write followed by fsync, so a crash
// can at worst leave a torn final line. Readers skip it and the next append
// terminates it before writing, so later records stay readable.
type AuditLog struct {
	mu           sync.RWMutex
	responsePath string
	feedbackPath string
}

// NewAuditLog creates the parent directories of both paths.
func NewAuditLog(responsePath, feedbackPath string) (*AuditLog, error) {
	for _, p := range []string{responsePath, feedbackPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("create audit dir for %s: %w", p, err)
		}
	}
	return &AuditLog{responsePath: responsePath, feedbackPath: feedbackPath}, nil
}

// AppendResponse writes resp unless ctx is already done. Once the write has
// started it is completed regardless of ctx.
func (a *AuditLog) AppendResponse(ctx context.Context, resp *model.Response) error {
	return a.append(ctx, a.responsePath, resp)
}

// AppendFeedback writes fb with the same guarantees as AppendResponse.
func (a *AuditLog) AppendFeedback(ctx context.Context, fb *model.Feedback) error {
	return a.append(ctx, a.feedbackPath, fb)
}

// ListResponses returns every readable response record in append order.
func (a *AuditLog) ListResponses(ctx context.Context) ([]model.Response, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return readLines[model.Response](ctx, a.responsePath)
}

// ListFeedback returns every readable feedback record in append order.
func (a *AuditLog) ListFeedback(ctx context.Context) ([]model.Feedback, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return readLines[model.Feedback](ctx, a.feedbackPath)
}

func (a *AuditLog) append(ctx context.Context, path string, record any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %v: %w", err, model.ErrAuditWrite)
	}
	line = append(line, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %v: %w", path, err, model.ErrAuditWrite)
	}
	torn, err := endsMidLine(f)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("inspect %s: %v: %w", path, err, model.ErrAuditWrite)
	}
	if torn {
		log.Warnf("[Audit] %s ends with a partial line, terminating it", path)
		line = append([]byte{'\n'}, line...)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %v: %w", path, err, model.ErrAuditWrite)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %v: %w", path, err, model.ErrAuditWrite)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %v: %w", path, err, model.ErrAuditWrite)
	}
	return nil
}

// endsMidLine reports whether f is non-empty and its last byte is not a newline.
func endsMidLine(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, err
	}
	return last[0] != '\n', nil
}

const maxLineBytes = 8 << 20

func readLines[T any](ctx context.Context, path string) ([]T, error) {
	out := []T{}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for lineNo := 1; ; lineNo++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			var rec T
			if len(line) > maxLineBytes || json.Unmarshal(line, &rec) != nil {
				log.Warnf("[Audit] skipping malformed line %d in %s", lineNo, path)
			} else {
				out = append(out, rec)
			}
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
}

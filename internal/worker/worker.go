// Package worker runs document generations for a stream of requests on a
// fixed number of goroutines.
package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrNoDocument is reported for a request without pdfJson.
var ErrNoDocument = errors.New("request has no pdfJson")

// Request asks for one document.
type Request struct {
	ID       string          `json:"id,omitempty"`
	Document json.RawMessage `json:"pdfJson"`
	Data     map[string]any  `json:"data,omitempty"`
	Input    map[string]any  `json:"input,omitempty"`
}

// Response carries either the document bytes, base64 encoded on the wire,
// or an error message.
type Response struct {
	ID    string `json:"id,omitempty"`
	Blob  []byte `json:"blob,omitempty"`
	Error string `json:"error,omitempty"`
}

// RenderFunc produces the PDF for a request.
type RenderFunc func(ctx context.Context, req *Request) ([]byte, error)

// Pool runs RenderFunc on a bounded number of goroutines. Every job owns
// its request; nothing is shared between jobs but the RenderFunc.
type Pool struct {
	size   int
	render RenderFunc
	log    *zap.Logger
}

// NewPool creates a pool of size goroutines, one per CPU when size is not
// positive.
func NewPool(size int, render RenderFunc, log *zap.Logger) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{size: size, render: render, log: log.Named("worker")}
}

type job struct {
	id  string
	req *Request
	err error
}

func newJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Do handles a single request on the calling goroutine.
func (p *Pool) Do(ctx context.Context, req *Request) Response {
	return p.handle(ctx, job{id: newJobID(), req: req})
}

func (p *Pool) handle(ctx context.Context, j job) (resp Response) {
	if j.req != nil {
		resp.ID = j.req.ID
	}
	log := p.log.With(zap.String("job", j.id))
	if resp.ID != "" {
		log = log.With(zap.String("request", resp.ID))
	}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Job panicked", zap.Any("panic", r), zap.Stack("stack"))
			resp = Response{ID: resp.ID, Error: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	fail := func(err error) Response {
		log.Warn("Job failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return Response{ID: resp.ID, Error: err.Error()}
	}

	switch {
	case j.err != nil:
		return fail(j.err)
	case len(bytes.TrimSpace(j.req.Document)) == 0 || bytes.Equal(bytes.TrimSpace(j.req.Document), []byte("null")):
		return fail(ErrNoDocument)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	blob, err := p.render(ctx, j.req)
	if err != nil {
		return fail(err)
	}
	log.Debug("Job done", zap.Int("bytes", len(blob)), zap.Duration("elapsed", time.Since(start)))
	resp.Blob = blob
	return resp
}

// Serve reads newline delimited JSON requests from in and writes one
// response line per request to out, in completion order. It returns when in
// is exhausted and every accepted request was answered, or when ctx is
// done.
func (p *Pool) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	jobs := make(chan job)
	results := make(chan Response)

	var wg sync.WaitGroup
	for range p.size {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- p.handle(ctx, j)
			}
		}()
	}

	written := make(chan error, 1)
	go func() {
		enc := json.NewEncoder(out)
		var err error
		for r := range results {
			if err != nil {
				continue
			}
			if err = enc.Encode(r); err != nil {
				err = fmt.Errorf("unable to write response: %w", err)
			}
		}
		written <- err
	}()

	readErr := p.read(ctx, in, jobs)
	close(jobs)
	wg.Wait()
	close(results)

	return multierr.Append(readErr, <-written)
}

// read turns input lines into jobs. Lines that are not valid requests still
// produce a job so that the client gets an error response.
func (p *Pool) read(ctx context.Context, in io.Reader, jobs chan<- job) error {
	lines := make(chan []byte)
	failed := make(chan error, 1)
	go func() {
		defer close(lines)
		r := bufio.NewReader(in)
		for {
			line, err := r.ReadBytes('\n')
			if len(bytes.TrimSpace(line)) > 0 {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					failed <- fmt.Errorf("unable to read requests: %w", err)
				}
				return
			}
		}
	}()

	count := 0
	for {
		select {
		case <-ctx.Done():
			p.log.Info("Stopped reading requests", zap.Int("accepted", count), zap.Error(ctx.Err()))
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-failed:
					return err
				default:
				}
				p.log.Debug("Input exhausted", zap.Int("accepted", count))
				return nil
			}
			j := job{id: newJobID(), req: &Request{}}
			if err := json.Unmarshal(line, j.req); err != nil {
				j.err = fmt.Errorf("malformed request: %w", err)
			}
			select {
			case jobs <- j:
				count++
			case <-ctx.Done():
				return nil
			}
		}
	}
}

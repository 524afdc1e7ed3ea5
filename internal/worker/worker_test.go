package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gompdf/jsonpdf/pkg/api"
)

func echoRender(_ context.Context, req *Request) ([]byte, error) {
	var doc struct {
		FileName string `json:"fileName"`
	}
	if err := json.Unmarshal(req.Document, &doc); err != nil {
		return nil, err
	}
	if doc.FileName == "boom" {
		panic("renderer exploded")
	}
	if doc.FileName == "" {
		return nil, errors.New("fileName is required")
	}
	return []byte(doc.FileName + ":" + fmt.Sprint(req.Input["user"])), nil
}

func serve(t *testing.T, p *Pool, input string) map[string]Response {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, p.Serve(context.Background(), strings.NewReader(input), &out))

	responses := make(map[string]Response)
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var r Response
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		responses[r.ID] = r
	}
	return responses
}

func TestServeAnswersEveryRequest(t *testing.T) {
	p := NewPool(3, echoRender, zaptest.NewLogger(t))
	var lines []string
	for i := range 10 {
		lines = append(lines, fmt.Sprintf(`{"id":"r%d","pdfJson":{"fileName":"doc%d"},"input":{"user":"u%d"}}`, i, i, i))
	}
	responses := serve(t, p, strings.Join(lines, "\n")+"\n")

	require.Len(t, responses, 10)
	for i := range 10 {
		r := responses[fmt.Sprintf("r%d", i)]
		assert.Empty(t, r.Error)
		assert.Equal(t, fmt.Sprintf("doc%d:u%d", i, i), string(r.Blob))
	}
}

func TestServeReportsErrors(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	p := NewPool(2, echoRender, zap.New(core))
	responses := serve(t, p, strings.Join([]string{
		`{"id":"bad","pdfJson":{}}`,
		`{"id":"none"}`,
		`{"id":"panic","pdfJson":{"fileName":"boom"}}`,
		``,
		`{"id":"ok","pdfJson":{"fileName":"fine"}}`,
		`not json`,
	}, "\n"))

	require.Len(t, responses, 5)
	assert.Equal(t, "fileName is required", responses["bad"].Error)
	assert.Equal(t, ErrNoDocument.Error(), responses["none"].Error)
	assert.Contains(t, responses["panic"].Error, "renderer exploded")
	assert.Equal(t, "fine:<nil>", string(responses["ok"].Blob))
	assert.Contains(t, responses[""].Error, "malformed request")

	for id, r := range responses {
		assert.True(t, (r.Error == "") != (r.Blob == nil), "response %q must carry exactly one of blob and error", id)
	}
	assert.Equal(t, 1, logs.FilterMessage("Job panicked").Len())
}

func TestResponseWireFormat(t *testing.T) {
	data, err := json.Marshal(Response{Blob: []byte("%PDF")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"blob":"JVBERg=="}`, string(data))

	data, err = json.Marshal(Response{ID: "7", Error: "nope"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"7","error":"nope"}`, string(data))
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	var calls atomic.Int32
	p := NewPool(1, func(ctx context.Context, req *Request) ([]byte, error) {
		calls.Add(1)
		return nil, nil
	}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := p.Do(ctx, &Request{ID: "x", Document: json.RawMessage(`{"fileName":"a"}`)})
	assert.Equal(t, "x", r.ID)
	assert.Equal(t, context.Canceled.Error(), r.Error)
	assert.Zero(t, calls.Load())
}

func TestServeRendersRealDocuments(t *testing.T) {
	log := zaptest.NewLogger(t)
	c := api.New(api.WithLogger(log))
	p := NewPool(2, func(ctx context.Context, req *Request) ([]byte, error) {
		res, err := c.Render(ctx, api.Request{Document: req.Document, Data: req.Data, Input: req.Input})
		if err != nil {
			return nil, err
		}
		return res.Bytes, nil
	}, log)

	responses := serve(t, p, `{"id":"1","pdfJson":{"fileName":"a","elements":[{"type":"p","text":"Hello {{name}}"}]},"data":{"name":"Ann"}}
{"id":"2","pdfJson":{"fileName":"b","elements":[{"type":"unknown"}]}}
`)
	require.Len(t, responses, 2)
	assert.True(t, bytes.HasPrefix(responses["1"].Blob, []byte("%PDF")))
	assert.Contains(t, responses["2"].Error, "unknown element type")
}

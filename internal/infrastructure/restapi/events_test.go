package restapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type debugRecorder struct {
	mu    sync.Mutex
	debug []string
}

func (r *debugRecorder) Debug(msg string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debug = append(r.debug, msg)
}

func (r *debugRecorder) Info(string, ...any)  {}
func (r *debugRecorder) Warn(string, ...any)  {}
func (r *debugRecorder) Error(string, ...any) {}

func (r *debugRecorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.debug...)
}

type streamWriter struct {
	*httptest.ResponseRecorder
}

func (streamWriter) CloseNotify() <-chan bool { return make(chan bool) }

type deadlineWriter struct {
	streamWriter
	err error
}

func (w deadlineWriter) SetWriteDeadline(time.Time) error { return w.err }

func streamOnce(t *testing.T, w http.ResponseWriter, log *debugRecorder) {
	t.Helper()
	f := newAPIFixture(t)
	h := NewHandler(HandlerDeps{Transfers: f.orch, Feed: f.feed, Logger: log})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/events", nil).WithContext(ctx)
	h.StreamEvents(c)
}

func TestStreamEventsLogsDeadlineFailure(t *testing.T) {
	log := &debugRecorder{}
	w := deadlineWriter{streamWriter{httptest.NewRecorder()}, errors.New("connection hijacked")}
	streamOnce(t, w, log)

	assert.Contains(t, w.Body.String(), "event:state")
	assert.Contains(t, log.Messages(), "Cannot lift write deadline for event stream")
}

func TestStreamEventsIgnoresUnsupportedDeadline(t *testing.T) {
	log := &debugRecorder{}
	w := streamWriter{httptest.NewRecorder()}
	streamOnce(t, w, log)

	assert.Contains(t, w.Body.String(), "event:state")
	assert.NotContains(t, log.Messages(), "Cannot lift write deadline for event stream")
}

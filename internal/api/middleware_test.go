package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestTimeoutMiddlewareExpiresSlowHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TimeoutMiddleware(50 * time.Millisecond))

	handlerDone := make(chan struct{})
	r.GET("/slow", func(c *gin.Context) {
		defer close(handlerDone)
		time.Sleep(200 * time.Millisecond)
		c.JSON(http.StatusOK, gin.H{"late": "write"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))

	if w.Code != http.StatusRequestTimeout {
		t.Fatalf("status = %d, want 408", w.Code)
	}
	if !strings.Contains(w.Body.String(), "request timeout") {
		t.Fatalf("body = %s, want timeout message", w.Body.String())
	}

	// The handler finishes after the timeout; its write must be discarded,
	// not appended to the timeout response.
	<-handlerDone
	if strings.Contains(w.Body.String(), "late") {
		t.Errorf("late handler write reached the response: %s", w.Body.String())
	}
}

func TestTimeoutMiddlewarePassesFastHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TimeoutMiddleware(time.Second))
	r.GET("/fast", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fast", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ok") {
		t.Fatalf("body = %s, want handler payload", w.Body.String())
	}
}

func TestTimeoutMiddlewareKeepsHandlerResponseWhenAlreadyWritten(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TimeoutMiddleware(50 * time.Millisecond))

	handlerDone := make(chan struct{})
	r.GET("/streamy", func(c *gin.Context) {
		defer close(handlerDone)
		c.String(http.StatusOK, "partial")
		time.Sleep(200 * time.Millisecond)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/streamy", nil))
	<-handlerDone

	// The handler committed a response before the deadline; the middleware
	// must not stamp a second status over it.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want handler's 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "partial") {
		t.Fatalf("body = %s, want handler payload", w.Body.String())
	}
}

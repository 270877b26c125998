package middleware

import (
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newRouter mounts the middleware chain in front of a handler that
// answers 200 on every method.
func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(mw...)
	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	router.GET("/test", ok)
	router.POST("/test", ok)
	return router
}

type request struct {
	method     string
	target     string
	header     map[string]string
	remoteAddr string
}

func do(router http.Handler, r request) *httptest.ResponseRecorder {
	if r.method == "" {
		r.method = http.MethodGet
	}
	if r.target == "" {
		r.target = "/test"
	}
	req := httptest.NewRequest(r.method, r.target, nil)
	for k, v := range r.header {
		req.Header.Set(k, v)
	}
	if r.remoteAddr != "" {
		req.RemoteAddr = r.remoteAddr
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

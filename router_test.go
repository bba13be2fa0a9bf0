package postboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type draftRequest struct {
	Title string `json:"title"`
}

type draftResponse struct {
	Title string `json:"title"`
}

func markingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("marked", true)
		c.Next()
	}
}

func TestRouter_Groups(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("group uses base path", func(t *testing.T) {
		server := &Server{engine: gin.New(), basePath: "/api"}
		group := server.Group("/posts")
		assert.Equal(t, "/api/posts", group.group.BasePath())
	})

	t.Run("controller registration", func(t *testing.T) {
		server := &Server{engine: gin.New(), basePath: "/api"}
		controller := &recordingController{}
		server.RegisterController("/posts", controller)
		require.NotNil(t, controller.group)
		assert.Equal(t, "/api/posts", controller.group.group.BasePath())
	})

	t.Run("nested groups", func(t *testing.T) {
		server := &Server{engine: gin.New()}
		nested := server.Group("/api").Group("/posts").Group("/drafts")
		nested.GET("", func(ctx *Context) (*draftResponse, error) {
			return &draftResponse{Title: "nested"}, nil
		})

		w := httptest.NewRecorder()
		server.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/posts/drafts", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"title":"nested"}`, w.Body.String())
	})

	t.Run("middleware order", func(t *testing.T) {
		server := &Server{engine: gin.New()}
		group := server.Group("/posts")

		var calls []string
		group.Use(func(c *gin.Context) {
			calls = append(calls, "group")
			c.Next()
		})
		group.GET("", func(ctx *Context) {
			calls = append(calls, "handler")
			ctx.Status(http.StatusNoContent)
		}, func(c *gin.Context) {
			calls = append(calls, "route")
			c.Next()
		})

		w := httptest.NewRecorder()
		server.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/posts", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, []string{"group", "route", "handler"}, calls)
	})
}

func TestRouter_HandlerShapes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name         string
		handler      interface{}
		method       string
		body         string
		middleware   []gin.HandlerFunc
		expectedCode int
		expectedBody string
	}{
		{
			name: "no arguments",
			handler: func() (*draftResponse, error) {
				return &draftResponse{Title: "ok"}, nil
			},
			method:       http.MethodGet,
			expectedCode: http.StatusOK,
			expectedBody: `{"title":"ok"}`,
		},
		{
			name: "plain text",
			handler: func() (string, error) {
				return "pong", nil
			},
			method:       http.MethodGet,
			expectedCode: http.StatusOK,
			expectedBody: "pong",
		},
		{
			name: "request binding",
			handler: func(req draftRequest) (*draftResponse, error) {
				return &draftResponse{Title: strings.ToUpper(req.Title)}, nil
			},
			method:       http.MethodPost,
			body:         `{"title":"hello"}`,
			expectedCode: http.StatusOK,
			expectedBody: `{"title":"HELLO"}`,
		},
		{
			name: "context and request",
			handler: func(ctx *Context, req draftRequest) (*draftResponse, error) {
				return &draftResponse{Title: ctx.Request.Method + " " + req.Title}, nil
			},
			method:       http.MethodPut,
			body:         `{"title":"hello"}`,
			expectedCode: http.StatusOK,
			expectedBody: `{"title":"PUT hello"}`,
		},
		{
			name: "empty body binds zero value",
			handler: func(req draftRequest) (*draftResponse, error) {
				return &draftResponse{Title: req.Title}, nil
			},
			method:       http.MethodPost,
			expectedCode: http.StatusOK,
			expectedBody: `{"title":""}`,
		},
		{
			name: "malformed body",
			handler: func(req draftRequest) (*draftResponse, error) {
				return &draftResponse{}, nil
			},
			method:       http.MethodPost,
			body:         `{"title":`,
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "api error",
			handler: func(ctx *Context) (*draftResponse, error) {
				return nil, ErrNotFound.New("Post")
			},
			method:       http.MethodGet,
			expectedCode: http.StatusNotFound,
			expectedBody: `{"error_code":"NOT_FOUND","message":"Post not found"}`,
		},
		{
			name: "unknown error",
			handler: func() error {
				return errors.New("boom")
			},
			method:       http.MethodDelete,
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"error_code":"Internal Server Error","message":"An unknown error occurred"}`,
		},
		{
			name: "middleware runs first",
			handler: func(ctx *Context) (*draftResponse, error) {
				if !ctx.GetBool("marked") {
					return nil, ErrBadRequest.New("middleware did not run")
				}
				return &draftResponse{Title: "marked"}, nil
			},
			method:       http.MethodGet,
			middleware:   []gin.HandlerFunc{markingMiddleware()},
			expectedCode: http.StatusOK,
			expectedBody: `{"title":"marked"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := &Server{engine: gin.New()}
			group := server.Group("/drafts")

			switch tt.method {
			case http.MethodGet:
				group.GET("", tt.handler, tt.middleware...)
			case http.MethodPost:
				group.POST("", tt.handler, tt.middleware...)
			case http.MethodPut:
				group.PUT("", tt.handler, tt.middleware...)
			case http.MethodDelete:
				group.DELETE("", tt.handler, tt.middleware...)
			}

			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, "/drafts", strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			server.engine.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedCode, w.Code)
			if tt.expectedBody == "" {
				return
			}
			if strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") {
				assert.Equal(t, tt.expectedBody, w.Body.String())
			} else {
				assert.JSONEq(t, tt.expectedBody, w.Body.String())
			}
		})
	}
}

func TestRouter_AllMethods(t *testing.T) {
	gin.SetMode(gin.TestMode)
	server := &Server{engine: gin.New()}
	group := server.Group("/posts")

	register := map[string]func(string, interface{}, ...gin.HandlerFunc){
		http.MethodGet:     group.GET,
		http.MethodPost:    group.POST,
		http.MethodPut:     group.PUT,
		http.MethodPatch:   group.PATCH,
		http.MethodDelete:  group.DELETE,
		http.MethodOptions: group.OPTIONS,
		http.MethodHead:    group.HEAD,
	}
	for method, fn := range register {
		method := method
		fn("/"+strings.ToLower(method), func() (*draftResponse, error) {
			return &draftResponse{Title: method}, nil
		})
	}

	for method := range register {
		t.Run(method, func(t *testing.T) {
			w := httptest.NewRecorder()
			server.engine.ServeHTTP(w, httptest.NewRequest(method, "/posts/"+strings.ToLower(method), nil))
			assert.Equal(t, http.StatusOK, w.Code)
			if method == http.MethodHead {
				return
			}
			var resp draftResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, method, resp.Title)
		})
	}
}

func TestWrapHandler_RejectsNonFunctions(t *testing.T) {
	assert.Panics(t, func() { wrapHandler("not a handler") })
	assert.Panics(t, func() {
		wrapHandler(func(a, b, c draftRequest) error { return nil })
	})
}

type recordingController struct {
	group *ControllerGroup
}

func (r *recordingController) Register(group *ControllerGroup) {
	r.group = group
}

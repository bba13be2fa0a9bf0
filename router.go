package postboard

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
)

// Controller registers its routes on the group it is mounted under.
type Controller interface {
	Register(group *ControllerGroup)
}

type ControllerGroup struct {
	group *gin.RouterGroup
}

var (
	contextType = reflect.TypeOf(&Context{})
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

func (s *Server) Group(path string, middleware ...gin.HandlerFunc) *ControllerGroup {
	return &ControllerGroup{group: s.engine.Group(s.basePath+path, middleware...)}
}

func (s *Server) RegisterController(path string, controller Controller) {
	controller.Register(s.Group(path))
}

func (g *ControllerGroup) Group(path string, middleware ...gin.HandlerFunc) *ControllerGroup {
	return &ControllerGroup{group: g.group.Group(path, middleware...)}
}

func (g *ControllerGroup) Use(middleware ...gin.HandlerFunc) {
	g.group.Use(middleware...)
}

func (g *ControllerGroup) GET(path string, handler interface{}, middleware ...gin.HandlerFunc) {
	g.handle(http.MethodGet, path, handler, middleware)
}

func (g *ControllerGroup) POST(path string, handler interface{}, middleware ...gin.HandlerFunc) {
	g.handle(http.MethodPost, path, handler, middleware)
}

func (g *ControllerGroup) PUT(path string, handler interface{}, middleware ...gin.HandlerFunc) {
	g.handle(http.MethodPut, path, handler, middleware)
}

func (g *ControllerGroup) PATCH(path string, handler interface{}, middleware ...gin.HandlerFunc) {
	g.handle(http.MethodPatch, path, handler, middleware)
}

func (g *ControllerGroup) DELETE(path string, handler interface{}, middleware ...gin.HandlerFunc) {
	g.handle(http.MethodDelete, path, handler, middleware)
}

func (g *ControllerGroup) OPTIONS(path string, handler interface{}, middleware ...gin.HandlerFunc) {
	g.handle(http.MethodOptions, path, handler, middleware)
}

func (g *ControllerGroup) HEAD(path string, handler interface{}, middleware ...gin.HandlerFunc) {
	g.handle(http.MethodHead, path, handler, middleware)
}

func (g *ControllerGroup) handle(method, path string, handler interface{}, middleware []gin.HandlerFunc) {
	handlers := append([]gin.HandlerFunc{}, middleware...)
	handlers = append(handlers, wrapHandler(handler))
	g.group.Handle(method, path, handlers...)
}

// wrapHandler adapts handler into a gin.HandlerFunc. Supported shapes are gin handlers,
// func(*Context), and funcs taking an optional *Context and an optional request value
// that return (response, error) or just error. Request values are bound from JSON.
func wrapHandler(handler interface{}) gin.HandlerFunc {
	switch h := handler.(type) {
	case gin.HandlerFunc:
		return h
	case func(*gin.Context):
		return h
	case func(*Context):
		return func(c *gin.Context) { h(NewContext(c)) }
	}

	hv := reflect.ValueOf(handler)
	ht := hv.Type()
	if ht.Kind() != reflect.Func {
		panic(fmt.Sprintf("handler must be a function, got %s", ht.Kind()))
	}
	if ht.NumIn() > 2 {
		panic("handler accepts at most a context and a request")
	}

	return func(c *gin.Context) {
		ctx := NewContext(c)
		args := make([]reflect.Value, 0, ht.NumIn())
		for i := 0; i < ht.NumIn(); i++ {
			in := ht.In(i)
			if in == contextType {
				args = append(args, reflect.ValueOf(ctx))
				continue
			}
			req := reflect.New(in)
			if err := c.ShouldBindJSON(req.Interface()); err != nil && !errors.Is(err, io.EOF) {
				SendError(c, ErrBadRequest.New(err.Error()))
				return
			}
			args = append(args, req.Elem())
		}

		out := hv.Call(args)
		if len(out) == 0 {
			return
		}
		last := out[len(out)-1]
		if last.Type().Implements(errorType) {
			if !last.IsNil() {
				SendError(c, last.Interface().(error))
				return
			}
			out = out[:len(out)-1]
		}
		if len(out) == 0 || c.Writer.Written() {
			return
		}

		switch resp := out[0].Interface().(type) {
		case string:
			c.String(http.StatusOK, resp)
		default:
			c.JSON(http.StatusOK, resp)
		}
	}
}

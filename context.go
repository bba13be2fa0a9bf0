package postboard

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
)

// Keys under which the authentication middleware stores the caller identity.
const (
	UserIDKey = "user_id"
	ScopesKey = "scopes"
)

type AuthContext struct {
	UserID int64
	Scopes []string
}

// HasScope reports whether the caller was granted scope. A "*" grant matches every scope.
func (a AuthContext) HasScope(scope string) bool {
	for _, s := range a.Scopes {
		if s == scope || s == "*" {
			return true
		}
	}
	return false
}

type Context struct {
	*gin.Context
}

func NewContext(c *gin.Context) *Context {
	return &Context{Context: c}
}

// GetAuthContext returns the current auth context
func (c *Context) GetAuthContext() (AuthContext, error) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		SendError(c.Context, ErrUnauthenticated)
		return AuthContext{}, errors.New("operation not permitted")
	}
	id, ok := userID.(int64)
	if !ok {
		SendError(c.Context, ErrUnauthenticated)
		return AuthContext{}, errors.New("operation not permitted")
	}
	var scopes []string
	if raw, exists := c.Get(ScopesKey); exists {
		scopes, _ = raw.([]string)
	}
	return AuthContext{
		UserID: id,
		Scopes: scopes,
	}, nil
}

// GetRequest binds the JSON body into request. An empty body leaves request at its zero value.
func (c *Context) GetRequest(request interface{}) error {
	if err := c.ShouldBindJSON(request); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		SendError(c.Context, ErrBadRequest.New(err.Error()))
		return errors.New("bad request: " + err.Error())
	}
	return nil
}

func (c *Context) SendError(err error) {
	SendError(c.Context, err)
}

package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/klass-lk/postboard"
	"github.com/klass-lk/postboard/internal/middleware"
	"github.com/klass-lk/postboard/internal/model"
	"github.com/klass-lk/postboard/internal/service"
	"github.com/klass-lk/postboard/internal/validation"
)

type Options struct {
	TokenSecret    string
	RequiredScopes []string
	// LegacyEnvelope reports show as unsuccessful and inverts the delete flag,
	// matching clients written against the first release of the API. The zero
	// value gives the corrected envelope; config.Load turns the flag on unless
	// LEGACY_ENVELOPE=false is set.
	LegacyEnvelope bool
}

type PostController struct {
	postService *service.PostService
	options     Options
}

func NewPostController(postService *service.PostService, options Options) *PostController {
	return &PostController{
		postService: postService,
		options:     options,
	}
}

type envelope struct {
	Success bool              `json:"success"`
	Data    interface{}       `json:"data,omitempty"`
	Errors  validation.Errors `json:"errors,omitempty"`
}

func (c *PostController) Register(group *postboard.ControllerGroup) {
	group.GET("", c.ListPosts)
	group.GET("/:id", c.GetPost)

	guards := []gin.HandlerFunc{middleware.Authenticate(c.options.TokenSecret)}
	if len(c.options.RequiredScopes) > 0 {
		guards = append(guards, middleware.RequireScopes(c.options.RequiredScopes...))
	}
	protected := group.Group("", guards...)
	{
		protected.POST("", c.CreatePost)
		protected.PATCH("/:id", c.UpdatePost)
		protected.PUT("/:id", c.UpdatePost)
		protected.DELETE("/:id", c.DeletePost)
	}
}

func (c *PostController) ListPosts(ctx *postboard.Context) {
	posts, err := c.postService.ListPosts(ctx.Request.Context())
	if err != nil {
		c.fail(ctx, err)
		return
	}
	if posts == nil {
		posts = []model.Post{}
	}
	c.respond(ctx, http.StatusOK, true, posts)
}

func (c *PostController) CreatePost(ctx *postboard.Context) {
	actor, ok := c.actor(ctx)
	if !ok {
		return
	}
	var input model.PostInput
	if err := ctx.GetRequest(&input); err != nil {
		return
	}

	post, err := c.postService.CreatePost(ctx.Request.Context(), actor, input)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	c.respond(ctx, http.StatusOK, true, post)
}

func (c *PostController) GetPost(ctx *postboard.Context) {
	id, ok := postID(ctx)
	if !ok {
		return
	}

	post, err := c.postService.GetPost(ctx.Request.Context(), id)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	c.respond(ctx, http.StatusOK, !c.options.LegacyEnvelope, post)
}

func (c *PostController) UpdatePost(ctx *postboard.Context) {
	actor, ok := c.actor(ctx)
	if !ok {
		return
	}
	id, ok := postID(ctx)
	if !ok {
		return
	}
	var input model.PostInput
	if err := ctx.GetRequest(&input); err != nil {
		return
	}

	post, err := c.postService.UpdatePost(ctx.Request.Context(), actor, id, input)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	c.respond(ctx, http.StatusOK, true, post)
}

func (c *PostController) DeletePost(ctx *postboard.Context) {
	actor, ok := c.actor(ctx)
	if !ok {
		return
	}
	id, ok := postID(ctx)
	if !ok {
		return
	}

	err := c.postService.DeletePost(ctx.Request.Context(), actor, id)
	if err != nil && !errors.Is(err, service.ErrPersistence) {
		c.fail(ctx, err)
		return
	}
	deleted := err == nil
	if c.options.LegacyEnvelope {
		deleted = !deleted
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusInternalServerError
	}
	c.respond(ctx, status, deleted, nil)
}

func (c *PostController) respond(ctx *postboard.Context, status int, ok bool, data interface{}) {
	ctx.JSON(status, envelope{Success: ok, Data: data})
}

// fail maps a service error onto its HTTP representation.
func (c *PostController) fail(ctx *postboard.Context, err error) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		ctx.JSON(http.StatusUnprocessableEntity, envelope{Success: false, Errors: validationErr.Errors})
	case errors.Is(err, service.ErrPostNotFound):
		ctx.SendError(postboard.ErrNotFound.New("Post"))
	case errors.Is(err, service.ErrForbidden):
		ctx.SendError(postboard.ErrForbidden)
	default:
		c.respond(ctx, http.StatusInternalServerError, false, nil)
	}
}

func (c *PostController) actor(ctx *postboard.Context) (model.User, bool) {
	auth, err := ctx.GetAuthContext()
	if err != nil {
		return model.User{}, false
	}
	return model.User{ID: auth.UserID, Scopes: auth.Scopes}, true
}

// postID parses the :id path parameter. Ids that cannot name a post are reported as missing.
func postID(ctx *postboard.Context) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		ctx.SendError(postboard.ErrNotFound.New("Post"))
		return 0, false
	}
	return id, true
}

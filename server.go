package postboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Runtime string

const (
	RuntimeLambda Runtime = "lambda"
	RuntimeHTTP   Runtime = "http"
)

const shutdownTimeout = 10 * time.Second

// ServerOption configures a Server before its middleware chain is built.
type ServerOption func(*Server)

type Server struct {
	engine     *gin.Engine
	basePath   string
	runtime    Runtime
	corsConfig *cors.Config
}

// New builds the engine with logging, recovery and, when configured, CORS
// already installed, so routes registered later are always covered.
// LAMBDA_RUNTIME=true selects the Lambda runtime unless WithRuntime overrides it.
func New(options ...ServerOption) *Server {
	s := &Server{
		engine:  gin.New(),
		runtime: RuntimeHTTP,
	}
	if os.Getenv("LAMBDA_RUNTIME") == "true" {
		s.runtime = RuntimeLambda
	}
	for _, option := range options {
		option(s)
	}

	s.engine.Use(gin.Logger(), gin.Recovery())
	if s.corsConfig != nil {
		s.engine.Use(cors.New(*s.corsConfig))
	}
	return s
}

// WithBasePath prefixes every controller group, e.g. "/api".
func WithBasePath(path string) ServerOption {
	return func(s *Server) {
		s.basePath = strings.TrimRight(path, "/")
	}
}

func WithRuntime(runtime Runtime) ServerOption {
	return func(s *Server) {
		s.runtime = runtime
	}
}

func WithCORS(config cors.Config) ServerOption {
	return func(s *Server) {
		s.corsConfig = &config
	}
}

// WithAllowedOrigins enables CORS for the post API. No origins means any origin.
func WithAllowedOrigins(origins ...string) ServerOption {
	config := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Length", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	return WithCORS(config)
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) BasePath() string {
	return s.basePath
}

// Start serves until ctx is cancelled. Over HTTP, in-flight requests get
// shutdownTimeout to finish; under Lambda, ctx is ignored and Start blocks
// for the life of the function.
func (s *Server) Start(ctx context.Context, port int) error {
	if s.runtime == RuntimeLambda {
		s.startLambda()
		return nil
	}
	return s.startHTTP(ctx, port)
}

func (s *Server) startHTTP(ctx context.Context, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("shutting down server on %s", srv.Addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) startLambda() {
	ginLambda := ginadapter.New(s.engine)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return ginLambda.ProxyWithContext(ctx, req)
	})
}

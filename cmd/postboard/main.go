package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/klass-lk/postboard"
	"github.com/klass-lk/postboard/internal/config"
	"github.com/klass-lk/postboard/internal/controller"
	"github.com/klass-lk/postboard/internal/repository"
	"github.com/klass-lk/postboard/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	postRepo, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open %s store: %v", cfg.Store, err)
	}
	defer closeStore()

	postService := service.NewPostService(postRepo)

	server := postboard.New(
		postboard.WithBasePath(cfg.BasePath),
		postboard.WithAllowedOrigins(cfg.AllowOrigins...),
	)

	postController := controller.NewPostController(postService, controller.Options{
		TokenSecret:    cfg.JWTSecret,
		RequiredScopes: cfg.RequiredScopes,
		LegacyEnvelope: cfg.LegacyEnvelope,
	})
	server.RegisterController("/posts", postController)

	log.Printf("serving posts from %s store on :%d%s", cfg.Store, cfg.Port, server.BasePath())
	if err := server.Start(ctx, cfg.Port); err != nil {
		log.Printf("server stopped: %v", err)
		return
	}
	log.Println("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (repository.PostRepository, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		db, err := cfg.SQLConfig().Connect(ctx)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewSQLPostRepository(db)
		if err := repo.CreateTable(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repo, func() { db.Close() }, nil

	case config.StoreMongo:
		client, db, err := cfg.MongoConfig().Connect(ctx)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewMongoPostRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		return repo, func() { _ = client.Disconnect(context.Background()) }, nil

	case config.StoreDynamoDB:
		ddbConfig := cfg.DynamoDBConfig()
		client, err := postboard.NewDynamoDBClient(ctx, ddbConfig)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewDynamoDBPostRepository(client, ddbConfig.TableName)
		if !ddbConfig.SkipTableCreation {
			if err := repo.EnsureTable(ctx); err != nil {
				return nil, nil, err
			}
		}
		return repo, func() {}, nil

	case config.StoreMemory:
		log.Println("using in-memory store; posts are lost on restart")
		return repository.NewMemoryPostRepository(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unsupported store %q", cfg.Store)
}

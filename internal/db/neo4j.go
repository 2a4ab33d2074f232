package db

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type Config struct {
	URI      string
	Username string
	Password string

	// Breaker tuning; zero values pick the defaults.
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

// Client wraps the Neo4j driver with a connectivity circuit breaker.
// A string of connectivity failures opens the breaker and callers fail
// fast with ErrCircuitOpen until the cooldown window passes.
type Client struct {
	driver  neo4j.DriverWithContext
	breaker *CircuitBreaker
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}

	return &Client{
		driver:  driver,
		breaker: NewCircuitBreaker(cfg.FailureThreshold, cfg.RecoveryTimeout, neo4j.IsConnectivityError),
	}, nil
}

func (c *Client) Close() error {
	return c.driver.Close(context.Background())
}

func (c *Client) Ping(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

func (c *Client) BreakerState() string {
	return c.breaker.State()
}

func (c *Client) session(ctx context.Context) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: "neo4j",
	})
}

// ExecuteWrite runs a write transaction under breaker protection.
func (c *Client) ExecuteWrite(ctx context.Context, work func(tx neo4j.ManagedTransaction) (any, error)) (any, error) {
	return c.breaker.Execute(func() (any, error) {
		session := c.session(ctx)
		defer session.Close(ctx)
		return session.ExecuteWrite(ctx, work)
	})
}

// ExecuteRead runs a read transaction under breaker protection.
func (c *Client) ExecuteRead(ctx context.Context, work func(tx neo4j.ManagedTransaction) (any, error)) (any, error) {
	return c.breaker.Execute(func() (any, error) {
		session := c.session(ctx)
		defer session.Close(ctx)
		return session.ExecuteRead(ctx, work)
	})
}

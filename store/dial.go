package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	rdsauth "github.com/aws/aws-sdk-go-v2/feature/rds/auth"
	_ "github.com/lib/pq"
)

// DBConfig describes how to reach the run-history database: either a
// static password, or (AuthMode == "iam") an RDS IAM auth token minted at
// dial time, mirroring cso-book's two connection modes.
type DBConfig struct {
	Profile string // dev-only AWS profile override
	Region  string

	Endpoint string
	Port     int
	User     string
	Name     string

	AuthMode string // "password" (default) or "iam"
	Password string
}

func (c DBConfig) loadAWSConfig(ctx context.Context) (*aws.Config, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(c.Profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &cfg, nil
}

// dial opens the run-history PostgreSQL connection, resolving an IAM auth
// token first when cfg.AuthMode is "iam".
func dial(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	endpoint := fmt.Sprintf("%s:%d", cfg.Endpoint, cfg.Port)
	password := cfg.Password

	if cfg.AuthMode == "iam" {
		awsCfg, err := cfg.loadAWSConfig(ctx)
		if err != nil {
			return nil, err
		}
		token, err := rdsauth.BuildAuthToken(ctx, endpoint, cfg.Region, cfg.User, awsCfg.Credentials)
		if err != nil {
			return nil, fmt.Errorf("build rds auth token: %w", err)
		}
		password = token
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=require",
		url.QueryEscape(cfg.User),
		url.QueryEscape(password),
		endpoint,
		url.QueryEscape(cfg.Name),
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open db connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

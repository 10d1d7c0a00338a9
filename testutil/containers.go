//go:build integration

package testutil

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

var containerDSN string

// StartPostgres starts a throwaway Postgres container unless TEST_DATABASE_URL
// is already set, and makes DSN return its connection string. The returned
// function terminates the container. Call it from TestMain.
func StartPostgres(ctx context.Context) (func(), error) {
	if DSN() != "" {
		return func() {}, nil
	}

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("diary"),
		tcpostgres.WithUsername("diary"),
		tcpostgres.WithPassword("diary"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, fmt.Errorf("testutil.StartPostgres: run: %w", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = testcontainers.TerminateContainer(ctr)
		return nil, fmt.Errorf("testutil.StartPostgres: connection string: %w", err)
	}

	containerDSN = dsn
	return func() {
		containerDSN = ""
		_ = testcontainers.TerminateContainer(ctr)
	}, nil
}

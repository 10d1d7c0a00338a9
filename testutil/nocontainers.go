//go:build !integration

package testutil

import "context"

// containerDSN stays empty without the integration build tag.
var containerDSN string

// StartPostgres is a no-op without the integration build tag; tests fall back
// to TEST_DATABASE_URL or skip.
func StartPostgres(context.Context) (func(), error) {
	return func() {}, nil
}

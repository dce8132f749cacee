package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"secureserve/internal/perimeter/headers"
	"secureserve/internal/perimeter/ratelimit"
)

// stubService satisfies Service for swap-in tests.
type stubService struct{ Service }

func TestDefaultService(t *testing.T) {
	orig := Default()
	t.Cleanup(func() { SetDefault(orig) })

	SetDefault(nil)
	assert.Nil(t, Default())

	InitDefault(Config{Host: "localhost"}, ratelimit.Config{}, headers.DefaultConfig(), discardLogger())
	assert.NotNil(t, Default())

	stub := &stubService{}
	SetDefault(stub)
	assert.Same(t, Service(stub), Default())
}

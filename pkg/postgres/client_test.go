package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestConnectRetryable(t *testing.T) {
	assert.True(t, connectRetryable(errors.New("dial tcp: connection refused")))
	assert.True(t, connectRetryable(&pq.Error{Code: "57P03"}), "server starting up")
	assert.False(t, connectRetryable(&pq.Error{Code: "28P01"}), "bad password")
	assert.False(t, connectRetryable(fmt.Errorf("ping: %w", &pq.Error{Code: "3D000"})))
}

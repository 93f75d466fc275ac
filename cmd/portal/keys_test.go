package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/security/apikey"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManageKeysWithoutPostgresPrintsHash(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, manageKeys(context.Background(), config.Default(), "ops", "", &out))

	var raw, hash string
	for line := range strings.Lines(out.String()) {
		k, v, _ := strings.Cut(line, ":")
		switch k {
		case "api key":
			raw = strings.TrimSpace(v)
		case "sha-256":
			hash = strings.TrimSpace(v)
		}
	}
	require.Len(t, raw, 64)
	assert.Equal(t, apikey.HashKey(raw), hash)

	static, err := apikey.NewStatic([]string{hash})
	require.NoError(t, err)
	_, err = static.Validate(context.Background(), raw)
	assert.NoError(t, err)
}

func TestManageKeysRevokeNeedsPostgres(t *testing.T) {
	err := manageKeys(context.Background(), config.Default(), "", "abc", &bytes.Buffer{})
	assert.Error(t, err)
}

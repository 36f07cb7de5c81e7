package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/gustycube/quad9-domains/internal/types"
)

func TestLoadEndpoints(t *testing.T) {
	path := writeFile(t, "Q_config.json", `{
		"user": "ops",
		"password": "s3cret",
		"db_name": "q",
		"servers": [
			{"public": "q1.example.net", "private": "10.0.0.5"},
			{"public": "q2.example.net:2222", "private": "10.0.1.5"}
		]
	}`)

	eps, err := LoadEndpoints(path)
	require.NoError(t, err)
	require.Len(t, eps, 2)

	assert.Equal(t, Endpoint{
		PublicAddr:  "q1.example.net",
		PrivateAddr: "10.0.0.5",
		Username:    "ops",
		Password:    "s3cret",
		DBName:      "q",
	}, eps[0])
	assert.Equal(t, "q2.example.net:2222", eps[1].PublicAddr)
	assert.Equal(t, "ops", eps[1].Username)
	assert.Equal(t, "Q Server (q1.example.net, 10.0.0.5)", eps[0].String())
	assert.NotContains(t, eps[0].String(), "s3cret")
	assert.NotEqual(t, eps[0].Key(), eps[1].Key())
}

func TestLoadEndpoints_YAML(t *testing.T) {
	path := writeFile(t, "q.yaml", `
user: ops
password: pw
db_name: q
servers:
  - public: q1.example.net
    private: 10.0.0.5
`)
	eps, err := LoadEndpoints(path)
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, "10.0.0.5", eps[0].PrivateAddr)
}

func TestLoadEndpoints_EmptyServers(t *testing.T) {
	path := writeFile(t, "Q_config.json", `{"user": "u", "password": "p", "db_name": "q", "servers": []}`)
	eps, err := LoadEndpoints(path)
	require.NoError(t, err)
	assert.Empty(t, eps)
}

func TestLoadEndpoints_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed", `{"user": "u",`},
		{"missing servers", `{"user": "u", "password": "p", "db_name": "q"}`},
		{"missing user", `{"password": "p", "db_name": "q", "servers": []}`},
		{"missing password", `{"user": "u", "db_name": "q", "servers": []}`},
		{"server without private", `{"user": "u", "password": "p", "db_name": "q", "servers": [{"public": "a"}]}`},
		{"empty db name", `{"user": "u", "password": "p", "db_name": "", "servers": [{"public": "a", "private": "b"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "Q_config.json", tt.content)
			_, err := LoadEndpoints(path)
			var ce *types.ConfigurationError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, path, ce.Path)
		})
	}
}

func TestLoadEndpoints_MissingFile(t *testing.T) {
	_, err := LoadEndpoints("does-not-exist.json")
	var ce *types.ConfigurationError
	assert.True(t, errors.As(err, &ce))
}

func TestEndpoint_MarshalLogObjectOmitsPassword(t *testing.T) {
	ep := Endpoint{PublicAddr: "q1", PrivateAddr: "10.0.0.1", Username: "ops", Password: "s3cret", DBName: "q"}

	enc := zapcore.NewMapObjectEncoder()
	require.NoError(t, ep.MarshalLogObject(enc))

	assert.Equal(t, map[string]interface{}{
		"public":  "q1",
		"private": "10.0.0.1",
		"user":    "ops",
		"db":      "q",
	}, enc.Fields)
}

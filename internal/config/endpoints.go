package config

import (
	"errors"
	"fmt"

	"go.uber.org/zap/zapcore"

	"github.com/gustycube/quad9-domains/internal/types"
)

// Endpoint is one remote operational database reachable through SSH.
// Identity is the (PublicAddr, PrivateAddr) pair.
type Endpoint struct {
	PublicAddr  string
	PrivateAddr string
	Username    string
	Password    string
	DBName      string
}

// Key returns the endpoint identity.
func (e Endpoint) Key() string {
	return e.PublicAddr + "|" + e.PrivateAddr
}

func (e Endpoint) String() string {
	return fmt.Sprintf("Q Server (%s, %s)", e.PublicAddr, e.PrivateAddr)
}

// MarshalLogObject lets zap log an endpoint without its password.
func (e Endpoint) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("public", e.PublicAddr)
	enc.AddString("private", e.PrivateAddr)
	enc.AddString("user", e.Username)
	enc.AddString("db", e.DBName)
	return nil
}

type endpointsFile struct {
	User     *string        `yaml:"user" json:"user"`
	Password *string        `yaml:"password" json:"password"`
	DBName   *string        `yaml:"db_name" json:"db_name"`
	Servers  *[]serverEntry `yaml:"servers" json:"servers"`
}

type serverEntry struct {
	Public  *string `yaml:"public" json:"public"`
	Private *string `yaml:"private" json:"private"`
}

// LoadEndpoints reads the operational endpoints file. Every server shares the
// file's credentials and database name. An empty servers list is valid and
// yields no endpoints.
func LoadEndpoints(path string) ([]Endpoint, error) {
	var f endpointsFile
	if err := decodeFile(path, &f); err != nil {
		return nil, &types.ConfigurationError{Path: path, Err: err}
	}

	var missing []string
	if f.User == nil {
		missing = append(missing, "user")
	}
	if f.Password == nil {
		missing = append(missing, "password")
	}
	if f.DBName == nil {
		missing = append(missing, "db_name")
	}
	if f.Servers == nil {
		missing = append(missing, "servers")
	}
	if len(missing) > 0 {
		return nil, &types.ConfigurationError{Path: path, Err: fmt.Errorf("missing required keys: %v", missing)}
	}

	endpoints := make([]Endpoint, 0, len(*f.Servers))
	for i, s := range *f.Servers {
		if s.Public == nil || *s.Public == "" || s.Private == nil || *s.Private == "" {
			return nil, &types.ConfigurationError{
				Path: path,
				Err:  fmt.Errorf("servers[%d]: public and private addresses are required", i),
			}
		}
		endpoints = append(endpoints, Endpoint{
			PublicAddr:  *s.Public,
			PrivateAddr: *s.Private,
			Username:    *f.User,
			Password:    *f.Password,
			DBName:      *f.DBName,
		})
	}
	if *f.DBName == "" && len(endpoints) > 0 {
		return nil, &types.ConfigurationError{Path: path, Err: errors.New("db_name must not be empty")}
	}
	return endpoints, nil
}

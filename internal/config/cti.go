package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/gustycube/quad9-domains/internal/types"
)

// CTI drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// CTI describes the connection to the threat-intel database.
type CTI struct {
	Driver   string `yaml:"driver" json:"driver"`
	DSN      string `yaml:"dsn" json:"dsn"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	DBName   string `yaml:"db_name" json:"db_name"`
	SSLMode  string `yaml:"sslmode" json:"sslmode"`
	Path     string `yaml:"path" json:"path"`

	ConnectRetries *int `yaml:"connect_retries" json:"connect_retries"`
}

func (c *CTI) SetDefaults() {
	if c.Driver == "" {
		c.Driver = DriverPostgres
	}
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.ConnectRetries == nil {
		n := 2
		c.ConnectRetries = &n
	}
}

func (c *CTI) Validate() error {
	if c.ConnectRetries != nil && *c.ConnectRetries < 0 {
		return fmt.Errorf("connect_retries must not be negative")
	}
	switch c.Driver {
	case DriverPostgres:
		if c.DSN != "" {
			return nil
		}
		if c.Host == "" {
			return fmt.Errorf("host is required for the postgres driver")
		}
		if c.DBName == "" {
			return fmt.Errorf("db_name is required for the postgres driver")
		}
	case DriverSQLite:
		if c.DSN == "" && c.Path == "" {
			return fmt.Errorf("path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported driver %q (use %s or %s)", c.Driver, DriverPostgres, DriverSQLite)
	}
	return nil
}

// ConnString returns the driver-specific data source name.
func (c *CTI) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.Driver == DriverSQLite {
		return c.Path
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Retries returns the number of connect retries after the first attempt.
func (c *CTI) Retries() int {
	if c.ConnectRetries == nil {
		return 0
	}
	return *c.ConnectRetries
}

// LoadCTI reads the threat-intel connection file.
func LoadCTI(path string) (*CTI, error) {
	var c CTI
	if err := decodeFile(path, &c); err != nil {
		return nil, &types.ConfigurationError{Path: path, Err: err}
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return nil, &types.ConfigurationError{Path: path, Err: err}
	}
	return &c, nil
}

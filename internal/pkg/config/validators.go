// internal/pkg/config/validators.go
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Validator checks a loaded configuration
type Validator interface {
	Validate(cfg *Config) error
}

// problems collects every failed rule so one run reports them all
type problems []error

func (p *problems) add(format string, args ...interface{}) {
	*p = append(*p, fmt.Errorf(format, args...))
}

func (p *problems) check(ok bool, format string, args ...interface{}) {
	if !ok {
		p.add(format, args...)
	}
}

func (p problems) err() error { return errors.Join(p...) }

// BasicValidator applies the rules every environment must satisfy
type BasicValidator struct{}

func (BasicValidator) Validate(cfg *Config) error {
	var p problems
	for _, field := range missingRequired(reflect.ValueOf(cfg).Elem(), "") {
		p.add("%w: %s", ErrMissingRequiredConfig, field)
	}

	switch cfg.Store.Driver {
	case "", StoreMemory, StoreRedis, StorePostgres:
	case StoreSQLite:
		p.check(cfg.Store.SQLitePath != "", "%w: SQLITE_PATH", ErrMissingRequiredConfig)
	default:
		p.add("unknown store driver %q", cfg.Store.Driver)
	}

	switch cfg.Storage.Driver {
	case "local":
		p.check(cfg.Storage.LocalDir != "", "%w: EXPORT_DIR", ErrMissingRequiredConfig)
	case "s3":
		p.check(cfg.AWS.S3Bucket != "", "%w: AWS_S3_BUCKET", ErrMissingRequiredConfig)
	default:
		p.add("unknown export storage %q", cfg.Storage.Driver)
	}

	p.check(cfg.Database.MaxConnections >= cfg.Database.MinConnections,
		"database max_connections (%d) is below min_connections (%d)",
		cfg.Database.MaxConnections, cfg.Database.MinConnections)
	p.check(cfg.Redis.PoolSize > 0, "redis pool_size must be positive")
	p.check(cfg.Security.RateLimitRequests > 0, "rate_limit_requests must be positive")
	p.check(cfg.Ledger.ConfirmationTTL > 0, "confirmation ttl must be positive")

	seen := make(map[string]bool, len(cfg.Security.Users))
	for _, u := range cfg.Security.Users {
		if u.Username == "" {
			p.add("%w: user without username", ErrMissingRequiredConfig)
			continue
		}
		name := strings.ToLower(u.Username)
		p.check(!seen[name], "duplicate user %q", u.Username)
		seen[name] = true
		p.check(u.Role == "owner" || u.Role == "employee", "user %q has invalid role %q", u.Username, u.Role)
		p.check(u.PasswordHash != "" || u.Password != "", "%w: password for user %q", ErrMissingRequiredConfig, u.Username)
	}
	return p.err()
}

// ProductionValidator refuses settings that are only safe on a dev till
type ProductionValidator struct{}

func (ProductionValidator) Validate(cfg *Config) error {
	var p problems
	p.check(!strings.HasPrefix(cfg.Database.Password, "MISSING_"), "%w: database password", ErrMissingRequiredConfig)
	p.check(cfg.Store.Driver != StoreMemory, "memory store cannot be used in production")
	p.check(cfg.Store.Driver != StorePostgres || cfg.Database.SSLMode != "disable",
		"database SSL must be enabled in production")
	p.check(cfg.Security.SecureHeaders, "secure headers must be enabled in production")
	p.check(len(cfg.Security.AllowedOrigins) > 0, "allowed origins must be configured in production")
	p.check(len(cfg.Security.Users) > 0, "%w: POS_USERS", ErrMissingRequiredConfig)
	for _, u := range cfg.Security.Users {
		p.check(u.PasswordHash != "", "user %q must have a password hash in production", u.Username)
	}
	return p.err()
}

// SecurityValidator bounds the credential and session settings
type SecurityValidator struct{}

func (SecurityValidator) Validate(cfg *Config) error {
	var p problems
	cost := cfg.Security.BcryptCost
	p.check(cost >= 10 && cost <= 15, "bcrypt cost %d is outside 10..15", cost)
	p.check(cfg.Security.SessionTTL > 0, "session ttl must be positive")
	for _, origin := range cfg.Security.AllowedOrigins {
		p.check(origin != "*" || !cfg.IsProduction(), "wildcard origin (*) not allowed in production")
	}
	return p.err()
}

// missingRequired walks v and returns the dotted names of fields tagged
// required:"true" that hold a zero or MISSING_ placeholder value.
func missingRequired(v reflect.Value, prefix string) []string {
	var missing []string
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		f, sf := v.Field(i), t.Field(i)
		name := sf.Name
		if prefix != "" {
			name = prefix + "." + name
		}
		if sf.Tag.Get("required") == "true" && unset(f) {
			missing = append(missing, name)
		}
		if f.Kind() == reflect.Struct {
			missing = append(missing, missingRequired(f, name)...)
		}
	}
	return missing
}

func unset(v reflect.Value) bool {
	if v.Kind() == reflect.String {
		return v.String() == "" || strings.HasPrefix(v.String(), "MISSING_")
	}
	if v.Kind() == reflect.Struct {
		return false
	}
	return v.IsZero()
}

package app

import (
	"fmt"
	"strings"
)

type LedgerBackend string

const (
	LedgerBackendRedis LedgerBackend = "redis"
	LedgerBackendDB    LedgerBackend = "db"
	LedgerBackendNone  LedgerBackend = "none"
)

type LedgerConfigErrorCode string

const (
	LedgerConfigErrorUnknownBackend LedgerConfigErrorCode = "unknown_backend"
	LedgerConfigErrorMissingAddr    LedgerConfigErrorCode = "missing_redis_addr"
	LedgerConfigErrorInvalidDB      LedgerConfigErrorCode = "invalid_redis_db"
)

type LedgerConfigError struct {
	Code    LedgerConfigErrorCode
	Backend string
	Cause   error
}

func (e *LedgerConfigError) Error() string {
	if e == nil {
		return "invalid ledger config"
	}
	return fmt.Sprintf("invalid ledger config (code=%s backend=%q): %v", e.Code, e.Backend, e.Cause)
}

func (e *LedgerConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveLedgerBackend picks where partial links are recorded. An empty
// backend means the mirror database.
func resolveLedgerBackend(cfg LedgerConfig) (LedgerBackend, error) {
	raw := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch LedgerBackend(raw) {
	case "", LedgerBackendDB:
		return LedgerBackendDB, nil
	case LedgerBackendNone:
		return LedgerBackendNone, nil
	case LedgerBackendRedis:
		if strings.TrimSpace(cfg.Redis.Addr) == "" {
			return "", &LedgerConfigError{
				Code:    LedgerConfigErrorMissingAddr,
				Backend: raw,
				Cause:   fmt.Errorf("ledger.redis.addr (or REDIS_ADDR) required"),
			}
		}
		if cfg.Redis.DB < 0 {
			return "", &LedgerConfigError{
				Code:    LedgerConfigErrorInvalidDB,
				Backend: raw,
				Cause:   fmt.Errorf("redis db %d", cfg.Redis.DB),
			}
		}
		return LedgerBackendRedis, nil
	default:
		return "", &LedgerConfigError{
			Code:    LedgerConfigErrorUnknownBackend,
			Backend: cfg.Backend,
			Cause:   fmt.Errorf("unsupported ledger backend %q", cfg.Backend),
		}
	}
}

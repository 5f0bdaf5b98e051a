package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/cell"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/constants"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/tx"
)

type Config struct {
	// RPC settings
	NodeURL    string
	IndexerURL string

	// HTTP client settings
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// Matching settings
	CronSpec      string
	BlockMinerFee uint64
	PrivateKey    string

	// Trading pair scripts
	InfoType      cell.Script
	InfoLock      cell.Script
	SudtType      cell.Script
	LptType       cell.Script
	SwapLock      cell.Script
	LiquidityLock cell.Script
	MatcherLock   cell.Script

	// Cell deps attached to every settlement, JSON-encoded
	CellDepsJSON string

	// Redis settings
	RedisAddr string
	RedisDB   int

	// ClickHouse settings (archive disabled when addr is empty)
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// Monitor endpoint settings
	ServerAddr string
	APIKey     string
}

func Load() *Config {
	return &Config{
		// RPC
		NodeURL:    getEnv("CKB_NODE_URL", "http://localhost:8114"),
		IndexerURL: getEnv("CKB_INDEXER_URL", ""),

		// HTTP
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", constants.DefaultHTTPTimeout),
		MaxRetries:   getIntEnv("MAX_RETRIES", constants.DefaultMaxRetries),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", constants.DefaultRetryBackoff),

		// Matching
		CronSpec:      getEnv("CRON_SPEC", constants.DefaultCronSpec),
		BlockMinerFee: getUint64Env("BLOCK_MINER_FEE", constants.DefaultBlockMinerFee),
		PrivateKey:    getEnv("MATCHER_PRIVATE_KEY", ""),

		// Scripts
		InfoType:      getScriptEnv("INFO_TYPE"),
		InfoLock:      getScriptEnv("INFO_LOCK"),
		SudtType:      getScriptEnv("SUDT_TYPE"),
		LptType:       getScriptEnv("LPT_TYPE"),
		SwapLock:      getScriptEnv("SWAP_LOCK"),
		LiquidityLock: getScriptEnv("LIQUIDITY_LOCK"),
		MatcherLock:   getScriptEnv("MATCHER_LOCK"),

		CellDepsJSON: getEnv("CELL_DEPS", "[]"),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:   getIntEnv("REDIS_DB", 0),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "amm"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// Monitor
		ServerAddr: getEnv("SERVER_ADDR", ":8090"),
		APIKey:     getEnv("API_KEY", ""),
	}
}

// PairScripts validates the script configuration and precomputes the pair's
// script hashes. The matcher lock args may be left empty in the environment,
// in which case they must be filled in from the signing key first.
func (c *Config) PairScripts() (*cell.PairScripts, error) {
	for name, s := range map[string]cell.Script{
		"INFO_TYPE":      c.InfoType,
		"INFO_LOCK":      c.InfoLock,
		"SUDT_TYPE":      c.SudtType,
		"LPT_TYPE":       c.LptType,
		"SWAP_LOCK":      c.SwapLock,
		"LIQUIDITY_LOCK": c.LiquidityLock,
		"MATCHER_LOCK":   c.MatcherLock,
	} {
		if s.CodeHash == "" {
			return nil, fmt.Errorf("missing %s_CODE_HASH", name)
		}
	}
	return cell.NewPairScripts(c.InfoType, c.InfoLock, c.SudtType, c.LptType,
		c.SwapLock, c.LiquidityLock, c.MatcherLock)
}

// CellDeps parses the configured settlement cell deps.
func (c *Config) CellDeps() ([]tx.CellDep, error) {
	var deps []tx.CellDep
	if err := json.Unmarshal([]byte(c.CellDepsJSON), &deps); err != nil {
		return nil, fmt.Errorf("parse CELL_DEPS: %w", err)
	}
	return deps, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getUint64Env(key string, defaultVal uint64) uint64 {
	if val := os.Getenv(key); val != "" {
		if u, err := strconv.ParseUint(val, 10, 64); err == nil {
			return u
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// getScriptEnv reads one script from <PREFIX>_CODE_HASH, <PREFIX>_HASH_TYPE
// and <PREFIX>_ARGS. Hash type defaults to "type".
func getScriptEnv(prefix string) cell.Script {
	return cell.Script{
		CodeHash: getEnv(prefix+"_CODE_HASH", ""),
		HashType: getEnv(prefix+"_HASH_TYPE", "type"),
		Args:     getEnv(prefix+"_ARGS", ""),
	}
}

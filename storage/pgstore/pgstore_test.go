package pgstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigDSNDefaultsToRequireSSL(t *testing.T) {
	cfg := Config{Host: "db.internal", Port: 5432, Database: "nuvex", User: "app", Password: "secret"}
	dsn := cfg.dsn()
	assert.Contains(t, dsn, "sslmode=require")
	assert.Contains(t, dsn, "db.internal:5432")
	assert.Contains(t, dsn, "/nuvex")
}

func TestConfigDSNOffDisablesSSL(t *testing.T) {
	cfg := Config{Host: "localhost", Port: 5432, Database: "nuvex", User: "app", Password: "x", SSLMode: "off"}
	assert.Contains(t, cfg.dsn(), "sslmode=disable")
}

func TestConfigDSNCustomVerifiesFull(t *testing.T) {
	cfg := Config{Host: "localhost", Port: 5432, Database: "nuvex", User: "app", Password: "x", SSLMode: "custom"}
	assert.Contains(t, cfg.dsn(), "sslmode=verify-full")
}

func TestFromPoolDoesNotOwnPool(t *testing.T) {
	l := FromPool(nil, Schema{TableName: "t", KeyColumn: "k", ValueColumn: "v"})
	assert.False(t, l.ownedPool)
}

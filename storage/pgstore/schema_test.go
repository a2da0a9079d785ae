package pgstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nuvex/nuvex/internal/xerrors"
)

func TestValidateIdentifierAccepts(t *testing.T) {
	for _, id := range []string{"nuvex_store", "_private", "Key1", "value"} {
		assert.NoError(t, ValidateIdentifier(id))
	}
}

func TestValidateIdentifierRejects(t *testing.T) {
	for _, id := range []string{"", "1key", "key-name", "key name", "key;DROP TABLE x", "key.sub"} {
		err := ValidateIdentifier(id)
		assert.Error(t, err)
		assert.True(t, xerrors.Is(err, xerrors.SchemaInvalidIdentifier))
	}
}

func TestSchemaValidateChecksAllThreeIdentifiers(t *testing.T) {
	s := Schema{TableName: "t", KeyColumn: "k", ValueColumn: "v"}
	assert.NoError(t, s.Validate())

	bad := Schema{TableName: "bad-name", KeyColumn: "k", ValueColumn: "v"}
	assert.Error(t, bad.Validate())
}

func TestGeneratedFunctionNamesAreDerivedFromTable(t *testing.T) {
	s := Schema{TableName: "events"}
	assert.Equal(t, "cleanup_expired_events", s.cleanupFunctionName())
	assert.Equal(t, "touch_updated_at_events", s.triggerFunctionName())
	assert.Equal(t, "trg_touch_updated_at_events", s.triggerName())
	assert.Equal(t, "nuvex_cleanup_events", s.cronJobName())
}

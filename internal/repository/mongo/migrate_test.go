package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationDSN(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want string
	}{
		{"adds database", "mongodb://localhost:27017", "mongodb://localhost:27017/ecommerce"},
		{"adds database after slash", "mongodb://localhost:27017/", "mongodb://localhost:27017/ecommerce"},
		{"keeps explicit database", "mongodb://localhost:27017/other", "mongodb://localhost:27017/other"},
		{"keeps query", "mongodb://u:p@localhost:27017/?authSource=admin", "mongodb://u:p@localhost:27017/ecommerce?authSource=admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MigrationDSN(tt.uri, "ecommerce")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

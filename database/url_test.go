package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructDatabaseURL(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		dbName   string
		expected string
	}{
		{
			name:     "no database name",
			baseURL:  "postgres://u:p@localhost:5432/app",
			expected: "postgres://u:p@localhost:5432/app",
		},
		{
			name:     "appends name and sslmode",
			baseURL:  "postgres://u:p@localhost:5432/",
			dbName:   "time26",
			expected: "postgres://u:p@localhost:5432/time26?sslmode=disable",
		},
		{
			name:     "keeps query and sslmode",
			baseURL:  "postgres://u:p@db:5432?sslmode=require",
			dbName:   "time26",
			expected: "postgres://u:p@db:5432/time26?sslmode=require",
		},
		{
			name:     "adds sslmode to existing query",
			baseURL:  "postgres://u:p@db:5432?connect_timeout=5",
			dbName:   "time26",
			expected: "postgres://u:p@db:5432/time26?connect_timeout=5&sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ConstructDatabaseURL(tt.baseURL, tt.dbName))
		})
	}
}

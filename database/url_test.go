package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructDatabaseURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		baseURL  string
		dbName   string
		expected string
	}{
		{
			name:     "no database name keeps base url",
			baseURL:  "postgres://u:p@localhost:5432",
			dbName:   "",
			expected: "postgres://u:p@localhost:5432",
		},
		{
			name:     "appends name and sslmode",
			baseURL:  "postgres://u:p@localhost:5432",
			dbName:   "swagclan",
			expected: "postgres://u:p@localhost:5432/swagclan?sslmode=disable",
		},
		{
			name:     "trailing slash",
			baseURL:  "postgres://u:p@localhost:5432/",
			dbName:   "swagclan",
			expected: "postgres://u:p@localhost:5432/swagclan?sslmode=disable",
		},
		{
			name:     "existing query parameters",
			baseURL:  "postgres://u:p@localhost:5432?connect_timeout=5",
			dbName:   "swagclan",
			expected: "postgres://u:p@localhost:5432/swagclan?connect_timeout=5&sslmode=disable",
		},
		{
			name:     "existing sslmode is kept",
			baseURL:  "postgres://u:p@db:5432?sslmode=require",
			dbName:   "swagclan",
			expected: "postgres://u:p@db:5432/swagclan?sslmode=require",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ConstructDatabaseURL(tt.baseURL, tt.dbName))
		})
	}
}

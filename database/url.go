package database

import (
	"fmt"
	"strings"
)

// ConstructDatabaseURL appends databaseName to baseURL, keeping any query
// parameters and adding sslmode=disable when no sslmode is given.
// An empty databaseName returns baseURL unchanged.
func ConstructDatabaseURL(baseURL, databaseName string) string {
	if databaseName == "" {
		return baseURL
	}

	baseURL = strings.TrimRight(baseURL, "/")
	var databaseURL string

	if base, query, ok := strings.Cut(baseURL, "?"); ok {
		databaseURL = fmt.Sprintf("%s/%s?%s", strings.TrimRight(base, "/"), databaseName, query)
	} else {
		databaseURL = fmt.Sprintf("%s/%s", baseURL, databaseName)
	}

	if !strings.Contains(databaseURL, "sslmode=") {
		separator := "&"
		if !strings.Contains(databaseURL, "?") {
			separator = "?"
		}
		databaseURL = fmt.Sprintf("%s%ssslmode=disable", databaseURL, separator)
	}

	return databaseURL
}

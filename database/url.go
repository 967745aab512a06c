package database

import (
	"net/url"
)

// ConstructDatabaseURL points baseURL at databaseName. A URL without an
// explicit sslmode gets sslmode=disable. Unparseable URLs are returned as is
// and left for pgx to reject.
func ConstructDatabaseURL(baseURL, databaseName string) string {
	if databaseName == "" {
		return baseURL
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}
	u.Path = "/" + databaseName

	query := u.Query()
	if query.Get("sslmode") == "" {
		query.Set("sslmode", "disable")
	}
	u.RawQuery = query.Encode()

	return u.String()
}

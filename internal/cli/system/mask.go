package system

import (
	"strings"

	"github.com/julianstephens/questbot/internal/storage/postgres"
)

// maskPassword hides the password in a URL or key=value connection string
func maskPassword(connStr string) string {
	if postgres.IsConnString(connStr) {
		idx := strings.Index(connStr, "://")
		rest := connStr[idx+3:]
		// the last @ separates user info from host
		at := strings.LastIndex(rest, "@")
		if at == -1 {
			return connStr
		}
		userInfo := rest[:at]
		colon := strings.Index(userInfo, ":")
		if colon == -1 {
			return connStr
		}
		return connStr[:idx+3] + userInfo[:colon] + ":****" + rest[at:]
	}

	if !strings.Contains(connStr, "password=") {
		return connStr
	}
	parts := strings.Fields(connStr)
	for i, part := range parts {
		if strings.HasPrefix(part, "password=") {
			parts[i] = "password=****"
		}
	}
	return strings.Join(parts, " ")
}

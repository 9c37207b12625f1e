package storage

import "strings"

// likeEscaper escapes the characters SQLite LIKE treats specially.
// Queries using the result must declare ESCAPE '\'.
var likeEscaper = strings.NewReplacer(
	`\`, `\\`, // escape character itself comes first
	"%", `\%`, // any sequence
	"_", `\_`, // any single character
)

// sanitizeSearchTerm neutralizes LIKE wildcards in user-supplied search
// text so a term like "50%" matches literally.
func sanitizeSearchTerm(term string) string {
	return likeEscaper.Replace(term)
}

// Command verify checks the static data registries for internal
// consistency: curriculum definitions, source document locations, and the
// hand-maintained reference catalog. Run it after editing any of them;
// a non-zero exit means the data would misbehave at runtime.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/garyellow/ossu-tracker-go/internal/data"
)

// Verification results
type verifyResult struct {
	name    string
	passed  bool
	message string
}

func main() {
	fmt.Println("🔍 OSSU Tracker - Data Consistency Verification Tool")
	fmt.Println("====================================================")

	results := []verifyResult{}

	// 1. Verify curriculum registry completeness
	results = append(results, verifyCurriculumRegistry()...)

	// 2. Verify source document locations
	results = append(results, verifySourceLocations()...)

	// 3. Verify reference catalog keys match the registry
	results = append(results, verifyReferenceCatalogKeys()...)

	// 4. Verify reference catalog entries
	results = append(results, verifyReferenceEntries()...)

	// Print results
	fmt.Println("\n📊 Verification Results:")
	fmt.Println("========================")

	passedCount := 0
	failedCount := 0

	for _, result := range results {
		status := "❌"
		if result.passed {
			status = "✅"
			passedCount++
		} else {
			failedCount++
		}
		fmt.Printf("%s %s: %s\n", status, result.name, result.message)
	}

	fmt.Printf("\n📈 Summary: %d passed, %d failed\n", passedCount, failedCount)

	if failedCount > 0 {
		os.Exit(1)
	}
}

// verifyCurriculumRegistry checks that every registered curriculum is
// fully described and that names stay unique and URL-safe.
func verifyCurriculumRegistry() []verifyResult {
	results := []verifyResult{}

	results = append(results, verifyResult{
		name:    "Curriculum Registry Size",
		passed:  len(data.AllCurricula) > 0,
		message: fmt.Sprintf("%d curricula registered", len(data.AllCurricula)),
	})

	seen := map[string]bool{}
	duplicates := []string{}
	for _, c := range data.AllCurricula {
		if seen[c.Name] {
			duplicates = append(duplicates, c.Name)
		}
		seen[c.Name] = true
	}
	results = append(results, verifyResult{
		name:    "Curriculum Names Unique",
		passed:  len(duplicates) == 0,
		message: uniqueMessage(duplicates),
	})

	malformed := []string{}
	for _, c := range data.AllCurricula {
		if !isURLSafeName(c.Name) {
			malformed = append(malformed, c.Name)
		}
	}
	results = append(results, verifyResult{
		name:    "Curriculum Names URL-Safe",
		passed:  len(malformed) == 0,
		message: listMessage("All names lowercase alphanumeric with hyphens", malformed),
	})

	incomplete := []string{}
	for _, c := range data.AllCurricula {
		if c.DisplayName == "" || c.Description == "" || len(c.Categories) == 0 {
			incomplete = append(incomplete, c.Name)
		}
	}
	results = append(results, verifyResult{
		name:    "Curriculum Descriptions Complete",
		passed:  len(incomplete) == 0,
		message: listMessage("Display name, description and categories set everywhere", incomplete),
	})

	badRepos := []string{}
	for _, c := range data.AllCurricula {
		if c.RepoURL != "https://github.com/ossu/"+c.Name {
			badRepos = append(badRepos, c.Name)
		}
	}
	results = append(results, verifyResult{
		name:    "Repository URLs Match Names",
		passed:  len(badRepos) == 0,
		message: listMessage("Every repo URL derives from the curriculum name", badRepos),
	})

	for _, c := range data.AllCurricula {
		dupes := duplicateStrings(c.Categories)
		results = append(results, verifyResult{
			name:    "Category Labels Unique: " + c.Name,
			passed:  len(dupes) == 0,
			message: listMessage(fmt.Sprintf("%d categories", len(c.Categories)), dupes),
		})
	}

	return results
}

// verifySourceLocations checks that each curriculum resolves to fetchable
// raw document URLs covering both historical branch names.
func verifySourceLocations() []verifyResult {
	results := []verifyResult{}

	for _, c := range data.AllCurricula {
		urls := c.SourceURLs()

		passed := len(urls) >= 2
		message := fmt.Sprintf("%d candidate locations", len(urls))

		hasMaster := false
		hasMain := false
		for _, u := range urls {
			if !strings.HasPrefix(u, "https://raw.githubusercontent.com/ossu/"+c.Name+"/") {
				passed = false
				message = fmt.Sprintf("Unexpected location %s", u)
			}
			if !strings.HasSuffix(u, "/README.md") {
				passed = false
				message = fmt.Sprintf("Location does not point at a README: %s", u)
			}
			if strings.Contains(u, "/master/") {
				hasMaster = true
			}
			if strings.Contains(u, "/main/") {
				hasMain = true
			}
		}
		if !hasMaster || !hasMain {
			passed = false
			message = "Missing master or main branch candidate"
		}

		results = append(results, verifyResult{
			name:    "Source Locations: " + c.Name,
			passed:  passed,
			message: message,
		})
	}

	return results
}

// verifyReferenceCatalogKeys checks that the embedded reference catalog and
// the curriculum registry agree on the set of curricula.
func verifyReferenceCatalogKeys() []verifyResult {
	results := []verifyResult{}

	counts, err := data.ReferenceCount()
	if err != nil {
		return append(results, verifyResult{
			name:    "Reference Catalog Parses",
			passed:  false,
			message: err.Error(),
		})
	}
	results = append(results, verifyResult{
		name:    "Reference Catalog Parses",
		passed:  true,
		message: fmt.Sprintf("%d curricula keyed", len(counts)),
	})

	unknown := []string{}
	for name := range counts {
		if _, ok := data.GetCurriculum(name); !ok {
			unknown = append(unknown, name)
		}
	}
	results = append(results, verifyResult{
		name:    "Reference Keys Registered",
		passed:  len(unknown) == 0,
		message: listMessage("Every catalog key names a registered curriculum", unknown),
	})

	missing := []string{}
	for _, name := range data.CurriculumNames() {
		if _, ok := counts[name]; !ok {
			missing = append(missing, name)
		}
	}
	results = append(results, verifyResult{
		name:    "Reference Covers Registry",
		passed:  len(missing) == 0,
		message: listMessage("Every registered curriculum has a catalog key", missing),
	})

	return results
}

// verifyReferenceEntries checks each hand-maintained catalog entry: unique
// non-empty names, categories drawn from the curriculum's section labels,
// course page URLs, and prerequisite chains that resolve within the
// curriculum.
func verifyReferenceEntries() []verifyResult {
	results := []verifyResult{}

	for _, c := range data.AllCurricula {
		courses, err := data.ReferenceCourses(c.Name)
		if err != nil {
			results = append(results, verifyResult{
				name:    "Reference Entries: " + c.Name,
				passed:  false,
				message: err.Error(),
			})
			continue
		}
		if len(courses) == 0 {
			results = append(results, verifyResult{
				name:    "Reference Entries: " + c.Name,
				passed:  true,
				message: "No reference entries (live extraction only)",
			})
			continue
		}

		categories := map[string]bool{}
		for _, label := range c.Categories {
			categories[label] = true
		}

		names := map[string]bool{}
		problems := []string{}
		for _, course := range courses {
			switch {
			case course.Name == "":
				problems = append(problems, "entry with empty name")
			case names[course.Name]:
				problems = append(problems, fmt.Sprintf("duplicate name %q", course.Name))
			}
			names[course.Name] = true

			if !categories[course.Category] {
				problems = append(problems, fmt.Sprintf("%q has unknown category %q", course.Name, course.Category))
			}
			if !strings.HasPrefix(course.URL, "http://") && !strings.HasPrefix(course.URL, "https://") {
				problems = append(problems, fmt.Sprintf("%q has invalid URL %q", course.Name, course.URL))
			}
		}
		for _, course := range courses {
			if course.Prerequisites == "" {
				continue
			}
			if !names[course.Prerequisites] {
				problems = append(problems, fmt.Sprintf("%q requires unlisted %q", course.Name, course.Prerequisites))
			}
		}

		message := fmt.Sprintf("%d entries consistent", len(courses))
		if len(problems) > 0 {
			message = strings.Join(problems, "; ")
		}
		results = append(results, verifyResult{
			name:    "Reference Entries: " + c.Name,
			passed:  len(problems) == 0,
			message: message,
		})
	}

	return results
}

// isURLSafeName reports whether a curriculum name is usable in API routes
// and object storage keys without escaping.
func isURLSafeName(name string) bool {
	if name == "" || strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return false
		}
	}
	return true
}

// duplicateStrings returns the values that appear more than once.
func duplicateStrings(values []string) []string {
	seen := map[string]bool{}
	dupes := []string{}
	for _, v := range values {
		if seen[v] {
			dupes = append(dupes, v)
		}
		seen[v] = true
	}
	return dupes
}

func uniqueMessage(duplicates []string) string {
	if len(duplicates) == 0 {
		return "No duplicate names"
	}
	return fmt.Sprintf("Duplicates: %v", duplicates)
}

func listMessage(ok string, offenders []string) string {
	if len(offenders) == 0 {
		return ok
	}
	return fmt.Sprintf("Offenders: %v", offenders)
}

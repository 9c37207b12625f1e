// Package data provides static data definitions for the application.
// These data are maintained manually and updated when OSSU reorganizes
// its repositories.
package data

import "fmt"

// CurriculumInfo contains static information about one OSSU curriculum.
// Name is the URL-safe identifier used in API routes and database rows;
// it must match the upstream repository name under github.com/ossu.
type CurriculumInfo struct {
	Name        string   // URL-safe identifier (e.g., "computer-science")
	DisplayName string   // Human-readable name (e.g., "Computer Science")
	Description string   // Short description shown in curriculum listings
	RepoURL     string   // Upstream GitHub repository URL
	Categories  []string // Section names the upstream README is organized into
}

// rawContentBase is the base URL for raw README documents.
const rawContentBase = "https://raw.githubusercontent.com/ossu"

// documentBranches are the branch names tried in order when fetching a
// curriculum README. OSSU repositories migrated from master to main at
// different times, so both are candidates.
var documentBranches = []string{"master", "main"}

// AllCurricula contains all tracked OSSU curricula.
// Names must exactly match the repository names under github.com/ossu.
var AllCurricula = []CurriculumInfo{
	{
		Name:        "computer-science",
		DisplayName: "Computer Science",
		Description: "Path to a free self-taught education in Computer Science!",
		RepoURL:     "https://github.com/ossu/computer-science",
		Categories: []string{
			"Prerequisites", "Intro CS", "Core Programming", "Core Math", "CS Tools",
			"Core Systems", "Core Theory", "Core Security", "Core Applications",
			"Core Ethics", "Advanced Programming", "Advanced Systems", "Advanced Theory",
			"Advanced Information Security", "Advanced Math", "Final Project",
		},
	},
	{
		Name:        "data-science",
		DisplayName: "Data Science",
		Description: "Path to a free self-taught education in Data Science!",
		RepoURL:     "https://github.com/ossu/data-science",
		Categories: []string{
			"Introduction to Data Science", "Introduction to Computer Science",
			"Data Structures and Algorithms", "Databases", "Mathematics",
			"Statistics & Probability", "Data Science Tools & Methods",
			"Machine Learning/Data Mining", "Final Project",
		},
	},
	{
		Name:        "math",
		DisplayName: "Mathematics",
		Description: "Path to a free self-taught education in Mathematics!",
		RepoURL:     "https://github.com/ossu/math",
		Categories: []string{
			"Introduction to Mathematical Thinking", "Calculus", "Linear Algebra",
			"Probability and Statistics", "Advanced Mathematics",
		},
	},
	{
		Name:        "bioinformatics",
		DisplayName: "Bioinformatics",
		Description: "Path to a free self-taught education in Bioinformatics!",
		RepoURL:     "https://github.com/ossu/bioinformatics",
		Categories: []string{
			"Prerequisites", "Introduction to Biology", "Core Bioinformatics",
			"Statistics and Machine Learning", "Advanced Topics", "Final Project",
		},
	},
	{
		Name:        "precollege-math",
		DisplayName: "Precollege Math",
		Description: "Precollege Math Curriculum!",
		RepoURL:     "https://github.com/ossu/precollege-math",
		Categories: []string{
			"Arithmetic", "Pre-Algebra", "Algebra Basics", "Geometry",
			"Algebra II", "Trigonometry", "Precalculus",
		},
	},
}

// SourceURLs returns the ordered list of raw README locations for this
// curriculum. The fetcher tries them in order and stops at the first success.
func (c CurriculumInfo) SourceURLs() []string {
	urls := make([]string, 0, len(documentBranches))
	for _, branch := range documentBranches {
		urls = append(urls, fmt.Sprintf("%s/%s/%s/README.md", rawContentBase, c.Name, branch))
	}
	return urls
}

// GetCurriculum returns the curriculum with the given name, or false when
// no curriculum matches.
func GetCurriculum(name string) (CurriculumInfo, bool) {
	for _, c := range AllCurricula {
		if c.Name == name {
			return c, true
		}
	}
	return CurriculumInfo{}, false
}

// CurriculumNames returns the names of all tracked curricula in registry order.
func CurriculumNames() []string {
	names := make([]string, 0, len(AllCurricula))
	for _, c := range AllCurricula {
		names = append(names, c.Name)
	}
	return names
}

// Package schemas embeds the JSON Schemas for request bodies and stored analyses.
package schemas

import "embed"

// Schema file names
const (
	RankRequest = "rank_request.schema.json"
	Analysis    = "analysis.schema.json"
)

//go:embed *.schema.json
var files embed.FS

// Read returns the named schema document.
func Read(name string) ([]byte, error) {
	return files.ReadFile(name)
}

// Names lists every embedded schema.
func Names() []string {
	entries, _ := files.ReadDir(".")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

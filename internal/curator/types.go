// Package curator defines the core types shared across the curation pipeline.
package curator

import (
	"time"
)

// Source identifies the family a collected item came from.
type Source string

// Source families handled by the connectors.
const (
	SourceNewsletter Source = "newsletter"
	SourceForum      Source = "forum"
	SourceVideo      Source = "video"
	SourceMicroblog  Source = "microblog"
)

// Item is the unit of exchange between connectors, the curation engine and
// the publisher. URL and Title are never empty once a connector emits an
// item; malformed records are discarded before emission.
type Item struct {
	Title          string   `json:"title"`
	Source         Source   `json:"source"`
	Channel        string   `json:"channel"`
	Description    string   `json:"description"`
	Author         string   `json:"author"`
	URL            string   `json:"url"`
	RelevanceScore float64  `json:"relevance_score"`
	Tags           []string `json:"tags"`
}

// JobState is the lifecycle state of the pipeline job.
type JobState string

// Job states. Done and Error are terminal until the next trigger.
const (
	StateIdle    JobState = "idle"
	StateRunning JobState = "running"
	StateDone    JobState = "done"
	StateError   JobState = "error"
)

// JobStatus is the single process-wide status record observed by pollers.
type JobStatus struct {
	State     JobState  `json:"state"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the persisted result of the last successful pipeline run. Each
// run replaces the previous snapshot wholesale.
type Snapshot struct {
	UpdatedAt time.Time `json:"updated_at"`
	Total     int       `json:"total"`
	Items     []Item    `json:"items"`
}

// SourceConfig describes one configured origin within a source family.
type SourceConfig struct {
	Name        string   `json:"name" mapstructure:"name"`
	URL         string   `json:"url" mapstructure:"url"`
	Handle      string   `json:"handle" mapstructure:"handle"`
	MaxItems    int      `json:"max_items" mapstructure:"max_items"`
	SearchTerms []string `json:"search_terms" mapstructure:"search_terms"`
}

package model

import (
	"sort"
	"time"
)

// Direction values of a CrawlDiff.
const (
	DirectionImproved  = "improved"
	DirectionWorsened  = "worsened"
	DirectionUnchanged = "unchanged"
)

// RunSummary describes one side of a comparison.
type RunSummary struct {
	ID         int64     `json:"id,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	Downloaded int       `json:"downloaded"`
	Failed     int       `json:"failed"`
	Partial    bool      `json:"partial"`
}

// CrawlDiff is the difference between two crawls of the same seed.
type CrawlDiff struct {
	Seed     string     `json:"seed"`
	Previous RunSummary `json:"previous"`
	Current  RunSummary `json:"current"`

	// Added are URLs downloaded now but not before.
	Added []string `json:"added,omitempty"`

	// Removed are URLs downloaded before but not now.
	Removed []string `json:"removed,omitempty"`

	// NewFailures are failures that were not present before.
	NewFailures []Failure `json:"new_failures,omitempty"`

	// Recovered are URLs that failed before and were downloaded now.
	Recovered []string `json:"recovered,omitempty"`

	// Changed are URLs downloaded both times whose content hash differs.
	// Only URLs with a recorded page on both sides are compared.
	Changed []string `json:"changed,omitempty"`

	// UnchangedCount is the number of URLs downloaded both times.
	UnchangedCount int `json:"unchanged_count"`

	// Direction is DirectionImproved, DirectionWorsened or DirectionUnchanged
	// according to the change in failure count.
	Direction string `json:"direction"`
}

// Summarize returns the RunSummary of r.
func (r *CrawlReport) Summarize() RunSummary {
	return RunSummary{
		ID:         r.ID,
		StartedAt:  r.StartedAt,
		Downloaded: len(r.Downloaded),
		Failed:     len(r.Failures),
		Partial:    r.Partial,
	}
}

// Compare returns the changes from previous to current.
func Compare(previous, current *CrawlReport) *CrawlDiff {
	diff := &CrawlDiff{
		Seed:     current.Seed,
		Previous: previous.Summarize(),
		Current:  current.Summarize(),
	}

	before := toSet(previous.Downloaded)
	after := toSet(current.Downloaded)

	for _, u := range current.Downloaded {
		if _, ok := before[u]; !ok {
			diff.Added = append(diff.Added, u)
			if _, failed := previous.Failure(u); failed {
				diff.Recovered = append(diff.Recovered, u)
			}
			continue
		}
		diff.UnchangedCount++

		prevPage, ok1 := previous.Page(u)
		curPage, ok2 := current.Page(u)
		if ok1 && ok2 && prevPage.Hash != curPage.Hash {
			diff.Changed = append(diff.Changed, u)
		}
	}
	for _, u := range previous.Downloaded {
		if _, ok := after[u]; !ok {
			diff.Removed = append(diff.Removed, u)
		}
	}

	for _, f := range current.Failures {
		if _, failed := previous.Failure(f.URL); !failed {
			diff.NewFailures = append(diff.NewFailures, f)
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	sort.Strings(diff.Recovered)
	sort.Strings(diff.Changed)
	sort.Slice(diff.NewFailures, func(i, j int) bool {
		return diff.NewFailures[i].URL < diff.NewFailures[j].URL
	})

	switch delta := diff.Current.Failed - diff.Previous.Failed; {
	case delta < 0:
		diff.Direction = DirectionImproved
	case delta > 0:
		diff.Direction = DirectionWorsened
	default:
		diff.Direction = DirectionUnchanged
	}

	return diff
}

// HasChanges reports whether anything differs between the two crawls.
func (d *CrawlDiff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.NewFailures) > 0 || len(d.Changed) > 0
}

func toSet(urls []string) map[string]struct{} {
	set := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		set[u] = struct{}{}
	}
	return set
}

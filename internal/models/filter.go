package models

import "fmt"

type FilterKind string

const (
	FilterSubgroupBlock FilterKind = "subgroup-block"
	FilterEpisodeFloor  FilterKind = "episode-floor"
)

// FilterObject is the scope of a suppression rule.
type FilterObject int

const (
	FilterLocal FilterObject = iota
	FilterGlobal
)

// Filter suppresses seeds before they reach the pipeline. A global rule
// has SourceID 0 and applies to every subscription.
type Filter struct {
	ID       int64        `json:"id"`
	SourceID int64        `json:"source_id"`
	Kind     FilterKind   `json:"kind"`
	Value    int64        `json:"value"`
	Object   FilterObject `json:"object"`
}

// Validate checks that the rule is well formed.
func (f Filter) Validate() error {
	switch f.Kind {
	case FilterSubgroupBlock:
	case FilterEpisodeFloor:
		if f.Object == FilterGlobal {
			return fmt.Errorf("episode-floor filters are per subscription")
		}
	default:
		return fmt.Errorf("unknown filter kind %q", f.Kind)
	}
	if f.Object == FilterLocal && f.SourceID == 0 {
		return fmt.Errorf("local filter needs a source id")
	}
	if f.Object != FilterLocal && f.Object != FilterGlobal {
		return fmt.Errorf("unknown filter object %d", f.Object)
	}
	return nil
}

package planner

import (
	"github.com/hupe1980/docstore/index"
	"github.com/hupe1980/docstore/keycodec"
	"github.com/hupe1980/docstore/value"
)

// Explain describes a winning plan and its execution statistics.
type Explain struct {
	Namespace  string
	Stages     []string
	IndexName  string
	KeyPattern index.KeyPattern
	IndexOnly  bool
	Direction  string
	Bounds     map[string]string
	SeekRanges int
	Filter     string
	Stats      Stats
}

// NewExplain builds the explain output of a plan.
func NewExplain(ns string, p *Plan, st Stats) Explain {
	e := Explain{
		Namespace: ns,
		Stages:    p.Stages(),
		IndexOnly: p.IndexOnly,
		Direction: "forward",
		Filter:    p.Filter.String(),
		Stats:     st,
	}
	if p.Direction == keycodec.Descending {
		e.Direction = "backward"
	}
	switch p.Stage {
	case StageIXScan:
		e.IndexName = p.Index.Name
		e.KeyPattern = p.Index.Key
		e.SeekRanges = len(p.SeekRanges)
		e.Bounds = make(map[string]string, len(p.Bounds))
		for i, b := range p.Bounds {
			e.Bounds[p.Index.Key[i].Path] = b.String()
		}
	case StageClusteredIXScan:
		e.SeekRanges = len(p.KeyRanges)
		e.Bounds = map[string]string{value.IDField: p.Bounds[0].String()}
	}
	return e
}

// Document renders the explain output.
func (e Explain) Document() value.Document {
	stages := make([]value.Value, len(e.Stages))
	for i, s := range e.Stages {
		stages[i] = value.String(s)
	}
	plan := value.D(
		"stages", value.Array(stages...),
		"indexOnly", e.IndexOnly,
		"direction", e.Direction,
	)
	if e.IndexName != "" {
		plan = append(plan,
			value.Field{Name: "indexName", Value: value.String(e.IndexName)},
			value.Field{Name: "keyPattern", Value: value.Doc(e.KeyPattern.Document())},
		)
	}
	if len(e.Bounds) > 0 {
		var bounds value.Document
		for _, path := range boundPaths(e) {
			bounds = append(bounds, value.Field{Name: path, Value: value.String(e.Bounds[path])})
		}
		plan = append(plan, value.Field{Name: "indexBounds", Value: value.Doc(bounds)})
	}
	return value.D(
		"namespace", e.Namespace,
		"parsedQuery", e.Filter,
		"winningPlan", plan,
		"executionStats", value.D(
			"nReturned", e.Stats.NReturned,
			"totalKeysExamined", e.Stats.KeysExamined,
			"totalDocsExamined", e.Stats.DocsExamined,
		),
	)
}

func boundPaths(e Explain) []string {
	if e.KeyPattern != nil {
		return e.KeyPattern.Paths()
	}
	return []string{value.IDField}
}

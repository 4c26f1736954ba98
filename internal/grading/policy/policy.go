// Package policy parses and fingerprints course grading policies. The
// recognized bucket options are enumerated exactly; unknown keys are a
// parse error rather than silently ignored configuration.
package policy

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	pkgerrors "github.com/openlearn/gradecore/internal/pkg/errors"
)

// BucketSpec configures one grading bucket: all subsections sharing its
// assignment type, padded to MinCount, with the DropCount lowest-percent
// entries discarded before averaging.
type BucketSpec struct {
	Type            string  `json:"type" yaml:"type"`
	MinCount        int     `json:"min_count" yaml:"min_count"`
	DropCount       int     `json:"drop_count" yaml:"drop_count"`
	Weight          float64 `json:"weight" yaml:"weight"`
	ShortLabel      string  `json:"short_label,omitempty" yaml:"short_label"`
	HideAverage     bool    `json:"hide_average,omitempty" yaml:"hide_average"`
	ShowOnlyAverage bool    `json:"show_only_average,omitempty" yaml:"show_only_average"`
	StartingIndex   int     `json:"starting_index,omitempty" yaml:"starting_index"`
}

// GradingPolicy is the course's grader configuration plus letter-grade
// cutoffs. It is read-only to the grading core.
type GradingPolicy struct {
	Graders []BucketSpec       `json:"graders" yaml:"graders"`
	Cutoffs map[string]float64 `json:"cutoffs" yaml:"cutoffs"`
}

// Parse decodes a JSON policy document, rejecting unknown keys.
func Parse(raw []byte) (*GradingPolicy, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var p GradingPolicy
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: grading policy: %v", pkgerrors.ErrInvalidArgument, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ParseYAML decodes a YAML policy document (course fixtures ship as YAML),
// rejecting unknown keys.
func ParseYAML(raw []byte) (*GradingPolicy, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var p GradingPolicy
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: grading policy: %v", pkgerrors.ErrInvalidArgument, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate enforces the structural constraints each bucket must satisfy.
func (p *GradingPolicy) Validate() error {
	seen := map[string]bool{}
	for i, g := range p.Graders {
		if g.Type == "" {
			return fmt.Errorf("%w: grader %d has empty type", pkgerrors.ErrInvalidArgument, i)
		}
		if seen[g.Type] {
			return fmt.Errorf("%w: duplicate grader type %q", pkgerrors.ErrInvalidArgument, g.Type)
		}
		seen[g.Type] = true
		if g.MinCount < 0 || g.DropCount < 0 {
			return fmt.Errorf("%w: grader %q has negative counts", pkgerrors.ErrInvalidArgument, g.Type)
		}
		if g.Weight < 0 {
			return fmt.Errorf("%w: grader %q has negative weight", pkgerrors.ErrInvalidArgument, g.Type)
		}
		if g.StartingIndex < 0 {
			return fmt.Errorf("%w: grader %q has negative starting index", pkgerrors.ErrInvalidArgument, g.Type)
		}
	}
	for letter, cutoff := range p.Cutoffs {
		if letter == "" {
			return fmt.Errorf("%w: empty letter grade in cutoffs", pkgerrors.ErrInvalidArgument)
		}
		if cutoff < 0 || cutoff > 1 {
			return fmt.Errorf("%w: cutoff for %q out of [0,1]", pkgerrors.ErrInvalidArgument, letter)
		}
	}
	return nil
}

// Hash is the stable content fingerprint used for staleness detection:
// base64 of the sha1 digest of the canonical JSON form.
func (p *GradingPolicy) Hash() string {
	canonical := struct {
		Cutoffs []cutoffEntry `json:"cutoffs"`
		Graders []BucketSpec  `json:"graders"`
	}{
		Cutoffs: sortedCutoffs(p.Cutoffs),
		Graders: p.Graders,
	}
	raw, err := json.Marshal(canonical)
	if err != nil {
		// Marshal of plain structs and maps of primitives cannot fail.
		panic(err)
	}
	sum := sha1.Sum(raw)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// LetterGrade maps a course percent to a letter: cutoffs sorted descending
// by threshold, the first whose threshold is at or below the percent wins.
// Empty string means no letter (not passing).
func (p *GradingPolicy) LetterGrade(percent float64) string {
	type pair struct {
		letter string
		cutoff float64
	}
	pairs := make([]pair, 0, len(p.Cutoffs))
	for letter, cutoff := range p.Cutoffs {
		pairs = append(pairs, pair{letter, cutoff})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].cutoff != pairs[j].cutoff {
			return pairs[i].cutoff > pairs[j].cutoff
		}
		return pairs[i].letter < pairs[j].letter
	})
	for _, pr := range pairs {
		if percent >= pr.cutoff {
			return pr.letter
		}
	}
	return ""
}

type cutoffEntry struct {
	Letter string  `json:"letter"`
	Min    float64 `json:"min"`
}

func sortedCutoffs(cutoffs map[string]float64) []cutoffEntry {
	out := make([]cutoffEntry, 0, len(cutoffs))
	for letter, min := range cutoffs {
		out = append(out, cutoffEntry{Letter: letter, Min: min})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Letter < out[j].Letter })
	return out
}

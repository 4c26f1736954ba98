// Package grading assembles problem scores into subsection and course
// grades, and orchestrates their persistence and invalidation.
package grading

// Options are the read-only feature flags injected at construction. They
// are never read from ambient state inside algorithms.
type Options struct {
	// PersistGrades enables the persistent grade store for a deployment.
	PersistGrades bool
	// WriteOnlyIfEngaged suppresses course grade rows for learners who
	// never attempted a problem.
	WriteOnlyIfEngaged bool
	// AssumeZeroGradeIfAbsent makes the read path return a synthetic zero
	// grade instead of computing when no row exists.
	AssumeZeroGradeIfAbsent bool
}

// DefaultOptions mirrors the production posture: persistence on, rows only
// for engaged learners, absent rows computed rather than assumed zero.
func DefaultOptions() Options {
	return Options{
		PersistGrades:           true,
		WriteOnlyIfEngaged:      true,
		AssumeZeroGradeIfAbsent: false,
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/openlearn/gradecore/internal/app"
	types "github.com/openlearn/gradecore/internal/domain"
	"github.com/openlearn/gradecore/internal/domain/keys"
	"github.com/openlearn/gradecore/internal/grading"
)

type idList []string

func (l *idList) String() string { return strings.Join(*l, ",") }
func (l *idList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v != "" {
		*l = append(*l, v)
	}
	return nil
}

func main() {
	var courseID string
	var users idList
	var readOnly bool
	flag.StringVar(&courseID, "course", "", "course key to regrade")
	flag.Var(&users, "user", "learner id to regrade (repeatable; default: every learner with a grade row)")
	flag.BoolVar(&readOnly, "read-only", false, "report grades without persisting")
	flag.Parse()

	courseKey, err := keys.ParseCourseKey(courseID)
	if err != nil {
		fmt.Printf("invalid -course: %v\n", err)
		os.Exit(1)
	}

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx := context.Background()

	var learners []grading.Learner
	if len(users) > 0 {
		for _, u := range users {
			id, err := uuid.Parse(strings.TrimSpace(u))
			if err != nil || id == uuid.Nil {
				fmt.Printf("skipping invalid learner id %q\n", u)
				continue
			}
			learners = append(learners, grading.Learner{ID: id, AnonymousID: id.String()})
		}
	} else {
		var rows []*types.PersistentCourseGrade
		if err := application.DB.WithContext(ctx).
			Where("course_id = ?", courseKey.String()).
			Find(&rows).Error; err != nil {
			fmt.Printf("load course grade rows: %v\n", err)
			os.Exit(1)
		}
		for _, row := range rows {
			learners = append(learners, grading.Learner{ID: row.UserID, AnonymousID: row.UserID.String()})
		}
	}
	if len(learners) == 0 {
		fmt.Println("no learners to regrade")
		return
	}

	results := application.Services.Grades.IterCourseGrades(ctx, learners, courseKey, !readOnly)

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Printf("%s: error: %v\n", res.Learner.ID, res.Err)
			continue
		}
		letter := res.Grade.LetterGrade
		if letter == "" {
			letter = "-"
		}
		fmt.Printf("%s: %.2f %s\n", res.Learner.ID, res.Grade.Percent, letter)
	}
	fmt.Printf("regraded %d learners (%d failed)\n", len(results)-failed, failed)
}

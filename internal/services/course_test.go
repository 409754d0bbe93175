package services

import (
	"testing"

	"github.com/google/uuid"

	"github.com/lumenlabs/lumen-backend/internal/types"
)

func TestPlaceholdersFor(t *testing.T) {
	courseID := uuid.New()
	outline := []types.LessonOutlineItem{
		{Order: 1, PlannedTitle: "Intro", PlannedDescription: "Start here"},
		{Order: 2, PlannedTitle: "Middle"},
		{Order: 3, PlannedTitle: "End"},
	}

	t.Run("fresh course gets every outline entry", func(t *testing.T) {
		got := placeholdersFor(courseID, outline, nil)
		if len(got) != 3 {
			t.Fatalf("got %d placeholders, want 3", len(got))
		}
		for i, l := range got {
			if l.CourseID != courseID {
				t.Fatalf("placeholder %d has wrong course id", i)
			}
			if l.GenerationStatus != types.LessonStatusPlanned {
				t.Fatalf("placeholder %d status = %s, want planned", i, l.GenerationStatus)
			}
			if l.OrderInCourse != outline[i].Order {
				t.Fatalf("placeholder %d order = %d, want %d", i, l.OrderInCourse, outline[i].Order)
			}
		}
	})

	t.Run("existing lessons are never recreated", func(t *testing.T) {
		existing := []*types.Lesson{
			{OrderInCourse: 1, GenerationStatus: types.LessonStatusCompleted},
			{OrderInCourse: 3, GenerationStatus: types.LessonStatusGenerationFailed},
		}
		got := placeholdersFor(courseID, outline, existing)
		if len(got) != 1 {
			t.Fatalf("got %d placeholders, want 1", len(got))
		}
		if got[0].OrderInCourse != 2 || got[0].Title != "Middle" {
			t.Fatalf("unexpected placeholder %+v", got[0])
		}
	})

	t.Run("complete course needs nothing", func(t *testing.T) {
		existing := []*types.Lesson{
			{OrderInCourse: 1}, {OrderInCourse: 2}, {OrderInCourse: 3},
		}
		if got := placeholdersFor(courseID, outline, existing); len(got) != 0 {
			t.Fatalf("got %d placeholders, want 0", len(got))
		}
	})
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "fallback", "last"); got != "fallback" {
		t.Fatalf("got %q, want fallback", got)
	}
	if got := firstNonEmpty("primary", "fallback"); got != "primary" {
		t.Fatalf("got %q, want primary", got)
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

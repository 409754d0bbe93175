package services

import (
	"testing"

	"github.com/lumenlabs/lumen-backend/internal/types"
)

func lessonsWithUserStatuses(statuses ...types.UserLessonStatus) []*types.Lesson {
	out := make([]*types.Lesson, 0, len(statuses))
	for i, s := range statuses {
		out = append(out, &types.Lesson{OrderInCourse: i + 1, UserStatus: s})
	}
	return out
}

func TestRollUpUserStatus(t *testing.T) {
	tests := []struct {
		name    string
		lessons []*types.Lesson
		want    types.UserCourseStatus
	}{
		{
			name:    "no lessons",
			lessons: nil,
			want:    types.UserCourseNotStarted,
		},
		{
			name: "all not started",
			lessons: lessonsWithUserStatuses(
				types.UserLessonNotStarted, types.UserLessonNotStarted),
			want: types.UserCourseNotStarted,
		},
		{
			name: "one in progress",
			lessons: lessonsWithUserStatuses(
				types.UserLessonNotStarted, types.UserLessonInProgress),
			want: types.UserCourseInProgress,
		},
		{
			name: "some completed but not all",
			lessons: lessonsWithUserStatuses(
				types.UserLessonCompleted, types.UserLessonNotStarted),
			want: types.UserCourseInProgress,
		},
		{
			name: "all completed",
			lessons: lessonsWithUserStatuses(
				types.UserLessonCompleted, types.UserLessonCompleted),
			want: types.UserCourseCompleted,
		},
		{
			name: "completed and in progress mix",
			lessons: lessonsWithUserStatuses(
				types.UserLessonCompleted, types.UserLessonInProgress),
			want: types.UserCourseInProgress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rollUpUserStatus(tt.lessons); got != tt.want {
				t.Fatalf("rollUpUserStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

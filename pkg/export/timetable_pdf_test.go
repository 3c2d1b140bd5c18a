package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimetablePDFRender(t *testing.T) {
	exporter := NewTimetablePDF()

	payload, err := exporter.Render(TimetableSheet{
		CourseTitle: "Go Fundamentals",
		TrainerName: "Dana Ross",
		Days: []TimetableRow{
			{Date: "2026-09-14", Start: "09:00", End: "12:00", Room: "Lab A"},
			{Date: "2026-09-15", Start: "09:00", End: "12:00", Room: "Lab A"},
		},
	})
	require.NoError(t, err)
	assert.True(t, len(payload) > 0)
	assert.Equal(t, "%PDF", string(payload[:4]))
}

func TestTimetablePDFRequiresDays(t *testing.T) {
	exporter := NewTimetablePDF()

	_, err := exporter.Render(TimetableSheet{CourseTitle: "Go Fundamentals"})
	assert.Error(t, err)
}

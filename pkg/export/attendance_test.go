package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteAttendance(t *testing.T) {
	loc := time.FixedZone("EAT", 3*60*60)
	in := time.Date(2026, 3, 9, 6, 0, 0, 0, time.UTC)
	out := in.Add(8*time.Hour + 30*time.Minute)

	var buf bytes.Buffer
	require.NoError(t, WriteAttendance(&buf, []Row{
		{UserID: 7, Date: "2026-03-09", ClockIn: in, ClockOut: &out, TotalHours: 8.5, Status: "present"},
		{UserID: 8, Date: "2026-03-09", ClockIn: in, Status: "present", Active: true},
	}, loc))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "User ID", rows[0][0])
	assert.Equal(t, []string{"7", "2026-03-09", "09:00:00", "17:30:00", "8.5", "present", "no"}, rows[1])
	assert.Equal(t, "", rows[2][3])
	assert.Equal(t, "yes", rows[2][6])
}

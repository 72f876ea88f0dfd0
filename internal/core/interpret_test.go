package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpret(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want string
	}{
		{name: "every minute", expr: "*/1 * * * *", want: "Every minute"},
		{name: "every 30 minutes", expr: "*/30 * * * *", want: "Every 30 minutes"},
		{name: "every 5 minutes extra spaces", expr: "  */5   * * * * ", want: "Every 5 minutes"},
		{name: "every hour step", expr: "0 */1 * * *", want: "Every hour"},
		{name: "every 6 hours", expr: "0 */6 * * *", want: "Every 6 hours"},
		{name: "daily afternoon", expr: "30 14 * * *", want: "Daily at 2:30 PM"},
		{name: "daily midnight", expr: "0 0 * * *", want: "Daily at 12:00 AM"},
		{name: "daily noon", expr: "0 12 * * *", want: "Daily at 12:00 PM"},
		{name: "daily morning", expr: "5 9 * * *", want: "Daily at 9:05 AM"},
		{name: "weekdays", expr: "0 9 * * 1-5", want: "At 9:00 AM, Mon–Fri"},
		{name: "weekend", expr: "0 10 * * 0,6", want: "At 10:00 AM, Sat–Sun"},
		{name: "weekend reversed", expr: "0 10 * * 6,0", want: "At 10:00 AM, Sat–Sun"},
		{name: "day list", expr: "15 8 * * 1,3,5", want: "At 8:15 AM, Mon, Wed, Fri"},
		{name: "single day", expr: "0 18 * * 2", want: "At 6:00 PM, Tue"},
		{name: "day names verbatim", expr: "0 18 * * MON-FRI", want: "At 6:00 PM, MON-FRI"},
		{name: "day out of range verbatim", expr: "0 18 * * 1,7", want: "At 6:00 PM, 1,7"},
		{name: "monthly first", expr: "0 0 1 * *", want: "Monthly on the 1st at 12:00 AM"},
		{name: "monthly second", expr: "30 6 2 * *", want: "Monthly on the 2nd at 6:30 AM"},
		{name: "monthly third", expr: "0 23 3 * *", want: "Monthly on the 3rd at 11:00 PM"},
		{name: "monthly fifteenth", expr: "0 12 15 * *", want: "Monthly on the 15th at 12:00 PM"},
		{name: "monthly eleventh", expr: "0 12 11 * *", want: "Monthly on the 11st at 12:00 PM"},
		{name: "monthly twelfth", expr: "0 12 12 * *", want: "Monthly on the 12nd at 12:00 PM"},
		{name: "monthly thirteenth", expr: "0 12 13 * *", want: "Monthly on the 13rd at 12:00 PM"},
		{name: "monthly twenty second", expr: "0 12 22 * *", want: "Monthly on the 22nd at 12:00 PM"},
		{name: "hourly on the hour", expr: "0 * * * *", want: "Every hour"},
		{name: "hourly at minute", expr: "5 * * * *", want: "Every hour at :05"},
		{name: "hourly at half past", expr: "30 * * * *", want: "Every hour at :30"},
		{name: "month restricted passthrough", expr: "0 9 * 1 *", want: "0 9 * 1 *"},
		{name: "dom out of range passthrough", expr: "0 9 32 * *", want: "0 9 32 * *"},
		{name: "dom and dow passthrough", expr: "0 9 1 * 1", want: "0 9 1 * 1"},
		{name: "hour out of range passthrough", expr: "0 25 * * *", want: "0 25 * * *"},
		{name: "range minute passthrough", expr: "0-10 * * * *", want: "0-10 * * * *"},
		{name: "every minute star passthrough", expr: "* * * * *", want: "* * * * *"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Interpret(tt.expr))
		})
	}
}

func TestInterpret_MalformedPassthrough(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"* * * *",
		"0 0 * * * *",
		"@daily",
		"not a cron at all",
		"0 9 * * 1-5 2024",
	}
	for _, in := range inputs {
		assert.Equal(t, in, Interpret(in), "input %q", in)
	}
}

func TestClock(t *testing.T) {
	assert.Equal(t, "12:00 AM", clock(0, 0))
	assert.Equal(t, "9:00 AM", clock(9, 0))
	assert.Equal(t, "11:59 AM", clock(11, 59))
	assert.Equal(t, "12:30 PM", clock(12, 30))
	assert.Equal(t, "11:07 PM", clock(23, 7))
}

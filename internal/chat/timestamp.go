package chat

import "time"

// vietnameseLayout mirrors the vi-VN locale rendering: "14:05:09 5/3/2024".
const vietnameseLayout = "15:04:05 2/1/2006"

// FormatTimestamp renders an epoch-millisecond timestamp in the given
// location. A nil location means time.Local.
func FormatTimestamp(ms int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ms).In(loc).Format(vietnameseLayout)
}

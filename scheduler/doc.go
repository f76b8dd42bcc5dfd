// Package scheduler runs the forecast pipeline periodically with
// robfig/cron. Schedules use six fields, seconds first:
//
//	"0 0 6 * * 1"   every Monday at 06:00
//	"@every 24h"
package scheduler

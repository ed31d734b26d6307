package scheduler

import "errors"

// ErrSchedulerNotRunning is returned when a sweep is triggered on a stopped sweeper
var ErrSchedulerNotRunning = errors.New("scheduler is not running")

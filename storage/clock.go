package storage

import (
	"sync/atomic"
	"time"
)

var lastCreatedAt int64

// nextCreatedAt returns the current epoch milliseconds, bumped by one when
// the clock has not advanced since the previous call. Creation timestamps
// are therefore strictly increasing within this process; across clients
// they are only as good as the wall clocks.
func nextCreatedAt() int64 {
	for {
		now := time.Now().UnixMilli()
		last := atomic.LoadInt64(&lastCreatedAt)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastCreatedAt, last, now) {
			return now
		}
	}
}

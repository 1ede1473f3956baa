package records

import (
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
)

// UpdateFlag classifies an entry in a record's update log.
type UpdateFlag string

const (
	FlagModify  UpdateFlag = "modify"
	FlagSetFlag UpdateFlag = "set-flag"
	FlagInfo    UpdateFlag = "info"
)

// Update is one append-only entry in a record's history. Every mutation,
// lock, format, send and drop produces one, so a delivered line can be
// explained after the fact.
type Update struct {
	ID         string
	Time       time.Time
	Flag       UpdateFlag
	Action     string
	Actor      string
	CallSite   []string
	EventStack []string
	Data       string
}

// EventStackSnapshot reports the active event dispatch stack for update
// entries. Startup points it at the bus's Stack before any network loop
// runs; nil means no stack is recorded.
var EventStackSnapshot func() []string

const callSiteFrames = 3

func newUpdate(flag UpdateFlag, action, actor, data string) Update {
	u := Update{
		ID:       uuid.NewString(),
		Time:     time.Now().UTC(),
		Flag:     flag,
		Action:   action,
		Actor:    actor,
		CallSite: callSite(3),
		Data:     data,
	}
	if EventStackSnapshot != nil {
		u.EventStack = EventStackSnapshot()
	}
	return u
}

// callSite captures a short stack of the mutation site, skipping the
// record internals themselves.
func callSite(skip int) []string {
	pcs := make([]uintptr, callSiteFrames)
	n := runtime.Callers(skip+1, pcs)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs[:n])
	sites := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		if frame.File != "" {
			sites = append(sites, fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line))
		}
		if !more {
			break
		}
	}
	return sites
}

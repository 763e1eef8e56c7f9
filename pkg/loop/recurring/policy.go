package recurring

import (
	"fmt"
	"strings"
	"time"

	"github.com/pharmbio/pipeline-monitor/pkg/loop"
)

// ParsePolicy parses the policy notation used by command line flags.
//
// - "interval:D": sleep D after every cycle.
//
// - "forever" or "forever:D": restart immediately while there is backlog, otherwise sleep D.
//
// - "backlog": restart immediately while there is backlog, otherwise stop.
func ParsePolicy(s string) (Policy, error) {
	typ, param, ok := strings.Cut(s, ":")
	switch typ {
	case "interval":
		if !ok || param == "" {
			return nil, fmt.Errorf(`interval policy requires duration: %s (like "interval:10s")`, s)
		}
		d, err := time.ParseDuration(param)
		if err != nil {
			return nil, fmt.Errorf(`failed to parse: %s as "interval:DURATION": %w`, s, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("interval should not be negative: %s", s)
		}
		return Interval(d), nil
	case "forever":
		if !ok || param == "" {
			return Forever(0), nil
		}
		d, err := time.ParseDuration(param)
		if err != nil {
			return nil, fmt.Errorf(`failed to parse: %s as "forever:COOLDOWN": %w`, s, err)
		}
		return Forever(d), nil
	case "backlog":
		if ok {
			return nil, fmt.Errorf("backlog policy does not take paramters: %s", s)
		}
		return Backlog(), nil
	}
	return nil, fmt.Errorf("unknown policy name: %s (should be one of -- interval|forever|backlog)", typ)
}

// Policy decides what a loop does after each cycle.
type Policy interface {
	// Next is called with the result of a cycle.
	//
	// updated is true when the cycle did something.
	Next(updated bool, err error) loop.Next
	String() string
}

// Interval sleeps d after every cycle, whatever the cycle did.
func Interval(d time.Duration) Policy {
	return interval(d)
}

type interval time.Duration

func (i interval) String() string {
	return fmt.Sprintf("interval:%s", time.Duration(i))
}

func (i interval) Next(bool, error) loop.Next {
	return loop.Continue(time.Duration(i))
}

// Restart immediately while there are things to do.
// Otherwise, restart after cooldown.
func Forever(cooldown time.Duration) Policy {
	return forever(cooldown)
}

type forever time.Duration

func (f forever) String() string {
	return fmt.Sprintf("forever:%s", time.Duration(f))
}

func (f forever) Next(updated bool, _ error) loop.Next {
	if updated {
		return loop.Continue(0)
	}
	return loop.Continue(time.Duration(f))
}

// Restart immediately while there are things to do.
// Otherwise, Break(nil).
func Backlog() Policy {
	return backlog
}

type backlogPolicy struct{}

func (backlogPolicy) String() string {
	return "backlog"
}

func (backlogPolicy) Next(updated bool, _ error) loop.Next {
	if updated {
		return loop.Continue(0)
	}
	return loop.Break(nil)
}

var backlog = backlogPolicy{}

// UntilError breaks the loop with the error of a cycle.
func UntilError(p Policy) Policy {
	return untilError{base: p}
}

type untilError struct {
	base Policy
}

func (u untilError) String() string {
	return fmt.Sprintf("%s (until error)", u.base)
}

func (u untilError) Next(updated bool, err error) loop.Next {
	if err != nil {
		return loop.Break(err)
	}
	return u.base.Next(updated, err)
}

// UntilFatal is UntilError, but errors satisfying recoverable
// are left to the base policy.
func UntilFatal(p Policy, recoverable func(error) bool) Policy {
	return untilFatal{base: p, recoverable: recoverable}
}

type untilFatal struct {
	base        Policy
	recoverable func(error) bool
}

func (u untilFatal) String() string {
	return fmt.Sprintf("%s (until fatal error)", u.base)
}

func (u untilFatal) Next(updated bool, err error) loop.Next {
	if err != nil && !u.recoverable(err) {
		return loop.Break(err)
	}
	return u.base.Next(updated, err)
}

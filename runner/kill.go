package runner

import (
	"github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v3/process"
)

// killProcessTree kills pid and every descendant, children first so none of
// them is re-parented out of reach before it is killed.
func killProcessTree(pid int) error {
	var errs error
	if err := killGroup(pid); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	if err := killDescendants(int32(pid)); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	return errs
}

func killDescendants(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		// already gone
		return nil
	}
	var errs error
	children, _ := p.Children()
	for _, c := range children {
		if err := killDescendants(c.Pid); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	if err := p.Kill(); err != nil {
		if running, rerr := p.IsRunning(); rerr == nil && running {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "kill %d", pid))
		}
	}
	return errs
}

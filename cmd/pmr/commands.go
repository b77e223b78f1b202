package main

import (
	"context"
	"errors"
	"io"

	"github.com/loykin/pmr"
)

// command runs one subcommand against a freshly opened Supervisor.
type command struct {
	global *GlobalFlags
	out    io.Writer
	errOut io.Writer
}

func (c command) open() (*pmr.Supervisor, error) {
	s, err := pmr.LoadSettings(c.global.Home)
	if err != nil {
		return nil, err
	}
	if c.global.LogLevel != "" {
		s.Log.Level = c.global.LogLevel
	}
	return pmr.Open(s, c.errOut)
}

func (c command) with(fn func(*pmr.Supervisor) error) (err error) {
	sup, err := c.open()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sup.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(sup)
}

// settle turns warnings into a stderr notice and a nil error. A failed
// terminate is reported the same way as an error line; the record is left
// as it was so the operator can retry.
func (c command) settle(err error) error {
	if pmr.IsWarning(err) {
		printWarning(c.errOut, err)
		return nil
	}
	var se *pmr.SignalError
	if errors.As(err, &se) {
		printError(c.errOut, err)
		return nil
	}
	return err
}

func (c command) Start(ctx context.Context, f StartFlags) error {
	return c.with(func(sup *pmr.Supervisor) error {
		rec, err := sup.Start(ctx, pmr.StartRequest{
			Target:     f.Target,
			Name:       f.Name,
			Namespace:  f.Namespace,
			ConfigPath: f.ConfigPath,
			Args:       f.Args,
		})
		if err == nil {
			printOK(c.out, "started %q (id %d, pid %d)", rec.Name, rec.ID, rec.PID)
		}
		if err := c.settle(err); err != nil {
			return err
		}
		return c.printList(ctx, sup)
	})
}

func (c command) Stop(ctx context.Context, target string) error {
	return c.with(func(sup *pmr.Supervisor) error {
		rec, err := sup.Stop(ctx, target)
		if err == nil {
			printOK(c.out, "stopped %q (id %d)", rec.Name, rec.ID)
		}
		if err := c.settle(err); err != nil {
			return err
		}
		return c.printList(ctx, sup)
	})
}

func (c command) Restart(ctx context.Context, f RestartFlags) error {
	return c.with(func(sup *pmr.Supervisor) error {
		rec, err := sup.Restart(ctx, pmr.RestartRequest{
			Target:     f.Target,
			Namespace:  f.Namespace,
			ConfigPath: f.ConfigPath,
			Args:       f.Args,
		})
		if err == nil {
			printOK(c.out, "restarted %q (id %d, pid %d, restarts %d)", rec.Name, rec.ID, rec.PID, rec.Restarts)
		}
		if err := c.settle(err); err != nil {
			return err
		}
		return c.printList(ctx, sup)
	})
}

func (c command) Delete(ctx context.Context, target string) error {
	return c.with(func(sup *pmr.Supervisor) error {
		rec, err := sup.Delete(ctx, target)
		if err == nil {
			printOK(c.out, "deleted %q (id %d)", rec.Name, rec.ID)
		}
		if err := c.settle(err); err != nil {
			return err
		}
		return c.printList(ctx, sup)
	})
}

func (c command) List(ctx context.Context, f ListFlags) error {
	format, err := pmr.ParseFormat(f.Output)
	if err != nil {
		return err
	}
	return c.with(func(sup *pmr.Supervisor) error {
		var rows []pmr.Row
		if f.System {
			rows, err = sup.SystemRows()
		} else {
			rows, err = sup.Rows(ctx)
		}
		if err != nil {
			return err
		}
		return pmr.Render(c.out, format, rows)
	})
}

// Log follows target's output until ctx is cancelled.
func (c command) Log(ctx context.Context, target string) error {
	return c.with(func(sup *pmr.Supervisor) error {
		path, err := sup.LogPath(target)
		if err != nil {
			return c.settle(err)
		}
		printLine(c.errOut, "following", path, "(ctrl-c to stop)")
		err = sup.Follow(ctx, target, c.out)
		if errors.Is(err, pmr.ErrNoLogFile) {
			printWarning(c.errOut, err)
			return nil
		}
		return err
	})
}

func (c command) History(ctx context.Context, f HistoryFlags) error {
	format, err := pmr.ParseFormat(f.Output)
	if err != nil {
		return err
	}
	return c.with(func(sup *pmr.Supervisor) error {
		events, err := sup.History(ctx, f.Target, f.Limit)
		if err != nil {
			return c.settle(err)
		}
		return pmr.RenderEvents(c.out, format, events)
	})
}

// printList shows the registry after a mutation.
func (c command) printList(ctx context.Context, sup *pmr.Supervisor) error {
	rows, err := sup.Rows(ctx)
	if err != nil {
		return err
	}
	return pmr.Render(c.out, pmr.FormatTable, rows)
}

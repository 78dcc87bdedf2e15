package migration

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
)

// CLI formats migrator operations for terminal use. The migrate
// subcommand of cmd/parley dispatches into it.
type CLI struct {
	mg  *Migrator
	out io.Writer
}

func NewCLI(mg *Migrator) *CLI {
	return &CLI{mg: mg, out: os.Stdout}
}

// SetOutput redirects CLI messages, mainly for tests.
func (c *CLI) SetOutput(w io.Writer) { c.out = w }

func (c *CLI) RunUp(ctx context.Context) error {
	fmt.Fprintln(c.out, "Applying pending migrations...")
	if err := c.mg.Up(ctx); err != nil {
		return err
	}
	info, err := c.mg.Summary(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Done. Schema at version %d.\n", info.CurrentVersion)
	return nil
}

func (c *CLI) RunDown(ctx context.Context) error {
	fmt.Fprintln(c.out, "Rolling back one migration...")
	if err := c.mg.Down(ctx); err != nil {
		return err
	}
	info, err := c.mg.Summary(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Done. Schema at version %d.\n", info.CurrentVersion)
	return nil
}

func (c *CLI) RunDownAll(ctx context.Context) error {
	fmt.Fprintln(c.out, "Rolling back all migrations...")
	if err := c.mg.DownAll(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Done. Schema is empty.")
	return nil
}

func (c *CLI) RunSteps(ctx context.Context, n int) error {
	if n >= 0 {
		fmt.Fprintf(c.out, "Applying %d migration(s)...\n", n)
	} else {
		fmt.Fprintf(c.out, "Rolling back %d migration(s)...\n", -n)
	}
	if err := c.mg.Steps(ctx, n); err != nil {
		return err
	}
	info, err := c.mg.Summary(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Done. Schema at version %d.\n", info.CurrentVersion)
	return nil
}

func (c *CLI) RunGoto(ctx context.Context, version uint) error {
	fmt.Fprintf(c.out, "Migrating to version %d...\n", version)
	if err := c.mg.Goto(ctx, version); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Done. Schema at version %d.\n", version)
	return nil
}

func (c *CLI) RunForce(ctx context.Context, version int) error {
	fmt.Fprintf(c.out, "Forcing recorded version to %d...\n", version)
	if err := c.mg.Force(ctx, version); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Done.")
	return nil
}

func (c *CLI) RunVersion(ctx context.Context) error {
	version, dirty, err := c.mg.Version(ctx)
	if err != nil {
		return err
	}
	if version == 0 {
		fmt.Fprintln(c.out, "No migrations applied yet.")
		return nil
	}
	if dirty {
		fmt.Fprintf(c.out, "Schema at version %d (dirty)\n", version)
		return nil
	}
	fmt.Fprintf(c.out, "Schema at version %d\n", version)
	return nil
}

func (c *CLI) RunStatus(ctx context.Context) error {
	steps, err := c.mg.Status(ctx)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		fmt.Fprintln(c.out, "No migrations found.")
		return nil
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATUS")
	for _, s := range steps {
		status := "pending"
		switch {
		case s.Dirty:
			status = "dirty"
		case s.Applied:
			status = "applied"
		}
		fmt.Fprintf(w, "%06d\t%s\t%s\n", s.Version, s.Name, status)
	}
	w.Flush()

	info, err := c.mg.Summary(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "\nTotal %d, applied %d, pending %d\n", info.Total, info.Applied, info.Pending)
	return nil
}

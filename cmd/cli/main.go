// Command cli is the operator tool for the pipeline: queue stats, a
// manual orchestrator trigger, account/workspace provisioning, and a
// debug image fetch, adapted from aistore's cmd/cli/cli/object.go
// urfave/cli command style.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/baihao/MedTest-Backend-sub000/internal/auth"
	"github.com/baihao/MedTest-Backend-sub000/internal/deps"
)

func main() {
	app := cli.NewApp()
	app.Name = "pipelinectl"
	app.Usage = "operate the OCR-to-LabReport pipeline"
	app.Commands = []cli.Command{
		statsCmd,
		runOnceCmd,
		createUserCmd,
		createWorkspaceCmd,
		catImageCmd,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "pipelinectl:", err)
		os.Exit(1)
	}
}

var statsCmd = cli.Command{
	Name:  "stats",
	Usage: "print queue depth (available and in-flight job counts)",
	Action: func(c *cli.Context) error {
		ctx := context.Background()
		d, err := deps.Build(ctx)
		if err != nil {
			return err
		}
		defer d.Close()

		stats, err := d.Jobs.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("available=%d in_flight=%d\n", stats.Available, stats.InFlight)
		return nil
	},
}

var runOnceCmd = cli.Command{
	Name:  "run-once",
	Usage: "run a single orchestrator iteration and print the resulting delay",
	Action: func(c *cli.Context) error {
		ctx := context.Background()
		d, err := deps.Build(ctx)
		if err != nil {
			return err
		}
		defer d.Close()

		delay, err := d.Orchestrator.RunOnce(ctx)
		fmt.Println("delay:", delay)
		return err
	},
}

var createUserCmd = cli.Command{
	Name:      "create-user",
	Usage:     "create an account with a bcrypt-hashed password",
	ArgsUsage: "USERNAME PASSWORD",
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return cli.NewExitError("usage: create-user USERNAME PASSWORD", 1)
		}
		ctx := context.Background()
		d, err := deps.Build(ctx)
		if err != nil {
			return err
		}
		defer d.Close()

		hash, err := auth.HashPassword(c.Args().Get(1))
		if err != nil {
			return err
		}
		user, err := d.Users.Create(ctx, c.Args().Get(0), hash)
		if err != nil {
			return err
		}
		fmt.Printf("created user id=%d username=%s\n", user.ID, user.Username)
		return nil
	},
}

var createWorkspaceCmd = cli.Command{
	Name:      "create-workspace",
	Usage:     "create a workspace for an existing owner",
	ArgsUsage: "OWNER_ID NAME",
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return cli.NewExitError("usage: create-workspace OWNER_ID NAME", 1)
		}
		ownerID, err := parseInt64(c.Args().Get(0))
		if err != nil {
			return err
		}
		ctx := context.Background()
		d, err := deps.Build(ctx)
		if err != nil {
			return err
		}
		defer d.Close()

		ws, err := d.Workspaces.Create(ctx, ownerID, c.Args().Get(1))
		if err != nil {
			return err
		}
		fmt.Printf("created workspace id=%d name=%s\n", ws.ID, ws.Name)
		return nil
	},
}

var catImageCmd = cli.Command{
	Name:      "cat-image",
	Usage:     "dump the raw bytes of a job's scan to stdout, for debugging the image store backend",
	ArgsUsage: "IMAGE_KEY",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.NewExitError("usage: cat-image IMAGE_KEY", 1)
		}
		ctx := context.Background()
		d, err := deps.Build(ctx)
		if err != nil {
			return err
		}
		defer d.Close()

		data, err := d.Images.Fetch(ctx, c.Args().Get(0))
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func parseInt64(s string) (int64, error) {
	var n int64
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil {
		return 0, cli.NewExitError("expected a numeric id, got "+s, 1)
	}
	return n, nil
}

// Package main provides roomctl, the administrative CLI. Each invocation
// issues exactly one request over the server's local unix socket and exits.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/cardhaus/cardhaus/internal/admin"
	"github.com/cardhaus/cardhaus/internal/manager"
)

func main() {
	cmd := &cli.Command{
		Name:  "roomctl",
		Usage: "administer a running room server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "socket",
				Value: "cardhaus.sock",
				Usage: "path to the server's admin socket",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "close",
				Usage:     "close one room and drop all its connections",
				ArgsUsage: "<room-id>",
				Action: func(ctx context.Context, c *cli.Command) error {
					id := c.Args().First()
					if id == "" {
						return errors.New("missing room id")
					}
					return issue(c, manager.Request{Op: manager.OpCloseRoom, RoomID: id})
				},
			},
			{
				Name:  "list",
				Usage: "list all rooms with their players",
				Action: func(ctx context.Context, c *cli.Command) error {
					return issue(c, manager.Request{Op: manager.OpListRooms})
				},
			},
			{
				Name:  "clean",
				Usage: "force a maintenance sweep of empty rooms",
				Action: func(ctx context.Context, c *cli.Command) error {
					return issue(c, manager.Request{Op: manager.OpCleanUnused})
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// issue sends one request and renders the answer.
func issue(c *cli.Command, req manager.Request) error {
	client := admin.NewClient(c.String("socket"))
	answer, err := client.Do(req)
	if err != nil {
		return err
	}

	switch answer.Status {
	case manager.StatusSuccessful:
		if req.Op == manager.OpListRooms {
			printRooms(answer.Rooms)
		} else {
			fmt.Println("ok")
		}
		return nil
	default:
		return fmt.Errorf("server answered: %s", answer.Status)
	}
}

func printRooms(rooms []manager.RoomIndex) {
	if len(rooms) == 0 {
		fmt.Println("no rooms")
		return
	}
	for _, r := range rooms {
		names := make([]string, 0, len(r.Players))
		for _, n := range r.Players {
			if n == "" {
				n = "(anonymous)"
			}
			names = append(names, n)
		}
		fmt.Printf("%s [%d/%d]: %s\n", r.ID, len(r.Players), r.Capacity, strings.Join(names, ", "))
	}
}

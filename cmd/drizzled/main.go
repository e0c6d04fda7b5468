// Command drizzled runs a single mesh node: it binds a UDP port, issues
// SYNC to whatever peer specs were given on the command line, and then
// serves the mesh until signaled to stop.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"drizzle"
	"drizzle/logger"
)

func main() {
	app := &cli.App{
		Name:  "drizzled",
		Usage: "run a Drizzle mesh node",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   drizzle.DefaultPort,
				Usage:   "UDP port to listen on",
			},
			&cli.StringFlag{
				Name:  "admin-addr",
				Value: "",
				Usage: "if set, serve the admin HTTP endpoint (GET /peers, POST /sync) on this host:port",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "one of debug, info, warn, error",
			},
		},
		ArgsUsage: "[host:port ...]",
		Action:    run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	level, err := logrus.ParseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	log := logger.NewLogrus(level)

	cfg := drizzle.NewConfig()
	cfg.Port = c.Int("port")

	node, err := drizzle.NewNode(cfg, log)
	if err != nil {
		return err
	}

	log.Infof("bound to %v", node.LocalAddr())

	if addr := c.String("admin-addr"); addr != "" {
		admin := drizzle.NewAdminHandler(node)
		go func() {
			if err := http.ListenAndServe(addr, admin); err != nil {
				log.Errorf("admin HTTP server on %s: %v", addr, err)
			}
		}()
		log.Infof("admin endpoint on http://%s (GET /peers, POST /sync)", addr)
	}

	for _, spec := range c.Args().Slice() {
		addr, err := drizzle.ParsePeerSpec(spec)
		if err != nil {
			log.Errorf("skipping peer spec %q: %v", spec, err)
			continue
		}
		node.SyncTo(addr)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Infof("signal received, disconnecting and stopping")
		node.DesyncAll()
		node.Stop()
	}()

	return node.Run()
}

/*
Copyright 2023 - 2025 Dima Krasner
Copyright 2022 Omar Polo

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/omarpolo/galileo/buildinfo"
	"github.com/omarpolo/galileo/cfg"
	"github.com/omarpolo/galileo/tmpl"
	"github.com/omarpolo/galileo/worker"
)

var (
	logLevel    = flag.Int("loglevel", int(slog.LevelInfo), "Logging verbosity")
	cfgPath     = flag.String("cfg", "", "Configuration file")
	proxiesPath = flag.String("proxies", "proxies.json", "Proxy table file")
	listenAddr  = flag.String("addr", "", "FastCGI listening address (empty: use stdin, for spawn-fcgi-style use)")
	dumpCfg     = flag.Bool("dumpcfg", false, "Print default configuration and exit")
	version     = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flag]...\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	if *version {
		fmt.Println(buildinfo.Version)
		return
	}

	var c cfg.Config

	if *dumpCfg {
		c.FillDefaults()
		e := json.NewEncoder(os.Stdout)
		e.SetEscapeHTML(false)
		e.SetIndent("", "\t")
		if err := e.Encode(c); err != nil {
			panic(err)
		}
		return
	}

	if *cfgPath != "" {
		f, err := os.Open(*cfgPath)
		if err != nil {
			panic(err)
		}
		if err := json.NewDecoder(f).Decode(&c); err != nil {
			f.Close()
			panic(err)
		}
		f.Close()
	}

	c.FillDefaults()

	opts := slog.HandlerOptions{Level: slog.Level(*logLevel)}
	if opts.Level == slog.LevelDebug {
		opts.AddSource = true
	}
	log := slog.New(slog.NewJSONHandler(os.Stderr, &opts))
	slog.SetDefault(log)

	log.Debug("starting", "version", buildinfo.Version, "cfg", &c)

	table, err := cfg.Watch(log, *proxiesPath)
	if err != nil {
		panic(err)
	}
	defer table.Close()

	sup := worker.NewSupervisor(log, table, &c, tmpl.Default{})

	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-sigs:
			log.Info("received termination signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	var ln net.Listener
	if *listenAddr != "" {
		ln, err = net.Listen("tcp", *listenAddr)
		if err != nil {
			panic(err)
		}
	} else {
		ln, err = net.FileListener(os.Stdin)
		if err != nil {
			panic(err)
		}
	}

	log.Info("serving", "workers", c.Workers, "inflight_limit", sup.Admission.Limit())

	var workers sync.WaitGroup
	for i := 0; i < c.Workers; i++ {
		workers.Add(1)
		go func(n int) {
			defer workers.Done()
			if err := worker.ListenAndServe(ctx, ln, sup); err != nil {
				log.Error("worker exited", "worker", n, "error", err)
			}
		}(i)
	}

	workers.Wait()
	cancel()
	wg.Wait()
}

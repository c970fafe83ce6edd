// Package cli locates the worker executable and builds its command line.
//
// This package provides two capabilities:
//
// # Worker Discovery
//
// The Discoverer resolves the interpreter and the worker entry point before a
// spawn is attempted, so a missing script is reported as a
// WorkerNotFoundError instead of an opaque exit:
//
//	discoverer := cli.NewDiscoverer(&cli.Config{
//	    Command: "python3",
//	    Script:  "run_bot.py",
//	    Cwd:     "/srv/botserver",
//	    Logger:  slog.Default(),
//	})
//	target, err := discoverer.Discover()
//
// Commands containing a path separator are checked on disk (relative to Cwd);
// bare names are searched in PATH. The script is resolved relative to Cwd.
//
// # Command Building
//
//	args := cli.BuildArgs(target.Script, extraArgs)
//	env := cli.BuildEnvironment(options.Env)
package cli

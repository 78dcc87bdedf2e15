// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
Package config loads the server configuration.

Precedence is fixed: defaults, then the YAML file, then environment
variables. Environment keys derive from the struct's env tags joined with
underscores under a prefix, PARLEY by default, so PARLEY_SERVER_ADDR
overrides server.addr. A missing config file is not an error; the defaults
are a runnable configuration.

The Watcher polls the config file and fires debounced callbacks on change,
which the server uses to adjust the log level without a restart.
*/
package config

// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads configuration for the hostflow management-API
// collector.
//
// Configuration comes from a single file named by the --config flag or
// the HOSTFLOW_CONFIG environment variable. There is no search path
// and no fallback file: without either, the collector runs on
// [Default] values and whatever flags were passed.
//
// Files ending in .yaml or .yml are YAML. Files ending in .json or
// .jsonc are JSON with comments and trailing commas allowed. Path
// values may reference ${HOME}, ${HOSTFLOW_RUN_DIR}, or any other
// environment variable using ${NAME} or ${NAME:-default}.
package config

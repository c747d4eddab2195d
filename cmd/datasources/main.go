// datasources: command-line tool for data source documents
//
// Editor limits and the audit trail come from DATASOURCES_* environment
// variables, for example:
//
//	DATASOURCES_AUDIT_ENABLED=true DATASOURCES_AUDIT_OUTPUT_FILE=audit.db datasources audit stats
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"os"

	"github.com/agilira/datasources"
	"github.com/agilira/datasources/cmd/cli"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	config, err := datasources.LoadConfigFromEnv()
	if err != nil {
		return err
	}

	manager := cli.NewManager()

	if config.Audit.Enabled {
		auditLogger, err := datasources.NewAuditLogger(config.Audit)
		if err != nil {
			return err
		}
		defer func() { _ = auditLogger.Close() }()
		manager.WithAudit(auditLogger)
	}

	// Commands are audited through the manager; sessions must not open the trail a second time
	session := *config
	session.Audit.Enabled = false
	manager.WithConfig(session)

	return manager.Run(args)
}

// Copyright 2024 Northern.tech AS
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mendersoftware/go-lib-micro/config"
	"github.com/urfave/cli"

	dconfig "github.com/netboot-orchestrator/netboot/config"
	"github.com/netboot-orchestrator/netboot/server"
)

var Version string = "unknown"

// exit code of the check command when drift is found
const exitCodeDrift = 2

func main() {
	doMain(os.Args)
}

func doMain(args []string) {
	var configPath string

	app := &cli.App{
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name: "config",
				Usage: "Configuration `FILE`. " +
					"Supports JSON, TOML, YAML and HCL " +
					"formatted configs.",
				Value:       "config.yaml",
				Destination: &configPath,
			},
		},
		Commands: []cli.Command{
			{
				Name:   "server",
				Usage:  "Run the boot and management API server",
				Action: cmdServer,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "automigrate",
						Usage: "Run boot log database migrations before starting.",
					},
				},
			},
			{
				Name:   "migrate",
				Usage:  "Run the boot log database migrations",
				Action: cmdMigrate,
			},
			{
				Name: "check",
				Usage: "Report drift between the registry, the boot artifacts " +
					"and the iSCSI targets without changing anything",
				Action: cmdCheck,
			},
		},
	}
	app.Usage = "Netboot orchestrator"
	app.Version = Version
	app.Action = cmdServer

	app.Before = func(args *cli.Context) error {
		err := config.FromConfigFile(configPath, dconfig.Defaults)
		if err != nil {
			return cli.NewExitError(
				fmt.Sprintf("error loading configuration: %s", err),
				1)
		}

		// Enable setting config values by environment variables
		config.Config.SetEnvPrefix("NETBOOT")
		config.Config.AutomaticEnv()
		config.Config.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

		return nil
	}

	err := app.Run(args)
	if err != nil {
		log.Fatal(err)
	}
}

func cmdServer(args *cli.Context) error {
	return server.InitAndRun(config.Config, args.Bool("automigrate"))
}

func cmdMigrate(args *cli.Context) error {
	ctx := context.Background()
	if backend := config.Config.GetString(dconfig.SettingBootLogBackend); backend !=
		server.BootLogBackendMongo {
		fmt.Printf("boot log backend %q has no migrations\n", backend)
		return nil
	}
	bootlog, err := server.SetupBootLog(ctx, config.Config, true)
	if err != nil {
		return err
	}
	return bootlog.Close(ctx)
}

func cmdCheck(args *cli.Context) error {
	report, err := server.Check(context.Background(), config.Config)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if len(report.Findings) > 0 {
		return cli.NewExitError(
			fmt.Sprintf("%d drift finding(s)", len(report.Findings)),
			exitCodeDrift)
	}
	return nil
}

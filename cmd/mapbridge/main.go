package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-mapbridge/internal/logger"
	"github.com/joeblew999/plat-mapbridge/internal/server"
)

// Options defines all CLI flags and env vars for the map bridge server.
// Flags: --host, --port, --data-dir, --journal, --legacy-ignore-unknown
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_JOURNAL,
// SERVICE_LEGACY_IGNORE_UNKNOWN
type Options struct {
	Host                string `doc:"Host to bind to" default:"0.0.0.0"`
	Port                int    `doc:"Port to listen on" short:"p" default:"8087"`
	DataDir             string `doc:"Directory for persisted views and the journal database" default:".data"`
	Journal             bool   `doc:"Record events and diagnostics in DuckDB" default:"false"`
	LegacyIgnoreUnknown bool   `doc:"Answer unknown host commands with success instead of NOT_IMPLEMENTED" default:"false"`
}

func newServer(opts *Options) (*server.Server, error) {
	return server.New(server.Config{
		Host:                  opts.Host,
		Port:                  fmt.Sprintf("%d", opts.Port),
		DataDir:               opts.DataDir,
		Journal:               opts.Journal,
		IgnoreUnknownCommands: opts.LegacyIgnoreUnknown,
		Logger:                logger.L(),
	})
}

func main() {
	// Missing .env is fine; the environment and flags still apply.
	_ = godotenv.Load()
	log := logger.Setup()

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var srv *server.Server
		var httpSrv *http.Server

		hooks.OnStart(func() {
			var err error
			if srv, err = newServer(opts); err != nil {
				log.Error("server_init_failed", "error", err)
				os.Exit(1)
			}
			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			baseURL := srv.BaseURL()

			fmt.Println()
			fmt.Printf("plat-mapbridge API server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Printf("  Journal: %t\n", opts.Journal)
			fmt.Println()
			fmt.Printf("  Maps:    %s/api/v1/maps\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			httpSrv = &http.Server{Addr: addr, Handler: srv}
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("server_failed", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			if httpSrv != nil {
				httpSrv.Close()
			}
			if srv != nil {
				if err := srv.Close(); err != nil {
					log.Warn("server_close_failed", "error", err)
				}
			}
		})
	})

	cli.Root().Use = "mapbridge"
	cli.Root().Short = "Bridge between a map engine and its hosting view"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			// The OpenAPI document does not depend on persisted state.
			opts.DataDir = ""
			opts.Journal = false
			srv, err := newServer(opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error creating server: %v\n", err)
				os.Exit(1)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// validate subcommand: check creation params without serving
	validateCmd := &cobra.Command{
		Use:   "validate <params.yaml|params.json>",
		Short: "Validate map view creation parameters",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			data, err := os.ReadFile(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", args[0], err)
				os.Exit(1)
			}
			sum, err := validateParams(data, log)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Invalid: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(sum)
		},
	}
	cli.Root().AddCommand(validateCmd)

	cli.Run()
}

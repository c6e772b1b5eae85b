package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/cuemby/signalcore/pkg/reactorlog"
	"github.com/cuemby/signalcore/pkg/reactormetrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the Prometheus metrics endpoint",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":9090", "Listen address for the metrics endpoint")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	log := reactorlog.WithComponent("metrics-server")

	mux := http.NewServeMux()
	mux.Handle("/metrics", reactormetrics.Handler())

	log.Info().Str("addr", addr).Msg("serving metrics")
	fmt.Printf("serving metrics on %s/metrics\n", addr)
	return http.ListenAndServe(addr, mux)
}

// Command rpcstack issues one JSON-RPC call through a pipeline described in
// YAML.
//
//	rpcstack -config pipeline.yaml getBalance '["83astBRguLMdt2h5U1Tpdq5tjFoJ6noeGwaY3mDLVcri"]'
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"rpc-stack/client"
	"rpc-stack/config"
	"rpc-stack/rpcerr"
)

func main() {
	configPath := ""
	flag.StringVar(&configPath, "config", "", "pipeline YAML file (overridden by "+config.EnvConfig+")")
	timeout := flag.Duration("timeout", 30*time.Second, "deadline for the whole call")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] method [json-params]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 || flag.NArg() > 2 {
		flag.Usage()
		os.Exit(2)
	}
	method := flag.Arg(0)
	params := json.RawMessage("[]")
	if flag.NArg() == 2 {
		params = json.RawMessage(flag.Arg(1))
		if !json.Valid(params) {
			log.Fatalf("params are not valid JSON: %s", params)
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalln(err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatalln(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	c, err := cfg.Build(ctx, client.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to build pipeline", zap.Error(err))
	}

	result, err := c.CallRaw(ctx, method, params)
	if err != nil {
		e := rpcerr.From(err)
		logger.Error("rpc call failed",
			zap.String("method", method),
			zap.Stringer("kind", e.Kind),
			zap.Bool("local", rpcerr.IsPipelineOriginated(e)),
			zap.Error(e),
		)
		os.Exit(1)
	}
	fmt.Println(string(result))
}

package main

import (
	"context"
	"flag"
	"net/http"

	"go.uber.org/zap"

	"pyramidclient/internal/stubserver"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	srv := stubserver.New(context.Background(), logger)
	defer srv.Shutdown()

	logger.Info("stub server listening", zap.String("addr", *addr))
	if err := http.ListenAndServe(*addr, srv.Handler()); err != nil {
		logger.Fatal("listen", zap.Error(err))
	}
}

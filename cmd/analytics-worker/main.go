package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/nuwa-agi/nuwa/internal/analytics/worker"
	"github.com/nuwa-agi/nuwa/internal/db"
	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
)

type Config struct {
	Log      logx.LogConf
	Database struct {
		DSN string `json:",optional,env=NUWA_DB_DSN"`
	}
	Worker worker.Config
}

var configFile = flag.String("f", "cmd/analytics-worker/etc/analytics-worker.yaml", "the config file")

func main() {
	flag.Parse()

	var c Config
	conf.MustLoad(*configFile, &c, conf.UseEnv())
	logx.MustSetup(c.Log)

	gdb, err := db.Open(c.Database.DSN)
	logx.Must(err)
	w, err := worker.NewWorker(c.Worker, gdb)
	logx.Must(err)
	defer w.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	logx.Infof("analytics worker consuming %s and %s as %s", c.Worker.StreamEvents, c.Worker.StreamPayments, c.Worker.Group)
	if err := w.Run(ctx); err != nil {
		logx.Errorf("analytics worker: %v", err)
	}
}

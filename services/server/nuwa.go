// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package main

import (
	"flag"
	"fmt"

	"github.com/nuwa-agi/nuwa/internal/realtime"
	"github.com/nuwa-agi/nuwa/services/server/internal/config"
	"github.com/nuwa-agi/nuwa/services/server/internal/handler"
	"github.com/nuwa-agi/nuwa/services/server/internal/svc"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/service"
	"github.com/zeromicro/go-zero/rest"
)

var configFile = flag.String("f", "etc/nuwa.yaml", "the config file")

func main() {
	flag.Parse()

	var c config.Config
	conf.MustLoad(svc.ResolveServerPath(*configFile), &c, conf.UseEnv())

	server := rest.MustNewServer(c.RestConf, rest.WithCors())
	svc.SetupFileLog(c.FileLog)

	ctx := svc.NewServiceContext(c)
	defer ctx.Close()
	handler.RegisterHandlers(server, ctx)

	group := service.NewServiceGroup()
	defer group.Stop()
	group.Add(server)
	group.Add(realtime.NewServer(c.Realtime, ctx.Gateway))

	fmt.Printf("Starting server at %s:%d, realtime at %s%s...\n", c.Host, c.Port, c.Realtime.Addr, c.Realtime.Path)
	group.Start()
}

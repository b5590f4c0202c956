package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
	"gopkg.in/yaml.v3"

	"github.com/yola1107/pokerdice/internal/conf"
	"github.com/yola1107/pokerdice/internal/server"
)

var (
	Name    = conf.Name
	Version = conf.Version
	id, _   = os.Hostname()
)

var CLI struct {
	Version bool   `help:"Print version information and exit." short:"v"`
	Conf    string `help:"Config file path." default:"configs/config.yaml" type:"path"`
	Pprof   string `help:"Serve net/http/pprof on this address, e.g. :6060."`

	Serve struct{} `cmd:"" default:"1" help:"Start the pokerdice server."`

	Config struct{} `cmd:"" help:"Print the effective configuration (file plus POKERDICE_* overrides) as YAML."`
}

func newApp(logger log.Logger, hs *http.Server, ws *server.WebsocketServer) *kratos.App {
	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(
			hs,
			ws,
		),
	)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", err)
	os.Exit(1)
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(Name),
		kong.Description("poker dice match server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	if CLI.Version {
		fmt.Printf("%s %s\n", Name, Version)
		return
	}

	switch ctx.Command() {
	case "serve":
		if err := serve(CLI.Conf, CLI.Pprof); err != nil {
			fail(err)
		}
	case "config":
		if err := printConfig(CLI.Conf); err != nil {
			fail(err)
		}
	}
}

func printConfig(path string) error {
	c, bc, err := conf.LoadConfig(path)
	if err != nil {
		return err
	}
	defer c.Close()

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(bc)
}

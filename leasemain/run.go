package leasemain

import (
	"os"

	"github.com/caddyserver/caddy"

	// Include the lease server type and all directives
	_ "github.com/nextdhcp/nextlease/core"
)

var (
	conf       string
	serverType = "lease"
)

func init() {
	caddy.DefaultConfigFile = "Leasefile"
	caddy.Quiet = false

	caddy.RegisterCaddyfileLoader("flag", caddy.LoaderFunc(configLoader))
	caddy.SetDefaultCaddyfileLoader("default", caddy.LoaderFunc(defaultLoader))

	caddy.AppName = "NextLease"
	caddy.AppVersion = "v0.1.0"
}

// Run starts NextLease using the Leasefile at path and blocks until the
// server stopped. An empty path loads the default Leasefile
func Run(path string) error {
	conf = path
	caddy.TrapSignals()

	leasefile, err := caddy.LoadCaddyfile(serverType)
	if err != nil {
		return err
	}

	instance, err := caddy.Start(leasefile)
	if err != nil {
		return err
	}

	instance.Wait()
	return nil
}

func configLoader(serverType string) (caddy.Input, error) {
	if conf == "" {
		return nil, nil
	}

	if conf == "stdin" || conf == "-" {
		return caddy.CaddyfileFromPipe(os.Stdin, serverType)
	}

	file, err := os.ReadFile(conf)
	if err != nil {
		return nil, err
	}

	return caddy.CaddyfileInput{
		Contents:       file,
		Filepath:       conf,
		ServerTypeName: serverType,
	}, nil
}

// defaultLoader loads the Leasefile in the working directory. If there is
// none the default input of the server type is used
func defaultLoader(serverType string) (caddy.Input, error) {
	file, err := os.ReadFile(caddy.DefaultConfigFile)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return caddy.CaddyfileInput{
		Contents:       file,
		Filepath:       caddy.DefaultConfigFile,
		ServerTypeName: serverType,
	}, nil
}

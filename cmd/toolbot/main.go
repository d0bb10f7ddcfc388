package main

import (
	"fmt"
	"log"

	"github.com/m3rciful/toolbot/app"
	"github.com/m3rciful/toolbot/core/cmd"
)

func main() {
	err := cmd.Run(cmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return app.LoadConfig(path)
		},
		Bootstrap: func(cfg cmd.ConfigCarrier) (cmd.TelegramApp, error) {
			appCfg, ok := cfg.(*app.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", cfg)
			}
			return app.New(appCfg)
		},
	})
	if err != nil {
		log.Fatalf("toolbot: %v", err)
	}
}

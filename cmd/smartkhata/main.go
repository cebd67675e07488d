// Command smartkhata はSmartKhata APIサーバーを起動する。
//
//	smartkhata [serve|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/hitoshi/smartkhata/internal/app"
)

func main() {
	// .envが存在する場合のみ読み込む。既存の環境変数は上書きしない。
	_ = godotenv.Load()

	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "smartkhata: %v\n", err)
		os.Exit(1)
	}
}

package app

import (
	"errors"
	"fmt"
	"strings"
)

// Command はsmartkhataバイナリのサブコマンド。
type Command string

const (
	// CommandServe はHTTP APIを起動する。引数なしの場合の既定値。
	CommandServe Command = "serve"
	// CommandMigrate はスキーママイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のサーバーの/healthを叩いて終了コードで結果を返す。
	// distrolessイメージにはcurlがないため、コンテナのHEALTHCHECKから使う。
	CommandHealthcheck Command = "healthcheck"
)

// ErrUnknownCommand は未知のサブコマンドが指定された場合に返される。
var ErrUnknownCommand = errors.New("unknown command")

var commandSummaries = []struct {
	cmd  Command
	desc string
}{
	{CommandServe, "start the HTTP API (default)"},
	{CommandMigrate, "apply database migrations and exit"},
	{CommandHealthcheck, "check http://127.0.0.1:$PORT/health"},
}

// ParseCommand はos.Args[1:]の先頭からサブコマンドを取り出す。
// 2番目以降の引数は無視する。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}
	for _, c := range commandSummaries {
		if args[0] == string(c.cmd) {
			return c.cmd, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownCommand, args[0])
}

// Usage はサブコマンドの一覧を返す。
func Usage() string {
	var b strings.Builder
	b.WriteString("usage: smartkhata [command]\n\ncommands:\n")
	for _, c := range commandSummaries {
		fmt.Fprintf(&b, "  %-12s %s\n", c.cmd, c.desc)
	}
	return b.String()
}

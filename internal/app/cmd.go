package app

import (
	"errors"
	"fmt"
	"strings"
)

// Command はmindlogの起動モードを表す。
type Command string

const (
	// CommandServe はAPIゲートウェイを起動する。
	CommandServe Command = "serve"
	// CommandWorker は利用記録のクリーンアップワーカーを起動する。
	CommandWorker Command = "worker"
	// CommandMigrate はスキーマを最新バージョンまで適用する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は稼働中のAPIの/healthを確認する。
	// distrolessイメージにはcurlが無いため、DockerのHEALTHCHECKから呼ぶ。
	CommandHealthcheck Command = "healthcheck"
	// CommandHelp は使い方を表示する。
	CommandHelp Command = "help"
)

// ErrUnknownCommand は未定義のサブコマンドが指定されたことを示す。
var ErrUnknownCommand = errors.New("unknown command")

var commandSummaries = []struct {
	cmd     Command
	summary string
}{
	{CommandServe, "start the API gateway (default)"},
	{CommandWorker, "run the AI usage log retention cleanup every 24h"},
	{CommandMigrate, "apply database migrations and exit"},
	{CommandHealthcheck, "check GET /health on SERVER_PORT (for Docker HEALTHCHECK)"},
	{CommandHelp, "show this message"},
}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が空の場合はCommandServeを返す。2番目以降の引数は無視する。
// 未定義のコマンドはErrUnknownCommandを返し、誤ったコマンドでサーバーが起動しないようにする。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	switch args[0] {
	case "serve":
		return CommandServe, nil
	case "worker":
		return CommandWorker, nil
	case "migrate":
		return CommandMigrate, nil
	case "healthcheck":
		return CommandHealthcheck, nil
	case "help", "-h", "--help":
		return CommandHelp, nil
	default:
		return "", fmt.Errorf("%w %q\n\n%s", ErrUnknownCommand, args[0], Usage())
	}
}

// Usage はmindlogのサブコマンド一覧を返す。
func Usage() string {
	var b strings.Builder
	b.WriteString("Usage: mindlog [command]\n\nCommands:\n")
	for _, c := range commandSummaries {
		fmt.Fprintf(&b, "  %-12s %s\n", c.cmd, c.summary)
	}
	b.WriteString("\nConfiguration is read from environment variables (and .env if present).\n")
	return b.String()
}

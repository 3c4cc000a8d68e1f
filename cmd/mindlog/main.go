// Command mindlog はAI日記アプリのバックエンドを起動する。
//
// サブコマンド:
//
//	serve        APIサーバー（デフォルト）
//	worker       利用記録のクリーンアップジョブ
//	migrate      データベースマイグレーション
//	healthcheck  /healthへの疎通確認（コンテナのヘルスチェック用）
//	help         使い方の表示
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/mindlog/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "mindlog: %v\n", err)
		os.Exit(1)
	}
}

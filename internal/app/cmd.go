package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandRun は1回分の実行（バッチ）を行うことを示す。
	CommandRun Command = "run"
	// CommandWatch は定期実行の監視モードで起動することを示す。
	CommandWatch Command = "watch"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandRunを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandRun
	}

	switch args[0] {
	case "run":
		return CommandRun
	case "watch":
		return CommandWatch
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandRun
	}
}
